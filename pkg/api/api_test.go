package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"causerie/pkg/auth"
	"causerie/pkg/blob"
	"causerie/pkg/config"
	"causerie/pkg/events"
	"causerie/pkg/ledger"
	"causerie/pkg/security"
	"causerie/pkg/store"
)

const (
	backendKey  = "backend-secret"
	frontendKey = "frontend-secret"
)

func setupServer(t *testing.T) *httptest.Server {
	t.Helper()
	if err := store.Open(t.TempDir() + "/db"); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	if err := blob.Init(t.TempDir()); err != nil {
		t.Fatalf("blob.Init: %v", err)
	}
	events.Reset()
	ledger.Configure(5, 2<<20, nil)

	config.SetRuntime(&config.RuntimeConfig{
		BackendKeys: map[string]struct{}{backendKey: {}},
		SigningKeys: map[string]struct{}{backendKey: {}},
	})
	sec := security.SecConfig{
		BackendKeys:  map[string]struct{}{backendKey: {}},
		FrontendKeys: map[string]struct{}{frontendKey: {}},
	}
	srv := httptest.NewServer(NewRouter(sec))
	t.Cleanup(srv.Close)
	return srv
}

type envelope struct {
	StatusCode int               `json:"status_code"`
	Message    string            `json:"message"`
	Data       json.RawMessage   `json:"data"`
	Errors     map[string]string `json:"errors"`
}

// do issues a signed frontend request and decodes the envelope.
func do(t *testing.T, srv *httptest.Server, method, path, user string, body interface{}) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req, err := http.NewRequest(method, srv.URL+path, &buf)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", frontendKey)
	if user != "" {
		req.Header.Set("X-User-ID", user)
		req.Header.Set("X-User-Signature", auth.Sign(backendKey, user))
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer res.Body.Close()
	var env envelope
	_ = json.NewDecoder(res.Body).Decode(&env)
	return res.StatusCode, env
}

func provisionUser(t *testing.T, srv *httptest.Server, id, username string) {
	t.Helper()
	body, _ := json.Marshal(map[string]string{"id": id, "username": username})
	req, _ := http.NewRequest("POST", srv.URL+"/v1/users", bytes.NewReader(body))
	req.Header.Set("X-API-Key", backendKey)
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("provision request failed: %v", err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("provision %s: expected 201, got %v", id, res.Status)
	}
}

func TestHealthz_NoAuth(t *testing.T) {
	srv := setupServer(t)
	res, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatalf("healthz: %v", err)
	}
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %v", res.Status)
	}
}

func TestProvisionUser_FrontendForbidden(t *testing.T) {
	srv := setupServer(t)
	code, _ := do(t, srv, "POST", "/v1/users", "u1", map[string]string{"id": "u9", "username": "eve"})
	if code != http.StatusForbidden {
		t.Fatalf("frontend key must not provision users, got %d", code)
	}
}

func TestInvalidSignatureRejected(t *testing.T) {
	srv := setupServer(t)
	req, _ := http.NewRequest("GET", srv.URL+"/v1/contacts/established", nil)
	req.Header.Set("X-API-Key", frontendKey)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Signature", "bogus")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %v", res.Status)
	}
}

func TestContactToPrivateMessageFlow(t *testing.T) {
	srv := setupServer(t)
	provisionUser(t, srv, "u1", "alice")
	provisionUser(t, srv, "u2", "bob")

	// u1 finds u2 and sends a request
	code, env := do(t, srv, "GET", "/v1/contacts/search?query=bob", "u1", nil)
	if code != http.StatusOK {
		t.Fatalf("search: expected 200, got %d (%s)", code, env.Message)
	}
	code, env = do(t, srv, "POST", "/v1/contacts/requests", "u1", map[string]string{"idUser2": "u2"})
	if code != http.StatusCreated {
		t.Fatalf("request: expected 201, got %d (%s)", code, env.Message)
	}
	var contact struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &contact); err != nil || contact.ID == "" {
		t.Fatalf("missing contact id in %s", env.Data)
	}

	// duplicate requests conflict, either direction
	code, _ = do(t, srv, "POST", "/v1/contacts/requests", "u2", map[string]string{"idUser2": "u1"})
	if code != http.StatusConflict {
		t.Fatalf("reversed duplicate: expected 409, got %d", code)
	}

	// only the recipient may accept
	code, _ = do(t, srv, "PATCH", "/v1/contacts/"+contact.ID+"/accept", "u1", nil)
	if code != http.StatusForbidden {
		t.Fatalf("requester accept: expected 403, got %d", code)
	}
	code, env = do(t, srv, "PATCH", "/v1/contacts/"+contact.ID+"/accept", "u2", nil)
	if code != http.StatusOK {
		t.Fatalf("accept: expected 200, got %d (%s)", code, env.Message)
	}

	// the private discussion was created on accept
	code, env = do(t, srv, "GET", "/v1/discussions", "u1", nil)
	if code != http.StatusOK {
		t.Fatalf("list discussions: expected 200, got %d", code)
	}
	var discussions []struct {
		ID   string `json:"id"`
		Kind string `json:"tags"`
	}
	if err := json.Unmarshal(env.Data, &discussions); err != nil {
		t.Fatalf("decode discussions: %v", err)
	}
	if len(discussions) != 1 || discussions[0].Kind != "PRIVATE" {
		t.Fatalf("expected one private discussion, got %+v", discussions)
	}
	privID := discussions[0].ID

	// messaging works both ways
	code, env = do(t, srv, "POST", "/v1/messages", "u1", map[string]string{"discussionId": privID, "text": "salut"})
	if code != http.StatusCreated {
		t.Fatalf("send: expected 201, got %d (%s)", code, env.Message)
	}
	code, _ = do(t, srv, "POST", "/v1/messages", "u2", map[string]string{"discussionId": privID, "text": "hello"})
	if code != http.StatusCreated {
		t.Fatalf("reply: expected 201, got %d", code)
	}

	// u2 blocks u1: messaging stops in both directions
	code, _ = do(t, srv, "PATCH", "/v1/contacts/"+contact.ID+"/block", "u2", nil)
	if code != http.StatusOK {
		t.Fatalf("block: expected 200, got %d", code)
	}
	code, _ = do(t, srv, "POST", "/v1/messages", "u1", map[string]string{"discussionId": privID, "text": "??"})
	if code != http.StatusForbidden {
		t.Fatalf("send after block: expected 403, got %d", code)
	}
	code, _ = do(t, srv, "POST", "/v1/messages", "u2", map[string]string{"discussionId": privID, "text": "??"})
	if code != http.StatusForbidden {
		t.Fatalf("blocker send: expected 403, got %d", code)
	}

	// the transcript is still readable
	code, env = do(t, srv, "GET", "/v1/discussions/"+privID+"/transcript", "u1", nil)
	if code != http.StatusOK {
		t.Fatalf("transcript: expected 200, got %d", code)
	}
	var msgs []struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(env.Data, &msgs); err != nil {
		t.Fatalf("decode transcript: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
}

func TestGroupLifecycle(t *testing.T) {
	srv := setupServer(t)
	for _, u := range []string{"u1", "u2", "u3", "u4"} {
		provisionUser(t, srv, u, u)
	}

	code, env := do(t, srv, "POST", "/v1/discussions", "u1", map[string]interface{}{
		"name": "team", "tags": "GROUPE", "participants": []string{"u2", "u3"},
	})
	if code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d (%s)", code, env.Message)
	}
	var d struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(env.Data, &d); err != nil || d.ID == "" {
		t.Fatalf("missing discussion id in %s", env.Data)
	}

	// validation envelope on missing fields
	code, env = do(t, srv, "POST", "/v1/discussions", "u1", map[string]string{"description": "x"})
	if code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}
	if env.Errors["name"] == "" || env.Errors["tags"] == "" {
		t.Fatalf("expected field errors, got %+v", env.Errors)
	}

	// non-admin cannot add members
	code, _ = do(t, srv, "POST", "/v1/discussions/"+d.ID+"/members", "u2", map[string]string{"idUser": "u4"})
	if code != http.StatusForbidden {
		t.Fatalf("non-admin add: expected 403, got %d", code)
	}
	code, _ = do(t, srv, "POST", "/v1/discussions/"+d.ID+"/members", "u1", map[string]string{"idUser": "u4"})
	if code != http.StatusOK {
		t.Fatalf("add member: expected 200, got %d", code)
	}

	// promote u2, then u2 can remove u4
	code, _ = do(t, srv, "PATCH", "/v1/discussions/"+d.ID+"/admins/u2", "u1", nil)
	if code != http.StatusOK {
		t.Fatalf("assign admin: expected 200, got %d", code)
	}
	code, _ = do(t, srv, "DELETE", "/v1/discussions/"+d.ID+"/members/u4", "u2", nil)
	if code != http.StatusOK {
		t.Fatalf("remove member: expected 200, got %d", code)
	}

	// archive is per participant
	code, _ = do(t, srv, "POST", "/v1/discussions/"+d.ID+"/archive", "u3", nil)
	if code != http.StatusOK {
		t.Fatalf("archive: expected 200, got %d", code)
	}
	code, env = do(t, srv, "GET", "/v1/discussions?archived=true", "u3", nil)
	if code != http.StatusOK {
		t.Fatalf("list archived: expected 200, got %d", code)
	}
	var archived []json.RawMessage
	_ = json.Unmarshal(env.Data, &archived)
	if len(archived) != 1 {
		t.Fatalf("expected 1 archived discussion for u3, got %d", len(archived))
	}
}

func TestMessageReportFlow(t *testing.T) {
	srv := setupServer(t)
	users := []string{"u1", "u2", "u3", "u4", "u5", "u6", "u7"}
	for _, u := range users {
		provisionUser(t, srv, u, u)
	}
	code, env := do(t, srv, "POST", "/v1/discussions", "u1", map[string]interface{}{
		"name": "room", "tags": "GROUPE", "participants": users[1:],
	})
	if code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d", code)
	}
	var d struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(env.Data, &d)

	code, env = do(t, srv, "POST", "/v1/messages", "u2", map[string]string{"discussionId": d.ID, "text": "spam"})
	if code != http.StatusCreated {
		t.Fatalf("send: expected 201, got %d", code)
	}
	var m struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(env.Data, &m)

	for _, reporter := range []string{"u3", "u4", "u5", "u6"} {
		code, _ = do(t, srv, "POST", "/v1/messages/"+m.ID+"/report", reporter, nil)
		if code != http.StatusOK {
			t.Fatalf("report by %s: expected 200, got %d", reporter, code)
		}
	}
	code, _ = do(t, srv, "POST", "/v1/messages/"+m.ID+"/report", "u3", nil)
	if code != http.StatusConflict {
		t.Fatalf("duplicate report: expected 409, got %d", code)
	}
	code, env = do(t, srv, "POST", "/v1/messages/"+m.ID+"/report", "u7", nil)
	if code != http.StatusOK {
		t.Fatalf("fifth report: expected 200, got %d", code)
	}
	var out map[string]bool
	_ = json.Unmarshal(env.Data, &out)
	if !out["deleted"] {
		t.Fatalf("fifth report should delete, got %s", env.Data)
	}
	code, _ = do(t, srv, "PATCH", "/v1/messages/"+m.ID, "u2", map[string]string{"discussionId": d.ID, "text": "edit"})
	if code != http.StatusNotFound {
		t.Fatalf("edit after auto-delete: expected 404, got %d", code)
	}
}
