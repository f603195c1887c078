package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func newGate(cfg SecConfig) http.Handler {
	return AuthenticateRequestMiddleware(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Seen-Role", r.Header.Get("X-Role-Name"))
		w.WriteHeader(http.StatusOK)
	}))
}

func TestNoKeyNoSignatureRejected(t *testing.T) {
	gate := newGate(SecConfig{})
	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, httptest.NewRequest("GET", "/v1/contacts/established", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestSignatureHeadersPassThrough(t *testing.T) {
	gate := newGate(SecConfig{})
	req := httptest.NewRequest("GET", "/v1/contacts/established", nil)
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("X-User-Signature", "sig")
	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, req)
	// the gate defers to the signature middleware downstream
	if rec.Code != http.StatusOK {
		t.Fatalf("expected pass-through, got %d", rec.Code)
	}
}

func TestRoleResolution(t *testing.T) {
	cfg := SecConfig{
		BackendKeys:  map[string]struct{}{"bk": {}},
		FrontendKeys: map[string]struct{}{"fk": {}},
	}
	gate := newGate(cfg)

	req := httptest.NewRequest("POST", "/v1/users", nil)
	req.Header.Set("X-API-Key", "bk")
	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("X-Seen-Role") != "backend" {
		t.Fatalf("expected backend role, got %d %q", rec.Code, rec.Header().Get("X-Seen-Role"))
	}

	req = httptest.NewRequest("GET", "/v1/messages/search", nil)
	req.Header.Set("Authorization", "Bearer fk")
	rec = httptest.NewRecorder()
	gate.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || rec.Header().Get("X-Seen-Role") != "frontend" {
		t.Fatalf("expected frontend role, got %d %q", rec.Code, rec.Header().Get("X-Seen-Role"))
	}
}

func TestFrontendScope(t *testing.T) {
	cfg := SecConfig{FrontendKeys: map[string]struct{}{"fk": {}}}
	gate := newGate(cfg)
	req := httptest.NewRequest("POST", "/v1/users", nil)
	req.Header.Set("X-API-Key", "fk")
	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("frontend key must not reach /v1/users, got %d", rec.Code)
	}
}

func TestIPWhitelist(t *testing.T) {
	cfg := SecConfig{
		IPWhitelist: []string{"10.1.2.3"},
		BackendKeys: map[string]struct{}{"bk": {}},
	}
	gate := newGate(cfg)
	req := httptest.NewRequest("GET", "/v1/contacts/established", nil)
	req.RemoteAddr = "192.168.0.9:1234"
	req.Header.Set("X-API-Key", "bk")
	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for non-whitelisted IP, got %d", rec.Code)
	}

	req.RemoteAddr = "10.1.2.3:1234"
	rec = httptest.NewRecorder()
	gate.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for whitelisted IP, got %d", rec.Code)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := SecConfig{
		RPS:         1,
		Burst:       2,
		BackendKeys: map[string]struct{}{"bk": {}},
	}
	gate := newGate(cfg)
	var limited bool
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest("GET", "/v1/contacts/established", nil)
		req.Header.Set("X-API-Key", "bk")
		rec := httptest.NewRecorder()
		gate.ServeHTTP(rec, req)
		if rec.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatalf("expected rate limiting to kick in")
	}
}

func TestCORSPreflight(t *testing.T) {
	cfg := SecConfig{AllowedOrigins: []string{"https://app.example.com"}}
	gate := newGate(cfg)
	req := httptest.NewRequest(http.MethodOptions, "/v1/messages", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	gate.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "https://app.example.com" {
		t.Fatalf("missing CORS allow-origin header")
	}
}
