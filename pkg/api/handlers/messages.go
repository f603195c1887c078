package handlers

import (
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gorilla/mux"

	"causerie/pkg/ledger"
	"causerie/pkg/utils"
)

// RegisterMessages registers the message ledger routes.
func RegisterMessages(r *mux.Router) {
	r.HandleFunc("/messages", sendMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/file", sendFileMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/search", searchMessages).Methods(http.MethodGet)
	r.HandleFunc("/messages/{id}", editMessage).Methods(http.MethodPatch)
	r.HandleFunc("/messages/{id}", deleteMessage).Methods(http.MethodDelete)
	r.HandleFunc("/messages/{id}/report", reportMessage).Methods(http.MethodPost)
	r.HandleFunc("/messages/{id}/transfer", transferMessage).Methods(http.MethodPost)
}

func sendMessage(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var body struct {
		DiscussionID string `json:"discussionId"`
		Text         string `json:"text"`
		ReplyTo      string `json:"messageId"`
	}
	if !decode(w, r, &body) {
		return
	}
	errs := map[string]string{}
	if body.DiscussionID == "" {
		errs["discussionId"] = "this field is required"
	}
	if body.Text == "" {
		errs["text"] = "this field is required"
	}
	if len(errs) > 0 {
		utils.FailValidation(w, errs)
		return
	}
	m, err := ledger.SendText(body.DiscussionID, actorID, body.Text, body.ReplyTo)
	if err != nil {
		utils.Fail(w, err)
		return
	}
	utils.Respond(w, http.StatusCreated, "message sent successfully", m)
}

func sendFileMessage(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		utils.Respond(w, http.StatusBadRequest, "invalid multipart body", nil)
		return
	}
	discussionID := r.FormValue("discussionId")
	if discussionID == "" {
		utils.FailValidation(w, map[string]string{"discussionId": "this field is required"})
		return
	}
	f, hdr, err := r.FormFile("file")
	if err != nil {
		utils.FailValidation(w, map[string]string{"file": "this field is required"})
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		utils.Respond(w, http.StatusBadRequest, "could not read uploaded file", nil)
		return
	}
	ext := strings.TrimPrefix(filepath.Ext(hdr.Filename), ".")
	m, err := ledger.SendFile(discussionID, actorID, data, ext, r.FormValue("messageId"))
	if err != nil {
		utils.Fail(w, err)
		return
	}
	utils.Respond(w, http.StatusCreated, "message sent successfully", m)
}

func searchMessages(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	msgs, err := ledger.Search(q.Get("discussion"), actorID, q.Get("keyword"))
	if err != nil {
		utils.Fail(w, err)
		return
	}
	utils.Respond(w, http.StatusOK, "messages retrieved successfully", msgs)
}

func editMessage(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var body struct {
		DiscussionID string `json:"discussionId"`
		Text         string `json:"text"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.DiscussionID == "" {
		utils.FailValidation(w, map[string]string{"discussionId": "this field is required"})
		return
	}
	m, err := ledger.Edit(mux.Vars(r)["id"], actorID, body.DiscussionID, body.Text)
	if err != nil {
		utils.Fail(w, err)
		return
	}
	utils.Respond(w, http.StatusOK, "message updated successfully", m)
}

func deleteMessage(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	if err := ledger.Delete(mux.Vars(r)["id"], actorID); err != nil {
		utils.Fail(w, err)
		return
	}
	utils.Respond(w, http.StatusOK, "message deleted successfully", nil)
}

func reportMessage(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	res, err := ledger.Report(mux.Vars(r)["id"], actorID)
	if err != nil {
		utils.Fail(w, err)
		return
	}
	if res.Deleted {
		utils.Respond(w, http.StatusOK, "message reported and removed", map[string]bool{"deleted": true})
		return
	}
	utils.Respond(w, http.StatusOK, "message reported successfully", res.Message)
}

func transferMessage(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var body struct {
		DiscussionID string `json:"discussionId"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.DiscussionID == "" {
		utils.FailValidation(w, map[string]string{"discussionId": "this field is required"})
		return
	}
	m, err := ledger.Transfer(mux.Vars(r)["id"], actorID, body.DiscussionID)
	if err != nil {
		utils.Fail(w, err)
		return
	}
	utils.Respond(w, http.StatusCreated, "message transferred successfully", m)
}
