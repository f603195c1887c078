package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"causerie/pkg/contacts"
	"causerie/pkg/utils"
)

// RegisterContacts registers the contact graph routes.
func RegisterContacts(r *mux.Router) {
	r.HandleFunc("/contacts/search", searchUsers).Methods(http.MethodGet)
	r.HandleFunc("/contacts/requests", sendContactRequest).Methods(http.MethodPost)
	r.HandleFunc("/contacts/requests", listReceivedRequests).Methods(http.MethodGet)
	r.HandleFunc("/contacts/established", listEstablishedContacts).Methods(http.MethodGet)
	r.HandleFunc("/contacts/{id}/accept", acceptContact).Methods(http.MethodPatch)
	r.HandleFunc("/contacts/{id}/reject", rejectContact).Methods(http.MethodDelete)
	r.HandleFunc("/contacts/{id}/block", blockContact).Methods(http.MethodPatch)
	r.HandleFunc("/contacts/{id}", deleteContact).Methods(http.MethodDelete)
}

func searchUsers(w http.ResponseWriter, r *http.Request) {
	if _, ok := actor(w, r); !ok {
		return
	}
	users, err := contacts.Search(r.URL.Query().Get("query"))
	if err != nil {
		utils.Fail(w, err)
		return
	}
	utils.Respond(w, http.StatusOK, "users retrieved successfully", users)
}

func sendContactRequest(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var body struct {
		RecipientID string `json:"idUser2"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.RecipientID == "" {
		utils.FailValidation(w, map[string]string{"idUser2": "this field is required"})
		return
	}
	c, err := contacts.SendRequest(actorID, body.RecipientID)
	if err != nil {
		utils.Fail(w, err)
		return
	}
	utils.Respond(w, http.StatusCreated, "contact request sent successfully", c)
}

func listReceivedRequests(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	reqs, err := contacts.ListReceived(actorID)
	if err != nil {
		utils.Fail(w, err)
		return
	}
	utils.Respond(w, http.StatusOK, "contact requests retrieved successfully", reqs)
}

func listEstablishedContacts(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	cs, err := contacts.ListEstablished(actorID)
	if err != nil {
		utils.Fail(w, err)
		return
	}
	utils.Respond(w, http.StatusOK, "contacts retrieved successfully", cs)
}

func acceptContact(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	c, err := contacts.Accept(mux.Vars(r)["id"], actorID)
	if err != nil {
		utils.Fail(w, err)
		return
	}
	utils.Respond(w, http.StatusOK, "contact request accepted successfully", c)
}

func rejectContact(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	if err := contacts.Reject(mux.Vars(r)["id"], actorID); err != nil {
		utils.Fail(w, err)
		return
	}
	utils.Respond(w, http.StatusOK, "contact request rejected successfully", nil)
}

func blockContact(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	c, err := contacts.Block(mux.Vars(r)["id"], actorID)
	if err != nil {
		utils.Fail(w, err)
		return
	}
	utils.Respond(w, http.StatusOK, "contact blocked successfully", c)
}

func deleteContact(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	if err := contacts.Delete(mux.Vars(r)["id"], actorID); err != nil {
		utils.Fail(w, err)
		return
	}
	utils.Respond(w, http.StatusOK, "contact deleted successfully", nil)
}
