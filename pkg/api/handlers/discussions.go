package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"causerie/pkg/ledger"
	"causerie/pkg/models"
	"causerie/pkg/roster"
	"causerie/pkg/utils"
)

// RegisterDiscussions registers the discussion roster routes.
func RegisterDiscussions(r *mux.Router) {
	r.HandleFunc("/discussions", createDiscussion).Methods(http.MethodPost)
	r.HandleFunc("/discussions", listDiscussions).Methods(http.MethodGet)
	r.HandleFunc("/discussions/{id}", updateDiscussion).Methods(http.MethodPatch)
	r.HandleFunc("/discussions/{id}", deleteDiscussion).Methods(http.MethodDelete)
	r.HandleFunc("/discussions/{id}/members", addMember).Methods(http.MethodPost)
	r.HandleFunc("/discussions/{id}/members/{userID}", removeMember).Methods(http.MethodDelete)
	r.HandleFunc("/discussions/{id}/admins/{userID}", assignAdmin).Methods(http.MethodPatch)
	r.HandleFunc("/discussions/{id}/archive", archiveDiscussion).Methods(http.MethodPost)
	r.HandleFunc("/discussions/{id}/unarchive", unarchiveDiscussion).Methods(http.MethodPost)
	r.HandleFunc("/discussions/{id}/mute", muteDiscussion).Methods(http.MethodPost)
	r.HandleFunc("/discussions/{id}/unmute", unmuteDiscussion).Methods(http.MethodPost)
	r.HandleFunc("/discussions/{id}/transcript", discussionTranscript).Methods(http.MethodGet)
}

func createDiscussion(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var body struct {
		Name         string   `json:"name"`
		Description  string   `json:"description"`
		Picture      string   `json:"picture"`
		Kind         string   `json:"tags"`
		Participants []string `json:"participants"`
	}
	if !decode(w, r, &body) {
		return
	}
	errs := map[string]string{}
	if body.Name == "" {
		errs["name"] = "this field is required"
	}
	if body.Kind == "" {
		errs["tags"] = "this field is required"
	}
	if len(errs) > 0 {
		utils.FailValidation(w, errs)
		return
	}
	d, err := roster.CreateGroup(actorID, body.Name, body.Description, body.Picture, body.Participants, models.DiscussionKind(body.Kind))
	if err != nil {
		utils.Fail(w, err)
		return
	}
	utils.Respond(w, http.StatusCreated, "discussion created successfully", d)
}

func listDiscussions(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	archived := r.URL.Query().Get("archived") == "true"
	ds, err := roster.ListForActor(actorID, archived)
	if err != nil {
		utils.Fail(w, err)
		return
	}
	utils.Respond(w, http.StatusOK, "discussions retrieved successfully", ds)
}

func updateDiscussion(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Picture     string `json:"picture"`
	}
	if !decode(w, r, &body) {
		return
	}
	d, err := roster.UpdateMetadata(mux.Vars(r)["id"], actorID, body.Name, body.Description, body.Picture)
	if err != nil {
		utils.Fail(w, err)
		return
	}
	utils.Respond(w, http.StatusOK, "discussion updated successfully", d)
}

func deleteDiscussion(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	removedForAll, err := roster.DeleteForActor(mux.Vars(r)["id"], actorID)
	if err != nil {
		utils.Fail(w, err)
		return
	}
	msg := "discussion removed from your list"
	if removedForAll {
		msg = "discussion deleted successfully"
	}
	utils.Respond(w, http.StatusOK, msg, map[string]bool{"removedForAll": removedForAll})
}

func addMember(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	var body struct {
		UserID string `json:"idUser"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.UserID == "" {
		utils.FailValidation(w, map[string]string{"idUser": "this field is required"})
		return
	}
	d, err := roster.AddMember(mux.Vars(r)["id"], actorID, body.UserID)
	if err != nil {
		utils.Fail(w, err)
		return
	}
	utils.Respond(w, http.StatusOK, "member added successfully", d)
}

func removeMember(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	d, err := roster.RemoveMember(vars["id"], actorID, vars["userID"])
	if err != nil {
		utils.Fail(w, err)
		return
	}
	utils.Respond(w, http.StatusOK, "member removed successfully", d)
}

func assignAdmin(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	d, err := roster.AssignAdmin(vars["id"], actorID, vars["userID"])
	if err != nil {
		utils.Fail(w, err)
		return
	}
	utils.Respond(w, http.StatusOK, "admin assigned successfully", d)
}

func archiveDiscussion(w http.ResponseWriter, r *http.Request) {
	setDiscussionFlag(w, r, "discussion archived successfully", func(id, actorID string) (models.Discussion, error) {
		return roster.SetArchived(id, actorID, true)
	})
}

func unarchiveDiscussion(w http.ResponseWriter, r *http.Request) {
	setDiscussionFlag(w, r, "discussion unarchived successfully", func(id, actorID string) (models.Discussion, error) {
		return roster.SetArchived(id, actorID, false)
	})
}

func muteDiscussion(w http.ResponseWriter, r *http.Request) {
	setDiscussionFlag(w, r, "discussion muted successfully", func(id, actorID string) (models.Discussion, error) {
		return roster.SetSilent(id, actorID, true)
	})
}

func unmuteDiscussion(w http.ResponseWriter, r *http.Request) {
	setDiscussionFlag(w, r, "discussion unmuted successfully", func(id, actorID string) (models.Discussion, error) {
		return roster.SetSilent(id, actorID, false)
	})
}

func setDiscussionFlag(w http.ResponseWriter, r *http.Request, msg string, op func(id, actorID string) (models.Discussion, error)) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	d, err := op(mux.Vars(r)["id"], actorID)
	if err != nil {
		utils.Fail(w, err)
		return
	}
	utils.Respond(w, http.StatusOK, msg, d)
}

func discussionTranscript(w http.ResponseWriter, r *http.Request) {
	actorID, ok := actor(w, r)
	if !ok {
		return
	}
	msgs, err := ledger.Transcript(mux.Vars(r)["id"], actorID)
	if err != nil {
		utils.Fail(w, err)
		return
	}
	utils.Respond(w, http.StatusOK, "transcript retrieved successfully", msgs)
}
