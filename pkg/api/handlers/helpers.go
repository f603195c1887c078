package handlers

import (
	"encoding/json"
	"net/http"

	"causerie/pkg/auth"
	"causerie/pkg/utils"
)

// actor extracts the verified actor id; a missing id writes the 401
// envelope and returns false.
func actor(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := auth.ActorIDFromContext(r.Context())
	if id == "" {
		utils.Respond(w, http.StatusUnauthorized, "actor signature required", nil)
		return "", false
	}
	return id, true
}

// decode unmarshals the JSON body into dst; a bad body writes the 400
// envelope and returns false.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		utils.Respond(w, http.StatusBadRequest, "invalid json body", nil)
		return false
	}
	return true
}
