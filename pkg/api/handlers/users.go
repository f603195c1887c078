package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"causerie/pkg/models"
	"causerie/pkg/store"
	"causerie/pkg/utils"
)

// RegisterUsers registers the identity provisioning route. Creation is
// restricted to backend callers: end users arrive already authenticated
// by the tenant application.
func RegisterUsers(r *mux.Router) {
	r.HandleFunc("/users", provisionUser).Methods(http.MethodPost)
}

func provisionUser(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("X-Role-Name") != "backend" {
		utils.Respond(w, http.StatusForbidden, "backend key required", nil)
		return
	}
	var u models.User
	if !decode(w, r, &u) {
		return
	}
	errs := map[string]string{}
	if u.ID == "" {
		errs["id"] = "this field is required"
	}
	if u.Username == "" {
		errs["username"] = "this field is required"
	}
	if len(errs) > 0 {
		utils.FailValidation(w, errs)
		return
	}
	if u.CreatedTS == 0 {
		u.CreatedTS = time.Now().UTC().UnixNano()
	}
	if err := store.SaveUser(u); err != nil {
		utils.Respond(w, http.StatusInternalServerError, "user save failed", nil)
		return
	}
	utils.Respond(w, http.StatusCreated, "user provisioned successfully", u)
}
