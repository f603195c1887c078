// Package api assembles the HTTP surface: the gorilla/mux router, the
// middleware chain and the per-resource handler registrations.
package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"causerie/pkg/api/handlers"
	"causerie/pkg/auth"
	"causerie/pkg/security"
	"causerie/pkg/store"
	"causerie/pkg/telemetry"
)

// NewRouter builds the full router with the middleware chain applied:
// security gate, then signed-actor verification, then handlers.
func NewRouter(sec security.SecConfig) http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", healthz).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(telemetry.Middleware)
	v1.Use(auth.RequireSignedActor)
	handlers.RegisterContacts(v1)
	handlers.RegisterDiscussions(v1)
	handlers.RegisterMessages(v1)
	handlers.RegisterUsers(v1)

	return security.AuthenticateRequestMiddleware(sec)(r)
}

func healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if !store.Ready() {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"status":"unavailable"}`))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
