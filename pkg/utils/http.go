package utils

import (
	"encoding/json"
	"net/http"

	"causerie/pkg/apperr"
)

// Envelope is the uniform response shape consumed by all clients:
// {status_code, message, data?, errors?}.
type Envelope struct {
	StatusCode int         `json:"status_code"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data,omitempty"`
	Errors     interface{} `json:"errors,omitempty"`
}

// Respond writes a success envelope with the given status and payload.
func Respond(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{StatusCode: status, Message: message, Data: data})
}

// Fail writes an error envelope derived from a domain error.
func Fail(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{StatusCode: status, Message: apperr.Message(err)})
}

// FailValidation writes a 400 envelope carrying field errors.
func FailValidation(w http.ResponseWriter, errs map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	_ = json.NewEncoder(w).Encode(Envelope{StatusCode: http.StatusBadRequest, Message: "Validation Error", Errors: errs})
}
