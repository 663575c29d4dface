// Package api exposes the HTTP surface of the dispatch service: the dispatch
// endpoint plus CRUD for topics and their channel bindings.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tinywideclouds/go-dispatch-service/pkg/notify"
)

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, messageResponse{Message: message})
}

// statusForError maps the domain error taxonomy onto HTTP statuses: missing
// records are 404, rejected configs and unknown methods are 400, everything
// else is a 500.
func statusForError(err error) int {
	var (
		nfErr     *notify.NotFoundError
		cfgErr    *notify.ConfigError
		methodErr *notify.UnsupportedMethodError
	)
	switch {
	case errors.As(err, &nfErr):
		return http.StatusNotFound
	case errors.As(err, &cfgErr), errors.As(err, &methodErr):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
