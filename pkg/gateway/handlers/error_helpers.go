package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/socratic-mirror/coach/pkg/coach"
)

type errorEnvelope struct {
	Error *coach.Error `json:"error"`
}

// asCoachError normalizes any error into the typed form.
func asCoachError(err error) *coach.Error {
	var typed *coach.Error
	if errors.As(err, &typed) {
		return typed
	}
	return &coach.Error{Type: coach.ErrPersistence, Message: err.Error(), Wrapped: err}
}

func statusForError(err *coach.Error) int {
	switch err.Type {
	case coach.ErrSessionNotFound:
		return http.StatusNotFound
	case coach.ErrInvalidRequest, coach.ErrMalformedMessage:
		return http.StatusBadRequest
	case coach.ErrSessionEnded:
		return http.StatusConflict
	case coach.ErrInferenceUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	typed := asCoachError(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(statusForError(typed))
	_ = json.NewEncoder(w).Encode(errorEnvelope{Error: typed})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
