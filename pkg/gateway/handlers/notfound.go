package handlers

import (
	"net/http"

	"github.com/socratic-mirror/coach/pkg/coach"
)

type NotFoundHandler struct{}

func (h NotFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorEnvelope{Error: &coach.Error{
		Type:    coach.ErrInvalidRequest,
		Message: "not found",
	}})
}
