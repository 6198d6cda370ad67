package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/socratic-mirror/coach/pkg/coach"
	"github.com/socratic-mirror/coach/pkg/coach/session"
)

// SessionsHandler serves the REST session lifecycle: create, inspect, end,
// and report. The live conversation itself runs on the WebSocket channel.
type SessionsHandler struct {
	Engine *coach.Engine
}

type createSessionRequest struct {
	UserID string `json:"user_id"`
	Mode   string `json:"mode"`
}

// Create handles POST /api/sessions.
func (h SessionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, coach.NewInvalidRequestError("invalid json body"))
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(w, coach.NewInvalidRequestError("user_id is required"))
		return
	}
	if strings.TrimSpace(req.Mode) == "" {
		writeError(w, coach.NewInvalidRequestError("mode is required"))
		return
	}

	s, err := h.Engine.CreateSession(r.Context(), req.UserID, session.ParseMode(req.Mode))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// Get handles GET /api/sessions/{id}.
func (h SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, err := h.Engine.GetSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// End handles POST /api/sessions/{id}/end.
func (h SessionsHandler) End(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, err := h.Engine.EndSession(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ended", "session_id": id})
}

// Report handles GET /api/sessions/{id}/report.
func (h SessionsHandler) Report(w http.ResponseWriter, r *http.Request) {
	report, err := h.Engine.GenerateReport(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}
