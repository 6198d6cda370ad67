package handlers

import (
	"net/http"
	"time"
)

// RootHandler reports service identity at /.
type RootHandler struct{}

func (h RootHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "online",
		"service": "socratic-mirror-coach",
		"version": "1.0.0",
	})
}

// HealthHandler reports liveness plus whether inference is configured.
type HealthHandler struct {
	InferenceConfigured bool
}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "healthy",
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
		"gemini_connected": h.InferenceConfigured,
	})
}
