package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/socratic-mirror/coach/pkg/coach"
	"github.com/socratic-mirror/coach/pkg/coach/session"
	"github.com/socratic-mirror/coach/pkg/gateway/config"
)

func testConfig() config.Config {
	return config.Config{
		Addr:                 ":0",
		GeminiAPIKey:         "test-key",
		CORSAllowedOrigins:   map[string]struct{}{"https://app.example": {}},
		WSMaxMessageBytes:    64 * 1024,
		WSMaxSessionDuration: time.Minute,
		WSPingInterval:       20 * time.Second,
		WSWriteTimeout:       2 * time.Second,
		InferenceTimeout:     2 * time.Second,
		ReadHeaderTimeout:    5 * time.Second,
		ReadTimeout:          10 * time.Second,
		ShutdownGracePeriod:  time.Second,
	}
}

func testServer(t *testing.T) *Server {
	t.Helper()
	infer := coach.InferenceFunc(func(ctx context.Context, prompt string, tier coach.QualityTier) (string, error) {
		return "", errors.New("inference disabled in tests")
	})
	engine := coach.NewEngine(session.NewMemoryStore(nil), infer, nil, nil)
	return New(testConfig(), engine, nil)
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouting(t *testing.T) {
	h := testServer(t).Handler()

	if rec := do(t, h, http.MethodGet, "/", ""); rec.Code != http.StatusOK {
		t.Fatalf("GET / status = %d, want 200", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/health", ""); rec.Code != http.StatusOK {
		t.Fatalf("GET /health status = %d, want 200", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/nope", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("GET /nope status = %d, want 404", rec.Code)
	}
	// Root pattern is exact: deep unknown paths hit the JSON 404.
	if rec := do(t, h, http.MethodGet, "/api/unknown", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("GET /api/unknown status = %d, want 404", rec.Code)
	}
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	h := testServer(t).Handler()

	rec := do(t, h, http.MethodPost, "/api/sessions", `{"user_id": "u1", "mode": "tutoring"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d, body %s", rec.Code, rec.Body.String())
	}
	var created session.Session
	if err := json.NewDecoder(rec.Body).Decode(&created); err != nil {
		t.Fatalf("decode created session: %v", err)
	}

	if rec := do(t, h, http.MethodGet, "/api/sessions/"+created.ID, ""); rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/sessions/"+created.ID+"/report", ""); rec.Code != http.StatusOK {
		t.Fatalf("report status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/sessions/"+created.ID+"/end", ""); rec.Code != http.StatusOK {
		t.Fatalf("end status = %d", rec.Code)
	}
	if rec := do(t, h, http.MethodGet, "/api/sessions/missing", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("get missing status = %d, want 404", rec.Code)
	}
}

func TestHandlerSetsRequestID(t *testing.T) {
	h := testServer(t).Handler()
	rec := do(t, h, http.MethodGet, "/health", "")
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatalf("X-Request-ID header missing")
	}
}

func TestHandlerAppliesCORS(t *testing.T) {
	h := testServer(t).Handler()

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", rec.Code)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("Allow-Origin = %q", got)
	}
}
