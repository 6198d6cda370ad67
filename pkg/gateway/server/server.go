package server

import (
	"log/slog"
	"net/http"

	"github.com/socratic-mirror/coach/pkg/coach"
	"github.com/socratic-mirror/coach/pkg/gateway/config"
	"github.com/socratic-mirror/coach/pkg/gateway/handlers"
	"github.com/socratic-mirror/coach/pkg/gateway/live/sessions"
	"github.com/socratic-mirror/coach/pkg/gateway/mw"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	engine   *coach.Engine
	channels *sessions.Tracker
}

func New(cfg config.Config, engine *coach.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		mux:      http.NewServeMux(),
		engine:   engine,
		channels: sessions.NewTracker(),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("GET /{$}", handlers.RootHandler{})
	s.mux.Handle("GET /health", handlers.HealthHandler{InferenceConfigured: s.cfg.GeminiAPIKey != ""})

	api := handlers.SessionsHandler{Engine: s.engine}
	s.mux.HandleFunc("POST /api/sessions", api.Create)
	s.mux.HandleFunc("GET /api/sessions/{id}", api.Get)
	s.mux.HandleFunc("POST /api/sessions/{id}/end", api.End)
	s.mux.HandleFunc("GET /api/sessions/{id}/report", api.Report)

	s.mux.Handle("GET /ws/coach/{id}", handlers.CoachWSHandler{
		Engine:   s.engine,
		Config:   s.cfg,
		Logger:   s.logger,
		Channels: s.channels,
	})

	s.mux.Handle("/", handlers.NotFoundHandler{})
}

// Channels exposes the live-channel tracker for shutdown draining.
func (s *Server) Channels() *sessions.Tracker {
	return s.channels
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg.CORSAllowedOrigins, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}
