package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Addr string

	// Gemini API key. Empty is allowed: the engine degrades to canned
	// fallback responses so the transport stays usable without credentials.
	GeminiAPIKey string

	// Postgres DSN. Empty selects the in-memory session store.
	DatabaseURL string

	// CORS
	CORSAllowedOrigins map[string]struct{} // empty => disabled

	// Live WebSocket channel (/ws/coach/{id}).
	WSMaxMessageBytes    int64
	WSMaxSessionDuration time.Duration
	WSPingInterval       time.Duration
	WSWriteTimeout       time.Duration
	WSReadTimeout        time.Duration

	// Per-turn deadline for inference calls.
	InferenceTimeout time.Duration

	// Operational defaults
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                 envOr("COACH_ADDR", ":8080"),
		GeminiAPIKey:         envOr("COACH_GEMINI_API_KEY", os.Getenv("GEMINI_API_KEY")),
		DatabaseURL:          envOr("COACH_DATABASE_URL", ""),
		CORSAllowedOrigins:   make(map[string]struct{}),
		WSMaxMessageBytes:    envInt64Or("COACH_WS_MAX_MESSAGE_BYTES", 64*1024),
		WSMaxSessionDuration: envDurationOr("COACH_WS_MAX_DURATION", 2*time.Hour),
		WSPingInterval:       envDurationOr("COACH_WS_PING_INTERVAL", 20*time.Second),
		WSWriteTimeout:       envDurationOr("COACH_WS_WRITE_TIMEOUT", 5*time.Second),
		WSReadTimeout:        envDurationOr("COACH_WS_READ_TIMEOUT", 0),
		InferenceTimeout:     envDurationOr("COACH_INFERENCE_TIMEOUT", 30*time.Second),
		ReadHeaderTimeout:    envDurationOr("COACH_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:          envDurationOr("COACH_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod:  envDurationOr("COACH_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	for _, origin := range splitCSV(os.Getenv("COACH_CORS_ORIGINS")) {
		cfg.CORSAllowedOrigins[origin] = struct{}{}
	}

	if cfg.WSMaxMessageBytes <= 0 {
		return Config{}, fmt.Errorf("COACH_WS_MAX_MESSAGE_BYTES must be > 0")
	}
	if cfg.WSMaxSessionDuration <= 0 {
		return Config{}, fmt.Errorf("COACH_WS_MAX_DURATION must be > 0")
	}
	if cfg.WSPingInterval <= 0 {
		return Config{}, fmt.Errorf("COACH_WS_PING_INTERVAL must be > 0")
	}
	if cfg.WSWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("COACH_WS_WRITE_TIMEOUT must be > 0")
	}
	if cfg.WSReadTimeout < 0 {
		return Config{}, fmt.Errorf("COACH_WS_READ_TIMEOUT must be >= 0")
	}
	if cfg.InferenceTimeout <= 0 {
		return Config{}, fmt.Errorf("COACH_INFERENCE_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("COACH_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("COACH_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("COACH_SHUTDOWN_GRACE_PERIOD must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt64Or(key string, def int64) int64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
