package config

import (
	"testing"
	"time"
)

var coachEnvKeys = []string{
	"COACH_ADDR",
	"COACH_GEMINI_API_KEY",
	"GEMINI_API_KEY",
	"COACH_DATABASE_URL",
	"COACH_CORS_ORIGINS",
	"COACH_WS_MAX_MESSAGE_BYTES",
	"COACH_WS_MAX_DURATION",
	"COACH_WS_PING_INTERVAL",
	"COACH_WS_WRITE_TIMEOUT",
	"COACH_WS_READ_TIMEOUT",
	"COACH_INFERENCE_TIMEOUT",
	"COACH_READ_HEADER_TIMEOUT",
	"COACH_READ_TIMEOUT",
	"COACH_SHUTDOWN_GRACE_PERIOD",
}

func clearCoachEnv(t *testing.T) {
	t.Helper()
	for _, key := range coachEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnvDefaults(t *testing.T) {
	clearCoachEnv(t)

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Addr != ":8080" {
		t.Fatalf("Addr = %q, want :8080", cfg.Addr)
	}
	if cfg.GeminiAPIKey != "" {
		t.Fatalf("GeminiAPIKey = %q, want empty", cfg.GeminiAPIKey)
	}
	if cfg.DatabaseURL != "" {
		t.Fatalf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if len(cfg.CORSAllowedOrigins) != 0 {
		t.Fatalf("CORSAllowedOrigins = %v, want empty", cfg.CORSAllowedOrigins)
	}
	if cfg.WSMaxMessageBytes != 64*1024 {
		t.Fatalf("WSMaxMessageBytes = %d, want 65536", cfg.WSMaxMessageBytes)
	}
	if cfg.WSMaxSessionDuration != 2*time.Hour {
		t.Fatalf("WSMaxSessionDuration = %v, want 2h", cfg.WSMaxSessionDuration)
	}
	if cfg.WSPingInterval != 20*time.Second {
		t.Fatalf("WSPingInterval = %v, want 20s", cfg.WSPingInterval)
	}
	if cfg.WSWriteTimeout != 5*time.Second {
		t.Fatalf("WSWriteTimeout = %v, want 5s", cfg.WSWriteTimeout)
	}
	if cfg.WSReadTimeout != 0 {
		t.Fatalf("WSReadTimeout = %v, want 0", cfg.WSReadTimeout)
	}
	if cfg.InferenceTimeout != 30*time.Second {
		t.Fatalf("InferenceTimeout = %v, want 30s", cfg.InferenceTimeout)
	}
	if cfg.ReadHeaderTimeout != 10*time.Second {
		t.Fatalf("ReadHeaderTimeout = %v, want 10s", cfg.ReadHeaderTimeout)
	}
	if cfg.ReadTimeout != 30*time.Second {
		t.Fatalf("ReadTimeout = %v, want 30s", cfg.ReadTimeout)
	}
	if cfg.ShutdownGracePeriod != 30*time.Second {
		t.Fatalf("ShutdownGracePeriod = %v, want 30s", cfg.ShutdownGracePeriod)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	clearCoachEnv(t)
	t.Setenv("COACH_ADDR", ":9191")
	t.Setenv("COACH_GEMINI_API_KEY", "test-key")
	t.Setenv("COACH_DATABASE_URL", "postgres://localhost/coach")
	t.Setenv("COACH_CORS_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("COACH_WS_MAX_MESSAGE_BYTES", "1024")
	t.Setenv("COACH_WS_MAX_DURATION", "1h")
	t.Setenv("COACH_WS_PING_INTERVAL", "5s")
	t.Setenv("COACH_INFERENCE_TIMEOUT", "10s")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}

	if cfg.Addr != ":9191" {
		t.Fatalf("Addr = %q, want :9191", cfg.Addr)
	}
	if cfg.GeminiAPIKey != "test-key" {
		t.Fatalf("GeminiAPIKey = %q, want test-key", cfg.GeminiAPIKey)
	}
	if cfg.DatabaseURL != "postgres://localhost/coach" {
		t.Fatalf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 {
		t.Fatalf("CORSAllowedOrigins = %v, want 2 entries", cfg.CORSAllowedOrigins)
	}
	if _, ok := cfg.CORSAllowedOrigins["https://a.example"]; !ok {
		t.Fatalf("missing origin https://a.example in %v", cfg.CORSAllowedOrigins)
	}
	if _, ok := cfg.CORSAllowedOrigins["https://b.example"]; !ok {
		t.Fatalf("missing origin https://b.example in %v", cfg.CORSAllowedOrigins)
	}
	if cfg.WSMaxMessageBytes != 1024 {
		t.Fatalf("WSMaxMessageBytes = %d, want 1024", cfg.WSMaxMessageBytes)
	}
	if cfg.WSMaxSessionDuration != time.Hour {
		t.Fatalf("WSMaxSessionDuration = %v, want 1h", cfg.WSMaxSessionDuration)
	}
	if cfg.WSPingInterval != 5*time.Second {
		t.Fatalf("WSPingInterval = %v, want 5s", cfg.WSPingInterval)
	}
	if cfg.InferenceTimeout != 10*time.Second {
		t.Fatalf("InferenceTimeout = %v, want 10s", cfg.InferenceTimeout)
	}
}

func TestLoadFromEnvGeminiKeyFallback(t *testing.T) {
	clearCoachEnv(t)
	t.Setenv("GEMINI_API_KEY", "plain-key")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.GeminiAPIKey != "plain-key" {
		t.Fatalf("GeminiAPIKey = %q, want plain-key", cfg.GeminiAPIKey)
	}

	t.Setenv("COACH_GEMINI_API_KEY", "coach-key")
	cfg, err = LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.GeminiAPIKey != "coach-key" {
		t.Fatalf("GeminiAPIKey = %q, want coach-key", cfg.GeminiAPIKey)
	}
}

func TestLoadFromEnvRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"zero message bytes", "COACH_WS_MAX_MESSAGE_BYTES", "0"},
		{"negative message bytes", "COACH_WS_MAX_MESSAGE_BYTES", "-1"},
		{"zero session duration", "COACH_WS_MAX_DURATION", "0s"},
		{"negative ping interval", "COACH_WS_PING_INTERVAL", "-1s"},
		{"zero write timeout", "COACH_WS_WRITE_TIMEOUT", "0s"},
		{"negative read timeout", "COACH_WS_READ_TIMEOUT", "-1s"},
		{"zero inference timeout", "COACH_INFERENCE_TIMEOUT", "0s"},
		{"zero shutdown grace", "COACH_SHUTDOWN_GRACE_PERIOD", "0s"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			clearCoachEnv(t)
			t.Setenv(tc.key, tc.value)
			if _, err := LoadFromEnv(); err == nil {
				t.Fatalf("LoadFromEnv() error = nil, want error for %s=%s", tc.key, tc.value)
			}
		})
	}
}

func TestEnvHelpersIgnoreMalformedValues(t *testing.T) {
	clearCoachEnv(t)
	t.Setenv("COACH_WS_MAX_MESSAGE_BYTES", "not-a-number")
	t.Setenv("COACH_WS_PING_INTERVAL", "soon")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv() error = %v", err)
	}
	if cfg.WSMaxMessageBytes != 64*1024 {
		t.Fatalf("WSMaxMessageBytes = %d, want default 65536", cfg.WSMaxMessageBytes)
	}
	if cfg.WSPingInterval != 20*time.Second {
		t.Fatalf("WSPingInterval = %v, want default 20s", cfg.WSPingInterval)
	}
}
