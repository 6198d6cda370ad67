package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/socratic-mirror/coach/pkg/coach"
	"github.com/socratic-mirror/coach/pkg/coach/session"
	"github.com/socratic-mirror/coach/pkg/gateway/config"
)

func testDeps(cfg config.Config) serverDeps {
	return serverDeps{
		loadConfig: func() (config.Config, error) { return cfg, nil },
		newStore: func(ctx context.Context, cfg config.Config, logger *slog.Logger) (session.Store, func(), error) {
			return session.NewMemoryStore(nil), func() {}, nil
		},
		newInference: func(ctx context.Context, cfg config.Config, logger *slog.Logger) (coach.Inference, error) {
			return coach.InferenceFunc(func(context.Context, string, coach.QualityTier) (string, error) {
				return "", errors.New("inference disabled in tests")
			}), nil
		},
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {},
		signalStop:   func(c chan<- os.Signal) {},
	}
}

func freePortConfig(t *testing.T) config.Config {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("reserve port: %v", err)
	}
	addr := l.Addr().String()
	l.Close()

	return config.Config{
		Addr:                 addr,
		WSMaxMessageBytes:    64 * 1024,
		WSMaxSessionDuration: time.Minute,
		WSPingInterval:       20 * time.Second,
		WSWriteTimeout:       2 * time.Second,
		InferenceTimeout:     2 * time.Second,
		ReadHeaderTimeout:    2 * time.Second,
		ReadTimeout:          5 * time.Second,
		ShutdownGracePeriod:  2 * time.Second,
	}
}

func TestRunMainReturnsNonZeroWhenConfigLoadFails(t *testing.T) {
	var stderr bytes.Buffer
	deps := testDeps(config.Config{})
	deps.loadConfig = func() (config.Config, error) {
		return config.Config{}, errors.New("boom")
	}

	if code := runMain(context.Background(), &stderr, deps); code != 1 {
		t.Fatalf("exit code = %d, want 1", code)
	}
	if stderr.String() == "" {
		t.Fatalf("expected stderr output for startup error")
	}
}

func TestRunServerRejectsMissingDependencies(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	if err := runServer(context.Background(), logger, serverDeps{}); err == nil {
		t.Fatalf("runServer() error = nil, want missing dependency error")
	}
}

func TestRunServerStoreFailureIsFatal(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps := testDeps(freePortConfig(t))
	deps.newStore = func(ctx context.Context, cfg config.Config, logger *slog.Logger) (session.Store, func(), error) {
		return nil, nil, errors.New("database unreachable")
	}

	if err := runServer(context.Background(), logger, deps); err == nil {
		t.Fatalf("runServer() error = nil, want store failure")
	}
}

func TestRunServerServesAndShutsDownOnSignal(t *testing.T) {
	cfg := freePortConfig(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	sigCh := make(chan chan<- os.Signal, 1)
	deps := testDeps(cfg)
	deps.signalNotify = func(c chan<- os.Signal, sig ...os.Signal) {
		sigCh <- c
	}

	done := make(chan error, 1)
	go func() {
		done <- runServer(context.Background(), logger, deps)
	}()

	// Wait for the listener before probing.
	var resp *http.Response
	var err error
	url := fmt.Sprintf("http://%s/health", cfg.Addr)
	for i := 0; i < 50; i++ {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("GET /health never succeeded: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d, want 200", resp.StatusCode)
	}

	select {
	case c := <-sigCh:
		c <- syscall.SIGTERM
	case <-time.After(2 * time.Second):
		t.Fatalf("signalNotify never called")
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("runServer() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("runServer did not shut down after SIGTERM")
	}
}

func TestBuildHTTPServerUsesConfiguredTimeouts(t *testing.T) {
	cfg := config.Config{
		Addr:              "127.0.0.1:9999",
		ReadHeaderTimeout: 2 * time.Second,
		ReadTimeout:       3 * time.Second,
	}
	srv := buildHTTPServer(cfg, http.NotFoundHandler())

	if srv.Addr != cfg.Addr {
		t.Fatalf("Addr = %q, want %q", srv.Addr, cfg.Addr)
	}
	if srv.ReadHeaderTimeout != cfg.ReadHeaderTimeout || srv.ReadTimeout != cfg.ReadTimeout {
		t.Fatalf("timeouts = %v/%v, want %v/%v",
			srv.ReadHeaderTimeout, srv.ReadTimeout, cfg.ReadHeaderTimeout, cfg.ReadTimeout)
	}
}

func TestBuildInferenceWithoutKeyDegrades(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	infer, err := buildInference(context.Background(), config.Config{}, logger)
	if err != nil {
		t.Fatalf("buildInference() error = %v", err)
	}
	if _, err := infer.Generate(context.Background(), "hello", coach.TierFast); err == nil {
		t.Fatalf("keyless inference Generate() error = nil, want error")
	}
}

func TestBuildStoreMemoryFallback(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store, closeStore, err := buildStore(context.Background(), config.Config{}, logger)
	if err != nil {
		t.Fatalf("buildStore() error = %v", err)
	}
	defer closeStore()
	if _, ok := store.(*session.MemoryStore); !ok {
		t.Fatalf("store type = %T, want *session.MemoryStore without a DSN", store)
	}
}

type fakePurger struct {
	calls atomic.Int64
}

func (p *fakePurger) PurgeExpired(ctx context.Context) (int64, error) {
	p.calls.Add(1)
	return 1, nil
}

func TestPurgeLoopRunsUntilCancelled(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	purger := &fakePurger{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		purgeLoop(ctx, 5*time.Millisecond, purger, logger)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for purger.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("purge calls = %d, want at least 2", purger.calls.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("purge loop did not stop after cancel")
	}
}
