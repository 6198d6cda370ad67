package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/socratic-mirror/coach/pkg/coach"
	"github.com/socratic-mirror/coach/pkg/coach/providers/gemini"
	"github.com/socratic-mirror/coach/pkg/coach/session"
	"github.com/socratic-mirror/coach/pkg/gateway/config"
	gatewayserver "github.com/socratic-mirror/coach/pkg/gateway/server"
)

type serverDeps struct {
	loadConfig   func() (config.Config, error)
	newStore     func(ctx context.Context, cfg config.Config, logger *slog.Logger) (session.Store, func(), error)
	newInference func(ctx context.Context, cfg config.Config, logger *slog.Logger) (coach.Inference, error)
	signalNotify func(chan<- os.Signal, ...os.Signal)
	signalStop   func(chan<- os.Signal)
}

func defaultServerDeps() serverDeps {
	return serverDeps{
		loadConfig:   config.LoadFromEnv,
		newStore:     buildStore,
		newInference: buildInference,
		signalNotify: func(c chan<- os.Signal, sig ...os.Signal) {
			signal.Notify(c, sig...)
		},
		signalStop: signal.Stop,
	}
}

// buildStore selects Postgres when a DSN is configured, in-memory otherwise.
// Postgres reads go through the in-process cache so a turn's get/save pair
// works on one live record.
func buildStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (session.Store, func(), error) {
	if cfg.DatabaseURL == "" {
		logger.Info("using in-memory session store")
		return session.NewMemoryStore(nil), func() {}, nil
	}

	if err := session.RunMigrations(cfg.DatabaseURL); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	pg, err := session.NewPostgresStore(ctx, cfg.DatabaseURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres store: %w", err)
	}
	logger.Info("using postgres session store")

	purgeCtx, cancelPurge := context.WithCancel(context.Background())
	go purgeLoop(purgeCtx, purgeInterval, pg, logger)
	cleanup := func() {
		cancelPurge()
		pg.Close()
	}
	return session.NewCachedStore(pg, nil), cleanup, nil
}

const purgeInterval = time.Hour

type expiredPurger interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// purgeLoop deletes sessions past the retention window on a fixed interval
// until ctx is cancelled.
func purgeLoop(ctx context.Context, interval time.Duration, store expiredPurger, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("session purge failed", "error", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired sessions", "count", n)
			}
		}
	}
}

// buildInference returns a Gemini-backed Inference, or a stub that always
// errors when no API key is configured so the engine serves fallbacks.
func buildInference(ctx context.Context, cfg config.Config, logger *slog.Logger) (coach.Inference, error) {
	if cfg.GeminiAPIKey == "" {
		logger.Warn("no Gemini API key configured; responses degrade to fallbacks")
		return coach.InferenceFunc(func(context.Context, string, coach.QualityTier) (string, error) {
			return "", errors.New("gemini api key is missing")
		}), nil
	}
	return gemini.New(ctx, cfg.GeminiAPIKey)
}

func buildHTTPServer(cfg config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
	}
}

func runServer(ctx context.Context, logger *slog.Logger, deps serverDeps) error {
	if deps.loadConfig == nil || deps.newStore == nil || deps.newInference == nil {
		return errors.New("missing server dependency")
	}
	if deps.signalNotify == nil || deps.signalStop == nil {
		return errors.New("missing signal dependency")
	}
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := deps.loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, closeStore, err := deps.newStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	infer, err := deps.newInference(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("inference: %w", err)
	}

	engine := coach.NewEngine(store, infer, nil, logger)
	gw := gatewayserver.New(cfg, engine, logger)
	httpSrv := buildHTTPServer(cfg, gw.Handler())

	logger.Info("starting coach server", "addr", cfg.Addr)

	listenErrCh := make(chan error, 1)
	go func() {
		err := httpSrv.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErrCh <- err
			return
		}
		listenErrCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	deps.signalNotify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer deps.signalStop(sigCh)

	select {
	case err := <-listenErrCh:
		if err != nil {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	}

	gw.Channels().NotifyAll("server is shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}

	waitCtx, waitCancel := context.WithTimeout(context.Background(), cfg.ShutdownGracePeriod)
	defer waitCancel()
	if !gw.Channels().Wait(waitCtx) {
		gw.Channels().CancelAll()
	}

	if err := <-listenErrCh; err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	logger.Info("coach server stopped")
	return nil
}

func runMain(ctx context.Context, stderr io.Writer, deps serverDeps) int {
	if stderr == nil {
		stderr = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(stderr, nil))

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(stderr, "coach-server: load .env: %v\n", err)
	}

	if err := runServer(ctx, logger, deps); err != nil {
		fmt.Fprintf(stderr, "coach-server: %v\n", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(runMain(context.Background(), os.Stderr, defaultServerDeps()))
}
