// Package main provides the entry point for the botgate server, the trust
// boundary between the external bot service and the games backend.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/clawdgames/botgate/internal/adminaction"
	"github.com/clawdgames/botgate/internal/api"
	"github.com/clawdgames/botgate/internal/audit"
	"github.com/clawdgames/botgate/internal/config"
	"github.com/clawdgames/botgate/internal/metrics"
	"github.com/clawdgames/botgate/internal/ratelimit"
	"github.com/clawdgames/botgate/internal/store"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "botgate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logLevel := new(slog.LevelVar)
	if err := logLevel.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		return fmt.Errorf("invalid LOG_LEVEL %q: %w", cfg.LogLevel, err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	if err := metrics.Init(prometheus.DefaultRegisterer); err != nil {
		return err
	}

	st, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	auditLog := audit.NewLog(audit.DefaultCapacity)
	limiter := ratelimit.New(ratelimit.NewMemoryStore(), cfg.RateLimitMax, cfg.RateLimitWindow)

	// The handler is assigned below; the executors only dereference it at
	// request time.
	var handler *api.Handler

	coordinator := adminaction.New(st, auditLog, logger, map[string]adminaction.Executor{
		"reset_rate_limits": func(context.Context) (string, error) {
			limiter.Reset()
			return "rate limit counters reset", nil
		},
		"refresh_config": func(context.Context) (string, error) {
			fresh, err := config.Load()
			if err != nil {
				return "", err
			}
			handler.SetConfig(fresh)
			return "configuration refreshed", nil
		},
	})

	handler = api.NewHandler(cfg, st, limiter, coordinator, auditLog, logger)

	go serveMetrics(cfg.MetricsListenAddr, logger)

	logger.Info("botgate starting",
		"version", api.Version,
		"addr", cfg.ListenAddr,
		"durable_store", cfg.DatabasePath != "",
		"enabled", cfg.Enabled,
	)

	return http.ListenAndServe(cfg.ListenAddr, handler.Router())
}

// openStore selects the store implementation: sqlite when DATABASE_PATH is
// set, otherwise volatile process memory (the serverless default).
func openStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.DatabasePath == "" {
		logger.Info("using in-memory store; link codes and nonces do not survive restarts")
		return store.NewMemory(), nil
	}
	logger.Info("using sqlite store", "path", cfg.DatabasePath)
	return store.OpenSQLite(cfg.DatabasePath)
}

// serveMetrics exposes Prometheus metrics and liveness on a separate
// listener so the operational surface is never reachable through the
// integration port.
func serveMetrics(addr string, logger *slog.Logger) {
	r := chi.NewRouter()
	r.Handle("/metrics", metrics.Handler())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		//nolint:errcheck // Response write errors are unrecoverable
		fmt.Fprint(w, `{"status":"ok"}`)
	})

	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Error("metrics listener failed", "error", err)
	}
}
