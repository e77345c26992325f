// Package api provides the HTTP surface of the bot integration gateway.
package api

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/clawdgames/botgate/internal/adminaction"
	"github.com/clawdgames/botgate/internal/audit"
	"github.com/clawdgames/botgate/internal/auth"
	"github.com/clawdgames/botgate/internal/config"
	"github.com/clawdgames/botgate/internal/metrics"
	"github.com/clawdgames/botgate/internal/middleware"
	"github.com/clawdgames/botgate/internal/ratelimit"
	"github.com/clawdgames/botgate/internal/store"
)

// Version reported by /status.
const Version = "0.1.0"

// appName identifies the games backend this gateway fronts.
const appName = "clawd-arcade"

// maxBodyBytes caps request bodies; integration payloads are small.
const maxBodyBytes = 64 * 1024

// Handler holds the wired dependencies for every endpoint.
type Handler struct {
	mu          sync.RWMutex
	cfg         *config.Config
	store       store.Store
	validator   *auth.Validator
	allowlist   auth.Allowlist
	limiter     *ratelimit.Limiter
	coordinator *adminaction.Coordinator
	auditLog    *audit.Log
	logger      *slog.Logger
	startedAt   time.Time
}

// NewHandler creates the API handler.
func NewHandler(cfg *config.Config, st store.Store, limiter *ratelimit.Limiter, coordinator *adminaction.Coordinator, auditLog *audit.Log, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		cfg:         cfg,
		store:       st,
		validator:   auth.NewValidator(cfg.IntegrationToken),
		allowlist:   auth.NewAllowlist(cfg.AdminBotUserIDs),
		limiter:     limiter,
		coordinator: coordinator,
		auditLog:    auditLog,
		logger:      logger,
		startedAt:   time.Now(),
	}
}

// Config returns the current configuration view.
func (h *Handler) Config() *config.Config {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// SetConfig swaps in a freshly loaded configuration. Used by the
// refresh_config admin action. The shared secret and listen addresses are
// fixed for the process lifetime; only the reloadable surface (enabled
// flag, admin allowlist, agent id) takes effect.
func (h *Handler) SetConfig(cfg *config.Config) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg = cfg
	h.allowlist = auth.NewAllowlist(cfg.AdminBotUserIDs)
}

// Router assembles the full route tree.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.MaxBodySize(maxBodyBytes))
	r.Use(metrics.Middleware)
	r.Use(middleware.HTTPLogging(h.logger))
	r.Use(allowPreflight)

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})

	// Operational endpoints (no auth)
	r.Get("/health", h.HandleHealth)
	r.Get("/ready", h.HandleReady)

	// Integration endpoints: rate limit first, then token auth.
	r.Group(func(r chi.Router) {
		r.Use(ratelimit.Middleware(h.limiter))
		r.Use(auth.Middleware(h.validator, h.logger))

		r.Get("/status", h.HandleStatus)
		r.Post("/link/confirm", h.HandleLinkConfirm)
		r.Post("/capabilities", h.HandleCapabilities)
		r.Post("/gamedata", h.HandleGameData)

		// Internal surface called by the games backend.
		r.Post("/internal/link", h.HandleInternalLink)
		r.Post("/internal/gamedata", h.HandleInternalGameData)

		// Admin endpoints additionally require an allowlisted botUserId.
		r.Route("/admin", func(r chi.Router) {
			r.Get("/config", h.HandleAdminConfig)
			r.Get("/diag", h.HandleAdminDiag)
			r.Get("/logs", h.HandleAdminLogs)
			r.Get("/metrics", h.HandleAdminMetrics)
			r.Post("/actions", h.HandleAdminActions)
		})
	})

	return r
}

// allowPreflight answers CORS preflight requests before routing; an OPTIONS
// request never reaches auth or handlers.
func allowPreflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
