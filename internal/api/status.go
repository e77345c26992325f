package api

import (
	"context"
	"net/http"
	"time"
)

// HandleStatus reports integration liveness to the bot service.
// GET /status
func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	cfg := h.Config()
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"app":     appName,
		"agentId": cfg.AgentID,
		"enabled": cfg.Enabled,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": Version,
	})
}

// HandleHealth returns basic health status
// GET /health
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
}

// HandleReady reports whether the store is usable. Durable stores expose a
// Ping; the memory store is always ready.
// GET /ready
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"success": false,
			"status":  "error",
			"store":   "not configured",
		})
		return
	}

	type pinger interface {
		Ping(ctx context.Context) error
	}
	if p, ok := h.store.(pinger); ok {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"success": false,
				"status":  "error",
				"store":   "unavailable",
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true, "status": "ok"})
}
