package api

import (
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/clawdgames/botgate/internal/audit"
	"github.com/clawdgames/botgate/internal/metrics"
	"github.com/clawdgames/botgate/internal/sanitize"
)

// adminBotUserID extracts the caller's botUserId from the query string or
// the x-bot-user-id header.
func adminBotUserID(r *http.Request) string {
	if id := r.URL.Query().Get("botUserId"); id != "" {
		return id
	}
	return r.Header.Get("x-bot-user-id")
}

// requireAdmin enforces the admin allowlist after token auth and before any
// endpoint logic. Denials are audited and produce 403; a missing botUserId
// is a validation error, not a denial.
func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request, endpoint string) (string, bool) {
	botUserID := adminBotUserID(r)
	if botUserID == "" {
		writeError(w, http.StatusBadRequest, "botUserId is required")
		return "", false
	}
	return botUserID, h.authorizeAdmin(w, botUserID, endpoint)
}

// authorizeAdmin checks the allowlist for an already-extracted botUserId.
// Denials are audited and produce 403.
func (h *Handler) authorizeAdmin(w http.ResponseWriter, botUserID, endpoint string) bool {
	h.mu.RLock()
	authorized := h.allowlist.IsAdminAuthorized(botUserID)
	h.mu.RUnlock()

	if !authorized {
		h.auditLog.Write(audit.Record{
			Endpoint:  endpoint,
			BotUserID: botUserID,
			Result:    audit.ResultDenied,
		})
		metrics.RecordAuthFailure("admin_denied")
		h.logger.Warn("admin access denied", "endpoint", endpoint, "bot_user_id", botUserID)
		writeError(w, http.StatusForbidden, "Forbidden")
		return false
	}
	return true
}

// HandleAdminConfig reports which configuration variables are set —
// presence only, never values.
// GET /admin/config
func (h *Handler) HandleAdminConfig(w http.ResponseWriter, r *http.Request) {
	botUserID, ok := h.requireAdmin(w, r, "/admin/config")
	if !ok {
		return
	}

	presence := h.Config().Presence()

	h.auditLog.Write(audit.Record{
		Endpoint:  "/admin/config",
		BotUserID: botUserID,
		Result:    audit.ResultSuccess,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"config":  presence,
	})
}

// HandleAdminDiag returns a non-sensitive operational snapshot.
// GET /admin/diag
func (h *Handler) HandleAdminDiag(w http.ResponseWriter, r *http.Request) {
	botUserID, ok := h.requireAdmin(w, r, "/admin/diag")
	if !ok {
		return
	}

	cfg := h.Config()

	h.auditLog.Write(audit.Record{
		Endpoint:  "/admin/diag",
		BotUserID: botUserID,
		Result:    audit.ResultSuccess,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success":       true,
		"uptimeSeconds": int64(time.Since(h.startedAt).Seconds()),
		"goVersion":     runtime.Version(),
		"goroutines":    runtime.NumGoroutine(),
		"enabled":       cfg.Enabled,
		"agentId":       cfg.AgentID,
		"durableStore":  cfg.DatabasePath != "",
		"time":          time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleAdminLogs returns recent audit entries, mask-sanitized. An entry's
// metadata can contain anything the request path recorded, so every entry
// passes through mask mode before leaving the process.
// GET /admin/logs?limit&level&search
func (h *Handler) HandleAdminLogs(w http.ResponseWriter, r *http.Request) {
	botUserID, ok := h.requireAdmin(w, r, "/admin/logs")
	if !ok {
		return
	}

	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	level := r.URL.Query().Get("level")
	search := strings.ToLower(r.URL.Query().Get("search"))

	var entries []map[string]any
	for _, rec := range h.auditLog.Records(0) {
		if level != "" && string(rec.Result) != level {
			continue
		}
		if search != "" && !recordMatches(rec, search) {
			continue
		}
		entries = append(entries, maskRecord(rec))
		if len(entries) >= limit {
			break
		}
	}
	if entries == nil {
		entries = []map[string]any{}
	}

	h.auditLog.Write(audit.Record{
		Endpoint:         "/admin/logs",
		BotUserID:        botUserID,
		Result:           audit.ResultSuccess,
		RedactionApplied: true,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"logs":    entries,
	})
}

// HandleAdminMetrics returns real operational counters only.
// GET /admin/metrics
func (h *Handler) HandleAdminMetrics(w http.ResponseWriter, r *http.Request) {
	botUserID, ok := h.requireAdmin(w, r, "/admin/metrics")
	if !ok {
		return
	}

	snapshot := metrics.Current()

	h.auditLog.Write(audit.Record{
		Endpoint:  "/admin/metrics",
		BotUserID: botUserID,
		Result:    audit.ResultSuccess,
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"metrics": snapshot,
	})
}

func recordMatches(rec audit.Record, search string) bool {
	return strings.Contains(strings.ToLower(rec.Endpoint), search) ||
		strings.Contains(strings.ToLower(rec.Action), search) ||
		strings.Contains(strings.ToLower(rec.BotUserID), search)
}

// maskRecord converts an audit record to its admin-visible form with mask
// mode applied to the free-form metadata.
func maskRecord(rec audit.Record) map[string]any {
	out := map[string]any{
		"id":        rec.ID,
		"timestamp": rec.Timestamp.UTC().Format(time.RFC3339),
		"endpoint":  rec.Endpoint,
		"botUserId": rec.BotUserID,
		"result":    string(rec.Result),
	}
	if rec.Action != "" {
		out["action"] = rec.Action
	}
	if rec.RedactionApplied {
		out["redactionApplied"] = true
	}
	if rec.Metadata != nil {
		out["metadata"] = sanitize.Mask(map[string]any(rec.Metadata))
	}
	return out
}
