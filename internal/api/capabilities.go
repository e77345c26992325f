package api

import (
	"errors"
	"net/http"

	"github.com/clawdgames/botgate/internal/sanitize"
	"github.com/clawdgames/botgate/internal/store"
)

// HandleCapabilities reports what the bot user may do.
// POST /capabilities {botUserId}
//
// debug is true only for admin-authorized botUserIds.
func (h *Handler) HandleCapabilities(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BotUserID string `json:"botUserId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.BotUserID == "" {
		writeError(w, http.StatusBadRequest, "botUserId is required")
		return
	}

	linked := true
	if _, err := h.store.GetMapping(r.Context(), req.BotUserID); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			h.logger.Error("mapping lookup failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal error")
			return
		}
		linked = false
	}

	h.mu.RLock()
	isAdmin := h.allowlist.IsAdminAuthorized(req.BotUserID)
	h.mu.RUnlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"capabilities": map[string]any{
			"linked":   linked,
			"gameData": linked,
			"debug":    isAdmin,
		},
	})
}

// HandleGameData returns the game data for a bot user, strip-sanitized so
// no internal key or sensitive field crosses the boundary.
// POST /gamedata {botUserId}
func (h *Handler) HandleGameData(w http.ResponseWriter, r *http.Request) {
	var req struct {
		BotUserID string `json:"botUserId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.BotUserID == "" {
		writeError(w, http.StatusBadRequest, "botUserId is required")
		return
	}

	data, err := h.store.GetGameDataByBotUser(r.Context(), req.BotUserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusBadRequest, "Unknown botUserId")
			return
		}
		h.logger.Error("game data lookup failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success":  true,
		"gameData": sanitize.Strip(map[string]any(data)),
	})
}
