package api

import (
	"net/http"
	"time"

	"github.com/clawdgames/botgate/internal/metrics"
	"github.com/clawdgames/botgate/internal/sanitize"
)

// HandleInternalLink creates a pairing code on behalf of the games backend.
// POST /internal/link {internalRef, scopes?, ttlSeconds?}
//
// The code is handed to the player out-of-band (shown in the game UI); the
// internalRef never leaves the gateway.
func (h *Handler) HandleInternalLink(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InternalRef string   `json:"internalRef"`
		Scopes      []string `json:"scopes"`
		TTLSeconds  int      `json:"ttlSeconds"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.InternalRef == "" {
		writeError(w, http.StatusBadRequest, "internalRef is required")
		return
	}

	ttl := time.Duration(req.TTLSeconds) * time.Second
	lc, err := h.store.CreateLinkCode(r.Context(), req.InternalRef, req.Scopes, ttl)
	if err != nil {
		h.logger.Error("link code creation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	h.logger.Info("link code created", "scopes", lc.Scopes, "expires_at", lc.ExpiresAt)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"linkCode":  lc.Code,
		"expiresAt": lc.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

// HandleInternalGameData records game data and counts game events.
// POST /internal/gamedata {internalRef, event?: "start"|"complete", data?}
//
// The stored payload is strip-sanitized on the way in as well: the games
// backend is trusted, but defense-in-depth keeps forbidden keys out of the
// store entirely.
func (h *Handler) HandleInternalGameData(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InternalRef string         `json:"internalRef"`
		Event       string         `json:"event"`
		Data        map[string]any `json:"data"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.InternalRef == "" {
		writeError(w, http.StatusBadRequest, "internalRef is required")
		return
	}

	switch req.Event {
	case "":
		// Plain data write, no event counter.
	case "start":
		metrics.RecordGameStart()
	case "complete":
		metrics.RecordGameCompletion(scoreFrom(req.Data))
	default:
		writeError(w, http.StatusBadRequest, `event must be "start" or "complete"`)
		return
	}

	if len(req.Data) > 0 {
		cleaned, _ := sanitize.Strip(req.Data).(map[string]any)
		if err := h.store.PutGameData(r.Context(), req.InternalRef, cleaned); err != nil {
			h.logger.Error("game data write failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal error")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// scoreFrom pulls a numeric score out of a completion payload. JSON numbers
// arrive as float64.
func scoreFrom(data map[string]any) int64 {
	if v, ok := data["score"]; ok {
		if f, ok := v.(float64); ok {
			return int64(f)
		}
	}
	if v, ok := data["highScore"]; ok {
		if f, ok := v.(float64); ok {
			return int64(f)
		}
	}
	return 0
}
