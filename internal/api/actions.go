package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/clawdgames/botgate/internal/adminaction"
	"github.com/clawdgames/botgate/internal/store"
)

// HandleAdminActions drives the prepare/confirm protocol.
// POST /admin/actions {operation: "prepare"|"confirm", botUserId, action, nonce?}
//
// Unlike the GET admin endpoints, the botUserId travels in the request body
// here; the query/header form is also accepted and wins when both are
// present, in which case the body must agree with it.
func (h *Handler) HandleAdminActions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Operation string `json:"operation"`
		BotUserID string `json:"botUserId"`
		Action    string `json:"action"`
		Nonce     string `json:"nonce"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	botUserID := adminBotUserID(r)
	if botUserID == "" {
		botUserID = req.BotUserID
	}
	if botUserID == "" {
		writeError(w, http.StatusBadRequest, "botUserId is required")
		return
	}
	// A prepare or confirm for a third party would break the protocol's
	// actor binding.
	if req.BotUserID != "" && req.BotUserID != botUserID {
		writeError(w, http.StatusBadRequest, "botUserId does not match the authorized caller")
		return
	}
	if !h.authorizeAdmin(w, botUserID, "/admin/actions") {
		return
	}

	if req.Action == "" {
		writeError(w, http.StatusBadRequest, "action is required")
		return
	}

	switch req.Operation {
	case "prepare":
		res, err := h.coordinator.Prepare(r.Context(), req.Action, botUserID)
		if err != nil {
			if errors.Is(err, adminaction.ErrActionNotAllowed) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			h.logger.Error("action prepare failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":   true,
			"nonce":     res.Nonce,
			"expiresAt": res.ExpiresAt.UTC().Format(time.RFC3339),
		})

	case "confirm":
		if req.Nonce == "" {
			writeError(w, http.StatusBadRequest, "nonce is required")
			return
		}
		result, err := h.coordinator.Confirm(r.Context(), req.Nonce, req.Action, botUserID)
		if err != nil {
			if isNonceError(err) {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			h.logger.Error("action confirm failed", "error", err)
			writeError(w, http.StatusInternalServerError, "Internal error")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"result":  result,
		})

	default:
		writeError(w, http.StatusBadRequest, `operation must be "prepare" or "confirm"`)
	}
}

func isNonceError(err error) bool {
	return errors.Is(err, store.ErrNonceNotFound) ||
		errors.Is(err, store.ErrNonceUsed) ||
		errors.Is(err, store.ErrNonceExpired) ||
		errors.Is(err, store.ErrActionMismatch) ||
		errors.Is(err, store.ErrBotUserMismatch)
}
