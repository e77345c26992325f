package api

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/clawdgames/botgate/internal/store"
)

// linkCodePattern validates the normalized code shape before any store
// lookup happens.
var linkCodePattern = regexp.MustCompile(`^[A-Z2-9]{6}$`)

// HandleLinkConfirm redeems a pairing code and mints the botUserId.
// POST /link/confirm {linkCode, channel?, senderId?}
//
// Every redemption failure is HTTP 400 with the same generic error — never
// 404 — so the endpoint cannot be used to enumerate live codes.
func (h *Handler) HandleLinkConfirm(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LinkCode string `json:"linkCode"`
		Channel  string `json:"channel"`
		SenderID string `json:"senderId"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.LinkCode == "" {
		writeError(w, http.StatusBadRequest, "linkCode is required")
		return
	}

	code := strings.ToUpper(strings.TrimSpace(req.LinkCode))
	if !linkCodePattern.MatchString(code) {
		writeError(w, http.StatusBadRequest, store.ErrCodeNotRedeemable.Error())
		return
	}

	redemption, err := h.store.RedeemLinkCode(r.Context(), code, req.Channel, req.SenderID)
	if err != nil {
		if errors.Is(err, store.ErrCodeNotRedeemable) {
			writeError(w, http.StatusBadRequest, store.ErrCodeNotRedeemable.Error())
			return
		}
		h.logger.Error("link code redemption failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}

	h.logger.Info("link code redeemed",
		"bot_user_id", redemption.BotUserID, "channel", req.Channel)

	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"botUserId": redemption.BotUserID,
		"scopes":    redemption.Scopes,
	})
}
