// Package adminaction implements the prepare/confirm protocol for admin
// operations. A prepared action must be confirmed with a matching nonce,
// action, and botUserId within a short window before it executes.
//
// The protocol requires two temporally separated steps by the same
// credential, not two distinct parties. That limitation is deliberate and
// part of the external contract; see DESIGN.md.
package adminaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/clawdgames/botgate/internal/audit"
	"github.com/clawdgames/botgate/internal/store"
)

// NonceTTL is how long a prepared action stays confirmable.
const NonceTTL = 5 * time.Minute

// AllowedActions is the fixed allowlist. Deliberately non-destructive
// operations only; nothing resembling data deletion is ever listed here.
var AllowedActions = []string{"clear_cache", "reset_rate_limits", "refresh_config"}

// ErrActionNotAllowed rejects actions outside the allowlist. The allowlist
// itself is public information and is echoed back to the caller.
var ErrActionNotAllowed = errors.New("action not allowed")

// Executor performs a confirmed action and returns a human-readable result.
type Executor func(ctx context.Context) (string, error)

// Coordinator drives the nonce state machine over the shared store.
type Coordinator struct {
	store     store.Store
	auditLog  *audit.Log
	logger    *slog.Logger
	executors map[string]Executor
}

// PrepareResult is returned to the caller of a successful prepare.
type PrepareResult struct {
	Nonce     string
	ExpiresAt time.Time
}

// New creates a Coordinator. Executors missing from the map fall back to
// described stubs.
func New(st store.Store, auditLog *audit.Log, logger *slog.Logger, executors map[string]Executor) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	merged := map[string]Executor{
		"clear_cache":       stub("cache cleared"),
		"reset_rate_limits": stub("rate limit counters reset"),
		"refresh_config":    stub("configuration refreshed"),
	}
	for name, fn := range executors {
		merged[name] = fn
	}
	return &Coordinator{store: st, auditLog: auditLog, logger: logger, executors: merged}
}

// Prepare generates a single-use nonce binding the action to the actor.
// Expired nonces are swept opportunistically on every prepare.
func (c *Coordinator) Prepare(ctx context.Context, action, botUserID string) (*PrepareResult, error) {
	if !IsAllowedAction(action) {
		c.writeAudit(action, botUserID, audit.ResultFail, map[string]any{"reason": "action_not_allowed"})
		return nil, fmt.Errorf("%w: %q is not one of [%s]",
			ErrActionNotAllowed, action, strings.Join(AllowedActions, ", "))
	}

	if err := c.store.SweepNonces(ctx); err != nil {
		// Sweeping is housekeeping; a failure must not block the prepare.
		c.logger.Warn("nonce sweep failed", "error", err)
	}

	nonce, err := store.NewNonce()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	n := &store.ActionNonce{
		Nonce:     nonce,
		Action:    action,
		BotUserID: botUserID,
		CreatedAt: now,
		ExpiresAt: now.Add(NonceTTL),
	}
	if err := c.store.CreateNonce(ctx, n); err != nil {
		return nil, fmt.Errorf("failed to store action nonce: %w", err)
	}

	c.writeAudit(action, botUserID, audit.ResultSuccess, map[string]any{"phase": "prepare"})
	c.logger.Info("admin action prepared", "action", action, "bot_user_id", botUserID)

	return &PrepareResult{Nonce: nonce, ExpiresAt: n.ExpiresAt}, nil
}

// Confirm consumes the nonce and executes the action. Every check must pass
// before the nonce is burned; a mismatched action or botUserId fails the
// attempt but leaves the nonce available to the rightful party.
func (c *Coordinator) Confirm(ctx context.Context, nonce, action, botUserID string) (string, error) {
	n, err := c.store.ConsumeNonce(ctx, nonce, action, botUserID)
	if err != nil {
		c.writeAudit(action, botUserID, audit.ResultFail, map[string]any{
			"phase":  "confirm",
			"reason": err.Error(),
		})
		return "", err
	}

	executor, ok := c.executors[n.Action]
	if !ok {
		// Allowlisted at prepare time, so this indicates a wiring bug.
		c.writeAudit(action, botUserID, audit.ResultFail, map[string]any{"reason": "no_executor"})
		return "", fmt.Errorf("no executor registered for action %q", n.Action)
	}

	result, err := executor(ctx)
	if err != nil {
		c.writeAudit(action, botUserID, audit.ResultFail, map[string]any{
			"phase":  "execute",
			"reason": err.Error(),
		})
		return "", fmt.Errorf("action %q failed: %w", n.Action, err)
	}

	c.writeAudit(action, botUserID, audit.ResultSuccess, map[string]any{"phase": "confirm"})
	c.logger.Info("admin action confirmed", "action", action, "bot_user_id", botUserID)

	return result, nil
}

// IsAllowedAction reports whether the action is on the fixed allowlist.
func IsAllowedAction(action string) bool {
	for _, a := range AllowedActions {
		if a == action {
			return true
		}
	}
	return false
}

func (c *Coordinator) writeAudit(action, botUserID string, result audit.Result, metadata map[string]any) {
	if c.auditLog == nil {
		return
	}
	c.auditLog.Write(audit.Record{
		Endpoint:  "/admin/actions",
		Action:    action,
		BotUserID: botUserID,
		Result:    result,
		Metadata:  metadata,
	})
}

func stub(description string) Executor {
	return func(context.Context) (string, error) {
		return description, nil
	}
}
