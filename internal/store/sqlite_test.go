package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

// newTestSQLite opens an in-memory database. The pool is pinned to a single
// connection so every query sees the same in-memory database.
func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	if err := InitSchema(db); err != nil {
		t.Fatalf("failed to init schema: %v", err)
	}
	return NewSQLite(db)
}

func TestSQLiteRedeemSingleUse(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	lc, err := s.CreateLinkCode(ctx, "session-123", []string{"read"}, 0)
	if err != nil {
		t.Fatalf("CreateLinkCode: %v", err)
	}

	red, err := s.RedeemLinkCode(ctx, lc.Code, "telegram", "u42")
	if err != nil {
		t.Fatalf("first redemption failed: %v", err)
	}
	if len(red.Scopes) != 1 || red.Scopes[0] != "read" {
		t.Errorf("scopes = %v, want [read]", red.Scopes)
	}

	if _, err := s.RedeemLinkCode(ctx, lc.Code, "telegram", "u42"); !errors.Is(err, ErrCodeNotRedeemable) {
		t.Errorf("second redemption = %v, want ErrCodeNotRedeemable", err)
	}

	mapping, err := s.GetMapping(ctx, red.BotUserID)
	if err != nil {
		t.Fatalf("GetMapping: %v", err)
	}
	if mapping.Channel != "telegram" || mapping.SenderID != "u42" {
		t.Errorf("mapping = %+v, want telegram/u42", mapping)
	}
}

func TestSQLiteExpiredCodeRejected(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	lc, err := s.CreateLinkCode(ctx, "ref", nil, time.Minute)
	if err != nil {
		t.Fatalf("CreateLinkCode: %v", err)
	}

	s.now = func() time.Time { return time.Now().Add(2 * time.Minute) }

	if _, err := s.RedeemLinkCode(ctx, lc.Code, "", ""); !errors.Is(err, ErrCodeNotRedeemable) {
		t.Errorf("expired redemption = %v, want ErrCodeNotRedeemable", err)
	}
}

func TestSQLiteGameData(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	lc, err := s.CreateLinkCode(ctx, "player-7", nil, 0)
	if err != nil {
		t.Fatalf("CreateLinkCode: %v", err)
	}
	red, err := s.RedeemLinkCode(ctx, lc.Code, "discord", "")
	if err != nil {
		t.Fatalf("RedeemLinkCode: %v", err)
	}

	if err := s.PutGameData(ctx, "player-7", map[string]any{"highScore": 42}); err != nil {
		t.Fatalf("PutGameData: %v", err)
	}
	if err := s.PutGameData(ctx, "player-7", map[string]any{"plays": 3}); err != nil {
		t.Fatalf("PutGameData merge: %v", err)
	}

	data, err := s.GetGameDataByBotUser(ctx, red.BotUserID)
	if err != nil {
		t.Fatalf("GetGameDataByBotUser: %v", err)
	}
	// Values round-trip through JSON, so numbers come back as float64.
	if data["highScore"] != float64(42) || data["plays"] != float64(3) {
		t.Errorf("game data = %v, want merged record", data)
	}
}

func TestSQLiteNonceLifecycle(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	n := &ActionNonce{
		Nonce:     "NNNNNNNNNNNNNNNNNNNNNNNNNNNNNNNN",
		Action:    "clear_cache",
		BotUserID: "bot_admin-uuid-1",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
	if err := s.CreateNonce(ctx, n); err != nil {
		t.Fatalf("CreateNonce: %v", err)
	}
	if err := s.CreateNonce(ctx, n); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate create = %v, want ErrDuplicate", err)
	}

	if _, err := s.ConsumeNonce(ctx, n.Nonce, "reset_rate_limits", n.BotUserID); !errors.Is(err, ErrActionMismatch) {
		t.Errorf("wrong action = %v, want ErrActionMismatch", err)
	}
	if _, err := s.ConsumeNonce(ctx, n.Nonce, n.Action, "bot_other"); !errors.Is(err, ErrBotUserMismatch) {
		t.Errorf("wrong botUserId = %v, want ErrBotUserMismatch", err)
	}

	if _, err := s.ConsumeNonce(ctx, n.Nonce, n.Action, n.BotUserID); err != nil {
		t.Fatalf("rightful confirm failed: %v", err)
	}
	// The used tombstone stays behind so a replay is told it was used.
	if _, err := s.ConsumeNonce(ctx, n.Nonce, n.Action, n.BotUserID); !errors.Is(err, ErrNonceUsed) {
		t.Errorf("consume after use = %v, want ErrNonceUsed", err)
	}
}

func TestSQLiteSweepNonces(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	expired := &ActionNonce{Nonce: "A", Action: "clear_cache", BotUserID: "b", CreatedAt: time.Now(), ExpiresAt: time.Now().Add(-time.Minute)}
	if err := s.CreateNonce(ctx, expired); err != nil {
		t.Fatal(err)
	}

	if err := s.SweepNonces(ctx); err != nil {
		t.Fatalf("SweepNonces: %v", err)
	}

	if _, err := s.ConsumeNonce(ctx, "A", "clear_cache", "b"); !errors.Is(err, ErrNonceNotFound) {
		t.Error("expired nonce should be swept")
	}
}
