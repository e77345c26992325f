package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"
)

var codeFormat = regexp.MustCompile(`^[A-Z2-9]{6}$`)

func TestLinkCodeFormat(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		lc, err := m.CreateLinkCode(ctx, "session-123", []string{"read"}, 0)
		if err != nil {
			t.Fatalf("CreateLinkCode: %v", err)
		}
		if !codeFormat.MatchString(lc.Code) {
			t.Fatalf("code %q does not match ^[A-Z2-9]{6}$", lc.Code)
		}
		if strings.ContainsAny(lc.Code, "0O1I") {
			t.Fatalf("code %q contains an ambiguous character", lc.Code)
		}
	}
}

func TestRedeemLinkCodeSingleUse(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	lc, err := m.CreateLinkCode(ctx, "session-123", []string{"read"}, 0)
	if err != nil {
		t.Fatalf("CreateLinkCode: %v", err)
	}

	red, err := m.RedeemLinkCode(ctx, lc.Code, "telegram", "u42")
	if err != nil {
		t.Fatalf("first redemption failed: %v", err)
	}
	if !strings.HasPrefix(red.BotUserID, "bot_") {
		t.Errorf("botUserId %q missing bot_ prefix", red.BotUserID)
	}
	if len(red.Scopes) != 1 || red.Scopes[0] != "read" {
		t.Errorf("scopes = %v, want [read]", red.Scopes)
	}

	// Second redemption must fail regardless of elapsed time.
	if _, err := m.RedeemLinkCode(ctx, lc.Code, "telegram", "u42"); !errors.Is(err, ErrCodeNotRedeemable) {
		t.Errorf("second redemption = %v, want ErrCodeNotRedeemable", err)
	}
}

func TestRedeemLinkCodeNormalizesCase(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	lc, err := m.CreateLinkCode(ctx, "ref", nil, 0)
	if err != nil {
		t.Fatalf("CreateLinkCode: %v", err)
	}

	if _, err := m.RedeemLinkCode(ctx, " "+strings.ToLower(lc.Code)+" ", "", ""); err != nil {
		t.Errorf("lowercased padded code should redeem: %v", err)
	}
}

func TestRedeemLinkCodeFailureModesAreIndistinguishable(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	// Unknown code.
	_, errUnknown := m.RedeemLinkCode(ctx, "ABCDEF", "", "")

	// Expired code.
	lc, err := m.CreateLinkCode(ctx, "ref", nil, time.Minute)
	if err != nil {
		t.Fatalf("CreateLinkCode: %v", err)
	}
	m.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	_, errExpired := m.RedeemLinkCode(ctx, lc.Code, "", "")

	if !errors.Is(errUnknown, ErrCodeNotRedeemable) || !errors.Is(errExpired, ErrCodeNotRedeemable) {
		t.Errorf("unknown=%v expired=%v, want the same generic error", errUnknown, errExpired)
	}
}

func TestEndToEndPairing(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	lc, err := m.CreateLinkCode(ctx, "session-123", []string{"read"}, 0)
	if err != nil {
		t.Fatalf("CreateLinkCode: %v", err)
	}

	red, err := m.RedeemLinkCode(ctx, lc.Code, "telegram", "u42")
	if err != nil {
		t.Fatalf("RedeemLinkCode: %v", err)
	}

	mapping, err := m.GetMapping(ctx, red.BotUserID)
	if err != nil {
		t.Fatalf("GetMapping: %v", err)
	}
	if mapping.Channel != "telegram" || mapping.SenderID != "u42" {
		t.Errorf("mapping = %+v, want telegram/u42", mapping)
	}
	if mapping.BotUserID != red.BotUserID {
		t.Errorf("mapping id %q != redemption id %q", mapping.BotUserID, red.BotUserID)
	}
}

func TestGetMappingUnknown(t *testing.T) {
	m := NewMemory()
	if _, err := m.GetMapping(context.Background(), "bot_unknown"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetMapping(unknown) = %v, want ErrNotFound", err)
	}
}

func TestGameDataIndirection(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	lc, _ := m.CreateLinkCode(ctx, "player-7", nil, 0)
	red, err := m.RedeemLinkCode(ctx, lc.Code, "discord", "")
	if err != nil {
		t.Fatalf("RedeemLinkCode: %v", err)
	}

	if err := m.PutGameData(ctx, "player-7", map[string]any{"highScore": 42}); err != nil {
		t.Fatalf("PutGameData: %v", err)
	}
	if err := m.PutGameData(ctx, "player-7", map[string]any{"plays": 3}); err != nil {
		t.Fatalf("PutGameData merge: %v", err)
	}

	data, err := m.GetGameDataByBotUser(ctx, red.BotUserID)
	if err != nil {
		t.Fatalf("GetGameDataByBotUser: %v", err)
	}
	if data["highScore"] != 42 || data["plays"] != 3 {
		t.Errorf("game data = %v, want merged record", data)
	}

	// The external key is the botUserId only.
	if _, err := m.GetGameDataByBotUser(ctx, "player-7"); !errors.Is(err, ErrNotFound) {
		t.Error("internal refs must not resolve through the external lookup")
	}
}

func TestNonceLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	n := &ActionNonce{
		Nonce:     "NNNNNNNNNNNNNNNNNNNNNNNNNNNNNNNN",
		Action:    "clear_cache",
		BotUserID: "bot_admin-uuid-1",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
	if err := m.CreateNonce(ctx, n); err != nil {
		t.Fatalf("CreateNonce: %v", err)
	}

	got, err := m.ConsumeNonce(ctx, n.Nonce, "clear_cache", "bot_admin-uuid-1")
	if err != nil {
		t.Fatalf("ConsumeNonce: %v", err)
	}
	if !got.Used {
		t.Error("consumed nonce should be marked used")
	}

	// The nonce survives as a used tombstone: a replay is told it was used.
	if _, err := m.ConsumeNonce(ctx, n.Nonce, "clear_cache", "bot_admin-uuid-1"); !errors.Is(err, ErrNonceUsed) {
		t.Errorf("second consume = %v, want ErrNonceUsed", err)
	}
}

func TestNonceMismatchLeavesNonceUsable(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	n := &ActionNonce{
		Nonce:     "MMMMMMMMMMMMMMMMMMMMMMMMMMMMMMMM",
		Action:    "clear_cache",
		BotUserID: "bot_admin-uuid-1",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
	if err := m.CreateNonce(ctx, n); err != nil {
		t.Fatalf("CreateNonce: %v", err)
	}

	if _, err := m.ConsumeNonce(ctx, n.Nonce, "reset_rate_limits", "bot_admin-uuid-1"); !errors.Is(err, ErrActionMismatch) {
		t.Errorf("wrong action = %v, want ErrActionMismatch", err)
	}
	if _, err := m.ConsumeNonce(ctx, n.Nonce, "clear_cache", "bot_other"); !errors.Is(err, ErrBotUserMismatch) {
		t.Errorf("wrong botUserId = %v, want ErrBotUserMismatch", err)
	}

	// The rightful party can still confirm.
	if _, err := m.ConsumeNonce(ctx, n.Nonce, "clear_cache", "bot_admin-uuid-1"); err != nil {
		t.Errorf("rightful confirm after mismatches failed: %v", err)
	}
}

func TestNonceExpiry(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	n := &ActionNonce{
		Nonce:     "EEEEEEEEEEEEEEEEEEEEEEEEEEEEEEEE",
		Action:    "clear_cache",
		BotUserID: "bot_admin-uuid-1",
		CreatedAt: time.Now(),
		ExpiresAt: time.Now().Add(5 * time.Minute),
	}
	if err := m.CreateNonce(ctx, n); err != nil {
		t.Fatalf("CreateNonce: %v", err)
	}

	m.now = func() time.Time { return time.Now().Add(10 * time.Minute) }

	if _, err := m.ConsumeNonce(ctx, n.Nonce, "clear_cache", "bot_admin-uuid-1"); !errors.Is(err, ErrNonceExpired) {
		t.Errorf("expired consume = %v, want ErrNonceExpired", err)
	}
	// Expired nonce was evicted: a retry sees not-found.
	if _, err := m.ConsumeNonce(ctx, n.Nonce, "clear_cache", "bot_admin-uuid-1"); !errors.Is(err, ErrNonceNotFound) {
		t.Errorf("consume after eviction = %v, want ErrNonceNotFound", err)
	}
}

func TestSweepNonces(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	expired := &ActionNonce{Nonce: "A", Action: "clear_cache", BotUserID: "b", ExpiresAt: time.Now().Add(-time.Minute)}
	live := &ActionNonce{Nonce: "B", Action: "clear_cache", BotUserID: "b", ExpiresAt: time.Now().Add(time.Minute)}
	if err := m.CreateNonce(ctx, expired); err != nil {
		t.Fatal(err)
	}
	if err := m.CreateNonce(ctx, live); err != nil {
		t.Fatal(err)
	}

	if err := m.SweepNonces(ctx); err != nil {
		t.Fatalf("SweepNonces: %v", err)
	}

	if _, err := m.ConsumeNonce(ctx, "A", "clear_cache", "b"); !errors.Is(err, ErrNonceNotFound) {
		t.Error("expired nonce should be swept")
	}
	if _, err := m.ConsumeNonce(ctx, "B", "clear_cache", "b"); err != nil {
		t.Errorf("live nonce should survive the sweep: %v", err)
	}
}
