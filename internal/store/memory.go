package store

import (
	"context"
	"strings"
	"sync"
	"time"
)

// DefaultCodeTTL bounds how long an unredeemed link code stays valid.
const DefaultCodeTTL = 15 * time.Minute

// Memory is the in-process Store implementation. Volatile by design:
// serverless cold-start semantics make durability an explicit non-goal, and
// a production deployment swaps in the sqlite implementation (or an
// external store) behind the same interface.
//
// A single mutex guards every single-use transition, closing the
// check-then-mark TOCTOU window within one instance.
type Memory struct {
	mu       sync.Mutex
	codes    map[string]*LinkCode
	mappings map[string]*BotUserMapping
	gameData map[string]map[string]any
	nonces   map[string]*ActionNonce
	now      func() time.Time
}

// NewMemory creates an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		codes:    make(map[string]*LinkCode),
		mappings: make(map[string]*BotUserMapping),
		gameData: make(map[string]map[string]any),
		nonces:   make(map[string]*ActionNonce),
		now:      time.Now,
	}
}

// CreateLinkCode generates and stores a fresh single-use code.
func (m *Memory) CreateLinkCode(_ context.Context, internalRef string, scopes []string, ttl time.Duration) (*LinkCode, error) {
	if ttl <= 0 {
		ttl = DefaultCodeTTL
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Regenerate on the (unlikely) collision with a live code. Used codes
	// are never reissued: they stay in the map as tombstones.
	var code string
	for {
		c, err := newLinkCode()
		if err != nil {
			return nil, err
		}
		if _, exists := m.codes[c]; !exists {
			code = c
			break
		}
	}

	now := m.now()
	lc := &LinkCode{
		Code:        code,
		InternalRef: internalRef,
		Scopes:      append([]string(nil), scopes...),
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	m.codes[code] = lc

	out := *lc
	return &out, nil
}

// RedeemLinkCode atomically marks the code used and mints the bot-user
// mapping. All failure modes collapse to ErrCodeNotRedeemable.
func (m *Memory) RedeemLinkCode(_ context.Context, code, channel, senderID string) (*Redemption, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))

	m.mu.Lock()
	defer m.mu.Unlock()

	lc, ok := m.codes[normalized]
	if !ok || lc.Used || m.now().After(lc.ExpiresAt) {
		return nil, ErrCodeNotRedeemable
	}

	lc.Used = true

	botUserID := NewBotUserID()
	m.mappings[botUserID] = &BotUserMapping{
		BotUserID:   botUserID,
		InternalRef: lc.InternalRef,
		Channel:     channel,
		SenderID:    senderID,
		LinkedAt:    m.now(),
	}

	return &Redemption{
		BotUserID: botUserID,
		Scopes:    append([]string(nil), lc.Scopes...),
	}, nil
}

// GetMapping returns a copy of the mapping, or ErrNotFound.
func (m *Memory) GetMapping(_ context.Context, botUserID string) (*BotUserMapping, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mapping, ok := m.mappings[botUserID]
	if !ok {
		return nil, ErrNotFound
	}
	out := *mapping
	return &out, nil
}

// PutGameData merges data into the record for the internal reference.
func (m *Memory) PutGameData(_ context.Context, internalRef string, data map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.gameData[internalRef]
	if !ok {
		existing = make(map[string]any, len(data))
		m.gameData[internalRef] = existing
	}
	for k, v := range data {
		existing[k] = v
	}
	return nil
}

// GetGameDataByBotUser resolves the botUserId through the mapping so the
// bot side never learns internal keys.
func (m *Memory) GetGameDataByBotUser(_ context.Context, botUserID string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	mapping, ok := m.mappings[botUserID]
	if !ok {
		return nil, ErrNotFound
	}

	data := m.gameData[mapping.InternalRef]
	out := make(map[string]any, len(data))
	for k, v := range data {
		out[k] = v
	}
	return out, nil
}

// CreateNonce stores a prepared admin-action nonce.
func (m *Memory) CreateNonce(_ context.Context, n *ActionNonce) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.nonces[n.Nonce]; exists {
		return ErrDuplicate
	}
	stored := *n
	m.nonces[n.Nonce] = &stored
	return nil
}

// ConsumeNonce validates and consumes a nonce under the store lock, so two
// near-simultaneous confirms cannot both succeed.
func (m *Memory) ConsumeNonce(_ context.Context, nonce, action, botUserID string) (*ActionNonce, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nonces[nonce]
	if !ok {
		return nil, ErrNonceNotFound
	}
	if n.Used {
		return nil, ErrNonceUsed
	}
	if m.now().After(n.ExpiresAt) {
		delete(m.nonces, nonce)
		return nil, ErrNonceExpired
	}
	// Mismatches fail the attempt but leave the nonce unused, so the
	// rightful party can still confirm.
	if n.Action != action {
		return nil, ErrActionMismatch
	}
	if n.BotUserID != botUserID {
		return nil, ErrBotUserMismatch
	}

	// Consumed nonces stay as tombstones until they expire and are swept,
	// so a replayed confirm reports already-used rather than not-found.
	n.Used = true
	out := *n
	return &out, nil
}

// SweepNonces evicts expired nonces.
func (m *Memory) SweepNonces(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for k, n := range m.nonces {
		if now.After(n.ExpiresAt) {
			delete(m.nonces, k)
		}
	}
	return nil
}

// Close is a no-op for the memory store.
func (m *Memory) Close() error {
	return nil
}
