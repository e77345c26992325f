// Package store persists link codes, bot-user mappings, game data, and
// admin-action nonces behind a single interface, so the process-local
// implementation can be swapped for a shared external store without
// touching endpoint logic. Process-local memory is an explicit scalability
// boundary of this design: there is no cross-instance consistency.
package store

import (
	"context"
	"time"
)

// LinkCode is a single-use pairing code binding an internal reference to a
// future bot-user identity.
type LinkCode struct {
	Code        string
	InternalRef string
	Scopes      []string
	Used        bool
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// BotUserMapping associates a pseudonymous botUserId with the internal
// reference captured at link-code creation. InternalRef must never be
// serialized across the trust boundary.
type BotUserMapping struct {
	BotUserID   string    `json:"botUserId"`
	InternalRef string    `json:"-"`
	Channel     string    `json:"channel,omitempty"`
	SenderID    string    `json:"senderId,omitempty"`
	LinkedAt    time.Time `json:"linkedAt"`
}

// Redemption is the outcome of a successful link-code redemption.
type Redemption struct {
	BotUserID string
	Scopes    []string
}

// ActionNonce binds a prepared admin action to the actor and action that
// must later confirm it.
type ActionNonce struct {
	Nonce     string
	Action    string
	BotUserID string
	CreatedAt time.Time
	ExpiresAt time.Time
	Used      bool
}

// Store is the persistence interface shared by the memory and sqlite
// implementations. All single-use transitions (redeem, consume) are atomic
// within one instance: two near-simultaneous calls cannot both succeed.
type Store interface {
	// CreateLinkCode generates and persists a fresh single-use code for the
	// internal reference. ttl <= 0 uses the default code lifetime.
	CreateLinkCode(ctx context.Context, internalRef string, scopes []string, ttl time.Duration) (*LinkCode, error)

	// RedeemLinkCode marks the code used and mints a bot-user mapping.
	// Unknown, already-used, and expired codes all fail with
	// ErrCodeNotRedeemable so redemption cannot be used as an existence
	// oracle.
	RedeemLinkCode(ctx context.Context, code, channel, senderID string) (*Redemption, error)

	// GetMapping returns the mapping for a botUserId, or ErrNotFound.
	GetMapping(ctx context.Context, botUserID string) (*BotUserMapping, error)

	// PutGameData merges data into the record keyed by the internal
	// reference.
	PutGameData(ctx context.Context, internalRef string, data map[string]any) error

	// GetGameDataByBotUser resolves botUserId -> mapping -> internal ref and
	// returns the game data. ErrNotFound if the botUserId is unknown;
	// an empty map if the mapped ref has no data yet.
	GetGameDataByBotUser(ctx context.Context, botUserID string) (map[string]any, error)

	// CreateNonce persists a prepared admin-action nonce.
	CreateNonce(ctx context.Context, n *ActionNonce) error

	// ConsumeNonce atomically validates and consumes a nonce. Failure modes
	// are distinct: ErrNonceNotFound, ErrNonceUsed, ErrNonceExpired (the
	// record is evicted), ErrActionMismatch, ErrBotUserMismatch. A mismatch
	// leaves the nonce unused so the rightful party can still confirm.
	// Success keeps the nonce as a used tombstone until it expires and is
	// swept, so a replayed confirm gets ErrNonceUsed, not ErrNonceNotFound.
	ConsumeNonce(ctx context.Context, nonce, action, botUserID string) (*ActionNonce, error)

	// SweepNonces evicts expired nonces. Called opportunistically.
	SweepNonces(ctx context.Context) error

	// Lifecycle
	Close() error
}
