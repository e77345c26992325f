package store

import "errors"

var (
	// ErrCodeNotRedeemable covers every link-code redemption failure:
	// unknown, already used, or expired. One sentinel by design — distinct
	// errors would give a guessing client an existence oracle.
	ErrCodeNotRedeemable = errors.New("invalid or expired link code")

	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicate is returned when attempting to create a resource that already exists.
	ErrDuplicate = errors.New("resource already exists")

	// Nonce consumption failures. These may be surfaced to the caller: a
	// nonce is not a guessable secret once issued to the rightful party.
	ErrNonceNotFound   = errors.New("Invalid or expired nonce")
	ErrNonceUsed       = errors.New("Nonce already used")
	ErrNonceExpired    = errors.New("Nonce expired")
	ErrActionMismatch  = errors.New("Action mismatch")
	ErrBotUserMismatch = errors.New("BotUserId mismatch")
)
