// Package auth handles service token validation and admin authorization.
package auth

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Token header names accepted from the bot service, in priority order.
// The Authorization Bearer form is checked last.
var tokenHeaders = []string{
	"x-clawdbot-integration-token",
	"x-clawdbot-token",
	"x-games-clawdbot-token", // legacy
}

// Errors for authentication failures.
var (
	// ErrUnauthorized covers every missing/mismatched token case. The caller
	// must never learn which check failed.
	ErrUnauthorized = errors.New("Unauthorized")
	// ErrServerConfig indicates no shared secret is configured. This is an
	// operator error, not an attacker probe, and is the one permitted
	// asymmetry in the error surface.
	ErrServerConfig = errors.New("Server configuration error")
)

// ExtractToken returns the first candidate token found in the supported
// headers, or "" if none is present.
func ExtractToken(h http.Header) string {
	for _, name := range tokenHeaders {
		if v := h.Get(name); v != "" {
			return v
		}
	}
	auth := h.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}

// Validator checks inbound tokens against the configured shared secret.
type Validator struct {
	secret string
}

// NewValidator creates a Validator for the given shared secret. An empty
// secret is permitted at construction; Validate reports it per request.
func NewValidator(secret string) *Validator {
	return &Validator{secret: secret}
}

// Validate checks the token presented in the request headers.
// Returns nil if valid, ErrServerConfig if no secret is configured, and
// ErrUnauthorized for every other failure.
func (v *Validator) Validate(r *http.Request) error {
	if v.secret == "" {
		return ErrServerConfig
	}

	candidate := ExtractToken(r.Header)
	if candidate == "" {
		return ErrUnauthorized
	}

	// Equal length is required first; leaking total length is acceptable.
	// The comparison itself must not leak the position of a mismatch.
	if len(candidate) != len(v.secret) {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(v.secret)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// Fingerprint computes a short hex digest of a token for use as a
// privacy-preserving identifier (rate-limit keys, audit metadata). The raw
// token never appears in stores or logs.
func Fingerprint(token string) string {
	sum := blake2b.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8])
}
