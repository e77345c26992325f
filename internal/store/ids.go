package store

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

// codeAlphabet excludes visually ambiguous characters (0/O, 1/I) so codes
// survive being read aloud or retyped from a chat message.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// codeLength is the fixed link-code length.
const codeLength = 6

// nonceLength is the fixed admin-action nonce length.
const nonceLength = 32

// newLinkCode generates a random 6-character code over the reduced alphabet.
func newLinkCode() (string, error) {
	return randomString(codeLength)
}

// NewNonce generates a random 32-character admin-action nonce.
func NewNonce() (string, error) {
	return randomString(nonceLength)
}

// NewBotUserID mints an opaque pseudonymous identifier. The "bot_" prefix is
// for recognizability only; the UUID suffix carries the entropy. The id is
// never derivable from any internal identifier.
func NewBotUserID() string {
	return "bot_" + uuid.NewString()
}

func randomString(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf), nil
}
