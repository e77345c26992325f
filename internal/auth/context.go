package auth

import "context"

// contextKey for storing auth details in a request context
type contextKey string

const fingerprintContextKey contextKey = "tokenFingerprint"

// WithFingerprint stores the caller's token fingerprint in the context.
func WithFingerprint(ctx context.Context, fp string) context.Context {
	return context.WithValue(ctx, fingerprintContextKey, fp)
}

// FingerprintFrom retrieves the token fingerprint from the context.
// Returns empty string if none was stored.
func FingerprintFrom(ctx context.Context) string {
	fp, ok := ctx.Value(fingerprintContextKey).(string)
	if !ok {
		return ""
	}
	return fp
}
