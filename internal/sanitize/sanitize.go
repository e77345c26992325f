// Package sanitize strips or masks sensitive fields from JSON-like data
// before it crosses the trust boundary to the bot service or appears in
// admin-visible logs.
package sanitize

import (
	"fmt"
	"strings"
)

// Placeholder replaces forbidden values in mask mode.
const Placeholder = "***REDACTED***"

// depthSentinel replaces subtrees nested beyond maxDepth in mask mode.
const depthSentinel = "***MAX_DEPTH***"

const (
	maxDepth     = 8
	maxArrayLen  = 50
	maxStringLen = 500
	truncMarker  = "…[truncated]"
)

// forbiddenKeyPatterns is the fixed predicate table. A key is forbidden if
// its lowercase form contains any of these substrings. Covers auth material,
// PII, and internal identifiers.
var forbiddenKeyPatterns = []string{
	// secrets / auth material
	"token", "secret", "key", "password", "apikey", "authorization", "cookie", "jwt",
	// PII
	"email", "phone", "address", "ssn",
	// internal identifiers
	"userid", "internalid", "adminuserid", "actorid", "sessionid",
}

// secretValuePrefixes identifies string values that look like bearer
// tokens, JWTs, or API keys even when the key name is innocuous. This is a
// deliberate, documented pattern table; false negatives are acceptable —
// the mechanism is defense-in-depth, not a guarantee.
var secretValuePrefixes = []string{"eyJ", "sk_", "pk_", "Bearer "}

// IsForbiddenKey reports whether a key must not cross the trust boundary.
// The literal key "botUserId" is exempt: it is the one identifier
// intentionally allowed across.
func IsForbiddenKey(key string) bool {
	lower := strings.ToLower(key)
	if lower == "botuserid" {
		return false
	}
	for _, pattern := range forbiddenKeyPatterns {
		if strings.Contains(lower, pattern) {
			return true
		}
	}
	return false
}

// Strip removes forbidden keys entirely from the value. Used for game-data
// payloads returned to the bot client. Total over all input shapes and
// never returns an error: disallowed data is silently dropped. Subtrees
// nested beyond the depth cap are dropped as well.
func Strip(value any) any {
	return stripValue(value, 0)
}

func stripValue(value any, depth int) any {
	if depth > maxDepth {
		return nil
	}
	switch v := value.(type) {
	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			if IsForbiddenKey(key) {
				continue
			}
			result[key] = stripValue(val, depth+1)
		}
		return result
	case []any:
		return truncateArray(v, func(item any) any { return stripValue(item, depth+1) })
	case string:
		return truncateString(v)
	default:
		return value
	}
}

// Mask replaces forbidden values with Placeholder instead of removing them,
// so admin diagnostic views show that a field existed without its value.
// String values that look like secrets are masked regardless of key name.
func Mask(value any) any {
	return maskValue(value, 0)
}

func maskValue(value any, depth int) any {
	if depth > maxDepth {
		return depthSentinel
	}
	switch v := value.(type) {
	case map[string]any:
		result := make(map[string]any, len(v))
		for key, val := range v {
			if IsForbiddenKey(key) {
				result[key] = Placeholder
				continue
			}
			result[key] = maskValue(val, depth+1)
		}
		return result
	case []any:
		return truncateArray(v, func(item any) any { return maskValue(item, depth+1) })
	case string:
		if looksLikeSecret(v) {
			return Placeholder
		}
		return truncateString(v)
	default:
		return value
	}
}

// AssertNoForbiddenKeys walks a sanitized value and returns an error naming
// the first forbidden key still present. Defense-in-depth self-check for
// tests and pre-transmission verification.
func AssertNoForbiddenKeys(value any) error {
	return assertClean(value, "$")
}

func assertClean(value any, path string) error {
	switch v := value.(type) {
	case map[string]any:
		for key, val := range v {
			childPath := path + "." + key
			if IsForbiddenKey(key) {
				return fmt.Errorf("forbidden key %q at %s", key, childPath)
			}
			if err := assertClean(val, childPath); err != nil {
				return err
			}
		}
	case []any:
		for i, item := range v {
			if err := assertClean(item, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

// MaskHeader redacts sensitive header values based on header name.
//
// Rules:
// - Password/secret headers: "[REDACTED]" (no partial reveal)
// - Token/authorization headers: "****" + last4chars
// - Other headers: returned unchanged
func MaskHeader(name, value string) string {
	lowerName := strings.ToLower(name)

	if strings.Contains(lowerName, "password") ||
		strings.Contains(lowerName, "secret") ||
		strings.Contains(lowerName, "private-key") {
		return "[REDACTED]"
	}

	if lowerName == "authorization" ||
		lowerName == "cookie" ||
		lowerName == "x-api-key" ||
		strings.Contains(lowerName, "clawdbot") {
		if len(value) < 4 {
			return "****"
		}
		return "****" + value[len(value)-4:]
	}

	return value
}

func looksLikeSecret(s string) bool {
	for _, prefix := range secretValuePrefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// truncateString caps long strings with a trailing marker. Re-truncating an
// already-truncated string yields the same output, keeping sanitization
// idempotent.
func truncateString(s string) string {
	if len(s) <= maxStringLen {
		return s
	}
	return s[:maxStringLen] + truncMarker
}

// truncateArray caps long arrays at maxArrayLen elements plus a trailing
// "[N more]" marker. An array that already carries a marker is left alone
// so a second sanitization pass is a no-op.
func truncateArray(items []any, walk func(any) any) []any {
	if len(items) == maxArrayLen+1 && isArrayMarker(items[maxArrayLen]) {
		result := make([]any, len(items))
		for i, item := range items[:maxArrayLen] {
			result[i] = walk(item)
		}
		result[maxArrayLen] = items[maxArrayLen]
		return result
	}

	n := len(items)
	if n <= maxArrayLen {
		result := make([]any, n)
		for i, item := range items {
			result[i] = walk(item)
		}
		return result
	}

	result := make([]any, 0, maxArrayLen+1)
	for _, item := range items[:maxArrayLen] {
		result = append(result, walk(item))
	}
	result = append(result, fmt.Sprintf("[%d more]", n-maxArrayLen))
	return result
}

func isArrayMarker(v any) bool {
	s, ok := v.(string)
	return ok && strings.HasPrefix(s, "[") && strings.HasSuffix(s, " more]")
}
