package sanitize

import (
	"fmt"
	"reflect"
	"strings"
	"testing"
)

func TestIsForbiddenKey(t *testing.T) {
	tests := []struct {
		key       string
		forbidden bool
	}{
		{"token", true},
		{"accessToken", true},
		{"API_KEY", true},
		{"password", true},
		{"Authorization", true},
		{"cookie", true},
		{"jwt", true},
		{"email", true},
		{"phoneNumber", true},
		{"address", true},
		{"ssn", true},
		{"userId", true},
		{"internalId", true},
		{"adminUserId", true},
		{"actorId", true},
		{"sessionId", true},
		{"botUserId", false},
		{"BotUserId", false},
		{"highScore", false},
		{"channel", false},
		{"level", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := IsForbiddenKey(tt.key); got != tt.forbidden {
				t.Errorf("IsForbiddenKey(%q) = %v, want %v", tt.key, got, tt.forbidden)
			}
		})
	}
}

func TestStripRemovesForbiddenKeys(t *testing.T) {
	input := map[string]any{
		"botUserId": "bot_1",
		"email":     "a@b.com",
		"gameData": map[string]any{
			"highScore": float64(10),
			"password":  "x",
		},
	}

	got := Strip(input)
	want := map[string]any{
		"botUserId": "bot_1",
		"gameData": map[string]any{
			"highScore": float64(10),
		},
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Strip() = %#v, want %#v", got, want)
	}
}

func TestMaskReplacesForbiddenKeys(t *testing.T) {
	input := map[string]any{
		"botUserId": "bot_1",
		"email":     "a@b.com",
		"gameData": map[string]any{
			"highScore": float64(10),
			"password":  "x",
		},
	}

	got := Mask(input)
	want := map[string]any{
		"botUserId": "bot_1",
		"email":     Placeholder,
		"gameData": map[string]any{
			"highScore": float64(10),
			"password":  Placeholder,
		},
	}

	if !reflect.DeepEqual(got, want) {
		t.Errorf("Mask() = %#v, want %#v", got, want)
	}
}

func TestMaskSniffsSecretLookingValues(t *testing.T) {
	tests := []struct {
		name  string
		value string
		want  any
	}{
		{"jwt", "eyJhbGciOiJIUzI1NiJ9.payload.sig", Placeholder},
		{"stripe secret", "sk_live_abc123", Placeholder},
		{"stripe publishable", "pk_test_abc123", Placeholder},
		{"bearer", "Bearer abc123", Placeholder},
		{"plain", "just a note", "just a note"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Mask(map[string]any{"note": tt.value}).(map[string]any)
			if got["note"] != tt.want {
				t.Errorf("Mask note %q = %v, want %v", tt.value, got["note"], tt.want)
			}
		})
	}
}

func TestStripIsIdempotent(t *testing.T) {
	input := map[string]any{
		"botUserId": "bot_1",
		"secret":    "s",
		"nested": map[string]any{
			"userId": "u1",
			"scores": []any{float64(1), float64(2)},
			"note":   strings.Repeat("x", 600),
		},
	}

	once := Strip(input)
	twice := Strip(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Strip is not idempotent:\nonce:  %#v\ntwice: %#v", once, twice)
	}
}

func TestMaskIsIdempotentOnMaskedOutput(t *testing.T) {
	// Placeholder values must not be re-mangled on a second pass.
	input := map[string]any{
		"botUserId": "bot_1",
		"apiKey":    "sk_live_x",
		"items":     []any{"a", "b"},
	}
	once := Mask(input)
	twice := Mask(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Mask is not idempotent:\nonce:  %#v\ntwice: %#v", once, twice)
	}
}

func TestAssertNoForbiddenKeys(t *testing.T) {
	dirty := map[string]any{
		"fine": "ok",
		"deep": []any{
			map[string]any{"sessionId": "s1"},
		},
	}
	if err := AssertNoForbiddenKeys(dirty); err == nil {
		t.Fatal("expected error for payload containing sessionId")
	} else if !strings.Contains(err.Error(), "sessionId") {
		t.Errorf("error should name the offending key, got: %v", err)
	}

	if err := AssertNoForbiddenKeys(Strip(dirty)); err != nil {
		t.Errorf("sanitized output should pass: %v", err)
	}
}

func TestAssertNoForbiddenKeysAfterStripAtAnyDepth(t *testing.T) {
	// Build a payload with forbidden keys scattered across nesting levels.
	payload := map[string]any{"password": "p"}
	for i := 0; i < 6; i++ {
		payload = map[string]any{
			fmt.Sprintf("level%d", i): payload,
			"token":                   "t",
		}
	}

	if err := AssertNoForbiddenKeys(Strip(payload)); err != nil {
		t.Errorf("no forbidden key may survive Strip: %v", err)
	}
}

func TestArrayTruncation(t *testing.T) {
	items := make([]any, 120)
	for i := range items {
		items[i] = float64(i)
	}

	got := Strip(map[string]any{"scores": items}).(map[string]any)
	scores := got["scores"].([]any)

	if len(scores) != maxArrayLen+1 {
		t.Fatalf("truncated array length = %d, want %d", len(scores), maxArrayLen+1)
	}
	if scores[maxArrayLen] != "[70 more]" {
		t.Errorf("marker = %v, want %q", scores[maxArrayLen], "[70 more]")
	}
}

func TestStringTruncation(t *testing.T) {
	long := strings.Repeat("a", 2*maxStringLen)
	got := Strip(map[string]any{"note": long}).(map[string]any)

	note := got["note"].(string)
	if !strings.HasSuffix(note, truncMarker) {
		t.Errorf("truncated string missing marker: %q", note[len(note)-20:])
	}
	if len(note) != maxStringLen+len(truncMarker) {
		t.Errorf("truncated string length = %d", len(note))
	}
}

func TestDepthCap(t *testing.T) {
	// Build nesting deeper than the cap.
	deep := map[string]any{"v": "leaf"}
	for i := 0; i < maxDepth+3; i++ {
		deep = map[string]any{"next": deep}
	}

	masked := Mask(deep)
	found := false
	cur := masked
	for i := 0; i < maxDepth+3; i++ {
		m, ok := cur.(map[string]any)
		if !ok {
			break
		}
		if m["next"] == depthSentinel {
			found = true
			break
		}
		cur = m["next"]
	}
	if !found {
		t.Error("mask mode should replace over-deep subtrees with the sentinel")
	}

	// Strip must be total over the same input and not panic.
	_ = Strip(deep)
}

func TestMaskHeader(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
		want   string
	}{
		{"password header", "X-Admin-Password", "hunter2", "[REDACTED]"},
		{"secret header", "X-Shared-Secret", "abc", "[REDACTED]"},
		{"authorization", "Authorization", "Bearer tok_1234abcd", "****abcd"},
		{"integration token", "x-clawdbot-integration-token", "tok_1234wxyz", "****wxyz"},
		{"short token", "Authorization", "ab", "****"},
		{"plain header", "Content-Type", "application/json", "application/json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskHeader(tt.header, tt.value); got != tt.want {
				t.Errorf("MaskHeader(%q, %q) = %q, want %q", tt.header, tt.value, got, tt.want)
			}
		})
	}
}
