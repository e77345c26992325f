// Package ratelimit implements a fixed-window request limiter keyed by a
// privacy-preserving caller identifier. It is a best-effort, single-instance
// abuse guard, not a security boundary: state lives in process memory and is
// lost on restart by design.
package ratelimit

import (
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/clawdgames/botgate/internal/auth"
)

// sweepOdds controls opportunistic cleanup: roughly one in sweepOdds checks
// evicts expired entries, bounding memory without a background task.
const sweepOdds = 50

// Entry is the per-identifier counter for the current window.
type Entry struct {
	Count         int
	WindowResetAt time.Time
}

// Store holds rate-limit entries. Implementations must be safe for
// concurrent use.
type Store interface {
	// Increment counts one request for the identifier and returns the
	// updated entry, starting a fresh window when the previous one has
	// elapsed. The read-modify-write must be atomic so concurrent requests
	// cannot share a count.
	Increment(id string, now time.Time, window time.Duration) Entry
	// Sweep removes entries whose window ended before now.
	Sweep(now time.Time)
	// Clear removes every entry.
	Clear()
}

// MemoryStore is the in-process Store implementation.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]Entry)}
}

func (s *MemoryStore) Increment(id string, now time.Time, window time.Duration) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	if !ok || now.After(e.WindowResetAt) {
		e = Entry{Count: 0, WindowResetAt: now.Add(window)}
	}
	e.Count++
	s.entries[id] = e
	return e
}

// Get returns the entry for an identifier, or false if absent.
func (s *MemoryStore) Get(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[id]
	return e, ok
}

// Set stores the entry for an identifier.
func (s *MemoryStore) Set(id string, e Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = e
}

func (s *MemoryStore) Sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.entries {
		if now.After(e.WindowResetAt) {
			delete(s.entries, id)
		}
	}
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]Entry)
}

// Result is the outcome of a rate-limit check.
type Result struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Limiter applies a fixed window of max requests per identifier.
type Limiter struct {
	store  Store
	max    int
	window time.Duration
	now    func() time.Time
}

// New creates a Limiter over the given store.
func New(store Store, max int, window time.Duration) *Limiter {
	return &Limiter{store: store, max: max, window: window, now: time.Now}
}

// Check counts a request for the identifier and reports whether it is
// within the window's budget.
func (l *Limiter) Check(id string) Result {
	now := l.now()

	if rand.IntN(sweepOdds) == 0 {
		l.store.Sweep(now)
	}

	e := l.store.Increment(id, now, l.window)

	remaining := l.max - e.Count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		Allowed:   e.Count <= l.max,
		Limit:     l.max,
		Remaining: remaining,
		ResetAt:   e.WindowResetAt,
	}
}

// Reset discards all counters. Exposed for the reset_rate_limits admin
// action.
func (l *Limiter) Reset() {
	l.store.Clear()
}

// IdentifierFor derives the rate-limit key for a request: a fingerprint of
// the presented service token when one exists (limits per-integration, not
// per-edge-IP), falling back to the client IP.
func IdentifierFor(r *http.Request) string {
	if token := auth.ExtractToken(r.Header); token != "" {
		return "tok:" + auth.Fingerprint(token)
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// First hop in the chain is the original client.
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
