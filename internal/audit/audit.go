// Package audit keeps a bounded, append-only, in-memory record of
// security-relevant events. Audit failures never propagate to callers:
// observability must not break functionality.
package audit

import (
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultCapacity bounds the number of retained records.
const DefaultCapacity = 1000

// Result classifies the outcome of an audited operation.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFail    Result = "fail"
	ResultDenied  Result = "denied"
)

// Record is one audit entry. Never mutated after being written.
type Record struct {
	ID               string         `json:"id"`
	Timestamp        time.Time      `json:"timestamp"`
	Endpoint         string         `json:"endpoint"`
	Action           string         `json:"action,omitempty"`
	BotUserID        string         `json:"botUserId"`
	Result           Result         `json:"result"`
	RedactionApplied bool           `json:"redactionApplied"`
	Metadata         map[string]any `json:"metadata,omitempty"`
}

// Log is the bounded newest-first record list.
type Log struct {
	mu       sync.Mutex
	records  []Record
	capacity int
}

// NewLog creates a Log retaining at most capacity records; capacity <= 0
// uses DefaultCapacity.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{capacity: capacity}
}

// Write stamps the record with the current time and a sortable id, prepends
// it, and evicts the oldest entries beyond capacity. It never fails.
func (l *Log) Write(r Record) {
	r.Timestamp = time.Now()
	r.ID = ulid.Make().String()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append([]Record{r}, l.records...)
	if len(l.records) > l.capacity {
		l.records = l.records[:l.capacity]
	}
}

// Records returns up to limit records, newest first. limit <= 0 returns
// everything retained. The returned slice is a snapshot: re-querying yields
// the same records until new writes displace them.
func (l *Log) Records(limit int) []Record {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := len(l.records)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]Record, n)
	copy(out, l.records[:n])
	return out
}

// Len returns the number of retained records.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
