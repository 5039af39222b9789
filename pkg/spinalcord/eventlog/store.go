// Package eventlog provides an append-only record of published events,
// quarantine reports, and safe-mode audit entries.
//
// The log is diagnostic: nothing in the core reads it back to rebuild
// state. Stores assign a monotonically increasing sequence to every entry.
package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// Entry kinds written by the core.
const (
	KindEvent      = "event"
	KindQuarantine = "quarantine"
	KindAudit      = "audit"
)

// Entry is one record in the log.
type Entry struct {
	Seq       int64           `json:"seq"`
	Kind      string          `json:"kind"`
	Name      string          `json:"name"`
	Timestamp time.Time       `json:"ts"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewEntry builds an entry, encoding data as JSON.
// Data that cannot be encoded is recorded as a JSON string describing the
// failure so the entry itself is never lost.
func NewEntry(kind, name string, data any) Entry {
	e := Entry{Kind: kind, Name: name, Timestamp: time.Now().UTC()}
	if data == nil {
		return e
	}
	raw, err := json.Marshal(data)
	if err != nil {
		raw, _ = json.Marshal("unencodable payload: " + err.Error())
	}
	e.Data = raw
	return e
}

// Filter narrows List results. Zero values mean no constraint.
type Filter struct {
	Kind     string
	Name     string
	AfterSeq int64
	Limit    int
}

// Appender is the write side of a Store.
type Appender interface {
	// Append stores e and returns it with Seq (and Timestamp, if zero) set.
	Append(ctx context.Context, e Entry) (Entry, error)
}

// Store persists log entries.
// Implementations must be safe for concurrent use.
type Store interface {
	Appender

	// List returns entries matching f in ascending sequence order.
	// Returns an empty slice (not error) when nothing matches.
	List(ctx context.Context, f Filter) ([]Entry, error)

	// Count returns the total number of entries.
	Count(ctx context.Context) (int, error)

	// Close releases any resources.
	Close() error
}

// ErrStoreClosed indicates the store has been closed.
var ErrStoreClosed = errors.New("event log store closed")

func (f Filter) match(e Entry) bool {
	if f.Kind != "" && e.Kind != f.Kind {
		return false
	}
	if f.Name != "" && e.Name != f.Name {
		return false
	}
	return e.Seq > f.AfterSeq
}
