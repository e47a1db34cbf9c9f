package router

import (
	"context"
	"sync"
	"time"
)

// LogEntry records one agent-to-patient relay call.
type LogEntry struct {
	AgentNumber   string
	PatientNumber string
	CallSID       string
	// DurationSecs is the connected duration, zero until the dial completes.
	DurationSecs int
	CreatedAt    time.Time
}

// CallSink is an append-only destination for relay call log entries. The
// router only ever writes; nothing on the voice path reads entries back.
type CallSink interface {
	Record(ctx context.Context, entry LogEntry) error
}

// MemorySink keeps entries in memory. It backs tests and deployments that
// run without a database.
type MemorySink struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Record appends an entry.
func (m *MemorySink) Record(_ context.Context, entry LogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

// Entries returns a copy of the recorded entries.
func (m *MemorySink) Entries() []LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LogEntry, len(m.entries))
	copy(out, m.entries)
	return out
}
