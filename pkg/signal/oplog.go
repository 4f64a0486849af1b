package signal

import (
	"fmt"
	"sync"
	"time"
)

// LogEntry is one diagnostic record of a message crossing the broker.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Message string    `json:"message"`
}

// OpLog is the broker's in-memory, unbounded, append-only diagnostic
// log. It has no correctness role; it exists for operational
// inspection via GET /logs.
type OpLog struct {
	mu      sync.Mutex
	entries []LogEntry
}

// NewOpLog creates an empty log.
func NewOpLog() *OpLog {
	return &OpLog{}
}

// Append records a formatted entry with the current timestamp.
func (l *OpLog) Append(format string, args ...any) {
	l.mu.Lock()
	l.entries = append(l.entries, LogEntry{
		Time:    time.Now(),
		Message: fmt.Sprintf(format, args...),
	})
	l.mu.Unlock()
}

// Snapshot returns a copy of all entries in append order.
func (l *OpLog) Snapshot() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *OpLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
