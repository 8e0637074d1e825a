package logring

import (
	"sync"
	"time"
)

// DefaultCapacity is the number of entries retained per session.
const DefaultCapacity = 100

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Entry is one recorded session event. Entries are never mutated after append.
type Entry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Severity  Severity  `json:"severity"`
}

// Ring is a fixed-capacity FIFO event history. When full, appending evicts
// the single oldest entry. Safe for concurrent use.
type Ring struct {
	mu      sync.Mutex
	entries []Entry
	start   int
	count   int
	now     func() time.Time
}

func New(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{
		entries: make([]Entry, capacity),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Append records an entry, evicting the oldest one when the ring is full.
func (r *Ring) Append(message string, severity Severity) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := (r.start + r.count) % len(r.entries)
	r.entries[idx] = Entry{Timestamp: r.now(), Message: message, Severity: severity}
	if r.count < len(r.entries) {
		r.count++
		return
	}
	r.start = (r.start + 1) % len(r.entries)
}

// Entries returns a copy of the current history, oldest first.
func (r *Ring) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Entry, r.count)
	for i := 0; i < r.count; i++ {
		out[i] = r.entries[(r.start+i)%len(r.entries)]
	}
	return out
}

// Len returns the number of retained entries.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}
