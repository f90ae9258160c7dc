// Package diag records the tool's own structured operational events in a
// bounded ring buffer, with best-effort delivery to a collector endpoint.
package diag

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultCapacity is the ring size used when none is configured.
const DefaultCapacity = 5000

// Entry is one operational event. Entries are read-only once written.
type Entry struct {
	Time     time.Time      `json:"time"`
	Level    string         `json:"level"` // "info", "warn", "error"
	Category string         `json:"category"`
	Message  string         `json:"message"`
	Data     map[string]any `json:"data,omitempty"`
	Stack    string         `json:"stack,omitempty"`
}

// Export is a snapshot payload for the collector: the most recent entries
// plus the error-severity subset, tagged with a session id.
type Export struct {
	Session string    `json:"session"`
	Taken   time.Time `json:"taken"`
	Recent  []Entry   `json:"recent"`
	Errors  []Entry   `json:"errors"`
}

// Ring is a fixed-capacity FIFO of diagnostic entries. Appends are O(1);
// once full, each append silently evicts the oldest entry. Constructed once
// at application start and passed by reference to everything that records
// events, so each test can use a fresh instance.
type Ring struct {
	mu      sync.Mutex
	buf     []Entry
	start   int // index of the oldest entry
	count   int
	session string
	now     func() time.Time
}

// NewRing creates a ring with the given capacity (DefaultCapacity if <= 0).
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Ring{
		buf:     make([]Entry, capacity),
		session: uuid.NewString(),
		now:     time.Now,
	}
}

// Append records an entry. It always succeeds.
func (r *Ring) Append(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e.Time.IsZero() {
		e.Time = r.now()
	}
	if r.count < len(r.buf) {
		r.buf[(r.start+r.count)%len(r.buf)] = e
		r.count++
		return
	}
	// Full: overwrite the oldest slot and advance.
	r.buf[r.start] = e
	r.start = (r.start + 1) % len(r.buf)
}

// Info records an informational event.
func (r *Ring) Info(category, message string, data map[string]any) {
	r.Append(Entry{Level: "info", Category: category, Message: message, Data: data})
}

// Warn records a warning event.
func (r *Ring) Warn(category, message string, data map[string]any) {
	r.Append(Entry{Level: "warn", Category: category, Message: message, Data: data})
}

// Error records an error event.
func (r *Ring) Error(category, message string, data map[string]any) {
	r.Append(Entry{Level: "error", Category: category, Message: message, Data: data})
}

// Len reports the number of retained entries.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// Entries returns the retained entries, oldest first.
func (r *Ring) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entriesLocked()
}

func (r *Ring) entriesLocked() []Entry {
	out := make([]Entry, 0, r.count)
	for i := 0; i < r.count; i++ {
		out = append(out, r.buf[(r.start+i)%len(r.buf)])
	}
	return out
}

// Snapshot builds an export payload: up to recentMax of the newest entries,
// plus up to errorMax of the newest error-severity entries. Zero or negative
// limits mean unbounded.
func (r *Ring) Snapshot(recentMax, errorMax int) Export {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := r.entriesLocked()
	recent := all
	if recentMax > 0 && len(recent) > recentMax {
		recent = recent[len(recent)-recentMax:]
	}

	var errs []Entry
	for _, e := range all {
		if e.Level == "error" {
			errs = append(errs, e)
		}
	}
	if errorMax > 0 && len(errs) > errorMax {
		errs = errs[len(errs)-errorMax:]
	}

	return Export{
		Session: r.session,
		Taken:   r.now(),
		Recent:  recent,
		Errors:  errs,
	}
}
