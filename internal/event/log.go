package event

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Observer is invoked synchronously after every append.
type Observer func(Entry)

// Log is the append-only, time-ordered history of every pushed context.
// It is the only variable store the engine interpolates from.
//
// A limit > 0 turns the log into a ring buffer that evicts oldest-first;
// variables pushed before the evicted window can no longer be resolved.
type Log struct {
	mu        sync.RWMutex
	entries   []Entry
	start     int // index of the oldest entry when bounded
	limit     int
	observers []Observer
	now       func() time.Time
}

// NewLog creates a log. limit <= 0 means unbounded.
func NewLog(limit int) *Log {
	if limit < 0 {
		limit = 0
	}
	return &Log{limit: limit, now: time.Now}
}

// Observe registers fn to be called after every Append.
func (l *Log) Observe(fn Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, fn)
}

// Append records a snapshot of ctx and notifies observers.
func (l *Log) Append(ctx Context) Entry {
	e := Entry{
		ID:   uuid.New().String(),
		At:   l.now(),
		Data: ctx.Clone(),
	}

	l.mu.Lock()
	if l.limit > 0 && len(l.entries) == l.limit {
		l.entries[l.start] = e
		l.start = (l.start + 1) % l.limit
	} else {
		l.entries = append(l.entries, e)
	}
	observers := make([]Observer, len(l.observers))
	copy(observers, l.observers)
	l.mu.Unlock()

	for _, fn := range observers {
		fn(e)
	}
	return e
}

// Resolve scans from the newest entry backward and returns the first value
// recorded under name. Nil values are treated as absent.
func (l *Log) Resolve(name string) (interface{}, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := len(l.entries)
	for i := n - 1; i >= 0; i-- {
		e := l.entries[(l.start+i)%n]
		if v, ok := e.Data[name]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Entries returns the retained entries, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := len(l.entries)
	out := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, l.entries[(l.start+i)%n])
	}
	return out
}
