// Package events implements the telemetry event log and the correlation
// waits that tie asynchronous application events to UI actions.
package events

import (
	"sync"
	"time"
)

// Event is one application-emitted telemetry record. Seq is process-unique
// and monotonic per session, assigned at ingestion; delivery order defines
// scan order.
type Event struct {
	Seq       int64     `json:"seq"`
	Timestamp time.Time `json:"timestamp"`
	Name      string    `json:"name"`
	Payload   string    `json:"payload,omitempty"` // JSON envelope, may be empty
}

// Store is the append-only event log plus the consumed-marker side table.
// Events are never mutated in place; concurrent readers get snapshot copies.
// TryConsume is the single synchronization point that decides which waiter
// wins an event.
type Store struct {
	mu       sync.Mutex
	events   []Event
	consumed map[int64]struct{}
	nextSeq  int64
}

// NewStore creates an empty event store.
func NewStore() *Store {
	return &Store{
		consumed: make(map[int64]struct{}),
	}
}

// Append assigns the next sequence number and appends the event.
func (s *Store) Append(name, payload string) Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSeq++
	ev := Event{
		Seq:       s.nextSeq,
		Timestamp: time.Now(),
		Name:      name,
		Payload:   payload,
	}
	s.events = append(s.events, ev)
	return ev
}

// Len returns the current log length. Background waits snapshot this as
// their scan origin.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// Snapshot returns a copy of the whole log.
func (s *Store) Snapshot() []Event {
	return s.SnapshotFrom(0)
}

// SnapshotFrom returns a copy of the log starting at the given index.
func (s *Store) SnapshotFrom(origin int) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if origin < 0 {
		origin = 0
	}
	if origin >= len(s.events) {
		return nil
	}
	out := make([]Event, len(s.events)-origin)
	copy(out, s.events[origin:])
	return out
}

// TryConsume marks the event consumed and reports whether this caller won
// it. An event is consumable at most once across the whole session, not once
// per waiter: two concurrent waits for the same event race here, and exactly
// one wins.
func (s *Store) TryConsume(seq int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.consumed[seq]; taken {
		return false
	}
	s.consumed[seq] = struct{}{}
	return true
}

// IsConsumed reports whether an event has been claimed by any waiter.
func (s *Store) IsConsumed(seq int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, taken := s.consumed[seq]
	return taken
}
