package notify

import (
	"sync"
	"time"
)

// ReadStates remembers which conversations the user just finished
// reading. A server unread snapshot taken before the mark-read write
// landed would otherwise resurrect a notification the user already
// cleared; entries here suppress that for a short horizon.
//
// The cache is deliberately not persisted. It exists only to close a
// race measured in seconds, and a fresh session has no such race.
type ReadStates struct {
	mu      sync.Mutex
	horizon time.Duration
	marked  map[int]time.Time

	now func() time.Time
}

// NewReadStates creates a read-state cache with the given suppression
// horizon.
func NewReadStates(horizon time.Duration) *ReadStates {
	return &ReadStates{
		horizon: horizon,
		marked:  make(map[int]time.Time),
		now:     time.Now,
	}
}

// MarkRead records that the conversation was just read locally.
func (r *ReadStates) MarkRead(conversationID int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marked[conversationID] = r.now()
}

// Suppressed reports whether a server-claimed unread state for the
// conversation should be ignored as stale. The suppression lifts when
// the server's last-message timestamp is newer than the local mark-read
// time, because that means a new message arrived after the user read the
// thread.
func (r *ReadStates) Suppressed(conversationID int, lastMessageAt time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	markedAt, ok := r.marked[conversationID]
	if !ok {
		return false
	}
	if r.now().Sub(markedAt) > r.horizon {
		delete(r.marked, conversationID)
		return false
	}
	return !lastMessageAt.After(markedAt)
}

// Purge drops entries older than the horizon. Called lazily on each
// reconciliation pass.
func (r *ReadStates) Purge() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.horizon)
	for id, markedAt := range r.marked {
		if markedAt.Before(cutoff) {
			delete(r.marked, id)
		}
	}
}

// Reset empties the cache. Called at logout.
func (r *ReadStates) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.marked = make(map[int]time.Time)
}
