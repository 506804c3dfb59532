// Package notify holds the client-side notification state: the local
// notification store, the duplicate-delivery guard, and the read-state
// cache that papers over the race between local read actions and the
// server's unread counters.
//
// Three callers mutate the store in wall-clock time: the realtime event
// pipeline, the reconciler's timer pass, and mark-read actions from the
// UI. All of them funnel through the store's mutex, so interleavings
// only have to be logically idempotent, which the insert and mark-read
// semantics guarantee.
package notify

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bookswap/bookswap/internal/model"
)

// Persister receives the truncated notification snapshot after every
// successful mutation so a cold start can render immediately.
type Persister interface {
	SaveSnapshot(records []model.Notification) error
}

// Outcome describes what an insert did.
type Outcome int

const (
	// OutcomeDuplicate means the candidate was already represented,
	// either by identity or by the dedup window, and nothing changed.
	OutcomeDuplicate Outcome = iota

	// OutcomeInserted means a new record was prepended.
	OutcomeInserted

	// OutcomeMerged means an existing unread record for the same
	// conversation absorbed the candidate's preview and timestamp.
	OutcomeMerged

	// OutcomeRevived means a record that had been marked read was set
	// unread again because the server still reports the conversation
	// unread. Revivals never re-alert.
	OutcomeRevived
)

// InsertResult reports the outcome of an insert and the record that now
// represents the candidate in the store.
type InsertResult struct {
	Outcome Outcome
	Record  model.Notification
}

// Store is the ordered local notification collection, newest first,
// capped at a fixed size. The unread count is always derived from the
// records, never stored, so it cannot drift.
type Store struct {
	mu        sync.Mutex
	records   []model.Notification
	cap       int
	guard     Guard
	persister Persister
	log       zerolog.Logger
}

// NewStore creates a notification store capped at cap records. The
// persister may be nil, in which case snapshots are not written.
func NewStore(cap int, dedupWindow time.Duration, persister Persister, log zerolog.Logger) *Store {
	if cap <= 0 {
		cap = 50
	}
	return &Store{
		cap:       cap,
		guard:     Guard{Window: dedupWindow},
		persister: persister,
		log:       log.With().Str("component", "notify").Logger(),
	}
}

// Load seeds the store from a persisted snapshot. It is called once at
// startup, before any network activity, so warm-start rendering does not
// wait on the first reconciliation pass.
func (s *Store) Load(records []model.Notification) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(records) > s.cap {
		records = records[:s.cap]
	}
	s.records = append([]model.Notification(nil), records...)
}

// Insert admits a candidate notification. Candidates that duplicate an
// existing record (by id, or by the guard's content proximity rule) are
// rejected. A message candidate for a conversation that already has an
// unread message record merges into it instead of inserting a second
// unread entry for the same thread.
func (s *Store) Insert(candidate model.Notification) InsertResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.ID == candidate.ID {
			return InsertResult{Outcome: OutcomeDuplicate, Record: r}
		}
	}

	if s.guard.Duplicate(s.records, candidate) {
		return InsertResult{Outcome: OutcomeDuplicate, Record: candidate}
	}

	if candidate.Kind == model.KindMessage {
		for i, r := range s.records {
			if r.ConversationID == candidate.ConversationID && r.Kind == model.KindMessage && !r.Read {
				s.records[i].Preview = candidate.Preview
				s.records[i].OccurredAt = candidate.OccurredAt
				s.persist()
				return InsertResult{Outcome: OutcomeMerged, Record: s.records[i]}
			}
		}
	}

	s.records = append([]model.Notification{candidate}, s.records...)
	if len(s.records) > s.cap {
		s.records = s.records[:s.cap]
	}
	s.persist()
	return InsertResult{Outcome: OutcomeInserted, Record: candidate}
}

// EnsureUnread is the reconciler's insert path: it guarantees the store
// holds exactly one unread message record for a conversation the server
// reports unread. Unlike Insert, it may flip an existing read record
// back to unread: the baseline reset marks everything read first, and
// conversations still unread server-side are restored here. The stable
// derived id makes the round trip a no-op when nothing changed.
func (s *Store) EnsureUnread(candidate model.Notification) InsertResult {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.records {
		if r.ID == candidate.ID {
			if r.Read {
				s.records[i].Read = false
				s.records[i].Preview = candidate.Preview
				s.records[i].OccurredAt = candidate.OccurredAt
				s.persist()
				return InsertResult{Outcome: OutcomeRevived, Record: s.records[i]}
			}
			return InsertResult{Outcome: OutcomeDuplicate, Record: r}
		}
	}

	// A record for the conversation under a different id (for example
	// one created from a realtime push) absorbs the summary instead of
	// coexisting with it. It adopts the derived id so the next pass
	// with the same snapshot short-circuits on identity.
	for i, r := range s.records {
		if r.ConversationID == candidate.ConversationID && r.Kind == model.KindMessage {
			wasUnread := !r.Read
			s.records[i].ID = candidate.ID
			s.records[i].Preview = candidate.Preview
			s.records[i].OccurredAt = candidate.OccurredAt
			s.records[i].Read = false
			s.persist()
			if wasUnread {
				return InsertResult{Outcome: OutcomeMerged, Record: s.records[i]}
			}
			return InsertResult{Outcome: OutcomeRevived, Record: s.records[i]}
		}
	}

	s.records = append([]model.Notification{candidate}, s.records...)
	if len(s.records) > s.cap {
		s.records = s.records[:s.cap]
	}
	s.persist()
	return InsertResult{Outcome: OutcomeInserted, Record: candidate}
}

// MarkRead sets a single record read. Idempotent.
func (s *Store) MarkRead(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.records {
		if r.ID == id {
			if !r.Read {
				s.records[i].Read = true
				s.persist()
			}
			return
		}
	}
}

// MarkConversationRead sets every record belonging to a conversation read.
func (s *Store) MarkConversationRead(conversationID int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for i, r := range s.records {
		if r.ConversationID == conversationID && !r.Read {
			s.records[i].Read = true
			changed = true
		}
	}
	if changed {
		s.persist()
	}
}

// MarkAllRead sets every record read. The reconciler uses this both for
// the authoritative zero-unread signal and as the baseline reset before
// repopulating from a server snapshot.
func (s *Store) MarkAllRead() {
	s.mu.Lock()
	defer s.mu.Unlock()

	changed := false
	for i := range s.records {
		if !s.records[i].Read {
			s.records[i].Read = true
			changed = true
		}
	}
	if changed {
		s.persist()
	}
}

// HasUnreadConversation reports whether an unread message record exists
// for the given conversation.
func (s *Store) HasUnreadConversation(conversationID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.ConversationID == conversationID && r.Kind == model.KindMessage && !r.Read {
			return true
		}
	}
	return false
}

// Clear empties the collection.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.records) == 0 {
		return
	}
	s.records = nil
	s.persist()
}

// UnreadCount returns the number of unread records.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, r := range s.records {
		if !r.Read {
			count++
		}
	}
	return count
}

// Records returns a copy of the collection, newest first.
func (s *Store) Records() []model.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]model.Notification(nil), s.records...)
}

// persist writes the snapshot through to the local cache. Must be called
// with the mutex held. A persistence failure never fails the mutation;
// the in-memory state stays authoritative for the session.
func (s *Store) persist() {
	if s.persister == nil {
		return
	}
	snapshot := append([]model.Notification(nil), s.records...)
	if err := s.persister.SaveSnapshot(snapshot); err != nil {
		s.log.Warn().Err(err).Msg("persisting notification snapshot")
	}
}
