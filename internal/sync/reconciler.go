// Package sync implements the reconciliation engine: the periodic
// correction pass that folds the server's authoritative per-conversation
// unread counts into the local notification store. Realtime pushes make
// the client fast; this pass is what makes it right.
package sync

import (
	"context"
	gosync "sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bookswap/bookswap/internal/model"
	"github.com/bookswap/bookswap/internal/notify"
)

// ChatLister fetches the authoritative conversation summaries.
type ChatLister interface {
	ListChats(ctx context.Context, email string) ([]model.Conversation, error)
}

// fetchTimeout is the maximum time allowed for a single snapshot fetch.
const fetchTimeout = 15 * time.Second

// Reconciler runs reconciliation passes on a fixed interval and on
// demand: immediately after the realtime channel reports connected, and
// shortly after a local mark-read (delayed so the server's read-state
// write has time to land).
type Reconciler struct {
	client   ChatLister
	store    *notify.Store
	reads    *notify.ReadStates
	email    string
	interval time.Duration
	log      zerolog.Logger

	// onAdmit receives records the pass genuinely created, for
	// side-effect dispatch. Baseline resets and revivals stay silent.
	onAdmit func(model.Notification)

	triggerCh chan struct{}
	stopCh    chan struct{}
	mu        gosync.Mutex
	running   bool
}

// New creates a reconciler. onAdmit may be nil.
func New(
	client ChatLister,
	store *notify.Store,
	reads *notify.ReadStates,
	email string,
	interval time.Duration,
	onAdmit func(model.Notification),
	log zerolog.Logger,
) *Reconciler {
	if interval <= 0 {
		interval = 20 * time.Second
	}
	return &Reconciler{
		client:    client,
		store:     store,
		reads:     reads,
		email:     email,
		interval:  interval,
		log:       log.With().Str("component", "reconciler").Logger(),
		onAdmit:   onAdmit,
		triggerCh: make(chan struct{}, 1),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the background loop. Safe to call once per session.
func (r *Reconciler) Start() {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return
	}
	r.running = true
	r.mu.Unlock()

	go r.loop()
}

// Stop halts the background loop. Any in-flight pass is allowed to
// complete and apply its result; a late unread count is never wrong,
// only late.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	close(r.stopCh)
	r.running = false
}

// TriggerNow requests an immediate pass without blocking.
func (r *Reconciler) TriggerNow() {
	select {
	case r.triggerCh <- struct{}{}:
	default:
		// A pass is already pending.
	}
}

// TriggerAfter requests a pass after the given delay. Used after a
// mark-read action so the server snapshot reflects the write.
func (r *Reconciler) TriggerAfter(d time.Duration) {
	go func() {
		timer := time.NewTimer(d)
		defer timer.Stop()

		select {
		case <-r.stopCh:
		case <-timer.C:
			r.TriggerNow()
		}
	}()
}

func (r *Reconciler) loop() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.runOnce()
		case <-r.triggerCh:
			r.runOnce()
		}
	}
}

func (r *Reconciler) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), fetchTimeout)
	defer cancel()

	if err := r.Reconcile(ctx); err != nil {
		// Fail-safe: local state is left untouched on a failed fetch;
		// the next tick retries.
		r.log.Warn().Err(err).Msg("reconciliation pass failed")
	}
}

// Reconcile executes one pass against a fresh server snapshot.
//
// The shape is baseline-reset-then-repopulate: everything local is
// marked read, then each conversation the server still reports unread
// is restored. The local view can therefore never show a stale extra
// unread; at worst it lags the server by one interval.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	chats, err := r.client.ListChats(ctx, r.email)
	if err != nil {
		return err
	}

	r.reads.Purge()

	total := 0
	for _, chat := range chats {
		total += chat.UnreadCount
	}

	// The global-zero snapshot is the single source of truth: it clears
	// any locally created record that no later event would ever clear.
	if total == 0 {
		r.store.MarkAllRead()
		return nil
	}

	r.store.MarkAllRead()

	for _, chat := range chats {
		if chat.UnreadCount == 0 {
			continue
		}
		// The user just read this thread locally; the server snapshot
		// is stale unless a newer message arrived since.
		if r.reads.Suppressed(chat.ID, chat.LastMessage.CreatedAt) {
			continue
		}

		candidate := model.Notification{
			ID:             model.SummaryID(chat.ID, chat.LastMessage.CreatedAt),
			ConversationID: chat.ID,
			Sender:         chat.OtherUser.Email,
			SenderName:     chat.OtherUser.Name,
			Preview:        chat.LastMessage.Content,
			OccurredAt:     chat.LastMessage.CreatedAt,
			Kind:           model.KindMessage,
		}

		result := r.store.EnsureUnread(candidate)
		if result.Outcome == notify.OutcomeInserted && r.onAdmit != nil {
			r.onAdmit(result.Record)
		}
	}

	return nil
}
