package sync

import (
	"context"
	"errors"
	gosync "sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookswap/bookswap/internal/model"
	"github.com/bookswap/bookswap/internal/notify"
)

type fakeLister struct {
	mu    gosync.Mutex
	chats []model.Conversation
	err   error
	calls int
}

func (f *fakeLister) ListChats(_ context.Context, _ string) ([]model.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.chats, f.err
}

func (f *fakeLister) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fixture struct {
	lister   *fakeLister
	store    *notify.Store
	reads    *notify.ReadStates
	admitted []model.Notification
	rec      *Reconciler
}

func newFixture(chats []model.Conversation) *fixture {
	f := &fixture{
		lister: &fakeLister{chats: chats},
		store:  notify.NewStore(50, 5*time.Second, nil, zerolog.Nop()),
		reads:  notify.NewReadStates(30 * time.Second),
	}
	f.rec = New(f.lister, f.store, f.reads, "me@example.com", time.Minute,
		func(n model.Notification) { f.admitted = append(f.admitted, n) },
		zerolog.Nop())
	return f
}

func unreadChat(id int, from, content string, at time.Time) model.Conversation {
	return model.Conversation{
		ID:          id,
		UnreadCount: 1,
		LastMessage: model.LastMessage{Content: content, CreatedAt: at},
		OtherUser:   model.User{Email: from, Name: "Alice"},
	}
}

func TestReconcileZeroUnreadIsAuthoritative(t *testing.T) {
	now := time.Now()
	f := newFixture([]model.Conversation{
		{ID: 1, UnreadCount: 0, LastMessage: model.LastMessage{Content: "old", CreatedAt: now}},
	})

	// A locally created record that no later event would ever clear.
	f.store.Insert(model.Notification{
		ID: "stray", ConversationID: 1, Sender: "alice@example.com",
		Preview: "hey", OccurredAt: now, Kind: model.KindMessage,
	})
	require.Equal(t, 1, f.store.UnreadCount())

	require.NoError(t, f.rec.Reconcile(context.Background()))

	assert.Zero(t, f.store.UnreadCount())
	assert.Empty(t, f.admitted)
}

func TestReconcilePopulatesUnreadConversations(t *testing.T) {
	now := time.Now()
	f := newFixture([]model.Conversation{
		unreadChat(1, "alice@example.com", "want to trade?", now),
		{ID: 2, UnreadCount: 0},
	})

	require.NoError(t, f.rec.Reconcile(context.Background()))

	assert.Equal(t, 1, f.store.UnreadCount())
	assert.True(t, f.store.HasUnreadConversation(1))
	assert.False(t, f.store.HasUnreadConversation(2))
	require.Len(t, f.admitted, 1)
	assert.Equal(t, "want to trade?", f.admitted[0].Preview)

	// An identical second pass changes nothing and stays silent.
	require.NoError(t, f.rec.Reconcile(context.Background()))
	assert.Equal(t, 1, f.store.UnreadCount())
	assert.Len(t, f.admitted, 1)
}

func TestReconcileSkipsRecentlyReadConversation(t *testing.T) {
	now := time.Now()
	f := newFixture([]model.Conversation{
		unreadChat(1, "alice@example.com", "hello", now.Add(-time.Minute)),
	})

	// The user just read the thread; the server snapshot predates the
	// mark-read write.
	f.reads.MarkRead(1)

	require.NoError(t, f.rec.Reconcile(context.Background()))

	assert.Zero(t, f.store.UnreadCount())
	assert.Empty(t, f.admitted)
}

func TestReconcileSuppressionLiftsForNewMessage(t *testing.T) {
	f := newFixture(nil)
	f.reads.MarkRead(1)

	// A genuinely new message arrived after the local read.
	f.lister.chats = []model.Conversation{
		unreadChat(1, "alice@example.com", "one more thing", time.Now().Add(time.Second)),
	}

	require.NoError(t, f.rec.Reconcile(context.Background()))

	assert.Equal(t, 1, f.store.UnreadCount())
	require.Len(t, f.admitted, 1)
}

func TestReconcileAbsorbsRealtimeRecord(t *testing.T) {
	now := time.Now()
	f := newFixture([]model.Conversation{
		unreadChat(1, "alice@example.com", "hello there", now),
	})

	// The realtime push already created a record for this message.
	f.store.Insert(model.Notification{
		ID: "srv-42", ConversationID: 1, Sender: "alice@example.com",
		Preview: "hello there", OccurredAt: now, Kind: model.KindMessage,
	})

	require.NoError(t, f.rec.Reconcile(context.Background()))

	// Exactly one unread record, and the pass re-alerted nothing.
	records := f.store.Records()
	require.Len(t, records, 1)
	assert.False(t, records[0].Read)
	assert.Equal(t, 1, f.store.UnreadCount())
	assert.Empty(t, f.admitted)
}

func TestReconcileRevivesClearedConversation(t *testing.T) {
	now := time.Now()
	f := newFixture([]model.Conversation{
		unreadChat(1, "alice@example.com", "hello", now),
	})

	require.NoError(t, f.rec.Reconcile(context.Background()))
	require.Equal(t, 1, f.store.UnreadCount())

	// Marked read locally, but without a read-state stamp (e.g. the
	// horizon expired) the server's unread claim wins again.
	f.store.MarkAllRead()
	require.NoError(t, f.rec.Reconcile(context.Background()))

	assert.Equal(t, 1, f.store.UnreadCount())
	// Revivals never re-alert.
	assert.Len(t, f.admitted, 1)
}

func TestReconcileFetchFailureLeavesStateUntouched(t *testing.T) {
	now := time.Now()
	f := newFixture(nil)
	f.store.Insert(model.Notification{
		ID: "m1", ConversationID: 1, Sender: "alice@example.com",
		Preview: "hey", OccurredAt: now, Kind: model.KindMessage,
	})
	f.lister.err = errors.New("connection refused")

	err := f.rec.Reconcile(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, f.store.UnreadCount())
}

func TestTriggerNowCoalesces(t *testing.T) {
	f := newFixture(nil)

	// Not started; triggers must never block even with no consumer.
	for i := 0; i < 5; i++ {
		f.rec.TriggerNow()
	}
}

func TestStartStop(t *testing.T) {
	f := newFixture([]model.Conversation{
		unreadChat(1, "alice@example.com", "hello", time.Now()),
	})

	f.rec.Start()
	f.rec.TriggerNow()

	require.Eventually(t, func() bool {
		return f.lister.callCount() > 0
	}, 2*time.Second, 10*time.Millisecond)

	f.rec.Stop()
	f.rec.Stop() // idempotent
}
