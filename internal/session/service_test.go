package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookswap/bookswap/internal/alert"
	"github.com/bookswap/bookswap/internal/model"
	"github.com/bookswap/bookswap/internal/realtime"
	"github.com/bookswap/bookswap/tests/testutil"
)

type staticFocus struct {
	focused   bool
	viewing   int
	viewingOK bool
}

func (f *staticFocus) Focused() bool        { return f.focused }
func (f *staticFocus) Viewing() (int, bool) { return f.viewing, f.viewingOK }

type countingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *countingNotifier) Notify(_, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return nil
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func testConfig(baseURL string) *model.AppConfig {
	return &model.AppConfig{
		Server: model.ServerConfig{BaseURL: baseURL},
		Sync: model.SyncConfig{
			ReconcileIntervalSec: 20,
			DedupWindowSec:       5,
			ReadStateHorizonSec:  30,
			NotificationCap:      50,
		},
		Alert: model.AlertConfig{
			OSAlertWindowSec: 5,
			ToastLifetimeSec: 6,
			OSAlertsEnabled:  true,
		},
	}
}

// newBackend serves the minimal chat API surface the session touches.
func newBackend(t *testing.T, markReads *[]int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/chats":
			json.NewEncoder(w).Encode([]model.Conversation{})
		case "/mark-read":
			var body map[string]int
			json.NewDecoder(r.Body).Decode(&body)
			if markReads != nil {
				*markReads = append(*markReads, body["chatId"])
			}
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func newTestService(t *testing.T, opts Options) *Service {
	t.Helper()
	if opts.Config == nil {
		srv := newBackend(t, nil)
		t.Cleanup(srv.Close)
		opts.Config = testConfig(srv.URL)
	}
	if opts.Focus == nil {
		opts.Focus = &staticFocus{focused: true}
	}
	if opts.Notifier == nil {
		opts.Notifier = &countingNotifier{}
	}
	opts.Credentials = Credentials{Email: "me@example.com", Name: "Me", Token: "tok"}
	opts.Logger = zerolog.Nop()

	s, err := New(opts)
	require.NoError(t, err)
	return s
}

func messageEvent(id string, chatID int, body string, at time.Time) realtime.Event {
	return realtime.Event{
		MessageID:  id,
		ChatID:     chatID,
		Sender:     "alice@example.com",
		SenderName: "Alice",
		Body:       body,
		OccurredAt: at,
		Kind:       model.KindMessage,
	}
}

func TestRealtimeEventFlowsIntoStoreAndDispatch(t *testing.T) {
	var toasts []alert.Toast
	s := newTestService(t, Options{
		OnToast: func(tt alert.Toast) { toasts = append(toasts, tt) },
	})

	s.handleEvent(messageEvent("m1", 7, "want to trade?", time.Now()))

	assert.Equal(t, 1, s.UnreadCount())
	require.Len(t, toasts, 1)
	assert.Equal(t, "want to trade?", toasts[0].Record.Preview)

	// Same event re-delivered after a reconnect changes nothing.
	s.handleEvent(messageEvent("m1", 7, "want to trade?", time.Now()))
	assert.Equal(t, 1, s.UnreadCount())
	assert.Len(t, toasts, 1)
}

func TestRealtimeEventMergesPerConversation(t *testing.T) {
	var toasts []alert.Toast
	s := newTestService(t, Options{
		OnToast: func(tt alert.Toast) { toasts = append(toasts, tt) },
	})
	now := time.Now()

	s.handleEvent(messageEvent("m1", 7, "first", now))
	s.handleEvent(messageEvent("m2", 7, "second second", now.Add(time.Minute)))

	// One record, updated in place; the merge still re-toasts.
	records := s.Notifications()
	require.Len(t, records, 1)
	assert.Equal(t, "second second", records[0].Preview)
	assert.Len(t, toasts, 2)
}

func TestLateEventAfterLocalReadIsSuppressed(t *testing.T) {
	var marked []int
	srv := newBackend(t, &marked)
	t.Cleanup(srv.Close)

	s := newTestService(t, Options{Config: testConfig(srv.URL)})
	now := time.Now()

	s.handleEvent(messageEvent("m1", 7, "hello", now.Add(-time.Minute)))
	require.Equal(t, 1, s.UnreadCount())

	s.MarkConversationRead(context.Background(), 7)
	assert.Zero(t, s.UnreadCount())
	assert.Equal(t, []int{7}, marked)

	// A late push describing a message from before the read: dropped.
	s.handleEvent(messageEvent("m1-dup", 7, "hello", now.Add(-time.Minute)))
	assert.Zero(t, s.UnreadCount())

	// A genuinely new message is not suppressed.
	s.handleEvent(messageEvent("m2", 7, "one more", now.Add(time.Minute)))
	assert.Equal(t, 1, s.UnreadCount())
}

func TestOSNotificationWhenUnfocused(t *testing.T) {
	notifier := &countingNotifier{}
	s := newTestService(t, Options{
		Focus:    &staticFocus{focused: false},
		Notifier: notifier,
	})

	s.handleEvent(messageEvent("m1", 7, "hello", time.Now()))
	assert.Equal(t, 1, notifier.count())
}

func TestWarmStartFromMatchingAccount(t *testing.T) {
	cache := testutil.NewTestCache(t)
	require.NoError(t, cache.SetAccount("me@example.com"))
	require.NoError(t, cache.SaveSnapshot([]model.Notification{
		{ID: "m1", ConversationID: 7, Preview: "hello", Kind: model.KindMessage},
	}))

	s := newTestService(t, Options{Cache: cache})

	assert.Equal(t, 1, s.UnreadCount())
}

func TestWarmStartResetsForeignAccount(t *testing.T) {
	cache := testutil.NewTestCache(t)
	require.NoError(t, cache.SetAccount("someone-else@example.com"))
	require.NoError(t, cache.SaveSnapshot([]model.Notification{
		{ID: "m1", ConversationID: 7, Preview: "their secret", Kind: model.KindMessage},
	}))

	s := newTestService(t, Options{Cache: cache})

	// The other identity's notifications never surface.
	assert.Zero(t, s.UnreadCount())
	assert.Empty(t, s.Notifications())

	account, err := cache.Account()
	require.NoError(t, err)
	assert.Equal(t, "me@example.com", account)
}

func TestEventsPersistThroughCache(t *testing.T) {
	cache := testutil.NewTestCache(t)
	s := newTestService(t, Options{Cache: cache})

	s.handleEvent(messageEvent("m1", 7, "hello", time.Now()))

	snapshot, err := cache.LoadSnapshot()
	require.NoError(t, err)
	require.Len(t, snapshot, 1)
	assert.Equal(t, "m1", snapshot[0].ID)
}
