// Package session assembles the synchronization engine for one
// authenticated identity. The Service is constructed at login, injected
// into the UI, and torn down at logout; nothing in it survives into a
// different identity's session.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bookswap/bookswap/internal/alert"
	"github.com/bookswap/bookswap/internal/api"
	"github.com/bookswap/bookswap/internal/chat"
	"github.com/bookswap/bookswap/internal/credential"
	"github.com/bookswap/bookswap/internal/model"
	"github.com/bookswap/bookswap/internal/notify"
	"github.com/bookswap/bookswap/internal/realtime"
	"github.com/bookswap/bookswap/internal/store"
	appsync "github.com/bookswap/bookswap/internal/sync"
)

// markReadReconcileDelay gives the server time to persist a read-state
// write before the follow-up reconciliation pass reads it back.
const markReadReconcileDelay = time.Second

// Credentials identify the signed-in user.
type Credentials struct {
	Email string
	Name  string
	Token string
}

// Options carries the session's collaborators. Focus is required;
// Notifier, OnToast, OnChange and OnConnState may be nil for headless
// use.
type Options struct {
	Config      *model.AppConfig
	Credentials Credentials
	Cache       *store.Cache
	Focus       alert.Focus
	Notifier    alert.Notifier
	OnToast     func(alert.Toast)
	OnChange    func()
	OnConnState func(realtime.State)
	Logger      zerolog.Logger
}

// Service owns the per-session synchronization engine: the notification
// store and its warm-start cache, the read-state cache, the
// reconciler, the realtime channel, the side-effect dispatcher, and
// the open conversation threads.
type Service struct {
	cfg   *model.AppConfig
	creds Credentials
	log   zerolog.Logger

	client     *api.Client
	cache      *store.Cache
	store      *notify.Store
	reads      *notify.ReadStates
	dispatcher *alert.Dispatcher
	reconciler *appsync.Reconciler
	manager    *realtime.Manager

	onChange    func()
	onConnState func(realtime.State)

	mu      sync.Mutex
	threads map[int]*chat.Thread
}

// New builds a session service for the given identity. The cache is
// reset if it belongs to a different account, so one identity's
// notifications can never leak into another's view.
func New(opts Options) (*Service, error) {
	cfg := opts.Config
	log := opts.Logger.With().Str("component", "session").Logger()

	s := &Service{
		cfg:         cfg,
		creds:       opts.Credentials,
		log:         log,
		cache:       opts.Cache,
		onChange:    opts.OnChange,
		onConnState: opts.OnConnState,
		threads:     make(map[int]*chat.Thread),
	}

	s.client = api.NewClient(cfg.Server.BaseURL, opts.Credentials.Token)

	var persister notify.Persister
	if opts.Cache != nil {
		persister = opts.Cache
	}
	s.store = notify.NewStore(
		cfg.Sync.NotificationCap,
		cfg.Sync.DedupWindow(),
		persister,
		opts.Logger,
	)
	s.reads = notify.NewReadStates(cfg.Sync.ReadStateHorizon())

	if err := s.warmStart(); err != nil {
		s.log.Warn().Err(err).Msg("warm start unavailable; starting cold")
	}

	notifier := opts.Notifier
	if notifier == nil {
		notifier = alert.DesktopNotifier{AppName: "bookswap"}
	}
	s.dispatcher = alert.NewDispatcher(
		opts.Focus,
		notifier,
		cfg.Alert.OSAlertWindow(),
		cfg.Alert.ToastLifetime(),
		opts.OnToast,
		opts.Logger,
	)
	// Desktop notifications need no runtime permission prompt; the
	// config toggle stands in for the grant/deny decision and holds
	// for the whole session.
	if cfg.Alert.OSAlertsEnabled {
		s.dispatcher.SetPermission(alert.PermissionGranted)
	} else {
		s.dispatcher.SetPermission(alert.PermissionDenied)
	}

	s.reconciler = appsync.New(
		s.client,
		s.store,
		s.reads,
		opts.Credentials.Email,
		cfg.Sync.ReconcileInterval(),
		s.admit,
		opts.Logger,
	)

	socketURL := cfg.Server.SocketURL
	if socketURL == "" {
		socketURL = cfg.Server.BaseURL
	}
	manager, err := realtime.NewManager(
		realtime.Config{
			URL:       socketURL,
			Token:     opts.Credentials.Token,
			UserEmail: opts.Credentials.Email,
		},
		realtime.Hooks{
			OnEvent: s.handleEvent,
			OnState: s.handleConnState,
			OnConnected: func() {
				s.reconciler.TriggerNow()
			},
		},
		opts.Logger,
	)
	if err != nil {
		return nil, err
	}
	s.manager = manager

	return s, nil
}

// warmStart seeds the store from the persisted snapshot when it belongs
// to this account.
func (s *Service) warmStart() error {
	if s.cache == nil {
		return nil
	}

	account, err := s.cache.Account()
	if err != nil {
		return err
	}
	if account != s.creds.Email {
		if err := s.cache.Reset(context.Background()); err != nil {
			return err
		}
		return s.cache.SetAccount(s.creds.Email)
	}

	snapshot, err := s.cache.LoadSnapshot()
	if err != nil {
		return err
	}
	s.store.Load(snapshot)
	return nil
}

// Start launches the background machinery: the reconciler loop, an
// immediate first pass, and the realtime connection.
func (s *Service) Start() {
	s.reconciler.Start()
	s.reconciler.TriggerNow()

	go func() {
		if err := s.manager.Connect(); err != nil {
			// Non-fatal; the manager keeps retrying and the
			// reconciler covers delivery meanwhile.
			s.log.Debug().Err(err).Msg("initial socket connect failed")
		}
	}()
}

// Close shuts the background machinery down without discarding the
// identity: the token and cache survive for the next launch.
func (s *Service) Close() {
	s.manager.Close()
	s.reconciler.Stop()
}

// Logout tears the session down: the socket close is mandatory so a
// stale connection cannot leak events into the next identity; local
// state is cleared for the same reason.
func (s *Service) Logout(ctx context.Context) {
	s.manager.Close()
	s.reconciler.Stop()
	s.store.Clear()
	s.reads.Reset()

	if s.cache != nil {
		if err := s.cache.Reset(ctx); err != nil {
			s.log.Warn().Err(err).Msg("resetting cache at logout")
		}
	}
	if err := credential.Delete(credential.TokenKey); err != nil {
		s.log.Debug().Err(err).Msg("removing stored session token")
	}
}

// handleEvent is the realtime delivery path: read-state suppression,
// then the dedup/store pipeline, then side effects for anything that
// actually changed the view.
func (s *Service) handleEvent(ev realtime.Event) {
	if ev.Kind == model.KindMessage {
		s.deliverToThread(ev)

		// Late push for a conversation the user just finished reading;
		// resolved by policy, not an error.
		if s.reads.Suppressed(ev.ChatID, ev.OccurredAt) {
			return
		}
	}

	id := ev.MessageID
	if id == "" {
		id = uuid.New().String()
	}

	result := s.store.Insert(model.Notification{
		ID:             id,
		ConversationID: ev.ChatID,
		Sender:         ev.Sender,
		SenderName:     ev.SenderName,
		Preview:        ev.Body,
		OccurredAt:     ev.OccurredAt,
		Kind:           ev.Kind,
		OfferID:        ev.OfferID,
	})

	switch result.Outcome {
	case notify.OutcomeInserted, notify.OutcomeMerged:
		s.dispatcher.Dispatch(result.Record)
		s.notifyChange()
	}
}

// deliverToThread appends an inbound message to its open thread, if any.
func (s *Service) deliverToThread(ev realtime.Event) {
	s.mu.Lock()
	thread := s.threads[ev.ChatID]
	s.mu.Unlock()
	if thread == nil {
		return
	}

	thread.Receive(model.Message{
		ID:        ev.MessageID,
		ChatID:    ev.ChatID,
		Sender:    ev.Sender,
		Receiver:  s.creds.Email,
		Content:   ev.Body,
		CreatedAt: ev.OccurredAt,
	})
	s.notifyChange()
}

// admit receives records the reconciler genuinely created.
func (s *Service) admit(record model.Notification) {
	s.dispatcher.Dispatch(record)
	s.notifyChange()
}

func (s *Service) handleConnState(state realtime.State) {
	if s.onConnState != nil {
		s.onConnState(state)
	}
}

func (s *Service) notifyChange() {
	if s.onChange != nil {
		s.onChange()
	}
}

// Notifications returns the current notification list, newest first.
func (s *Service) Notifications() []model.Notification {
	return s.store.Records()
}

// UnreadCount returns the derived unread badge count.
func (s *Service) UnreadCount() int {
	return s.store.UnreadCount()
}

// ConnectionState reports the realtime channel's state for the passive
// connectivity indicator.
func (s *Service) ConnectionState() realtime.State {
	return s.manager.State()
}

// Chats fetches the conversation list for the inbox screen.
func (s *Service) Chats(ctx context.Context) ([]model.Conversation, error) {
	return s.client.ListChats(ctx, s.creds.Email)
}

// MarkConversationRead clears a conversation locally and server-side.
// The local mark is immediate; the read-state stamp suppresses stale
// server snapshots; the delayed pass re-syncs once the server has
// caught up.
func (s *Service) MarkConversationRead(ctx context.Context, chatID int) {
	s.store.MarkConversationRead(chatID)
	s.reads.MarkRead(chatID)
	s.notifyChange()

	if err := s.client.MarkRead(ctx, chatID); err != nil {
		s.log.Warn().Err(err).Int("chat_id", chatID).Msg("server mark-read failed")
	}
	s.reconciler.TriggerAfter(markReadReconcileDelay)
}

// MarkNotificationRead marks a single notification read.
func (s *Service) MarkNotificationRead(id string) {
	s.store.MarkRead(id)
	s.notifyChange()
}

// ClearNotifications empties the notification list.
func (s *Service) ClearNotifications() {
	s.store.Clear()
	s.notifyChange()
}

// Thread returns the thread for a conversation, creating it and joining
// its realtime scope on first use.
func (s *Service) Thread(conv model.Conversation) *chat.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.threads[conv.ID]; ok {
		return t
	}
	t := chat.NewThread(conv.ID, s.creds.Email, conv.OtherUser, s.client, s.log)
	s.threads[conv.ID] = t
	s.manager.JoinChat(conv.ID)
	return t
}

// LoadHistory fetches a thread's message history from the server.
func (s *Service) LoadHistory(ctx context.Context, t *chat.Thread) error {
	history, err := s.client.ListMessages(ctx, t.ChatID())
	if err != nil {
		return err
	}
	t.SetHistory(history)
	s.notifyChange()
	return nil
}
