package app

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/bookswap/bookswap/internal/alert"
	"github.com/bookswap/bookswap/internal/api"
	"github.com/bookswap/bookswap/internal/credential"
	"github.com/bookswap/bookswap/internal/keys"
	"github.com/bookswap/bookswap/internal/model"
	"github.com/bookswap/bookswap/internal/realtime"
	"github.com/bookswap/bookswap/internal/session"
	"github.com/bookswap/bookswap/internal/store"
	"github.com/bookswap/bookswap/internal/ui"
	helpview "github.com/bookswap/bookswap/internal/ui/help"
	"github.com/bookswap/bookswap/internal/ui/inbox"
	loginview "github.com/bookswap/bookswap/internal/ui/login"
	"github.com/bookswap/bookswap/internal/ui/notifcenter"
	"github.com/bookswap/bookswap/internal/ui/pinform"
	threadview "github.com/bookswap/bookswap/internal/ui/thread"
)

const loginTimeout = 20 * time.Second

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewInbox
	ViewThread
	ViewNotifications
	ViewPinForm
	ViewHelp
)

// engineEventMsg signals that the notification store changed.
type engineEventMsg struct{}

// toastMsg carries a toast raised by the side-effect dispatcher.
type toastMsg alert.Toast

// toastExpiredMsg retires a toast after its lifetime.
type toastExpiredMsg struct {
	seq int
}

// connStateMsg carries a realtime connection state change.
type connStateMsg realtime.State

// loginResultMsg carries the outcome of a sign-in attempt.
type loginResultMsg struct {
	resp api.LoginResponse
	err  error
}

// Model is the root Bubble Tea model that manages view routing, layout,
// and the per-session synchronization engine.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	cfg          *model.AppConfig
	cache        *store.Cache
	log          zerolog.Logger
	keys         *keys.KeyMap

	session *session.Service
	focus   *focusState
	events  chan tea.Msg

	loginView  loginview.Model
	inboxView  inbox.Model
	threadView threadview.Model
	hasThread  bool
	notifView  notifcenter.Model
	helpView   helpview.Model
	pinView    pinform.Model

	toast     *alert.Toast
	toastSeq  int
	connState realtime.State
	ready     bool
}

// New creates the root application model. The session engine is built
// after sign-in; until then only the login view is live.
func New(cfg *model.AppConfig, cache *store.Cache, log zerolog.Logger) Model {
	km := keys.DefaultKeyMap()

	return Model{
		currentView: ViewLogin,
		cfg:         cfg,
		cache:       cache,
		log:         log.With().Str("component", "app").Logger(),
		keys:        km,
		focus:       newFocusState(),
		events:      make(chan tea.Msg, 64),
		loginView:   loginview.New(80, 24),
		inboxView:   inbox.New(nil, km, 80, 24),
		notifView:   notifcenter.New(km, 80, 24),
		helpView:    helpview.New(km, 80, 24),
		pinView:     pinform.New(80, 24),
	}
}

// Init restores a stored session when one exists, otherwise shows the
// sign-in form.
func (m Model) Init() tea.Cmd {
	if creds, ok := m.storedCredentials(); ok {
		return func() tea.Msg {
			return loginResultMsg{resp: api.LoginResponse{
				Token: creds.Token,
				User:  model.User{Email: creds.Email, Name: creds.Name},
			}}
		}
	}
	return m.loginView.Init()
}

// storedCredentials returns the persisted identity, if a usable token
// and account are on disk.
func (m Model) storedCredentials() (session.Credentials, bool) {
	token, err := credential.Get(credential.TokenKey)
	if err != nil || token == "" {
		return session.Credentials{}, false
	}
	account, err := m.cache.Account()
	if err != nil || account == "" {
		return session.Credentials{}, false
	}
	return session.Credentials{Email: account, Token: token}, true
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		contentWidth := m.layout.ContentWidth()
		contentHeight := m.layout.ContentHeight()
		m.loginView.SetSize(contentWidth, contentHeight)
		m.inboxView.SetSize(contentWidth, contentHeight)
		m.notifView.SetSize(contentWidth, contentHeight)
		m.helpView.SetSize(contentWidth, contentHeight)
		m.pinView.SetSize(contentWidth, contentHeight)
		if m.hasThread {
			m.threadView.SetSize(contentWidth, contentHeight)
		}
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case tea.FocusMsg:
		m.focus.setFocused(true)
		return m, nil

	case tea.BlurMsg:
		m.focus.setFocused(false)
		return m, nil

	case loginview.SubmittedMsg:
		return m, m.loginCmd(msg.Email, msg.Password)

	case loginResultMsg:
		if msg.err != nil {
			reason := "Sign-in failed. Check your email and password."
			if !api.IsAuthError(msg.err) {
				reason = "Could not reach the server. Try again."
			}
			m.log.Warn().Err(msg.err).Msg("sign-in failed")
			return m, m.loginView.Start(reason)
		}
		return m.startSession(session.Credentials{
			Email: msg.resp.User.Email,
			Name:  msg.resp.User.Name,
			Token: msg.resp.Token,
		})

	case engineEventMsg:
		m.refreshFromEngine()
		if m.hasThread {
			m.threadView, _ = m.threadView.Update(threadview.RefreshMsg{})
		}
		return m, m.waitForEngine()

	case toastMsg:
		m.toast = (*alert.Toast)(&msg)
		m.toastSeq++
		seq := m.toastSeq
		expire := tea.Tick(msg.Lifetime, func(time.Time) tea.Msg {
			return toastExpiredMsg{seq: seq}
		})
		return m, tea.Batch(expire, m.waitForEngine())

	case toastExpiredMsg:
		// A newer toast may have replaced the one this timer tracked.
		if msg.seq == m.toastSeq {
			m.toast = nil
		}
		return m, nil

	case connStateMsg:
		m.connState = realtime.State(msg)
		return m, m.waitForEngine()

	case inbox.SelectedConversationMsg:
		return m.openConversation(msg.Conversation)

	case threadview.BackMsg:
		m.currentView = ViewInbox
		m.focus.setViewing(0, false)
		return m, m.inboxView.LoadConversations()

	case threadview.OpenPinFormMsg:
		m.previousView = m.currentView
		m.currentView = ViewPinForm
		return m, m.pinView.Start()

	case pinform.PinSubmittedMsg:
		m.currentView = ViewThread
		if !m.hasThread {
			return m, nil
		}
		return m, m.threadView.SendPinCmd(msg.Pin)

	case pinform.PinCancelMsg:
		m.currentView = ViewThread
		return m, nil

	case notifcenter.MarkReadMsg:
		if m.session != nil {
			m.session.MarkNotificationRead(msg.ID)
		}
		return m, nil

	case notifcenter.ClearAllMsg:
		if m.session != nil {
			m.session.ClearNotifications()
		}
		return m, nil

	case notifcenter.OpenConversationMsg:
		m.currentView = ViewInbox
		return m, m.inboxView.LoadConversations()

	case tea.KeyMsg:
		if next, cmd, handled := m.handleGlobalKey(msg); handled {
			return next, cmd
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleGlobalKey routes keys that work regardless of current view.
// Views with text input (login, thread composer, pin form) only see
// ctrl-modified globals so typing is never swallowed.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.String() {
	case "ctrl+c":
		m.shutdown()
		return m, tea.Quit, true

	case "ctrl+l":
		if m.currentView != ViewLogin {
			return m.logout()
		}
		return m, nil, false
	}

	typing := m.currentView == ViewLogin ||
		m.currentView == ViewThread ||
		m.currentView == ViewPinForm
	if typing {
		return m, nil, false
	}

	switch msg.String() {
	case "q":
		if m.currentView == ViewInbox {
			m.shutdown()
			return m, tea.Quit, true
		}

	case "?":
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return m, nil, true

	case "n":
		if m.currentView == ViewInbox {
			m.previousView = m.currentView
			m.currentView = ViewNotifications
			m.refreshFromEngine()
			return m, nil, true
		}

	case "esc":
		if m.currentView == ViewNotifications {
			m.currentView = ViewInbox
			return m, nil, true
		}
	}

	return m, nil, false
}

// loginCmd performs the sign-in request off the UI goroutine.
func (m Model) loginCmd(email, password string) tea.Cmd {
	baseURL := m.cfg.Server.BaseURL
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
		defer cancel()

		resp, err := api.Login(ctx, baseURL, email, password)
		return loginResultMsg{resp: resp, err: err}
	}
}

// startSession builds the synchronization engine for the signed-in
// identity and switches to the inbox.
func (m Model) startSession(creds session.Credentials) (tea.Model, tea.Cmd) {
	if err := credential.Set(credential.TokenKey, creds.Token); err != nil {
		m.log.Warn().Err(err).Msg("could not persist session token")
	}

	events := m.events
	svc, err := session.New(session.Options{
		Config:      m.cfg,
		Credentials: creds,
		Cache:       m.cache,
		Focus:       m.focus,
		OnToast: func(t alert.Toast) {
			events <- toastMsg(t)
		},
		OnChange: func() {
			// Coalesce; a pending refresh already covers this change.
			select {
			case events <- engineEventMsg{}:
			default:
			}
		},
		OnConnState: func(s realtime.State) {
			events <- connStateMsg(s)
		},
		Logger: m.log,
	})
	if err != nil {
		m.log.Error().Err(err).Msg("could not build session")
		return m, m.loginView.Start("Could not start the session. Try again.")
	}

	m.session = svc
	m.session.Start()

	m.inboxView = inbox.New(svc, m.keys, m.layout.ContentWidth(), m.layout.ContentHeight())
	m.currentView = ViewInbox
	m.refreshFromEngine()

	return m, tea.Batch(m.inboxView.Init(), m.waitForEngine())
}

// logout tears the session down and returns to the sign-in form.
func (m Model) logout() (tea.Model, tea.Cmd, bool) {
	if m.session != nil {
		m.session.Logout(context.Background())
		m.session = nil
	}
	m.hasThread = false
	m.toast = nil
	m.connState = realtime.StateDisconnected
	m.focus.setViewing(0, false)
	m.currentView = ViewLogin
	return m, m.loginView.Start(""), true
}

// shutdown stops background work before quit, keeping the identity for
// the next launch.
func (m Model) shutdown() {
	if m.session != nil {
		m.session.Close()
	}
}

// openConversation switches to the thread view for a conversation,
// marking it read locally and loading its history.
func (m Model) openConversation(conv model.Conversation) (tea.Model, tea.Cmd) {
	t := m.session.Thread(conv)
	m.threadView = threadview.New(t, m.keys, m.layout.ContentWidth(), m.layout.ContentHeight())
	m.hasThread = true
	m.previousView = m.currentView
	m.currentView = ViewThread
	m.focus.setViewing(conv.ID, true)

	svc := m.session
	chatID := conv.ID
	markRead := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
		defer cancel()
		svc.MarkConversationRead(ctx, chatID)
		return nil
	}
	loadHistory := func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loginTimeout)
		defer cancel()
		if err := svc.LoadHistory(ctx, t); err != nil {
			return nil
		}
		return threadview.RefreshMsg{}
	}

	return m, tea.Batch(m.threadView.Init(), markRead, loadHistory)
}

// waitForEngine re-arms the bridge between engine callbacks and the
// Bubble Tea loop.
func (m Model) waitForEngine() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		return <-events
	}
}

// refreshFromEngine re-reads engine state into the views.
func (m *Model) refreshFromEngine() {
	if m.session == nil {
		return
	}

	records := m.session.Notifications()
	m.notifView.SetRecords(records)

	unread := make(map[int]bool)
	for _, r := range records {
		if !r.Read && r.Kind == model.KindMessage {
			unread[r.ConversationID] = true
		}
	}
	m.inboxView.SetUnread(unread)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewInbox:
		m.inboxView, cmd = m.inboxView.Update(msg)
	case ViewThread:
		if m.hasThread {
			m.threadView, cmd = m.threadView.Update(msg)
		}
	case ViewNotifications:
		m.notifView, cmd = m.notifView.Update(msg)
	case ViewPinForm:
		m.pinView, cmd = m.pinView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var header string
	if m.toast != nil {
		header = m.layout.RenderToast(toastLine(*m.toast))
	} else {
		header = m.layout.RenderHeader(m.headerTitle(), m.connStatus())
	}
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// headerTitle returns the app title with the unread badge.
func (m Model) headerTitle() string {
	title := "BookSwap"
	if m.session != nil {
		if n := m.session.UnreadCount(); n > 0 {
			title = fmt.Sprintf("BookSwap [%d unread]", n)
		}
	}
	return title
}

// connStatus returns the passive connectivity indicator text.
func (m Model) connStatus() string {
	if m.currentView == ViewLogin {
		return ""
	}
	switch m.connState {
	case realtime.StateConnected:
		return "● live"
	case realtime.StateConnecting:
		return "◌ connecting"
	default:
		return "○ offline"
	}
}

// toastLine formats a toast for the banner row.
func toastLine(t alert.Toast) string {
	rec := t.Record
	who := rec.SenderName
	if who == "" {
		who = rec.Sender
	}
	switch rec.Kind {
	case model.KindWishlistMatch:
		return "Wishlist match: " + rec.Preview
	case model.KindProximityMatch:
		return "Book offered nearby: " + rec.Preview
	default:
		return fmt.Sprintf("%s: %s", who, rec.Preview)
	}
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin:
		return m.loginView.View()
	case ViewInbox:
		return m.inboxView.View()
	case ViewThread:
		if m.hasThread {
			return m.threadView.View()
		}
		return ""
	case ViewNotifications:
		return m.notifView.View()
	case ViewPinForm:
		return m.pinView.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return ""
	}
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewLogin:
		return "enter sign in | esc quit"
	case ViewThread:
		return "enter send | ctrl+p map pin | esc back"
	case ViewNotifications:
		return "enter open | m mark read | C clear all | esc back"
	case ViewPinForm:
		return "enter submit | esc cancel"
	case ViewHelp:
		return "? close help"
	default:
		return "enter open | n notifications | r refresh | ? help | q quit"
	}
}
