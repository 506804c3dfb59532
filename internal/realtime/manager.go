// Package realtime owns the single persistent websocket connection to
// the backend and its reconnect lifecycle. Incoming pushes are
// normalized at this boundary and handed to the engine; everything else
// in the client observes only the connection state.
package realtime

import (
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// State is the connection state machine's position. It is owned solely
// by the Manager; all other components observe it read-only.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
)

// Hooks are the engine's entry points the manager feeds.
type Hooks struct {
	// OnEvent receives each normalized non-self message event.
	OnEvent func(Event)

	// OnState receives every state transition.
	OnState func(State)

	// OnConnected fires after a successful handshake and room join,
	// used to trigger an immediate reconciliation pass.
	OnConnected func()
}

// Config holds the connection parameters.
type Config struct {
	// URL is the websocket endpoint. http/https schemes are rewritten
	// to ws/wss.
	URL string

	// Token and UserEmail authenticate the connection.
	Token     string
	UserEmail string

	// ReconnectBase is the backoff unit between reconnect attempts,
	// scaled linearly per attempt and capped at 30s.
	ReconnectBase time.Duration
}

// Manager maintains the persistent connection, resubscribes to the
// user's private room on every (re)connect, and retries forever with
// capped backoff until Close. Connection loss is never fatal: the
// client degrades to polling-only delivery until the socket returns.
type Manager struct {
	cfg   Config
	hooks Hooks
	log   zerolog.Logger

	mu           sync.Mutex
	conn         *websocket.Conn
	state        State
	closing      bool
	attempt      int
	joinedChats  map[int]bool
	done         chan struct{}
	writeTimeout time.Duration
}

// NewManager creates a manager. Connect must be called to start it.
func NewManager(cfg Config, hooks Hooks, log zerolog.Logger) (*Manager, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("socket url is required")
	}
	if cfg.ReconnectBase <= 0 {
		cfg.ReconnectBase = time.Second
	}
	return &Manager{
		cfg:          cfg,
		hooks:        hooks,
		log:          log.With().Str("component", "realtime").Logger(),
		state:        StateDisconnected,
		joinedChats:  make(map[int]bool),
		done:         make(chan struct{}),
		writeTimeout: 10 * time.Second,
	}, nil
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Connect dials the socket. On failure it schedules a retry; the error
// of the first attempt is returned so callers can log it, but delivery
// recovery does not depend on it.
func (m *Manager) Connect() error {
	m.mu.Lock()
	if m.closing || m.state != StateDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.setStateLocked(StateConnecting)
	m.mu.Unlock()

	addr, err := m.dialURL()
	if err != nil {
		m.transitionToDisconnected()
		return err
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(addr, nil)
	if err != nil {
		m.transitionToDisconnected()
		m.scheduleReconnect()
		return fmt.Errorf("connecting to %s: %w", m.cfg.URL, err)
	}

	m.mu.Lock()
	m.conn = conn
	m.attempt = 0
	m.setStateLocked(StateConnected)
	joined := make([]int, 0, len(m.joinedChats))
	for id := range m.joinedChats {
		joined = append(joined, id)
	}
	m.mu.Unlock()

	// Resubscribe to the private room and any open chats.
	m.send("join_user_room", map[string]interface{}{
		"userEmail": m.cfg.UserEmail,
	})
	for _, id := range joined {
		m.send("join_chat", map[string]interface{}{"chatId": id})
	}

	if m.hooks.OnConnected != nil {
		m.hooks.OnConnected()
	}

	go m.readLoop(conn)
	return nil
}

// JoinChat subscribes to a conversation's event scope. The subscription
// is remembered and replayed after a reconnect.
func (m *Manager) JoinChat(chatID int) {
	m.mu.Lock()
	m.joinedChats[chatID] = true
	connected := m.state == StateConnected
	m.mu.Unlock()

	if connected {
		m.send("join_chat", map[string]interface{}{"chatId": chatID})
	}
}

// Close tears the connection down for good. This is the mandatory
// logout path: it prevents a stale session's socket from leaking events
// into a subsequently signed-in identity.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return
	}
	m.closing = true
	close(m.done)
	conn := m.conn
	m.conn = nil
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
}

// dialURL builds the authenticated websocket address.
func (m *Manager) dialURL() (string, error) {
	addr, err := url.Parse(m.cfg.URL)
	if err != nil {
		return "", fmt.Errorf("invalid socket url: %w", err)
	}
	switch addr.Scheme {
	case "http":
		addr.Scheme = "ws"
	case "https":
		addr.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme: %s", addr.Scheme)
	}

	q := addr.Query()
	q.Set("token", m.cfg.Token)
	q.Set("userEmail", m.cfg.UserEmail)
	addr.RawQuery = q.Encode()
	return addr.String(), nil
}

// send writes an event frame. Write failures are left to the read loop
// to notice; the connection error surfaces there.
func (m *Manager) send(event string, data interface{}) {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return
	}

	payload, err := json.Marshal(map[string]interface{}{
		"event": event,
		"data":  data,
	})
	if err != nil {
		return
	}

	conn.SetWriteDeadline(time.Now().Add(m.writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		m.log.Debug().Err(err).Str("event", event).Msg("socket write failed")
	}
}

// readLoop consumes frames until the connection drops, then hands off
// to the reconnect path.
func (m *Manager) readLoop(conn *websocket.Conn) {
	defer func() {
		m.transitionToDisconnected()
		m.scheduleReconnect()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				m.log.Debug().Err(err).Msg("socket closed unexpectedly")
			}
			return
		}
		m.handleFrame(data)
	}
}

// handleFrame parses one frame and routes message-like events through
// normalization. A malformed payload is dropped after logging; it must
// never take down the dispatch pipeline for frames behind it.
func (m *Manager) handleFrame(data []byte) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		m.log.Debug().Err(err).Msg("dropping undecodable frame")
		return
	}

	switch f.Event {
	// Both names carry the same shape; the server has emitted both
	// across versions.
	case "new_notification", "new-message":
		ev, err := normalizeEvent(f.body())
		if err != nil {
			m.log.Debug().Err(err).Msg("dropping malformed event payload")
			return
		}
		if ev.Sender == m.cfg.UserEmail {
			// Self-echo of our own send; the optimistic path already
			// rendered it.
			return
		}
		if m.hooks.OnEvent != nil {
			m.hooks.OnEvent(ev)
		}
	default:
		// Presence, acks, and anything else are not this client's
		// concern.
	}
}

func (m *Manager) transitionToDisconnected() {
	m.mu.Lock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
	m.setStateLocked(StateDisconnected)
	m.mu.Unlock()
}

// scheduleReconnect retries the connection after a linear backoff,
// capped at 30 seconds, unless the manager is closing.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.closing {
		m.mu.Unlock()
		return
	}
	m.attempt++
	backoff := time.Duration(m.attempt) * m.cfg.ReconnectBase
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	m.mu.Unlock()

	go func() {
		timer := time.NewTimer(backoff)
		defer timer.Stop()

		select {
		case <-m.done:
		case <-timer.C:
			if err := m.Connect(); err != nil {
				m.log.Debug().Err(err).Msg("reconnect attempt failed")
			}
		}
	}()
}

// setStateLocked updates the state and notifies the subscriber. Must be
// called with the mutex held.
func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	m.state = s
	if m.hooks.OnState != nil {
		// Notify outside the lock to keep subscribers from deadlocking
		// back into the manager.
		go m.hooks.OnState(s)
	}
}
