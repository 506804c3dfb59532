// Package alert decides what a freshly admitted notification does to
// the outside world: an OS-level notification when the app is in the
// background, an in-app toast when it is focused, or nothing at all
// when the user is already looking at the conversation.
package alert

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bookswap/bookswap/internal/model"
)

// Focus reports the app's visibility, supplied by the UI layer.
type Focus interface {
	// Focused reports whether the app window currently has focus.
	Focused() bool

	// Viewing returns the conversation the user has open, if any.
	Viewing() (chatID int, ok bool)
}

// Notifier is the OS-level notification sink.
type Notifier interface {
	Notify(title, body string) error
}

// Permission is the session's OS-notification permission state. Denied
// is permanent for the session; there is no retry prompt.
type Permission int

const (
	PermissionUndecided Permission = iota
	PermissionGranted
	PermissionDenied
)

// Toast is an in-app transient banner. A newer toast supersedes the
// current one; banners are replaced, never stacked.
type Toast struct {
	Record   model.Notification
	Lifetime time.Duration
}

// Dispatcher applies the side-effect policy. OS notifications are
// rate-limited to one per rolling window across all kinds, which keeps
// reconnect floods and bulk reconciliation from becoming notification
// storms.
type Dispatcher struct {
	focus    Focus
	notifier Notifier
	onToast  func(Toast)
	log      zerolog.Logger

	osWindow      time.Duration
	toastLifetime time.Duration

	mu          sync.Mutex
	permission  Permission
	lastOSAlert time.Time

	now func() time.Time
}

// NewDispatcher creates a dispatcher. onToast may be nil when no UI is
// attached (the engine still runs headless in tests).
func NewDispatcher(
	focus Focus,
	notifier Notifier,
	osWindow time.Duration,
	toastLifetime time.Duration,
	onToast func(Toast),
	log zerolog.Logger,
) *Dispatcher {
	if osWindow <= 0 {
		osWindow = 5 * time.Second
	}
	if toastLifetime <= 0 {
		toastLifetime = 6 * time.Second
	}
	return &Dispatcher{
		focus:         focus,
		notifier:      notifier,
		onToast:       onToast,
		log:           log.With().Str("component", "alert").Logger(),
		osWindow:      osWindow,
		toastLifetime: toastLifetime,
		permission:    PermissionUndecided,
		now:           time.Now,
	}
}

// SetPermission resolves the session's OS-notification permission. It
// is decided once per session; later calls cannot lift a denial.
func (d *Dispatcher) SetPermission(p Permission) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.permission == PermissionDenied {
		return
	}
	d.permission = p
}

// Dispatch applies the policy to one freshly admitted record.
func (d *Dispatcher) Dispatch(record model.Notification) {
	if record.Kind == model.KindMessage {
		if chatID, ok := d.focus.Viewing(); ok && chatID == record.ConversationID {
			// The message is already visible in the open thread.
			return
		}
	}

	if !d.focus.Focused() {
		d.alertOS(record)
		return
	}

	if d.onToast != nil {
		d.onToast(Toast{Record: record, Lifetime: d.toastLifetime})
	}
}

// alertOS raises an OS notification, subject to permission and the
// rolling rate limit.
func (d *Dispatcher) alertOS(record model.Notification) {
	d.mu.Lock()
	if d.permission != PermissionGranted {
		d.mu.Unlock()
		return
	}
	now := d.now()
	if !d.lastOSAlert.IsZero() && now.Sub(d.lastOSAlert) < d.osWindow {
		d.mu.Unlock()
		return
	}
	d.lastOSAlert = now
	d.mu.Unlock()

	title, body := renderAlert(record)
	if err := d.notifier.Notify(title, body); err != nil {
		d.log.Warn().Err(err).Msg("os notification failed")
	}
}

// renderAlert produces the OS notification text for a record.
func renderAlert(record model.Notification) (title, body string) {
	switch record.Kind {
	case model.KindWishlistMatch:
		return "Wishlist match", record.Preview
	case model.KindProximityMatch:
		return "Book offered nearby", record.Preview
	default:
		name := record.SenderName
		if name == "" {
			name = record.Sender
		}
		return fmt.Sprintf("New message from %s", name), record.Preview
	}
}
