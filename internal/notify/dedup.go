package notify

import (
	"time"

	"github.com/bookswap/bookswap/internal/model"
)

// Guard decides whether a candidate message notification duplicates one
// already in the store. Identity matches are handled by the store; the
// guard covers the cross-channel case where an optimistic local echo and
// a server push (or a push and the next poll) describe the same logical
// event under different ids.
//
// The proximity rule knowingly merges two genuinely identical rapid
// messages from the same sender inside the window. That false-positive
// rate is the price of never showing the same message twice because it
// arrived over two delivery paths.
type Guard struct {
	// Window is the time proximity within which same-sender same-body
	// candidates are treated as one event.
	Window time.Duration
}

// Duplicate reports whether candidate matches an existing record of the
// same kind, body, and sender with a timestamp inside the window. Only
// message notifications are subject to the proximity rule.
func (g Guard) Duplicate(existing []model.Notification, candidate model.Notification) bool {
	if candidate.Kind != model.KindMessage || g.Window <= 0 {
		return false
	}

	for _, r := range existing {
		if r.Kind != model.KindMessage {
			continue
		}
		if r.Sender != candidate.Sender || r.Preview != candidate.Preview {
			continue
		}
		delta := candidate.OccurredAt.Sub(r.OccurredAt)
		if delta < 0 {
			delta = -delta
		}
		if delta <= g.Window {
			return true
		}
	}
	return false
}
