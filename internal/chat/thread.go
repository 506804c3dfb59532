// Package chat holds conversation threads and the optimistic send path:
// outbound messages render immediately under a temporary id and are
// reconciled with the server-assigned record when the send completes,
// or rolled back if it fails.
package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bookswap/bookswap/internal/api"
	"github.com/bookswap/bookswap/internal/model"
)

// Sender issues the send request to the backend.
type Sender interface {
	SendMessage(ctx context.Context, req api.SendMessageRequest) (model.Message, error)
}

// Thread is one conversation's ordered message list. Confirmed messages
// are ordered by the server-assigned timestamp; provisional records sit
// at their local insertion position until confirmed. A confirmation is
// matched by temporary id, not position, so a realtime message arriving
// mid-send cannot misplace it.
type Thread struct {
	chatID int
	self   string
	other  model.User
	client Sender
	log    zerolog.Logger

	mu       sync.Mutex
	messages []model.Message
}

// NewThread creates a thread for the conversation with the given peer.
func NewThread(chatID int, self string, other model.User, client Sender, log zerolog.Logger) *Thread {
	return &Thread{
		chatID: chatID,
		self:   self,
		other:  other,
		client: client,
		log:    log.With().Str("component", "chat").Int("chat_id", chatID).Logger(),
	}
}

// ChatID returns the owning conversation id.
func (t *Thread) ChatID() int {
	return t.chatID
}

// Other returns the peer.
func (t *Thread) Other() model.User {
	return t.other
}

// Messages returns a copy of the message list in display order.
func (t *Thread) Messages() []model.Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]model.Message(nil), t.messages...)
}

// SetHistory replaces the list with server-loaded history, keeping any
// provisional records still awaiting confirmation.
func (t *Thread) SetHistory(history []model.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var pending []model.Message
	for _, m := range t.messages {
		if m.Pending {
			pending = append(pending, m)
		}
	}

	t.messages = append([]model.Message(nil), history...)
	sort.SliceStable(t.messages, func(i, j int) bool {
		return t.messages[i].CreatedAt.Before(t.messages[j].CreatedAt)
	})
	t.messages = append(t.messages, pending...)
}

// Receive appends an inbound message at its server-ordered position.
// Duplicate server ids are ignored.
func (t *Thread) Receive(msg model.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if msg.ID != "" {
		for _, m := range t.messages {
			if m.ID == msg.ID {
				return
			}
		}
	}

	// Insert before the first confirmed message that sorts after it;
	// provisional tail records keep their local positions.
	idx := len(t.messages)
	for i, m := range t.messages {
		if !m.Pending && m.CreatedAt.After(msg.CreatedAt) {
			idx = i
			break
		}
	}
	t.messages = append(t.messages, model.Message{})
	copy(t.messages[idx+1:], t.messages[idx:])
	t.messages[idx] = msg
}

// Send performs an optimistic text send. The provisional record is
// visible to Messages callers for the duration of the request; on
// failure it is removed and the error returned for a retryable inline
// affordance, leaving the list identical to its pre-send state.
func (t *Thread) Send(ctx context.Context, content string) (model.Message, error) {
	return t.send(ctx, content, nil)
}

// SendMapPin sends a location message. Map pins share the confirm and
// rollback mechanics of text sends; only the payload differs.
func (t *Thread) SendMapPin(ctx context.Context, pin model.MapPin) (model.Message, error) {
	return t.send(ctx, pin.Note, &pin)
}

func (t *Thread) send(ctx context.Context, content string, pin *model.MapPin) (model.Message, error) {
	provisional := model.Message{
		TempID:    uuid.New().String(),
		ChatID:    t.chatID,
		Sender:    t.self,
		Receiver:  t.other.Email,
		Content:   content,
		CreatedAt: time.Now(),
		Pending:   true,
		MapPin:    pin,
	}

	t.mu.Lock()
	t.messages = append(t.messages, provisional)
	t.mu.Unlock()

	confirmed, err := t.client.SendMessage(ctx, api.SendMessageRequest{
		Sender:   t.self,
		Receiver: t.other.Email,
		Content:  content,
		ChatID:   t.chatID,
		IsMapPin: pin != nil,
		MapPin:   pin,
	})
	if err != nil {
		t.rollback(provisional.TempID)
		t.log.Warn().Err(err).Msg("send failed; provisional record rolled back")
		return model.Message{}, err
	}

	t.confirm(provisional.TempID, confirmed)
	return confirmed, nil
}

// confirm replaces the provisional record in place, preserving its list
// position.
func (t *Thread) confirm(tempID string, confirmed model.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, m := range t.messages {
		if m.TempID == tempID {
			confirmed.TempID = ""
			confirmed.Pending = false
			if confirmed.MapPin == nil {
				confirmed.MapPin = m.MapPin
			}
			t.messages[i] = confirmed
			return
		}
	}
}

// rollback removes the provisional record so no orphaned unconfirmed
// entry survives a failed send.
func (t *Thread) rollback(tempID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, m := range t.messages {
		if m.TempID == tempID {
			t.messages = append(t.messages[:i], t.messages[i+1:]...)
			return
		}
	}
}
