package realtime

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/bookswap/bookswap/internal/model"
)

// Event is the single strict shape a server push is normalized into at
// the boundary. The variant field names of the wire payload never leak
// past this package.
type Event struct {
	MessageID  string
	ChatID     int
	Sender     string
	SenderName string
	Body       string
	OccurredAt time.Time
	Kind       model.Kind
	OfferID    int
}

var errMissingFields = errors.New("payload missing required fields")

// frame is the raw envelope read off the socket.
type frame struct {
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
	Payload json.RawMessage `json:"payload"`
}

// body returns whichever payload slot the server used.
func (f frame) body() json.RawMessage {
	if len(f.Data) > 0 {
		return f.Data
	}
	return f.Payload
}

// flexTime accepts the timestamp encodings the backend has emitted over
// time: RFC 3339 strings and unix milliseconds (as number or string).
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		if parsed, perr := time.Parse(time.RFC3339, s); perr == nil {
			t.Time = parsed
			return nil
		}
		if millis, perr := strconv.ParseInt(s, 10, 64); perr == nil {
			t.Time = time.UnixMilli(millis)
			return nil
		}
		return nil
	}
	var millis int64
	if err := json.Unmarshal(data, &millis); err == nil {
		t.Time = time.UnixMilli(millis)
	}
	return nil
}

// wirePayload carries every historical field-name variant side by side.
type wirePayload struct {
	ID        string `json:"id"`
	MessageID string `json:"messageId"`

	Sender      string `json:"sender"`
	SenderEmail string `json:"senderEmail"`
	SenderName  string `json:"senderName"`
	Name        string `json:"name"`

	Message string `json:"message"`
	Content string `json:"content"`

	ChatID      *int `json:"chatId"`
	ChatIDSnake *int `json:"chat_id"`

	Timestamp flexTime `json:"timestamp"`
	CreatedAt flexTime `json:"created_at"`
	Created   flexTime `json:"createdAt"`

	Type    string `json:"type"`
	Kind    string `json:"kind"`
	OfferID int    `json:"offerId"`
}

// normalizeEvent folds a raw payload into an Event, coalescing the field
// variants. Message events require a sender, a body, and a chat id;
// anything less is malformed and dropped by the caller.
func normalizeEvent(raw json.RawMessage) (Event, error) {
	var p wirePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Event{}, err
	}

	ev := Event{
		MessageID:  coalesce(p.MessageID, p.ID),
		Sender:     coalesce(p.Sender, p.SenderEmail),
		SenderName: coalesce(p.SenderName, p.Name),
		Body:       coalesce(p.Message, p.Content),
		Kind:       eventKind(coalesce(p.Type, p.Kind)),
		OfferID:    p.OfferID,
	}

	switch {
	case p.ChatID != nil:
		ev.ChatID = *p.ChatID
	case p.ChatIDSnake != nil:
		ev.ChatID = *p.ChatIDSnake
	}

	for _, t := range []time.Time{p.Timestamp.Time, p.CreatedAt.Time, p.Created.Time} {
		if !t.IsZero() {
			ev.OccurredAt = t
			break
		}
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now()
	}

	if ev.Kind == model.KindMessage {
		if ev.Sender == "" || ev.Body == "" || ev.ChatID == 0 {
			return Event{}, errMissingFields
		}
	}

	return ev, nil
}

func eventKind(s string) model.Kind {
	switch s {
	case string(model.KindWishlistMatch):
		return model.KindWishlistMatch
	case string(model.KindProximityMatch):
		return model.KindProximityMatch
	default:
		return model.KindMessage
	}
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
