package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookswap/bookswap/internal/model"
)

func TestNormalizeEventFieldVariants(t *testing.T) {
	ts := time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name    string
		payload string
		want    Event
	}{
		{
			name:    "camelCase variant",
			payload: `{"messageId":"m1","sender":"alice@example.com","senderName":"Alice","message":"hey","chatId":7,"timestamp":"2026-08-01T10:30:00Z"}`,
			want: Event{
				MessageID: "m1", Sender: "alice@example.com", SenderName: "Alice",
				Body: "hey", ChatID: 7, OccurredAt: ts, Kind: model.KindMessage,
			},
		},
		{
			name:    "snake_case variant",
			payload: `{"id":"m1","senderEmail":"alice@example.com","content":"hey","chat_id":7,"created_at":"2026-08-01T10:30:00Z"}`,
			want: Event{
				MessageID: "m1", Sender: "alice@example.com",
				Body: "hey", ChatID: 7, OccurredAt: ts, Kind: model.KindMessage,
			},
		},
		{
			name:    "unix millis timestamp",
			payload: `{"id":"m1","sender":"alice@example.com","message":"hey","chatId":7,"createdAt":1753957800000}`,
			want: Event{
				MessageID: "m1", Sender: "alice@example.com",
				Body: "hey", ChatID: 7, OccurredAt: time.UnixMilli(1753957800000), Kind: model.KindMessage,
			},
		},
		{
			name:    "unix millis as string",
			payload: `{"id":"m1","sender":"alice@example.com","message":"hey","chatId":7,"timestamp":"1753957800000"}`,
			want: Event{
				MessageID: "m1", Sender: "alice@example.com",
				Body: "hey", ChatID: 7, OccurredAt: time.UnixMilli(1753957800000), Kind: model.KindMessage,
			},
		},
		{
			name:    "wishlist match",
			payload: `{"type":"wishlist_match","message":"1984 is available","offerId":12,"timestamp":"2026-08-01T10:30:00Z"}`,
			want: Event{
				Body: "1984 is available", OfferID: 12,
				OccurredAt: ts, Kind: model.KindWishlistMatch,
			},
		},
		{
			name:    "proximity match via kind field",
			payload: `{"kind":"proximity_match","content":"Dune offered nearby","timestamp":"2026-08-01T10:30:00Z"}`,
			want: Event{
				Body:       "Dune offered nearby",
				OccurredAt: ts, Kind: model.KindProximityMatch,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := normalizeEvent(json.RawMessage(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want.MessageID, got.MessageID)
			assert.Equal(t, tt.want.Sender, got.Sender)
			assert.Equal(t, tt.want.SenderName, got.SenderName)
			assert.Equal(t, tt.want.Body, got.Body)
			assert.Equal(t, tt.want.ChatID, got.ChatID)
			assert.Equal(t, tt.want.Kind, got.Kind)
			assert.Equal(t, tt.want.OfferID, got.OfferID)
			assert.True(t, tt.want.OccurredAt.Equal(got.OccurredAt))
		})
	}
}

func TestNormalizeEventMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"no sender", `{"id":"m1","message":"hey","chatId":7}`},
		{"no body", `{"id":"m1","sender":"alice@example.com","chatId":7}`},
		{"no chat id", `{"id":"m1","sender":"alice@example.com","message":"hey"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := normalizeEvent(json.RawMessage(tt.payload))
			assert.ErrorIs(t, err, errMissingFields)
		})
	}
}

func TestNormalizeEventMissingTimestampDefaultsToNow(t *testing.T) {
	before := time.Now()
	got, err := normalizeEvent(json.RawMessage(`{"id":"m1","sender":"alice@example.com","message":"hey","chatId":7}`))
	require.NoError(t, err)
	assert.False(t, got.OccurredAt.Before(before))
}

func TestFrameBodyPrefersData(t *testing.T) {
	f := frame{Data: json.RawMessage(`{"a":1}`), Payload: json.RawMessage(`{"b":2}`)}
	assert.JSONEq(t, `{"a":1}`, string(f.body()))

	f = frame{Payload: json.RawMessage(`{"b":2}`)}
	assert.JSONEq(t, `{"b":2}`, string(f.body()))
}
