package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationUnmarshalUnreadVariants(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    int
	}{
		{"integer unread_count", `{"id":1,"unread_count":3}`, 3},
		{"boolean unread true", `{"id":1,"unread":true}`, 1},
		{"boolean unread false", `{"id":1,"unread":false}`, 0},
		{"absent", `{"id":1}`, 0},
		{"count wins over bool", `{"id":1,"unread_count":2,"unread":true}`, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Conversation
			require.NoError(t, json.Unmarshal([]byte(tt.payload), &c))
			assert.Equal(t, tt.want, c.UnreadCount)
		})
	}
}

func TestConversationUnmarshalFullShape(t *testing.T) {
	payload := `{
		"id": 7,
		"unread_count": 1,
		"last_message": {"content": "want to trade?", "created_at": "2026-08-01T10:30:00Z"},
		"other_user": {"email": "alice@example.com", "name": "Alice"},
		"offer_id": 12
	}`

	var c Conversation
	require.NoError(t, json.Unmarshal([]byte(payload), &c))
	assert.Equal(t, 7, c.ID)
	assert.Equal(t, "want to trade?", c.LastMessage.Content)
	assert.Equal(t, "Alice", c.OtherUser.Name)
	assert.Equal(t, 12, c.OfferID)
}

func TestSummaryIDIsStable(t *testing.T) {
	at := time.Date(2026, 8, 1, 10, 30, 0, 0, time.UTC)

	a := SummaryID(7, at)
	b := SummaryID(7, at)
	assert.Equal(t, a, b)

	// A new message moves the timestamp and therefore the id.
	assert.NotEqual(t, a, SummaryID(7, at.Add(time.Second)))
	assert.NotEqual(t, a, SummaryID(8, at))
}
