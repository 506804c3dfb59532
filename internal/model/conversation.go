package model

import (
	"encoding/json"
	"time"
)

// User identifies a chat participant.
type User struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// LastMessage is the most recent message summary carried by a
// conversation listing.
type LastMessage struct {
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Conversation is a server-side chat summary as returned by GET /chats.
type Conversation struct {
	ID          int         `json:"id"`
	UnreadCount int         `json:"unread_count"`
	LastMessage LastMessage `json:"last_message"`
	OtherUser   User        `json:"other_user"`
	OfferID     int         `json:"offer_id,omitempty"`
}

// UnmarshalJSON tolerates the two historical shapes the backend has used
// for the unread field: an integer `unread_count` and a boolean `unread`.
// The boolean form maps to a count of 1.
func (c *Conversation) UnmarshalJSON(data []byte) error {
	type alias Conversation
	aux := struct {
		*alias
		UnreadCount *int  `json:"unread_count"`
		Unread      *bool `json:"unread"`
	}{alias: (*alias)(c)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	switch {
	case aux.UnreadCount != nil:
		c.UnreadCount = *aux.UnreadCount
	case aux.Unread != nil && *aux.Unread:
		c.UnreadCount = 1
	default:
		c.UnreadCount = 0
	}

	return nil
}
