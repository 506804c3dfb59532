package model

import (
	"fmt"
	"time"
)

// Kind identifies what produced a notification.
type Kind string

const (
	// KindMessage is an unread chat message in a conversation.
	KindMessage Kind = "message"

	// KindWishlistMatch signals that a newly posted offer matches an
	// entry on the user's wishlist.
	KindWishlistMatch Kind = "wishlist-match"

	// KindProximityMatch signals that a wanted book was offered nearby.
	KindProximityMatch Kind = "proximity-match"
)

// Notification is a single entry in the local notification store.
type Notification struct {
	// ID is the stable identity of this notification. Records derived
	// from server unread summaries use SummaryID so re-deriving the same
	// underlying event yields the same id; pushed events use the
	// server-issued message id when present, else a local UUID.
	ID string `json:"id"`

	// ConversationID is the owning chat thread.
	ConversationID int `json:"conversation_id"`

	// Sender is the originator's account email. Empty for non-message kinds.
	Sender string `json:"sender"`

	// SenderName is the originator's display name.
	SenderName string `json:"sender_name"`

	// Preview is the human-readable summary shown in lists and alerts.
	Preview string `json:"preview"`

	// OccurredAt is when the underlying event happened.
	OccurredAt time.Time `json:"occurred_at"`

	// Read indicates whether the user has seen this notification.
	Read bool `json:"read"`

	// Kind identifies the notification type.
	Kind Kind `json:"kind"`

	// OfferID links wishlist and proximity matches to the offer that
	// triggered them. Zero for message notifications.
	OfferID int `json:"offer_id,omitempty"`
}

// SummaryID derives the deterministic notification id for a server-side
// unread summary of a conversation. The same conversation state always
// maps to the same id, which makes store inserts idempotent across
// repeated reconciliation passes.
func SummaryID(conversationID int, lastMessageAt time.Time) string {
	return fmt.Sprintf("conv-%d-%d", conversationID, lastMessageAt.UnixMilli())
}
