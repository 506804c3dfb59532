package model

import "time"

// MapPin is the structured payload of a location message: a coordinate
// the sender wants to meet at, with an optional free-text note.
type MapPin struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Note string  `json:"note,omitempty"`
}

// Message is a single chat message in a conversation thread.
type Message struct {
	// ID is the server-assigned identifier. Empty while the message is
	// still a provisional local record.
	ID string `json:"id"`

	// TempID is the locally generated identifier assigned to an
	// optimistic send before the server confirms it. It is how the
	// confirmation is matched back to the provisional record.
	TempID string `json:"temp_id,omitempty"`

	ChatID   int    `json:"chat_id"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
	Content  string `json:"content"`

	CreatedAt time.Time `json:"created_at"`

	// Pending marks a provisional record awaiting server confirmation.
	Pending bool `json:"pending,omitempty"`

	// MapPin is set for location messages; nil for free text.
	MapPin *MapPin `json:"map_pin,omitempty"`
}

// IsMapPin reports whether the message carries structured location data.
func (m Message) IsMapPin() bool {
	return m.MapPin != nil
}
