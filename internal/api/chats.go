package api

import (
	"context"
	"fmt"
	"net/url"

	"github.com/bookswap/bookswap/internal/model"
)

// ListChats retrieves the authenticated user's conversation summaries,
// including per-conversation unread counts. This is the authoritative
// input to a reconciliation pass.
func (c *Client) ListChats(ctx context.Context, email string) ([]model.Conversation, error) {
	var chats []model.Conversation
	path := "/chats?user=" + url.QueryEscape(email)
	if err := c.Get(ctx, path, &chats); err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	return chats, nil
}

// MarkRead marks a conversation read server-side. The endpoint is
// idempotent; repeating the call is harmless.
func (c *Client) MarkRead(ctx context.Context, chatID int) error {
	body := map[string]int{"chatId": chatID}
	if err := c.Post(ctx, "/mark-read", body, nil); err != nil {
		return fmt.Errorf("marking chat %d read: %w", chatID, err)
	}
	return nil
}

// ListMessages retrieves a conversation's message history in server
// order.
func (c *Client) ListMessages(ctx context.Context, chatID int) ([]model.Message, error) {
	var messages []model.Message
	path := fmt.Sprintf("/messages?chat_id=%d", chatID)
	if err := c.Get(ctx, path, &messages); err != nil {
		return nil, fmt.Errorf("listing messages for chat %d: %w", chatID, err)
	}
	return messages, nil
}

// SendMessageRequest is the payload of POST /send-message.
type SendMessageRequest struct {
	Sender   string        `json:"sender"`
	Receiver string        `json:"receiver"`
	Content  string        `json:"content"`
	ChatID   int           `json:"chat_id"`
	IsMapPin bool          `json:"isMapPin,omitempty"`
	MapPin   *model.MapPin `json:"mapPinData,omitempty"`
}

// SendMessage persists a message server-side and returns the canonical
// record the server assigned to it.
func (c *Client) SendMessage(ctx context.Context, req SendMessageRequest) (model.Message, error) {
	var msg model.Message
	if err := c.Post(ctx, "/send-message", req, &msg); err != nil {
		return model.Message{}, fmt.Errorf("sending message to chat %d: %w", req.ChatID, err)
	}
	return msg, nil
}
