package inbox

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bookswap/bookswap/internal/model"
	"github.com/bookswap/bookswap/internal/theme"
)

// ConversationItem wraps a model.Conversation so it can be used in a
// bubbles/list.
type ConversationItem struct {
	Conversation model.Conversation
}

// FilterValue returns the string used for fuzzy filtering.
func (i ConversationItem) FilterValue() string {
	return i.Conversation.OtherUser.Name
}

// Title returns the peer name for the list.
func (i ConversationItem) Title() string {
	name := i.Conversation.OtherUser.Name
	if name == "" {
		name = i.Conversation.OtherUser.Email
	}
	return name
}

// Description returns the last-message summary line.
func (i ConversationItem) Description() string {
	return i.Conversation.LastMessage.Content
}

// ItemDelegate implements list.ItemDelegate for rendering conversation
// rows.
type ItemDelegate struct {
	// unread maps conversation ids with locally unread notifications.
	// Shared by reference with the inbox Model so updates are visible.
	unread map[int]bool
}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused for now).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single conversation line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ci, ok := item.(ConversationItem)
	if !ok {
		return
	}

	conv := ci.Conversation
	isSelected := index == m.Index()

	badge := "   "
	if d.unread[conv.ID] || conv.UnreadCount > 0 {
		label := "new"
		if conv.UnreadCount > 1 {
			label = fmt.Sprintf("%d", conv.UnreadCount)
		}
		badge = theme.UnreadBadgeStyle.Render(label)
	}

	preview := conv.LastMessage.Content
	if len(preview) > 60 {
		preview = preview[:57] + "…"
	}

	timeStr := theme.DimmedStyle.Render(relativeTime(conv.LastMessage.CreatedAt))

	line := fmt.Sprintf("%s %s  %s  %s", badge, ci.Title(), preview, timeStr)

	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		mins := int(d.Minutes())
		if mins == 1 {
			return "1m ago"
		}
		return fmt.Sprintf("%dm ago", mins)
	case d < 24*time.Hour:
		hrs := int(d.Hours())
		if hrs == 1 {
			return "1h ago"
		}
		return fmt.Sprintf("%dh ago", hrs)
	case d < 7*24*time.Hour:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1d ago"
		}
		return fmt.Sprintf("%dd ago", days)
	default:
		weeks := int(d.Hours() / 24 / 7)
		if weeks == 1 {
			return "1w ago"
		}
		return fmt.Sprintf("%dw ago", weeks)
	}
}
