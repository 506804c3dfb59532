// Package notifcenter renders the notification list: unread records on
// top, newest first, with per-record and bulk read actions.
package notifcenter

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bookswap/bookswap/internal/keys"
	"github.com/bookswap/bookswap/internal/model"
	"github.com/bookswap/bookswap/internal/theme"
)

// MarkReadMsg asks for a single record to be marked read.
type MarkReadMsg struct {
	ID string
}

// ClearAllMsg asks for the whole list to be cleared.
type ClearAllMsg struct{}

// OpenConversationMsg asks to jump to the record's conversation.
type OpenConversationMsg struct {
	ChatID int
}

// recordItem adapts a notification record for bubbles/list.
type recordItem struct {
	record model.Notification
}

func (i recordItem) FilterValue() string { return i.record.Preview }

// itemDelegate renders one notification row.
type itemDelegate struct{}

func (d itemDelegate) Height() int                             { return 1 }
func (d itemDelegate) Spacing() int                            { return 0 }
func (d itemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ri, ok := item.(recordItem)
	if !ok {
		return
	}

	rec := ri.record
	isSelected := index == m.Index()

	marker := " "
	if !rec.Read {
		marker = theme.UnreadBadgeStyle.Render("●")
	}

	kindBadge := theme.KindStyle(string(rec.Kind)).Render(kindLabel(rec.Kind))

	who := rec.SenderName
	if who == "" {
		who = rec.Sender
	}

	preview := rec.Preview
	if len(preview) > 50 {
		preview = preview[:47] + "…"
	}

	timeStr := theme.DimmedStyle.Render(rec.OccurredAt.Format(time.Kitchen))

	line := fmt.Sprintf("%s %s %s: %s  %s", marker, kindBadge, who, preview, timeStr)
	if rec.Read {
		line = theme.DimmedStyle.Render(line)
	}

	if isSelected {
		line = theme.SelectedItemStyle.Render(line)
	} else {
		line = theme.ListItemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

func kindLabel(k model.Kind) string {
	switch k {
	case model.KindWishlistMatch:
		return "WISH"
	case model.KindProximityMatch:
		return "NEAR"
	default:
		return "MSG"
	}
}

// Model is the Bubble Tea model for the notification center.
type Model struct {
	keys   *keys.KeyMap
	list   list.Model
	width  int
	height int
}

// New creates a notification center model.
func New(km *keys.KeyMap, width, height int) Model {
	l := list.New(nil, itemDelegate{}, width, height)
	l.Title = "Notifications"
	l.Styles.Title = theme.HeaderStyle
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	return Model{
		keys:   km,
		list:   l,
		width:  width,
		height: height,
	}
}

// SetRecords replaces the displayed records; the caller supplies them
// newest first.
func (m *Model) SetRecords(records []model.Notification) {
	items := make([]list.Item, len(records))
	for i, r := range records {
		items[i] = recordItem{record: r}
	}
	m.list.SetItems(items)
}

// Update handles messages for the notification center.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Select):
			if item, ok := m.list.SelectedItem().(recordItem); ok {
				if item.record.Kind == model.KindMessage {
					chatID := item.record.ConversationID
					return m, func() tea.Msg {
						return OpenConversationMsg{ChatID: chatID}
					}
				}
			}
			return m, nil

		case key.Matches(msg, m.keys.MarkRead):
			if item, ok := m.list.SelectedItem().(recordItem); ok {
				id := item.record.ID
				return m, func() tea.Msg {
					return MarkReadMsg{ID: id}
				}
			}
			return m, nil

		case key.Matches(msg, m.keys.ClearAll):
			return m, func() tea.Msg { return ClearAllMsg{} }
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the notification center.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return theme.HelpStyle.Render("No notifications.")
	}
	return m.list.View()
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}
