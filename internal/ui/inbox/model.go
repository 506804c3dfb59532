// Package inbox renders the conversation list with unread badges.
package inbox

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/bookswap/bookswap/internal/keys"
	"github.com/bookswap/bookswap/internal/model"
	"github.com/bookswap/bookswap/internal/theme"
)

const loadTimeout = 15 * time.Second

// Loader fetches the conversation list from the backend.
type Loader interface {
	Chats(ctx context.Context) ([]model.Conversation, error)
}

// SelectedConversationMsg is emitted when the user opens a conversation.
type SelectedConversationMsg struct {
	Conversation model.Conversation
}

// conversationsLoadedMsg carries a refreshed conversation list.
type conversationsLoadedMsg struct {
	conversations []model.Conversation
	err           error
}

// Model is the Bubble Tea model for the inbox view.
type Model struct {
	loader Loader
	keys   *keys.KeyMap
	list   list.Model
	unread map[int]bool
	err    error
	width  int
	height int
}

// New creates an inbox model backed by the given loader.
func New(loader Loader, km *keys.KeyMap, width, height int) Model {
	unread := make(map[int]bool)

	l := list.New(nil, ItemDelegate{unread: unread}, width, height)
	l.Title = "Conversations"
	l.Styles.Title = theme.HeaderStyle
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)

	return Model{
		loader: loader,
		keys:   km,
		list:   l,
		unread: unread,
		width:  width,
		height: height,
	}
}

// Init triggers the initial conversation load.
func (m Model) Init() tea.Cmd {
	return m.LoadConversations()
}

// LoadConversations returns a command that fetches the conversation
// list.
func (m Model) LoadConversations() tea.Cmd {
	loader := m.loader
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()

		conversations, err := loader.Chats(ctx)
		return conversationsLoadedMsg{conversations: conversations, err: err}
	}
}

// SetUnread replaces the set of conversations with locally unread
// notifications. The delegate reads the same map, so the next render
// picks it up.
func (m *Model) SetUnread(ids map[int]bool) {
	for k := range m.unread {
		delete(m.unread, k)
	}
	for k, v := range ids {
		m.unread[k] = v
	}
}

// Update handles messages for the inbox view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case conversationsLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		items := make([]list.Item, len(msg.conversations))
		for i, c := range msg.conversations {
			items[i] = ConversationItem{Conversation: c}
		}
		return m, m.list.SetItems(items)

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Select):
			if item, ok := m.list.SelectedItem().(ConversationItem); ok {
				conv := item.Conversation
				return m, func() tea.Msg {
					return SelectedConversationMsg{Conversation: conv}
				}
			}
			return m, nil

		case key.Matches(msg, m.keys.Refresh):
			return m, m.LoadConversations()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the inbox.
func (m Model) View() string {
	if m.err != nil {
		return theme.HelpStyle.Render("could not load conversations: " + m.err.Error())
	}
	return m.list.View()
}

// SetSize updates the inbox dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}
