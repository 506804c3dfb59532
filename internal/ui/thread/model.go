// Package thread renders one open conversation: the message history in
// a viewport and a composer line below it. Sends are optimistic; a
// provisional row shows immediately and a failed send restores the
// composer with the text for retry.
package thread

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/bookswap/bookswap/internal/chat"
	"github.com/bookswap/bookswap/internal/keys"
	"github.com/bookswap/bookswap/internal/model"
	"github.com/bookswap/bookswap/internal/theme"
)

const sendTimeout = 15 * time.Second

// BackMsg asks to return to the inbox.
type BackMsg struct{}

// OpenPinFormMsg asks to open the map pin composer.
type OpenPinFormMsg struct{}

// RefreshMsg forces a re-render of the message history.
type RefreshMsg struct{}

// sendResultMsg reports a completed (or failed) send.
type sendResultMsg struct {
	content string
	err     error
}

// Model is the Bubble Tea model for the conversation view.
type Model struct {
	keys   *keys.KeyMap
	thread *chat.Thread

	viewport viewport.Model
	input    textinput.Model
	sendErr  error

	width  int
	height int
}

// New creates a thread view over the given conversation.
func New(t *chat.Thread, km *keys.KeyMap, width, height int) Model {
	input := textinput.New()
	input.Placeholder = "Write a message…"
	input.Focus()
	input.CharLimit = 2000
	input.Width = width - 4

	vp := viewport.New(width, height-3)

	m := Model{
		keys:     km,
		thread:   t,
		viewport: vp,
		input:    input,
		width:    width,
		height:   height,
	}
	m.refreshViewport()
	return m
}

// Thread returns the underlying conversation thread.
func (m Model) Thread() *chat.Thread {
	return m.thread
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the conversation view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case RefreshMsg:
		m.refreshViewport()
		return m, nil

	case sendResultMsg:
		if msg.err != nil {
			// Restore the draft so a failed send is one keypress
			// away from retry.
			m.sendErr = msg.err
			m.input.SetValue(msg.content)
		}
		m.refreshViewport()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.MapPin):
			return m, func() tea.Msg { return OpenPinFormMsg{} }

		case key.Matches(msg, m.keys.Send):
			content := strings.TrimSpace(m.input.Value())
			if content == "" {
				return m, nil
			}
			m.input.SetValue("")
			m.sendErr = nil
			cmd := m.sendCmd(content)
			m.refreshViewport()
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// sendCmd performs the send off the UI goroutine. The provisional row
// is already visible by the time the command runs.
func (m Model) sendCmd(content string) tea.Cmd {
	t := m.thread
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		_, err := t.Send(ctx, content)
		return sendResultMsg{content: content, err: err}
	}
}

// SendPinCmd sends a map pin through the same optimistic path.
func (m Model) SendPinCmd(pin model.MapPin) tea.Cmd {
	t := m.thread
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()

		_, err := t.SendMapPin(ctx, pin)
		return sendResultMsg{err: err}
	}
}

// refreshViewport re-renders the message history and pins the view to
// the bottom.
func (m *Model) refreshViewport() {
	var b strings.Builder
	for _, msg := range m.thread.Messages() {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

// renderMessage draws one message row.
func (m Model) renderMessage(msg model.Message) string {
	own := msg.Sender != m.thread.Other().Email

	body := msg.Content
	if msg.IsMapPin() {
		body = fmt.Sprintf("📍 %s (%.5f, %.5f)", msg.MapPin.Note, msg.MapPin.Lat, msg.MapPin.Lng)
	}

	timeStr := theme.DimmedStyle.Render(msg.CreatedAt.Format(time.Kitchen))

	switch {
	case msg.Pending:
		return theme.PendingStyle.Render("you: "+body) + " " + theme.DimmedStyle.Render("(sending…)")
	case own:
		return theme.OwnMessageStyle.Render("you: "+body) + " " + timeStr
	default:
		name := m.thread.Other().Name
		if name == "" {
			name = m.thread.Other().Email
		}
		return theme.PeerMessageStyle.Render(name+": "+body) + " " + timeStr
	}
}

// View renders the conversation view.
func (m Model) View() string {
	composer := theme.BorderStyle.Width(m.width - 2).Render(m.input.View())

	parts := []string{m.viewport.View(), composer}
	if m.sendErr != nil {
		parts = append(parts, theme.HelpStyle.Render("send failed: "+m.sendErr.Error()+" (press enter to retry)"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 3
	m.input.Width = width - 4
	m.refreshViewport()
}
