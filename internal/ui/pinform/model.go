package pinform

import (
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/bookswap/bookswap/internal/model"
	"github.com/bookswap/bookswap/internal/theme"
)

// PinSubmittedMsg is dispatched when the user submits a meeting point.
type PinSubmittedMsg struct {
	Pin model.MapPin
}

// PinCancelMsg is dispatched when the user cancels the form.
type PinCancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	lat  string
	lng  string
	note string
}

// Model is the Bubble Tea model for the map pin composer.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	width  int
	height int
}

// New creates a new pin form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
}

// Start initializes the form for composing a pin.
func (m *Model) Start() tea.Cmd {
	m.fb.lat = ""
	m.fb.lng = ""
	m.fb.note = "Let's meet here"
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the pin form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		return m, m.handleSubmit()
	}
	if m.form.State == huh.StateAborted {
		return m, func() tea.Msg { return PinCancelMsg{} }
	}

	return m, cmd
}

// View renders the pin form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	content := titleStyle.Render("Share a Meeting Point") + "\n" + m.form.View()

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(content)
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Latitude").
				Placeholder("e.g. 52.52000").
				Value(&m.fb.lat).
				Validate(validateCoordinate(-90, 90)),
			huh.NewInput().
				Title("Longitude").
				Placeholder("e.g. 13.40500").
				Value(&m.fb.lng).
				Validate(validateCoordinate(-180, 180)),
			huh.NewInput().
				Title("Note").
				Placeholder("Optional note for the pin").
				Value(&m.fb.note),
		),
	).WithWidth(m.formWidth())
}

func (m Model) handleSubmit() tea.Cmd {
	lat, _ := strconv.ParseFloat(strings.TrimSpace(m.fb.lat), 64)
	lng, _ := strconv.ParseFloat(strings.TrimSpace(m.fb.lng), 64)
	pin := model.MapPin{Lat: lat, Lng: lng, Note: m.fb.note}
	return func() tea.Msg { return PinSubmittedMsg{Pin: pin} }
}

func (m Model) formWidth() int {
	w := m.width - 4
	if w < 40 {
		w = 40
	}
	if w > 100 {
		w = 100
	}
	return w
}

func validateCoordinate(min, max float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return fmt.Errorf("enter a decimal number")
		}
		if v < min || v > max {
			return fmt.Errorf("must be between %.0f and %.0f", min, max)
		}
		return nil
	}
}
