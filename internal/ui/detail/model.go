package detail

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yaontheroad/email-agents/internal/keys"
	"github.com/yaontheroad/email-agents/internal/model"
	"github.com/yaontheroad/email-agents/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// Model is the record detail view component.
type Model struct {
	record   *model.TriageRecord
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Back) {
		return m, func() tea.Msg {
			return BackMsg{}
		}
	}

	// Scrolling and paging (j/k, f/b, pgup/pgdn) are handled by the viewport.
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	if m.record == nil {
		return lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray).
			Render("No email selected")
	}
	return m.viewport.View()
}

// renderContent builds the detail text for the viewport.
func (m Model) renderContent() string {
	if m.record == nil {
		return ""
	}
	rec := m.record
	v := rec.Verdict

	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(rec.Subject))

	badges := []string{
		theme.ImportanceStyle(string(v.Importance)).Render(strings.ToUpper(string(v.Importance))),
	}
	if v.TimeSensitive {
		badges = append(badges, theme.TimeSensitiveStyle.Render("TIME SENSITIVE"))
	}
	if rec.AlreadyResponded {
		badges = append(badges, theme.RespondedStyle.Render("ALREADY RESPONDED"))
	}
	sections = append(sections, strings.Join(badges, "  "), "")

	field := func(label, value string) {
		if value == "" {
			return
		}
		sections = append(sections, fmt.Sprintf("%s %s", theme.LabelStyle.Render(fmt.Sprintf("%-9s", label)), value))
	}
	field("From:", rec.Sender)
	field("Received:", rec.Received)
	field("Topics:", strings.Join(v.Topics, ", "))
	field("Reason:", v.Reason)

	sepWidth := max(min(m.width-4, 80), 10)
	separator := lipgloss.NewStyle().
		Foreground(theme.ColorSubtle).
		Render(strings.Repeat("─", sepWidth))
	sections = append(sections, "", separator, "")

	body := rec.Body
	if strings.TrimSpace(body) == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No body")
	} else if m.width > 4 {
		body = lipgloss.NewStyle().Width(m.width - 4).Render(body)
	}
	sections = append(sections, body)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetRecord updates the record being displayed and re-renders the content.
func (m *Model) SetRecord(rec model.TriageRecord) {
	m.record = &rec
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	if m.record != nil {
		m.viewport.SetContent(m.renderContent())
	}
}
