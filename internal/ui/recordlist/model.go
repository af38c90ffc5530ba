package recordlist

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yaontheroad/email-agents/internal/keys"
	"github.com/yaontheroad/email-agents/internal/model"
	"github.com/yaontheroad/email-agents/internal/theme"
)

// SelectedRecordMsg is sent when the user opens a record.
type SelectedRecordMsg struct {
	Record model.TriageRecord
}

// Model is the record list view component.
type Model struct {
	list          list.Model
	keys          *keys.KeyMap
	records       []model.TriageRecord
	hideResponded bool
	width         int
	height        int
}

// New creates a list over records, which are shown in the given order.
func New(records []model.TriageRecord, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height)
	l.Title = "Emails requiring response"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	l.Styles.Title = theme.HeaderStyle

	m := Model{
		list:    l,
		keys:    k,
		records: records,
		width:   width,
		height:  height,
	}
	m.refresh()
	return m
}

// Init returns no initial command; records are already in memory.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Select):
			item, ok := m.list.SelectedItem().(RecordItem)
			if !ok {
				return m, nil
			}
			return m, func() tea.Msg {
				return SelectedRecordMsg{Record: item.Record}
			}

		case key.Matches(msg, m.keys.ToggleResponded):
			m.hideResponded = !m.hideResponded
			m.refresh()
			return m, nil
		}
	}

	// Navigation keys go to the list.
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// refresh rebuilds the list items from records and the current filter.
func (m *Model) refresh() {
	items := make([]list.Item, 0, len(m.records))
	for _, rec := range m.records {
		if m.hideResponded && rec.AlreadyResponded {
			continue
		}
		items = append(items, RecordItem{Record: rec})
	}
	m.list.SetItems(items)
	m.list.Select(0)
}

// Visible returns the records currently listed.
func (m Model) Visible() []model.TriageRecord {
	items := m.list.Items()
	out := make([]model.TriageRecord, 0, len(items))
	for _, it := range items {
		if ri, ok := it.(RecordItem); ok {
			out = append(out, ri.Record)
		}
	}
	return out
}

// Selected returns the highlighted record, if any.
func (m Model) Selected() (model.TriageRecord, bool) {
	ri, ok := m.list.SelectedItem().(RecordItem)
	return ri.Record, ok
}

// HidingResponded reports whether already-responded records are hidden.
func (m Model) HidingResponded() bool {
	return m.hideResponded
}

// View renders the list view.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}
	return m.list.View()
}

func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.hideResponded && len(m.records) > 0 {
		return style.Render("Every email here was already answered.\nPress r to show them.")
	}
	return style.Render(
		"No emails requiring response.\n\n" +
			"Run 'mailtriage triage' to analyze your inbox.",
	)
}

// SetSize updates the list view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}
