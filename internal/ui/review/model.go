// Package review is the read-only terminal browser over stored triage
// records.
package review

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/yaontheroad/email-agents/internal/keys"
	"github.com/yaontheroad/email-agents/internal/model"
	"github.com/yaontheroad/email-agents/internal/ui"
	"github.com/yaontheroad/email-agents/internal/ui/detail"
	helpview "github.com/yaontheroad/email-agents/internal/ui/help"
	"github.com/yaontheroad/email-agents/internal/ui/recordlist"
)

// ViewState is the active view.
type ViewState int

const (
	ViewList ViewState = iota
	ViewDetail
	ViewHelp
)

// Model is the root Bubble Tea model of the review browser.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	list         recordlist.Model
	detail       detail.Model
	helpView     helpview.Model
	records      []model.TriageRecord
	updated      time.Time
	ready        bool
}

// New creates a browser over records, last written at updated.
func New(records []model.TriageRecord, updated time.Time) Model {
	k := keys.DefaultKeyMap()
	return Model{
		currentView: ViewList,
		layout:      ui.NewLayout(80, 24),
		keys:        k,
		list:        recordlist.New(records, k, 80, 22),
		detail:      detail.New(k, 80, 22),
		helpView:    helpview.New(k, 80, 22),
		records:     records,
		updated:     updated,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		h := m.layout.ContentHeight()
		m.list.SetSize(msg.Width, h)
		m.detail.SetSize(msg.Width, h)
		m.helpView.SetSize(msg.Width, h)
		return m, nil

	case recordlist.SelectedRecordMsg:
		m.previousView = m.currentView
		m.currentView = ViewDetail
		m.detail.SetRecord(msg.Record)
		return m, nil

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if key.Matches(msg, m.keys.Help) {
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
			} else {
				m.previousView = m.currentView
				m.currentView = ViewHelp
			}
			return m, nil
		}
		if m.currentView == ViewHelp && key.Matches(msg, m.keys.Back) {
			m.currentView = m.previousView
			return m, nil
		}
	}

	return m.updateActiveView(msg)
}

func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.currentView {
	case ViewList:
		m.list, cmd = m.list.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	}
	return m, cmd
}

// CurrentView returns the active view.
func (m Model) CurrentView() ViewState {
	return m.currentView
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	var content string
	switch m.currentView {
	case ViewDetail:
		content = m.detail.View()
	case ViewHelp:
		content = m.helpView.View()
	default:
		content = m.list.View()
	}

	return m.layout.Frame(
		m.layout.RenderHeader("mailtriage", m.headerInfo()),
		content,
		m.layout.RenderStatusBar(m.helpView.ShortView()),
	)
}

func (m Model) headerInfo() string {
	responded := 0
	for _, r := range m.records {
		if r.AlreadyResponded {
			responded++
		}
	}
	info := fmt.Sprintf("%d need response, %d already responded", len(m.records), responded)
	if !m.updated.IsZero() {
		info += " | updated " + m.updated.Local().Format("2006-01-02 15:04")
	}
	return info
}

// Run starts the browser in the alternate screen and blocks until the
// user quits.
func Run(records []model.TriageRecord, updated time.Time) error {
	_, err := tea.NewProgram(New(records, updated), tea.WithAltScreen()).Run()
	return err
}
