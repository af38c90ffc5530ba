package recordlist

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yaontheroad/email-agents/internal/model"
	"github.com/yaontheroad/email-agents/internal/theme"
)

// RecordItem wraps a model.TriageRecord so it can be used in a bubbles/list.
type RecordItem struct {
	Record model.TriageRecord
}

// FilterValue returns the string used for fuzzy filtering.
func (i RecordItem) FilterValue() string { return i.Record.Subject }

// Title returns the email subject for the list.
func (i RecordItem) Title() string { return i.Record.Subject }

// Description returns a short summary line for the list.
func (i RecordItem) Description() string {
	parts := []string{
		i.Record.Sender,
		string(i.Record.Verdict.Importance),
		relativeTime(i.Record.Received, time.Now()),
	}
	return strings.Join(parts, " | ")
}

// ItemDelegate implements list.ItemDelegate for rendering records.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single record line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	ri, ok := item.(RecordItem)
	if !ok {
		return
	}
	fmt.Fprint(w, renderLine(ri.Record, index == m.Index()))
}

func renderLine(rec model.TriageRecord, selected bool) string {
	importance := string(rec.Verdict.Importance)
	impBadge := theme.ImportanceStyle(importance).Render(fmt.Sprintf("%-6s", strings.ToUpper(importance)))

	flags := ""
	if rec.Verdict.TimeSensitive {
		flags += theme.TimeSensitiveStyle.Render(" ⏱")
	}
	if rec.AlreadyResponded {
		flags += theme.RespondedStyle.Render(" ✓")
	}

	sender := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(shortSender(rec.Sender))

	line := fmt.Sprintf("● %s %s%s  %s", impBadge, rec.Subject, flags, sender)

	if selected {
		return theme.SelectedItemStyle.Render(line)
	}
	return theme.ListItemStyle.Render(line)
}

// shortSender drops the address part of "Name <addr>" when a name exists.
func shortSender(sender string) string {
	if i := strings.Index(sender, "<"); i > 0 {
		return strings.TrimSpace(sender[:i])
	}
	return sender
}

// relativeTime turns an RFC 1123Z or RFC 3339 timestamp into a short
// relative string. Unparseable values are returned unchanged.
func relativeTime(received string, now time.Time) string {
	t, err := time.Parse(time.RFC1123Z, received)
	if err != nil {
		t, err = time.Parse(time.RFC3339, received)
		if err != nil {
			return received
		}
	}

	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}
