package app

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/yaontheroad/email-agents/internal/model"
	"github.com/yaontheroad/email-agents/internal/theme"
	"github.com/yaontheroad/email-agents/internal/triage"
)

type summaryRow struct {
	label string
	value int
}

// RenderSummary prints the counts of a run followed by the retained
// emails in report order.
func RenderSummary(w io.Writer, res *triage.Result) {
	s := res.Summary

	rows := []summaryRow{
		{"Processed", s.Processed},
		{"Need response", s.Retained},
		{"Previously responded", s.AlreadyResponded},
		{"New", s.New()},
	}
	if s.Skipped > 0 {
		rows = append(rows, summaryRow{"Skipped (analysis failed)", s.Skipped})
	}

	lines := []string{theme.HeaderStyle.Render("Triage summary"), ""}
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%s %d", theme.LabelStyle.Render(fmt.Sprintf("%-26s", r.label+":")), r.value))
	}
	fmt.Fprintln(w, lipgloss.JoinVertical(lipgloss.Left, lines...))
	fmt.Fprintln(w)

	if len(res.Records) == 0 {
		fmt.Fprintln(w, theme.HelpStyle.Render("No emails requiring immediate response were found."))
		return
	}

	for i, rec := range res.Records {
		fmt.Fprintf(w, "%2d. %s\n", i+1, summaryLine(rec))
	}
}

func summaryLine(rec model.TriageRecord) string {
	importance := string(rec.Verdict.Importance)
	parts := []string{
		theme.ImportanceStyle(importance).Render("[" + strings.ToUpper(importance) + "]"),
		rec.Subject,
		lipgloss.NewStyle().Foreground(theme.ColorGray).Render("from " + rec.Sender),
	}
	if rec.Verdict.TimeSensitive {
		parts = append(parts, theme.TimeSensitiveStyle.Render("time sensitive"))
	}
	if rec.AlreadyResponded {
		parts = append(parts, theme.RespondedStyle.Render("already responded"))
	}
	return strings.Join(parts, " ")
}

// RenderHistory prints the ledger entries, oldest first.
func RenderHistory(w io.Writer, entries []model.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "No responses recorded yet.")
		return
	}
	for _, e := range entries {
		fmt.Fprintf(w, "%s  %s  %s\n",
			theme.LabelStyle.Render(e.RespondedAt.Local().Format("2006-01-02 15:04")),
			e.Subject,
			lipgloss.NewStyle().Foreground(theme.ColorGray).Render(e.Sender),
		)
	}
}
