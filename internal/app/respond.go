package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/yaontheroad/email-agents/internal/ai"
	"github.com/yaontheroad/email-agents/internal/history"
	"github.com/yaontheroad/email-agents/internal/model"
	"github.com/yaontheroad/email-agents/internal/respond"
	"github.com/yaontheroad/email-agents/internal/triage"
)

// Records loads the stored triage records. A missing store yields none.
func (a *App) Records() ([]model.TriageRecord, time.Time, error) {
	file, err := triage.LoadRecords(a.path(a.cfg.Files.Records))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, time.Time{}, nil
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	return file.Records, file.LastUpdated, nil
}

// Respond walks the stored records with prompt, drafting and sending
// replies and recording each one sent in the history ledger.
func (a *App) Respond(ctx context.Context, prompt respond.Prompter) (respond.Stats, error) {
	records, _, err := a.Records()
	if err != nil {
		return respond.Stats{}, err
	}
	if len(records) == 0 {
		fmt.Fprintln(a.out, "No emails requiring response found. Run 'mailtriage triage' first.")
		return respond.Stats{}, nil
	}

	svc, err := a.completer()
	if err != nil {
		return respond.Stats{}, err
	}
	sender, err := a.sender(ctx)
	if err != nil {
		return respond.Stats{}, err
	}

	drafter := ai.NewDrafter(svc, a.cfg.Reply.Signature, a.cfg.AI.Timeout(), a.logger)
	loop := respond.NewLoop(drafter, sender, a.Ledger(), prompt, a.out, a.logger)

	stats, err := loop.Run(ctx, records)
	a.logger.Info("respond finished",
		"sent", stats.Sent,
		"declined", stats.Declined,
		"skipped", stats.Skipped,
		"failed", stats.Failed,
	)
	return stats, err
}

// Ledger returns the response history ledger.
func (a *App) Ledger() *history.Ledger {
	return history.NewLedger(a.path(a.cfg.Files.History), a.logger)
}
