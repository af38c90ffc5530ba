package app

import (
	"context"
	"fmt"
	"time"

	"github.com/yaontheroad/email-agents/internal/ai"
	"github.com/yaontheroad/email-agents/internal/dump"
	"github.com/yaontheroad/email-agents/internal/model"
	"github.com/yaontheroad/email-agents/internal/triage"
)

// TriageOptions tune a triage run.
type TriageOptions struct {
	// FromDump classifies the existing dump file instead of fetching
	// inbound mail. Sent mail is still fetched for dedup.
	FromDump bool
}

// Triage fetches recent mail, classifies it and replaces the record
// store and report. Nothing is written when fetching fails.
func (a *App) Triage(ctx context.Context, opts TriageOptions) (*triage.Result, error) {
	mailbox, err := a.mailbox()
	if err != nil {
		return nil, err
	}
	svc, err := a.completer()
	if err != nil {
		return nil, err
	}

	now := a.now()
	dumpPath := a.path(a.cfg.Files.RecentEmails)

	var fetched []model.InboundEmail
	if !opts.FromDump {
		since := now.Add(-time.Duration(a.cfg.Window.InboundHours) * time.Hour)
		fetched, err = mailbox.FetchInbound(ctx, since)
		if err != nil {
			return nil, err
		}
		a.logger.Info("fetched inbound mail", "count", len(fetched), "since", since.Format(time.RFC3339))
	}

	sentSince := now.AddDate(0, 0, -a.cfg.Window.SentDays)
	sent, err := mailbox.FetchSent(ctx, sentSince)
	if err != nil {
		return nil, err
	}
	a.logger.Info("fetched sent mail", "count", len(sent), "since", sentSince.Format(time.RFC3339))

	if !opts.FromDump {
		if err := dump.Save(dumpPath, fetched); err != nil {
			return nil, fmt.Errorf("saving recent emails: %w", err)
		}
	}

	inbound := dump.Load(dumpPath, a.logger)

	classifier := ai.NewClassifier(svc, a.cfg.AI.Timeout(), a.logger)
	res, err := triage.NewPipeline(classifier, a.cfg.AI.Workers, a.logger).Run(ctx, inbound, sent)
	if err != nil {
		return nil, err
	}

	if err := res.WriteRecords(a.path(a.cfg.Files.Records)); err != nil {
		return nil, err
	}
	if err := res.WriteReport(a.path(a.cfg.Files.Report)); err != nil {
		return nil, err
	}
	a.logger.Info("triage results saved",
		"records", a.path(a.cfg.Files.Records),
		"report", a.path(a.cfg.Files.Report),
	)
	return res, nil
}
