// Package triage runs the decision-and-dedup pipeline over a batch of
// inbound email and produces the ordered set of emails needing a reply.
package triage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/yaontheroad/email-agents/internal/ai"
	"github.com/yaontheroad/email-agents/internal/dedup"
	"github.com/yaontheroad/email-agents/internal/model"
)

// BodyPreviewLimit bounds the body stored with each retained record.
const BodyPreviewLimit = 1000

// Classifier produces a verdict for one email.
type Classifier interface {
	Classify(ctx context.Context, email model.InboundEmail) (model.Verdict, error)
}

// Status is the fate of one email in a run.
type Status int

const (
	// StatusRetained means the verdict asked for a response.
	StatusRetained Status = iota
	// StatusDismissed means the verdict said no response is needed.
	StatusDismissed
	// StatusSkipped means classification failed.
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusRetained:
		return "retained"
	case StatusDismissed:
		return "dismissed"
	case StatusSkipped:
		return "skipped"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Outcome is the per-email result of a run.
type Outcome struct {
	Email            model.InboundEmail
	Verdict          model.Verdict
	AlreadyResponded bool
	Status           Status
	Err              error
}

// Summary counts outcomes for a run.
type Summary struct {
	Processed        int `json:"processed"`
	Retained         int `json:"needs_response"`
	Dismissed        int `json:"dismissed"`
	Skipped          int `json:"skipped"`
	AlreadyResponded int `json:"already_responded"`
}

// New is the number of retained emails not yet answered.
func (s Summary) New() int {
	return s.Retained - s.AlreadyResponded
}

// Result is everything a run produced.
type Result struct {
	RunID       string
	GeneratedAt time.Time

	// Outcomes holds one entry per inbound email, in input order.
	Outcomes []Outcome

	// Records holds the retained emails in report order.
	Records []model.TriageRecord

	Summary Summary
}

// Pipeline classifies and deduplicates inbound email.
type Pipeline struct {
	classifier Classifier
	workers    int
	logger     *slog.Logger
	now        func() time.Time
}

// NewPipeline creates a pipeline that runs up to workers classifications
// at once.
func NewPipeline(classifier Classifier, workers int, logger *slog.Logger) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	return &Pipeline{
		classifier: classifier,
		workers:    workers,
		logger:     logger,
		now:        time.Now,
	}
}

// Run evaluates every inbound email against the sent mail and the
// classifier. Classification failures are contained per email; Run only
// fails when ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, inbound []model.InboundEmail, sent []model.SentRecord) (*Result, error) {
	started := p.now()
	idx := dedup.NewIndex(sent)

	p.logger.Info("triage started",
		"inbound", len(inbound),
		"sent", len(sent),
		"workers", p.workers,
	)

	outcomes := make([]Outcome, len(inbound))

	var g errgroup.Group
	g.SetLimit(p.workers)
	for i, email := range inbound {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcomes[i] = p.evaluate(ctx, idx, email.WithSenderAddress())
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("triage cancelled: %w", err)
	}

	res := &Result{
		RunID:       uuid.NewString(),
		GeneratedAt: started,
		Outcomes:    outcomes,
	}
	for _, o := range outcomes {
		res.Summary.Processed++
		switch o.Status {
		case StatusSkipped:
			res.Summary.Skipped++
		case StatusDismissed:
			res.Summary.Dismissed++
		case StatusRetained:
			res.Summary.Retained++
			if o.AlreadyResponded {
				res.Summary.AlreadyResponded++
			}
			res.Records = append(res.Records, newRecord(o, started))
		}
	}
	SortRecords(res.Records)

	p.logger.Info("triage finished",
		"run_id", res.RunID,
		"processed", res.Summary.Processed,
		"needs_response", res.Summary.Retained,
		"skipped", res.Summary.Skipped,
		"elapsed", p.now().Sub(started).Round(time.Millisecond),
	)
	return res, nil
}

func (p *Pipeline) evaluate(ctx context.Context, idx *dedup.Index, email model.InboundEmail) Outcome {
	out := Outcome{
		Email:            email,
		AlreadyResponded: idx.AlreadyResponded(email),
	}

	v, err := p.classifier.Classify(ctx, email)
	if err != nil {
		out.Status = StatusSkipped
		out.Err = err
		if !errors.Is(err, ai.ErrClassificationFailed) {
			out.Err = fmt.Errorf("%w: %w", ai.ErrClassificationFailed, err)
		}
		p.logger.Warn("skipping email", "subject", email.Subject, "error", err)
		return out
	}

	out.Verdict = v
	if v.NeedsResponse {
		out.Status = StatusRetained
	} else {
		out.Status = StatusDismissed
	}
	return out
}

func newRecord(o Outcome, runTime time.Time) model.TriageRecord {
	email := o.Email
	if email.Received == "" {
		email.Received = runTime.Format(time.RFC3339)
	}
	email.Body = preview(email.Body, BodyPreviewLimit)
	return model.TriageRecord{
		InboundEmail:     email,
		Verdict:          o.Verdict,
		AlreadyResponded: o.AlreadyResponded,
	}
}

// SortRecords orders records for review: unanswered first, then
// time-sensitive first, then by importance. Equal records keep their
// relative order.
func SortRecords(records []model.TriageRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.AlreadyResponded != b.AlreadyResponded {
			return !a.AlreadyResponded
		}
		if a.Verdict.TimeSensitive != b.Verdict.TimeSensitive {
			return a.Verdict.TimeSensitive
		}
		return a.Verdict.Importance.Rank() < b.Verdict.Importance.Rank()
	})
}

// preview cuts s to n runes and marks the cut with "...".
func preview(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
