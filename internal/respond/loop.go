// Package respond drives the interactive draft, edit and send loop over
// the stored triage records.
package respond

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/yaontheroad/email-agents/internal/ai"
	"github.com/yaontheroad/email-agents/internal/model"
	"github.com/yaontheroad/email-agents/internal/source"
)

// Action is the user's decision about a draft.
type Action string

const (
	ActionSend Action = "send"
	ActionNo   Action = "no"
	ActionEdit Action = "edit"
	ActionSkip Action = "skip"
)

// Prompter collects decisions from the user.
type Prompter interface {
	// ConfirmAnyway asks whether to process an email already answered.
	ConfirmAnyway(rec model.TriageRecord) (bool, error)

	// ChooseAction asks what to do with draft.
	ChooseAction(rec model.TriageRecord, draft ai.Draft) (Action, error)

	// EditInstructions asks how the draft should be rewritten.
	EditInstructions() (string, error)
}

// Drafter writes reply drafts.
type Drafter interface {
	Draft(ctx context.Context, email model.InboundEmail, instructions string) (ai.Draft, error)
}

// Ledger records answered emails.
type Ledger interface {
	Append(entry model.HistoryEntry) error
}

// Stats counts what happened to each record.
type Stats struct {
	Sent     int
	Declined int
	Skipped  int
	Failed   int
}

// Loop walks records one at a time.
type Loop struct {
	drafter Drafter
	sender  source.Sender
	ledger  Ledger
	prompt  Prompter
	out     io.Writer
	logger  *slog.Logger
}

// NewLoop creates a respond loop that prints progress to out.
func NewLoop(
	drafter Drafter,
	sender source.Sender,
	ledger Ledger,
	prompt Prompter,
	out io.Writer,
	logger *slog.Logger,
) *Loop {
	return &Loop{
		drafter: drafter,
		sender:  sender,
		ledger:  ledger,
		prompt:  prompt,
		out:     out,
		logger:  logger,
	}
}

// Run processes records in order. It stops early when a prompt fails
// (for example when the user aborts) or the mail server rejects the
// credentials; per-email drafting and delivery failures are counted and
// skipped.
func (l *Loop) Run(ctx context.Context, records []model.TriageRecord) (Stats, error) {
	var stats Stats

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		fmt.Fprintln(l.out, strings.Repeat("=", 50))
		fmt.Fprintf(l.out, "Email %d/%d\n", i+1, len(records))
		fmt.Fprintf(l.out, "Subject: %s\n", rec.Subject)
		fmt.Fprintf(l.out, "From: %s\n", rec.Sender)

		if rec.AlreadyResponded {
			fmt.Fprintln(l.out, "STATUS: ✅ ALREADY RESPONDED")
			ok, err := l.prompt.ConfirmAnyway(rec)
			if err != nil {
				return stats, err
			}
			if !ok {
				fmt.Fprintln(l.out, "Skipping to next email...")
				stats.Skipped++
				continue
			}
		}

		outcome, err := l.handle(ctx, rec)
		if err != nil {
			return stats, err
		}
		switch outcome {
		case ActionSend:
			stats.Sent++
		case ActionNo:
			stats.Declined++
		case ActionSkip:
			stats.Skipped++
		default:
			stats.Failed++
		}
		fmt.Fprintln(l.out)
	}

	fmt.Fprintln(l.out, "All emails processed.")
	return stats, nil
}

// handle drafts and resolves one record. The empty Action means the
// record failed.
func (l *Loop) handle(ctx context.Context, rec model.TriageRecord) (Action, error) {
	draft, err := l.drafter.Draft(ctx, rec.InboundEmail, "")
	if err != nil {
		l.logger.Warn("drafting failed", "subject", rec.Subject, "error", err)
		fmt.Fprintln(l.out, "Failed to generate a response. Skipping to next email.")
		return "", nil
	}

	for {
		l.printDraft(rec, draft)

		action, err := l.prompt.ChooseAction(rec, draft)
		if err != nil {
			return "", err
		}

		switch action {
		case ActionSend:
			return l.send(ctx, rec, draft)

		case ActionNo:
			fmt.Fprintln(l.out, "Skipping this email.")
			return ActionNo, nil

		case ActionSkip:
			fmt.Fprintln(l.out, "Marked as skipped.")
			return ActionSkip, nil

		case ActionEdit:
			instructions, err := l.prompt.EditInstructions()
			if err != nil {
				return "", err
			}
			if strings.TrimSpace(instructions) == "" {
				continue
			}

			fmt.Fprintln(l.out, "Generating new response based on your instructions...")
			redraft, err := l.drafter.Draft(ctx, rec.InboundEmail, instructions)
			if err != nil {
				l.logger.Warn("redrafting failed", "subject", rec.Subject, "error", err)
				fmt.Fprintln(l.out, "Failed to generate edited response. Keeping previous draft.")
				continue
			}
			draft = redraft

		default:
			fmt.Fprintln(l.out, "Invalid choice. Choose send, no, edit or skip.")
		}
	}
}

func (l *Loop) send(ctx context.Context, rec model.TriageRecord, draft ai.Draft) (Action, error) {
	to := rec.SenderAddress
	if to == "" {
		to = model.ExtractAddress(rec.Sender)
	}
	if to == "" {
		fmt.Fprintln(l.out, "Error: No email address found for recipient.")
		return "", nil
	}

	fmt.Fprintf(l.out, "Sending email to %s...\n", to)
	err := l.sender.Send(ctx, source.Outbound{
		To:        to,
		Subject:   draft.Subject,
		Body:      draft.Body,
		InReplyTo: rec.MessageID,
	})
	if err != nil {
		if source.IsAuthError(err) {
			return "", fmt.Errorf("sending reply: %w", err)
		}
		l.logger.Error("sending failed", "to", to, "error", err)
		fmt.Fprintln(l.out, "Failed to send email.")
		return "", nil
	}
	fmt.Fprintln(l.out, "Email sent successfully!")

	if err := l.ledger.Append(model.HistoryEntry{Subject: rec.Subject, Sender: rec.Sender}); err != nil {
		// The mail is already out; a ledger failure does not undo it.
		l.logger.Error("recording response history", "subject", rec.Subject, "error", err)
	}
	return ActionSend, nil
}

func (l *Loop) printDraft(rec model.TriageRecord, draft ai.Draft) {
	rule := strings.Repeat("-", 50)
	to := rec.SenderAddress
	if to == "" {
		to = "(no address)"
	}

	fmt.Fprintln(l.out)
	fmt.Fprintln(l.out, "DRAFT RESPONSE:")
	fmt.Fprintln(l.out, rule)
	fmt.Fprintf(l.out, "To: %s\n", to)
	fmt.Fprintf(l.out, "Subject: %s\n", draft.Subject)
	fmt.Fprintln(l.out, rule)
	fmt.Fprintln(l.out, draft.Body)
	fmt.Fprintln(l.out, rule)
}
