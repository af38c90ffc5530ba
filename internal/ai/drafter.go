package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yaontheroad/email-agents/internal/model"
)

const (
	// DraftPreviewLimit bounds the stored body quoted in a first draft.
	DraftPreviewLimit = 1000
	// RedraftPreviewLimit bounds the quoted body when rewriting a draft.
	RedraftPreviewLimit = 500

	draftSystemPrompt = "You are a professional, concise email responder who crafts helpful, direct responses to business inquiries."
)

// Draft is a proposed reply.
type Draft struct {
	Subject string
	Body    string
}

// Drafter writes reply drafts for triaged emails.
type Drafter struct {
	svc       Completer
	signature string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewDrafter creates a drafter that signs replies with signature.
func NewDrafter(svc Completer, signature string, timeout time.Duration, logger *slog.Logger) *Drafter {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Drafter{svc: svc, signature: signature, timeout: timeout, logger: logger}
}

// Draft asks the service for a reply to email. When instructions is not
// empty the service is asked to rewrite the reply following them.
func (d *Drafter) Draft(ctx context.Context, email model.InboundEmail, instructions string) (Draft, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	var prompt string
	if strings.TrimSpace(instructions) != "" {
		prompt = d.redraftPrompt(email, instructions)
	} else {
		prompt = d.draftPrompt(email)
	}

	raw, err := d.svc.Complete(ctx, Completion{System: draftSystemPrompt, Prompt: prompt})
	if err != nil {
		return Draft{}, fmt.Errorf("drafting reply: %w", err)
	}

	draft, err := ParseDraft(raw, email.Subject)
	if err != nil {
		return Draft{}, err
	}
	d.logger.Debug("drafted reply", "subject", draft.Subject, "redraft", instructions != "")
	return draft, nil
}

func (d *Drafter) draftPrompt(email model.InboundEmail) string {
	var sb strings.Builder
	sb.WriteString("Create a concise and helpful email response for the following inquiry:\n\n")
	writeQuoted(&sb, email, DraftPreviewLimit)
	sb.WriteString("\nRequirements:\n")
	sb.WriteString("1. Keep the response friendly but brief and to the point\n")
	sb.WriteString("2. Address any specific questions or requests in the email\n")
	sb.WriteString("3. Be professional and helpful\n")
	fmt.Fprintf(&sb, "4. Always end with \"Best regards,\\n%s\"\n", d.signature)
	sb.WriteString("5. Include appropriate subject line with \"Re: \" prefix\n")
	sb.WriteString("6. Don't be overly verbose - keep it under 150 words\n")
	sb.WriteString("7. Don't apologize for delay unless clearly necessary\n\n")
	d.writeFormat(&sb)
	return sb.String()
}

func (d *Drafter) redraftPrompt(email model.InboundEmail, instructions string) string {
	var sb strings.Builder
	sb.WriteString("Rewrite the email response based on these instructions:\n\n")
	sb.WriteString("Original Email:\n")
	writeQuoted(&sb, email, RedraftPreviewLimit)
	fmt.Fprintf(&sb, "\nInstructions for rewriting: %s\n\n", strings.TrimSpace(instructions))
	d.writeFormat(&sb)
	return sb.String()
}

func writeQuoted(sb *strings.Builder, email model.InboundEmail, limit int) {
	fmt.Fprintf(sb, "Subject: %s\n", email.Subject)
	fmt.Fprintf(sb, "From: %s\n", email.Sender)
	fmt.Fprintf(sb, "Preview: %s\n", truncate(email.Body, limit))
}

func (d *Drafter) writeFormat(sb *strings.Builder) {
	sb.WriteString("Your response should be formatted as:\n")
	sb.WriteString("Subject: Re: [Original Subject]\n\n")
	sb.WriteString("[Email body]\n\n")
	fmt.Fprintf(sb, "Best regards,\n%s\n", d.signature)
}

// ParseDraft splits a service reply into subject and body. A first line
// starting with "Subject:" supplies the subject; otherwise the reply is
// all body and the subject is "Re: " plus origSubject.
func ParseDraft(raw, origSubject string) (Draft, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return Draft{}, errors.New("drafting reply: empty response")
	}

	first, rest, _ := strings.Cut(text, "\n")
	first = strings.TrimSpace(first)
	if after, ok := strings.CutPrefix(first, "Subject:"); ok {
		subject := strings.TrimSpace(after)
		if subject == "" {
			subject = replySubject(origSubject)
		}
		body := strings.TrimSpace(rest)
		if body == "" {
			return Draft{}, errors.New("drafting reply: response has no body")
		}
		return Draft{Subject: subject, Body: body}, nil
	}

	return Draft{Subject: replySubject(origSubject), Body: text}, nil
}

func replySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
