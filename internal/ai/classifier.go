package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/yaontheroad/email-agents/internal/model"
)

// ClassifyBodyLimit bounds the body text sent for classification.
const ClassifyBodyLimit = 4000

// ErrClassificationFailed marks an email the service could not classify.
// The email is skipped; it is never retried or given a default tier.
var ErrClassificationFailed = errors.New("classification failed")

const classifySystemPrompt = `You are an executive assistant who triages a busy professional's inbox.
You are extremely selective: only surface email that truly needs a personal reply.
Automated notifications, newsletters, receipts and mass marketing are always low importance and never need a response, however urgent their wording.`

// Classifier produces one Verdict per email using a Completer.
type Classifier struct {
	svc     Completer
	timeout time.Duration
	logger  *slog.Logger
}

// NewClassifier creates a classifier. Each call to the service is bounded
// by timeout.
func NewClassifier(svc Completer, timeout time.Duration, logger *slog.Logger) *Classifier {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &Classifier{svc: svc, timeout: timeout, logger: logger}
}

// Classify returns the verdict for email or an error wrapping
// ErrClassificationFailed.
func (c *Classifier) Classify(ctx context.Context, email model.InboundEmail) (model.Verdict, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	raw, err := c.svc.Complete(ctx, Completion{
		System: classifySystemPrompt,
		Prompt: buildClassifyPrompt(email),
		JSON:   true,
	})
	if err != nil {
		return model.Verdict{}, fmt.Errorf("%w: %w", ErrClassificationFailed, err)
	}

	v, err := ParseVerdict(raw)
	if err != nil {
		return model.Verdict{}, err
	}

	c.logger.Debug("classified email",
		"subject", email.Subject,
		"importance", v.Importance,
		"needs_response", v.NeedsResponse,
		"time_sensitive", v.TimeSensitive,
	)
	return v, nil
}

func buildClassifyPrompt(email model.InboundEmail) string {
	received := email.Received
	if received == "" {
		received = "unknown"
	}

	var sb strings.Builder
	sb.WriteString("Decide whether the following email critically needs a response.\n\n")
	sb.WriteString("Mark needs_response true ONLY when the email is all of:\n")
	sb.WriteString("1. written by a real person, not an automated system\n")
	sb.WriteString("2. personalized, not sent to a list\n")
	sb.WriteString("3. asking the recipient for a specific action, answer or decision\n")
	sb.WriteString("4. carrying clear business value, a real opportunity, or a deadline\n\n")

	sb.WriteString("Email:\n")
	fmt.Fprintf(&sb, "Subject: %s\n", email.Subject)
	fmt.Fprintf(&sb, "From: %s\n", email.Sender)
	fmt.Fprintf(&sb, "Received: %s\n", received)
	sb.WriteString("Body:\n")
	sb.WriteString(truncate(strings.TrimSpace(email.Body), ClassifyBodyLimit))
	sb.WriteString("\n\n")

	sb.WriteString("Importance tiers:\n")
	sb.WriteString(`- "high": personalized, valuable or time-critical; must be handled` + "\n")
	sb.WriteString(`- "medium": possibly useful but not critical` + "\n")
	sb.WriteString(`- "low": marketing, newsletters, notifications, spam` + "\n\n")

	sb.WriteString("Reply with a single JSON object and nothing else:\n")
	sb.WriteString(`{"importance": "high" | "medium" | "low", ` +
		`"reason": string, ` +
		`"needs_response": boolean, ` +
		`"time_sensitive": boolean, ` +
		`"topics": [1 to 3 short strings]}`)
	return sb.String()
}

// wireVerdict uses pointers so absent fields are distinguishable from
// zero values.
type wireVerdict struct {
	Importance    *string   `json:"importance"`
	Reason        *string   `json:"reason"`
	NeedsResponse *bool     `json:"needs_response"`
	TimeSensitive *bool     `json:"time_sensitive"`
	Topics        *[]string `json:"topics"`
}

// ParseVerdict validates a service reply against the verdict schema.
// Every field is required with its exact JSON type and importance must be
// one of high, medium, low. Nothing is coerced.
func ParseVerdict(raw string) (model.Verdict, error) {
	body := stripCodeFence(strings.TrimSpace(raw))
	if body == "" {
		return model.Verdict{}, fmt.Errorf("%w: empty response", ErrClassificationFailed)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	var w wireVerdict
	if err := dec.Decode(&w); err != nil {
		return model.Verdict{}, fmt.Errorf("%w: decoding verdict: %w", ErrClassificationFailed, err)
	}
	if dec.More() {
		return model.Verdict{}, fmt.Errorf("%w: trailing data after verdict", ErrClassificationFailed)
	}

	var missing []string
	if w.Importance == nil {
		missing = append(missing, "importance")
	}
	if w.Reason == nil {
		missing = append(missing, "reason")
	}
	if w.NeedsResponse == nil {
		missing = append(missing, "needs_response")
	}
	if w.TimeSensitive == nil {
		missing = append(missing, "time_sensitive")
	}
	if w.Topics == nil {
		missing = append(missing, "topics")
	}
	if len(missing) > 0 {
		return model.Verdict{}, fmt.Errorf("%w: missing fields %s",
			ErrClassificationFailed, strings.Join(missing, ", "))
	}

	importance := model.Importance(*w.Importance)
	if !importance.Valid() {
		return model.Verdict{}, fmt.Errorf("%w: importance %q is not high, medium or low",
			ErrClassificationFailed, *w.Importance)
	}

	return model.Verdict{
		Importance:    importance,
		Reason:        *w.Reason,
		NeedsResponse: *w.NeedsResponse,
		TimeSensitive: *w.TimeSensitive,
		Topics:        *w.Topics,
	}, nil
}

// stripCodeFence removes a surrounding ``` or ```json fence.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
