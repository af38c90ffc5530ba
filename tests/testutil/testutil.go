package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/yaontheroad/email-agents/internal/ai"
	"github.com/yaontheroad/email-agents/internal/model"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewFilesConfig points every flat file at a fresh temporary directory.
func NewFilesConfig(t *testing.T) model.FilesConfig {
	t.Helper()

	dir := t.TempDir()
	return model.FilesConfig{
		Dir:          dir,
		RecentEmails: "recent_emails.txt",
		Records:      "needs_response_emails.json",
		Report:       "needs_response_report.txt",
		History:      "response_history.json",
	}
}

// WriteFile writes content to name under dir and returns the full path.
func WriteFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}

// Email builds an inbound email with the sender address already parsed.
func Email(subject, sender, body string) model.InboundEmail {
	return model.InboundEmail{
		Subject:  subject,
		Sender:   sender,
		Received: "Mon, 02 Jun 2025 09:00:00 +0000",
		Body:     body,
	}.WithSenderAddress()
}

// VerdictJSON renders a well-formed classifier reply.
func VerdictJSON(importance string, needsResponse, timeSensitive bool) string {
	return fmt.Sprintf(
		`{"importance":%q,"reason":"test","needs_response":%t,"time_sensitive":%t,"topics":["test"]}`,
		importance, needsResponse, timeSensitive,
	)
}

// ScriptedCompleter answers each prompt by looking up the email subject
// it contains. Prompts with no scripted subject get Default, or an error
// when Default is empty.
type ScriptedCompleter struct {
	mu sync.Mutex

	// Replies maps a subject to the raw reply returned for it.
	Replies map[string]string
	// Errors maps a subject to an error returned instead of a reply.
	Errors map[string]error
	// Default is returned when no subject matches.
	Default string

	Calls []ai.Completion
}

// Complete implements ai.Completer.
func (s *ScriptedCompleter) Complete(ctx context.Context, req ai.Completion) (string, error) {
	s.mu.Lock()
	s.Calls = append(s.Calls, req)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	for subject, err := range s.Errors {
		if containsSubject(req.Prompt, subject) {
			return "", err
		}
	}
	for subject, reply := range s.Replies {
		if containsSubject(req.Prompt, subject) {
			return reply, nil
		}
	}
	if s.Default == "" {
		return "", fmt.Errorf("no scripted reply")
	}
	return s.Default, nil
}

// CallCount returns the number of completions requested so far.
func (s *ScriptedCompleter) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Calls)
}

func containsSubject(prompt, subject string) bool {
	return strings.Contains(prompt, "Subject: "+subject+"\n")
}
