package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaontheroad/email-agents/internal/ai"
	"github.com/yaontheroad/email-agents/internal/credential"
	"github.com/yaontheroad/email-agents/internal/model"
	"github.com/yaontheroad/email-agents/internal/respond"
	"github.com/yaontheroad/email-agents/internal/source"
	"github.com/yaontheroad/email-agents/tests/testutil"
)

var fixedNow = time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

type fakeMailbox struct {
	inbound    []model.InboundEmail
	sent       []model.SentRecord
	inboundErr error
	sentErr    error

	inboundSince time.Time
	sentSince    time.Time
}

func (m *fakeMailbox) FetchInbound(_ context.Context, since time.Time) ([]model.InboundEmail, error) {
	m.inboundSince = since
	return m.inbound, m.inboundErr
}

func (m *fakeMailbox) FetchSent(_ context.Context, since time.Time) ([]model.SentRecord, error) {
	m.sentSince = since
	return m.sent, m.sentErr
}

type fakeSender struct {
	sent []source.Outbound
}

func (s *fakeSender) Send(_ context.Context, msg source.Outbound) error {
	s.sent = append(s.sent, msg)
	return nil
}

// sendAll sends every draft and processes already-responded emails too.
type sendAll struct{}

func (sendAll) ConfirmAnyway(model.TriageRecord) (bool, error) {
	return true, nil
}

func (sendAll) ChooseAction(model.TriageRecord, ai.Draft) (respond.Action, error) {
	return respond.ActionSend, nil
}

func (sendAll) EditInstructions() (string, error) {
	return "", nil
}

func testConfig(t *testing.T) *model.AppConfig {
	return &model.AppConfig{
		Mailbox: model.MailboxConfig{Transport: "smtp"},
		Window:  model.WindowConfig{InboundHours: 24, SentDays: 7},
		AI:      model.AIConfig{Provider: "openai", Workers: 2, TimeoutSec: 5},
		Reply:   model.ReplyConfig{Signature: "Kris"},
		Files:   testutil.NewFilesConfig(t),
	}
}

func newTestApp(t *testing.T, deps Deps) (*App, *bytes.Buffer) {
	t.Helper()
	if deps.Credentials == nil {
		deps.Credentials = credential.NewStoreWith(keyring.NewArrayKeyring(nil))
	}
	var out bytes.Buffer
	a := NewWith(testConfig(t), testutil.DiscardLogger(), &out, deps)
	a.now = func() time.Time { return fixedNow }
	return a, &out
}

func inbox() *fakeMailbox {
	return &fakeMailbox{
		inbound: []model.InboundEmail{
			testutil.Email("Budget", "Alice <alice@x.com>", "Can you approve the Q3 budget?"),
			testutil.Email("Newsletter", "News <news@x.com>", "This week in news"),
			testutil.Email("Contract", "Bob <bob@x.com>", "Please sign by Friday"),
		},
		sent: []model.SentRecord{
			{Subject: "Re: Contract", Recipients: []string{"bob@x.com"}, SentTime: "Sun, 01 Jun 2025 10:00:00 +0000"},
		},
	}
}

func classifierReplies() *testutil.ScriptedCompleter {
	return &testutil.ScriptedCompleter{Replies: map[string]string{
		"Budget":     testutil.VerdictJSON("medium", true, false),
		"Newsletter": testutil.VerdictJSON("low", false, false),
		"Contract":   testutil.VerdictJSON("high", true, true),
	}}
}

func TestTriage_EndToEnd(t *testing.T) {
	mailbox := inbox()
	a, _ := newTestApp(t, Deps{Mailbox: mailbox, Completer: classifierReplies()})

	res, err := a.Triage(context.Background(), TriageOptions{})
	require.NoError(t, err)

	assert.Equal(t, fixedNow.Add(-24*time.Hour), mailbox.inboundSince)
	assert.Equal(t, fixedNow.AddDate(0, 0, -7), mailbox.sentSince)

	assert.Equal(t, 3, res.Summary.Processed)
	assert.Equal(t, 2, res.Summary.Retained)
	assert.Equal(t, 1, res.Summary.AlreadyResponded)

	records, _, err := a.Records()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "Budget", records[0].Subject, "unanswered emails come first")
	assert.Equal(t, "Contract", records[1].Subject)
	assert.True(t, records[1].AlreadyResponded)

	dumpText, err := os.ReadFile(a.path(a.cfg.Files.RecentEmails))
	require.NoError(t, err)
	assert.Contains(t, string(dumpText), "Subject: Newsletter\n")

	report, err := os.ReadFile(a.path(a.cfg.Files.Report))
	require.NoError(t, err)
	assert.Contains(t, string(report), "EMAILS REQUIRING RESPONSE")
	assert.Contains(t, string(report), "Subject: Contract")
}

func TestTriage_FetchFailureWritesNothing(t *testing.T) {
	mailbox := inbox()
	mailbox.sentErr = &source.GatewayError{Op: "fetching sent mail", Err: errors.New("connection reset")}
	a, _ := newTestApp(t, Deps{Mailbox: mailbox, Completer: classifierReplies()})

	_, err := a.Triage(context.Background(), TriageOptions{})
	require.Error(t, err)
	assert.True(t, source.IsGatewayError(err))

	for _, name := range []string{a.cfg.Files.RecentEmails, a.cfg.Files.Records, a.cfg.Files.Report} {
		_, statErr := os.Stat(a.path(name))
		assert.True(t, os.IsNotExist(statErr), name)
	}
}

func TestTriage_FromDump(t *testing.T) {
	mailbox := &fakeMailbox{inboundErr: errors.New("must not fetch inbound")}
	a, _ := newTestApp(t, Deps{Mailbox: mailbox, Completer: classifierReplies()})

	testutil.WriteFile(t, a.cfg.Files.Dir, a.cfg.Files.RecentEmails,
		"Subject: Budget\nFrom: Alice <alice@x.com>\nReceived: Mon, 02 Jun 2025 08:00:00 +0000\nBody: approve?\n"+
			"--------------------------------------------------\n")

	res, err := a.Triage(context.Background(), TriageOptions{FromDump: true})
	require.NoError(t, err)
	require.Len(t, res.Records, 1)
	assert.Equal(t, "alice@x.com", res.Records[0].SenderAddress)
}

func TestTriage_MissingAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	a, _ := newTestApp(t, Deps{Mailbox: inbox()})

	_, err := a.Triage(context.Background(), TriageOptions{})
	assert.ErrorContains(t, err, "API key")
}

func TestRespond_NoRecords(t *testing.T) {
	a, out := newTestApp(t, Deps{})

	stats, err := a.Respond(context.Background(), sendAll{})
	require.NoError(t, err)
	assert.Equal(t, respond.Stats{}, stats)
	assert.Contains(t, out.String(), "Run 'mailtriage triage' first.")
}

func TestRespond_SendsAndRecordsHistory(t *testing.T) {
	a, _ := newTestApp(t, Deps{Mailbox: inbox(), Completer: classifierReplies()})
	_, err := a.Triage(context.Background(), TriageOptions{})
	require.NoError(t, err)

	sender := &fakeSender{}
	a.deps.Sender = sender
	a.deps.Completer = &testutil.ScriptedCompleter{Replies: map[string]string{
		"Budget":   "Subject: Re: Budget\n\nApproved.\n\nKris",
		"Contract": "Subject: Re: Contract\n\nSigned.\n\nKris",
	}}

	stats, err := a.Respond(context.Background(), sendAll{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Sent)

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "alice@x.com", sender.sent[0].To)
	assert.Equal(t, "Re: Budget", sender.sent[0].Subject)

	entries := a.Ledger().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "Budget", entries[0].Subject)
	assert.Equal(t, "Alice <alice@x.com>", entries[0].Sender)
}

func TestRenderSummary(t *testing.T) {
	a, _ := newTestApp(t, Deps{Mailbox: inbox(), Completer: classifierReplies()})
	res, err := a.Triage(context.Background(), TriageOptions{})
	require.NoError(t, err)

	var buf bytes.Buffer
	RenderSummary(&buf, res)
	text := buf.String()

	assert.Contains(t, text, "Triage summary")
	assert.Contains(t, text, "Processed:")
	assert.Contains(t, text, "[MEDIUM] Budget")
	assert.Contains(t, text, "already responded")
	assert.NotContains(t, text, "Skipped")
}

func TestRenderHistory(t *testing.T) {
	var buf bytes.Buffer
	RenderHistory(&buf, nil)
	assert.Equal(t, "No responses recorded yet.\n", buf.String())

	buf.Reset()
	RenderHistory(&buf, []model.HistoryEntry{{Subject: "Budget", Sender: "Alice <alice@x.com>", RespondedAt: fixedNow}})
	assert.Contains(t, buf.String(), "Budget")
	assert.Contains(t, buf.String(), "Alice <alice@x.com>")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "warn")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "subject", "Budget")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "Budget")

	_, err = NewLogger(&buf, "loud")
	assert.Error(t, err)
}

func TestNew_LoadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("EMAIL_USER=env@example.com\n"), 0o600))
	t.Setenv("EMAIL_USER", "")
	os.Unsetenv("EMAIL_USER")

	var errOut bytes.Buffer
	a, err := New(Options{
		ConfigPath: filepath.Join(dir, "missing.yaml"),
		EnvFile:    envFile,
		LogLevel:   "error",
		ErrOut:     &errOut,
	})
	require.NoError(t, err)
	assert.Equal(t, "env@example.com", a.Config().Mailbox.Username)
	assert.Equal(t, "error", a.Config().LogLevel)

	_, err = New(Options{ConfigPath: filepath.Join(dir, "missing.yaml"), EnvFile: filepath.Join(dir, "nope.env"), ErrOut: &errOut})
	assert.NoError(t, err, "a missing .env file is not an error")
}
