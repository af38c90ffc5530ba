package email

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-message/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaontheroad/email-agents/internal/model"
	"github.com/yaontheroad/email-agents/internal/source"
	"github.com/yaontheroad/email-agents/tests/testutil"
)

const multipartMessage = "From: Alice <a@x.com>\r\n" +
	"To: me@x.com\r\n" +
	"Subject: Budget\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: multipart/alternative; boundary=\"b1\"\r\n" +
	"\r\n" +
	"--b1\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"Can you approve the budget?\r\n" +
	"--b1\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<p>Can you <b>approve</b> the budget?</p>\r\n" +
	"--b1--\r\n"

func TestParseMIMEBody_Multipart(t *testing.T) {
	text, html := parseMIMEBody([]byte(multipartMessage))
	assert.Equal(t, "Can you approve the budget?", strings.TrimSpace(text))
	assert.Contains(t, html, "<b>approve</b>")
}

func TestParseMIMEBody_Latin1QuotedPrintable(t *testing.T) {
	raw := "From: b@x.com\r\n" +
		"Subject: Caf\r\n" +
		"Content-Type: text/plain; charset=iso-8859-1\r\n" +
		"Content-Transfer-Encoding: quoted-printable\r\n" +
		"\r\n" +
		"Caf=E9 at noon?\r\n"

	text, _ := parseMIMEBody([]byte(raw))
	assert.Equal(t, "Café at noon?", strings.TrimSpace(text))
}

func TestBodyText_FallsBackToHTML(t *testing.T) {
	m := ParsedMessage{HTMLBody: `<html><head><style>p{color:red}</style></head>` +
		`<body><p>Hello&nbsp;there &amp; welcome</p><div>Second line</div>` +
		`<script>alert(1)</script></body></html>`}

	assert.Equal(t, "Hello there & welcome\nSecond line", bodyText(m))
}

func TestBodyText_PrefersPlain(t *testing.T) {
	m := ParsedMessage{TextBody: "plain\r\nbody\r\n", HTMLBody: "<p>html</p>"}
	assert.Equal(t, "plain\nbody", bodyText(m))
}

func TestChooseSentFolder(t *testing.T) {
	boxes := []*imap.ListData{
		{Mailbox: "INBOX"},
		{Mailbox: "Sent Items", Attrs: []imap.MailboxAttr{imap.MailboxAttrSent}},
	}
	assert.Equal(t, "Sent Items", chooseSentFolder(boxes))
	assert.Equal(t, gmailSentFolder, chooseSentFolder([]*imap.ListData{{Mailbox: "INBOX"}}))
}

func TestToInbound(t *testing.T) {
	date := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	m := ParsedMessage{
		Envelope: Envelope{
			MessageID: "abc@x.com",
			Subject:   "Budget",
			FromName:  "Alice",
			FromAddr:  "a@x.com",
			Date:      date,
		},
		TextBody: "Approve?",
	}

	e := toInbound(m)
	assert.Equal(t, "Alice <a@x.com>", e.Sender)
	assert.Equal(t, "a@x.com", e.SenderAddress)
	assert.Equal(t, "a@x.com", model.ExtractAddress(e.Sender))
	assert.Equal(t, date.Format(time.RFC1123Z), e.Received)
	assert.Equal(t, "abc@x.com", e.MessageID)
	assert.Equal(t, "Approve?", e.Body)
}

func TestFormatSender(t *testing.T) {
	assert.Equal(t, "<a@x.com>", formatSender("", "a@x.com"))
	assert.Equal(t, model.UnknownSender, formatSender("Alice", ""))

	sender := formatSender("Ops <team>", "ops@x.com")
	assert.Equal(t, "Ops team <ops@x.com>", sender)
	assert.Equal(t, "ops@x.com", model.ExtractAddress(sender))
	assert.Equal(t, "<ops@x.com>", formatSender("<>", "ops@x.com"))
}

func TestToSentRecord(t *testing.T) {
	r := toSentRecord(Envelope{Subject: "Re: Budget", To: []string{"a@x.com"}, Cc: []string{"c@x.com"}})
	assert.Equal(t, "Re: Budget", r.Subject)
	assert.Equal(t, []string{"a@x.com", "c@x.com"}, r.Recipients)
	assert.Empty(t, r.SentTime)
}

func TestComposeReply(t *testing.T) {
	now := time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)
	raw, err := ComposeReply("me@x.com", source.Outbound{
		To:        "a@x.com",
		Subject:   "Re: Budget",
		Body:      "Approved.\n\nBest regards,\nKris",
		InReplyTo: "<abc@x.com>",
	}, now)
	require.NoError(t, err)

	mr, err := mail.CreateReader(bytes.NewReader(raw))
	require.NoError(t, err)
	defer mr.Close()

	subject, err := mr.Header.Subject()
	require.NoError(t, err)
	assert.Equal(t, "Re: Budget", subject)

	to, err := mr.Header.AddressList("To")
	require.NoError(t, err)
	require.Len(t, to, 1)
	assert.Equal(t, "a@x.com", to[0].Address)

	inReplyTo, err := mr.Header.MsgIDList("In-Reply-To")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc@x.com"}, inReplyTo)

	refs, err := mr.Header.MsgIDList("References")
	require.NoError(t, err)
	assert.Equal(t, []string{"abc@x.com"}, refs)

	id, err := mr.Header.MessageID()
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	part, err := mr.NextPart()
	require.NoError(t, err)
	body, err := io.ReadAll(part.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Approved.")
	assert.Contains(t, string(body), "Kris")
}

func TestComposeReply_NoThreading(t *testing.T) {
	raw, err := ComposeReply("me@x.com", source.Outbound{To: "a@x.com", Subject: "Hi", Body: "x"}, time.Now())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "In-Reply-To")
	assert.NotContains(t, string(raw), "References")
}

func newTestAdapter() *Adapter {
	return NewAdapter(model.MailboxConfig{
		SMTPHost: "smtp.x.com",
		SMTPPort: "587",
		Username: "me@x.com",
	}, testutil.DiscardLogger())
}

func TestAdapter_Send(t *testing.T) {
	a := newTestAdapter()
	var gotFrom, gotTo string
	var gotMsg []byte
	a.deliver = func(_ context.Context, from, to string, msg []byte) error {
		gotFrom, gotTo, gotMsg = from, to, msg
		return nil
	}

	err := a.Send(context.Background(), source.Outbound{To: "a@x.com", Subject: "Re: Budget", Body: "ok", InReplyTo: "abc@x.com"})
	require.NoError(t, err)
	assert.Equal(t, "me@x.com", gotFrom)
	assert.Equal(t, "a@x.com", gotTo)
	assert.Contains(t, string(gotMsg), "In-Reply-To: <abc@x.com>")
}

func TestAdapter_SendErrors(t *testing.T) {
	a := newTestAdapter()
	a.deliver = func(context.Context, string, string, []byte) error {
		return errors.New("connection refused")
	}

	err := a.Send(context.Background(), source.Outbound{To: "a@x.com", Subject: "s", Body: "b"})
	require.Error(t, err)
	assert.True(t, source.IsGatewayError(err))
	assert.Contains(t, err.Error(), "connection refused")

	err = a.Send(context.Background(), source.Outbound{Subject: "s", Body: "b"})
	assert.True(t, source.IsGatewayError(err))

	a.deliver = func(context.Context, string, string, []byte) error {
		return &source.AuthError{Transport: "smtp", Message: "bad password"}
	}
	err = a.Send(context.Background(), source.Outbound{To: "a@x.com", Subject: "s", Body: "b"})
	assert.True(t, source.IsAuthError(err))
	assert.False(t, source.IsGatewayError(err))
}

func TestNewAdapter_SMTPTLSByPort(t *testing.T) {
	assert.False(t, newTestAdapter().smtpConfig.TLS)
	a := NewAdapter(model.MailboxConfig{SMTPPort: "465"}, testutil.DiscardLogger())
	assert.True(t, a.smtpConfig.TLS)
	assert.Equal(t, "INBOX", a.inboxFolder)
}
