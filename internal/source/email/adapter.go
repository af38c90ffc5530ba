package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"

	"github.com/yaontheroad/email-agents/internal/model"
	"github.com/yaontheroad/email-agents/internal/source"
)

// dialTimeout bounds the SMTP TCP connect.
const dialTimeout = 30 * time.Second

// Adapter implements source.Mailbox over IMAP and source.Sender over SMTP.
type Adapter struct {
	imapClient  *IMAPClient
	smtpConfig  SMTPConfig
	inboxFolder string
	sentFolder  string
	logger      *slog.Logger

	deliver func(ctx context.Context, from, to string, msg []byte) error
	now     func() time.Time
}

// NewAdapter creates a mailbox adapter from the mailbox configuration.
// SMTP uses implicit TLS on port 465 and STARTTLS otherwise.
func NewAdapter(cfg model.MailboxConfig, logger *slog.Logger) *Adapter {
	inbox := cfg.InboxFolder
	if inbox == "" {
		inbox = "INBOX"
	}

	a := &Adapter{
		imapClient: NewIMAPClient(
			cfg.IMAPHost, cfg.IMAPPort, cfg.Username, cfg.Password, cfg.TLS,
		),
		smtpConfig: SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.Username,
			Password: cfg.Password,
			TLS:      cfg.SMTPPort == "465",
		},
		inboxFolder: inbox,
		sentFolder:  cfg.SentFolder,
		logger:      logger,
		now:         time.Now,
	}
	a.deliver = a.sendSMTP
	return a
}

// FetchInbound returns inbox messages received on or after since.
func (a *Adapter) FetchInbound(
	ctx context.Context, since time.Time,
) ([]model.InboundEmail, error) {
	client, err := a.imapClient.Connect(ctx)
	if err != nil {
		return nil, gatewayError("fetching inbound mail", err)
	}
	defer func() { _ = client.Logout().Wait() }()

	messages, err := a.imapClient.FetchSince(ctx, client, a.inboxFolder, since, true)
	if err != nil {
		return nil, gatewayError("fetching inbound mail", err)
	}

	emails := make([]model.InboundEmail, 0, len(messages))
	for _, m := range messages {
		emails = append(emails, toInbound(m))
	}

	a.logger.Info("fetched inbound mail",
		"folder", a.inboxFolder,
		"count", len(emails),
		"since", since.Format(time.RFC3339),
	)
	return emails, nil
}

// FetchSent returns sent-folder messages dated on or after since. The
// folder is taken from configuration or discovered through \Sent.
func (a *Adapter) FetchSent(
	ctx context.Context, since time.Time,
) ([]model.SentRecord, error) {
	client, err := a.imapClient.Connect(ctx)
	if err != nil {
		return nil, gatewayError("fetching sent mail", err)
	}
	defer func() { _ = client.Logout().Wait() }()

	folder := a.sentFolder
	if folder == "" {
		folder, err = a.imapClient.FindSentFolder(client)
		if err != nil {
			return nil, gatewayError("fetching sent mail", err)
		}
	}

	messages, err := a.imapClient.FetchSince(ctx, client, folder, since, false)
	if err != nil {
		return nil, gatewayError("fetching sent mail", err)
	}

	records := make([]model.SentRecord, 0, len(messages))
	for _, m := range messages {
		records = append(records, toSentRecord(m.Envelope))
	}

	a.logger.Info("fetched sent mail", "folder", folder, "count", len(records))
	return records, nil
}

// Send composes a plain-text reply and delivers it over SMTP.
func (a *Adapter) Send(ctx context.Context, msg source.Outbound) error {
	if strings.TrimSpace(msg.To) == "" {
		return gatewayError("sending reply", fmt.Errorf("no recipient address"))
	}

	raw, err := ComposeReply(a.smtpConfig.Username, msg, a.now())
	if err != nil {
		return gatewayError("sending reply", err)
	}

	if err := a.deliver(ctx, a.smtpConfig.Username, msg.To, raw); err != nil {
		return gatewayError("sending reply", err)
	}

	a.logger.Info("reply sent", "to", msg.To, "subject", msg.Subject)
	return nil
}

// gatewayError wraps err unless it is already an AuthError, which
// callers inspect directly.
func gatewayError(op string, err error) error {
	if source.IsAuthError(err) {
		return err
	}
	return &source.GatewayError{Op: op, Err: err}
}

func toInbound(m ParsedMessage) model.InboundEmail {
	env := m.Envelope

	var received string
	if !env.Date.IsZero() {
		received = env.Date.Format(time.RFC1123Z)
	}

	return model.InboundEmail{
		Subject:       env.Subject,
		Sender:        formatSender(env.FromName, env.FromAddr),
		SenderAddress: env.FromAddr,
		Received:      received,
		Body:          bodyText(m),
		MessageID:     env.MessageID,
	}
}

func toSentRecord(env Envelope) model.SentRecord {
	var sent string
	if !env.Date.IsZero() {
		sent = env.Date.Format(time.RFC1123Z)
	}

	recipients := make([]string, 0, len(env.To)+len(env.Cc))
	recipients = append(recipients, env.To...)
	recipients = append(recipients, env.Cc...)

	return model.SentRecord{
		Subject:    env.Subject,
		Recipients: recipients,
		SentTime:   sent,
	}
}

var angleStripper = strings.NewReplacer("<", "", ">", "")

// formatSender renders a From value that always carries "<addr>" as its
// only bracketed part.
func formatSender(name, addr string) string {
	name = strings.TrimSpace(angleStripper.Replace(name))
	switch {
	case addr == "":
		return model.UnknownSender
	case name == "":
		return "<" + addr + ">"
	default:
		return name + " <" + addr + ">"
	}
}

// ComposeReply builds the RFC 5322 message for msg.
func ComposeReply(from string, msg source.Outbound, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Address: from}})
	h.SetAddressList("To", []*mail.Address{{Address: msg.To}})
	h.SetSubject(msg.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})
	if err := h.GenerateMessageID(); err != nil {
		return nil, fmt.Errorf("generating Message-ID: %w", err)
	}
	if id := strings.Trim(msg.InReplyTo, "<> "); id != "" {
		h.SetMsgIDList("In-Reply-To", []string{id})
		h.SetMsgIDList("References", []string{id})
	}

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("creating message writer: %w", err)
	}
	if _, err := w.Write([]byte(msg.Body)); err != nil {
		return nil, fmt.Errorf("writing message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("closing message body: %w", err)
	}
	return buf.Bytes(), nil
}

// sendSMTP dials the configured server, authenticates, and delivers msg.
func (a *Adapter) sendSMTP(
	ctx context.Context, from, to string, msg []byte,
) error {
	cfg := a.smtpConfig
	addr := net.JoinHostPort(cfg.Host, cfg.Port)
	tlsConfig := &tls.Config{ServerName: cfg.Host}

	dialer := &net.Dialer{Timeout: dialTimeout}
	var conn net.Conn
	var err error
	if cfg.TLS {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return fmt.Errorf("dial to %s: %w", addr, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("creating SMTP client: %w", err)
	}
	defer client.Close()

	if !cfg.TLS {
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("SMTP STARTTLS: %w", err)
		}
	}

	auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	if err := client.Auth(auth); err != nil {
		return &source.AuthError{
			Transport: "smtp",
			Message:   fmt.Sprintf("authentication failed for %s: %v", cfg.Username, err),
		}
	}

	return sendMailViaSMTPClient(client, from, to, msg)
}

// sendMailViaSMTPClient sends a message using an already-authenticated
// SMTP client.
func sendMailViaSMTPClient(
	client *smtp.Client, from, to string, body []byte,
) error {
	if err := client.Mail(from); err != nil {
		return fmt.Errorf("SMTP MAIL FROM: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("SMTP RCPT TO: %w", err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("SMTP DATA: %w", err)
	}

	if _, err := writer.Write(body); err != nil {
		return fmt.Errorf("writing email body: %w", err)
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("closing email body: %w", err)
	}

	return client.Quit()
}
