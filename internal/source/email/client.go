package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"

	"github.com/yaontheroad/email-agents/internal/source"
)

// gmailSentFolder is tried when no folder advertises \Sent.
const gmailSentFolder = "[Gmail]/Sent Mail"

// IMAPClient wraps go-imap v2 for connecting to and querying IMAP servers.
type IMAPClient struct {
	host     string
	port     string
	username string
	password string
	tls      bool
}

// NewIMAPClient creates a new IMAP client configuration.
func NewIMAPClient(
	host, port, username, password string, tls bool,
) *IMAPClient {
	return &IMAPClient{
		host:     host,
		port:     port,
		username: username,
		password: password,
		tls:      tls,
	}
}

// Connect establishes a connection to the IMAP server, authenticates,
// and returns the connected client. The caller is responsible for
// calling Logout/Close on the returned client. The connection is closed
// early if ctx ends first.
func (c *IMAPClient) Connect(
	ctx context.Context,
) (*imapclient.Client, error) {
	addr := net.JoinHostPort(c.host, c.port)
	opts := &imapclient.Options{
		TLSConfig: &tls.Config{ServerName: c.host},
	}

	var client *imapclient.Client
	var err error

	if c.tls {
		client, err = imapclient.DialTLS(addr, opts)
	} else {
		client, err = imapclient.DialStartTLS(addr, opts)
	}
	if err != nil {
		return nil, fmt.Errorf("connecting to IMAP %s: %w", addr, err)
	}

	stop := context.AfterFunc(ctx, func() { _ = client.Close() })
	if err := client.Login(c.username, c.password).Wait(); err != nil {
		stop()
		_ = client.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &source.AuthError{
			Transport: "imap",
			Message: fmt.Sprintf(
				"authentication failed for %s: %v",
				c.username, err,
			),
		}
	}

	return client, nil
}

// FetchSince selects folder read-only and returns every message dated
// on or after since. When withBody is set the full RFC 5322 message is
// fetched and parsed; otherwise only the envelope is.
func (c *IMAPClient) FetchSince(
	ctx context.Context,
	client *imapclient.Client,
	folder string,
	since time.Time,
	withBody bool,
) ([]ParsedMessage, error) {
	if _, err := client.Select(folder, &imap.SelectOptions{ReadOnly: true}).Wait(); err != nil {
		return nil, fmt.Errorf("selecting %s: %w", folder, err)
	}

	// SINCE has day granularity; the exact cut is applied below.
	searchData, err := client.UIDSearch(&imap.SearchCriteria{Since: since}, nil).Wait()
	if err != nil {
		return nil, fmt.Errorf("searching %s: %w", folder, err)
	}

	uids := searchData.AllUIDs()
	if len(uids) == 0 {
		return nil, nil
	}

	bodySection := &imap.FetchItemBodySection{Peek: true}
	fetchOpts := &imap.FetchOptions{
		Envelope: true,
		UID:      true,
	}
	if withBody {
		fetchOpts.BodySection = []*imap.FetchItemBodySection{bodySection}
	}

	fetchCmd := client.Fetch(imap.UIDSetNum(uids...), fetchOpts)
	defer fetchCmd.Close()

	var messages []ParsedMessage
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msg := fetchCmd.Next()
		if msg == nil {
			break
		}

		buf, err := msg.Collect()
		if err != nil {
			continue
		}

		env := envelopeFromBuffer(buf)
		if !env.Date.IsZero() && env.Date.Before(since) {
			continue
		}

		parsed := ParsedMessage{Envelope: env}
		if withBody {
			if raw := buf.FindBodySection(bodySection); raw != nil {
				parsed.TextBody, parsed.HTMLBody = parseMIMEBody(raw)
			}
		}
		messages = append(messages, parsed)
	}

	if err := fetchCmd.Close(); err != nil {
		return messages, fmt.Errorf("fetching %s: %w", folder, err)
	}

	return messages, nil
}

// FindSentFolder returns the mailbox flagged \Sent, falling back to the
// Gmail sent folder name.
func (c *IMAPClient) FindSentFolder(client *imapclient.Client) (string, error) {
	boxes, err := client.List("", "*", &imap.ListOptions{ReturnSpecialUse: true}).Collect()
	if err != nil {
		return "", fmt.Errorf("listing mailboxes: %w", err)
	}
	return chooseSentFolder(boxes), nil
}

func chooseSentFolder(boxes []*imap.ListData) string {
	for _, box := range boxes {
		for _, attr := range box.Attrs {
			if attr == imap.MailboxAttrSent {
				return box.Mailbox
			}
		}
	}
	return gmailSentFolder
}

// envelopeFromBuffer extracts an Envelope from a FetchMessageBuffer.
func envelopeFromBuffer(buf *imapclient.FetchMessageBuffer) Envelope {
	env := Envelope{
		UID: uint32(buf.UID),
	}

	if buf.Envelope != nil {
		env.MessageID = strings.Trim(buf.Envelope.MessageID, "<>")
		env.Subject = buf.Envelope.Subject
		env.Date = buf.Envelope.Date

		if len(buf.Envelope.From) > 0 {
			from := buf.Envelope.From[0]
			env.FromName = from.Name
			env.FromAddr = from.Addr()
		}

		for _, to := range buf.Envelope.To {
			env.To = append(env.To, to.Addr())
		}
		for _, cc := range buf.Envelope.Cc {
			env.Cc = append(env.Cc, cc.Addr())
		}
	}

	return env
}
