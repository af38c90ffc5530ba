package model

import (
	"regexp"
	"strings"
)

// UnknownSender is the sender recorded when a dump block has no From line.
const UnknownSender = "unknown"

// InboundEmail is a message received by the monitored mailbox within the
// lookback window.
type InboundEmail struct {
	// Subject is the decoded subject line.
	Subject string `json:"subject"`

	// Sender is the raw From value, usually "Display Name <addr>".
	Sender string `json:"from"`

	// SenderAddress is the bare address parsed from Sender, if present.
	SenderAddress string `json:"sender_address,omitempty"`

	// Received is the received timestamp as reported by the mailbox.
	Received string `json:"received"`

	// Body is the plain-text body.
	Body string `json:"body"`

	// MessageID is the RFC 5322 Message-ID without angle brackets.
	MessageID string `json:"message_id,omitempty"`
}

// SentRecord is metadata about a message previously sent from the
// monitored mailbox.
type SentRecord struct {
	Subject    string   `json:"subject"`
	Recipients []string `json:"recipients"`
	SentTime   string   `json:"sent_time"`
}

// angleAddrPattern matches the first "<addr>" portion of a From value.
var angleAddrPattern = regexp.MustCompile(`<(.+?)>`)

// ExtractAddress returns the bare address inside the first angle-bracket
// pair of sender, or "" when there is none.
func ExtractAddress(sender string) string {
	m := angleAddrPattern.FindStringSubmatch(sender)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// WithSenderAddress returns a copy of e with SenderAddress filled in from
// Sender when it is not already set.
func (e InboundEmail) WithSenderAddress() InboundEmail {
	if e.SenderAddress == "" {
		e.SenderAddress = ExtractAddress(e.Sender)
	}
	return e
}
