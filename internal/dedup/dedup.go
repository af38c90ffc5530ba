// Package dedup decides whether an inbound email has already been
// answered by looking for a sent message to the same address with a
// similar subject.
//
// The match is intentionally loose: after stripping one "Re:"/"Fwd:"
// prefix and lower-casing, two subjects match when they are equal or when
// either contains the other. Subject lines that a mail client truncated or
// extended still match, at the cost of occasional false positives.
package dedup

import (
	"regexp"
	"strings"

	"github.com/yaontheroad/email-agents/internal/model"
)

var replyPrefix = regexp.MustCompile(`(?i)^(?:re|fwd):\s*`)

// NormalizeSubject strips one leading Re:/Fwd: prefix and lower-cases.
func NormalizeSubject(subject string) string {
	return strings.ToLower(replyPrefix.ReplaceAllString(subject, ""))
}

// Index maps lower-cased recipient addresses to the normalized subjects
// of messages sent to them.
type Index struct {
	byRecipient map[string][]string
}

// NewIndex builds an Index from the sent folder. Records without a
// subject or recipients contribute nothing.
func NewIndex(sent []model.SentRecord) *Index {
	idx := &Index{byRecipient: make(map[string][]string)}
	for _, rec := range sent {
		subj := NormalizeSubject(rec.Subject)
		if subj == "" {
			continue
		}
		seen := make(map[string]bool, len(rec.Recipients))
		for _, r := range rec.Recipients {
			addr := strings.ToLower(strings.TrimSpace(r))
			if addr == "" || seen[addr] {
				continue
			}
			seen[addr] = true
			idx.byRecipient[addr] = append(idx.byRecipient[addr], subj)
		}
	}
	return idx
}

// Len returns the number of distinct recipients indexed.
func (idx *Index) Len() int {
	return len(idx.byRecipient)
}

// AlreadyResponded reports whether a sent message to the email's sender
// has a matching subject. Senders without an "<addr>" part never match.
func (idx *Index) AlreadyResponded(email model.InboundEmail) bool {
	addr := model.ExtractAddress(email.Sender)
	if addr == "" {
		return false
	}
	subj := NormalizeSubject(email.Subject)
	if subj == "" {
		return false
	}
	for _, sent := range idx.byRecipient[strings.ToLower(addr)] {
		if subjectsMatch(subj, sent) {
			return true
		}
	}
	return false
}

// AlreadyResponded is a convenience for a single lookup.
func AlreadyResponded(email model.InboundEmail, sent []model.SentRecord) bool {
	return NewIndex(sent).AlreadyResponded(email)
}

func subjectsMatch(a, b string) bool {
	return a == b || strings.Contains(a, b) || strings.Contains(b, a)
}
