package model

import "time"

// Importance is the importance tier assigned by the classifier.
type Importance string

const (
	ImportanceHigh   Importance = "high"
	ImportanceMedium Importance = "medium"
	ImportanceLow    Importance = "low"
)

// Valid reports whether i is one of the three known tiers.
func (i Importance) Valid() bool {
	switch i {
	case ImportanceHigh, ImportanceMedium, ImportanceLow:
		return true
	}
	return false
}

// Rank orders tiers for sorting (lower number = more important).
func (i Importance) Rank() int {
	switch i {
	case ImportanceHigh:
		return 0
	case ImportanceMedium:
		return 1
	default:
		return 2
	}
}

// Verdict is the structured importance/response-necessity judgment for
// one email.
type Verdict struct {
	Importance    Importance `json:"importance"`
	Reason        string     `json:"reason"`
	NeedsResponse bool       `json:"needs_response"`
	TimeSensitive bool       `json:"time_sensitive"`
	Topics        []string   `json:"topics"`
}

// TriageRecord is the persisted, per-run decision that an email needs a
// response, plus its dedup status. The email fields are flattened into
// the record when encoded.
type TriageRecord struct {
	InboundEmail
	Verdict          Verdict `json:"analysis"`
	AlreadyResponded bool    `json:"already_responded"`
}

// HistoryEntry records one email a human actually answered.
type HistoryEntry struct {
	Subject     string    `json:"subject"`
	Sender      string    `json:"from"`
	RespondedAt time.Time `json:"responded_at"`
}
