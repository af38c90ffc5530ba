// Package history keeps the append-only ledger of emails a person
// actually answered.
package history

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/yaontheroad/email-agents/internal/model"
)

type ledgerFile struct {
	Entries []model.HistoryEntry `json:"responded_emails"`
}

// Ledger is a JSON file of HistoryEntry values. It is rewritten whole on
// every append and is not safe for concurrent writers.
type Ledger struct {
	path   string
	logger *slog.Logger
	now    func() time.Time
}

// NewLedger opens the ledger at path. The file is created on first append.
func NewLedger(path string, logger *slog.Logger) *Ledger {
	return &Ledger{path: path, logger: logger, now: time.Now}
}

// Path returns the ledger file location.
func (l *Ledger) Path() string {
	return l.path
}

// Entries returns the recorded entries in append order. A missing or
// corrupt ledger reads as empty.
func (l *Ledger) Entries() []model.HistoryEntry {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("ledger unreadable, treating as empty", "path", l.path, "error", err)
		}
		return nil
	}

	var f ledgerFile
	if err := json.Unmarshal(data, &f); err != nil {
		l.logger.Warn("ledger corrupt, treating as empty", "path", l.path, "error", err)
		return nil
	}
	return f.Entries
}

// Append records that the email with subject from sender was answered.
// RespondedAt defaults to now. Repeated appends for the same email are
// all kept.
func (l *Ledger) Append(entry model.HistoryEntry) error {
	if entry.RespondedAt.IsZero() {
		entry.RespondedAt = l.now()
	}

	f := ledgerFile{Entries: append(l.Entries(), entry)}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encoding ledger: %w", err)
	}

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating ledger directory: %w", err)
		}
	}
	if err := os.WriteFile(l.path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing ledger %s: %w", l.path, err)
	}

	l.logger.Debug("ledger appended", "subject", entry.Subject, "entries", len(f.Entries))
	return nil
}
