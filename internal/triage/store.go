package triage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/yaontheroad/email-agents/internal/model"
)

// RecordFile is the on-disk shape of the record store.
type RecordFile struct {
	RunID       string               `json:"run_id,omitempty"`
	LastUpdated time.Time            `json:"last_updated"`
	Summary     *Summary             `json:"summary,omitempty"`
	Records     []model.TriageRecord `json:"needs_response_emails"`
}

// WriteRecords replaces the record store at path with this run's records.
func (r *Result) WriteRecords(path string) error {
	records := r.Records
	if records == nil {
		records = []model.TriageRecord{}
	}
	summary := r.Summary
	file := RecordFile{
		RunID:       r.RunID,
		LastUpdated: r.GeneratedAt,
		Summary:     &summary,
		Records:     records,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(file); err != nil {
		return fmt.Errorf("encoding records: %w", err)
	}
	return writeFile(path, buf.Bytes())
}

// LoadRecords reads a record store written by WriteRecords.
func LoadRecords(path string) (*RecordFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading records %s: %w", path, err)
	}

	var file RecordFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("decoding records %s: %w", path, err)
	}
	for i := range file.Records {
		file.Records[i].InboundEmail = file.Records[i].InboundEmail.WithSenderAddress()
	}
	return &file, nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating directory %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
