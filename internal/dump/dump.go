// Package dump reads and writes the flat text dump of recent inbound
// mail. Each block carries "Subject: ", "From: ", "Received: ",
// "Message-ID: " and "Body: " lines and is terminated by a separator line
// of dashes.
package dump

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/yaontheroad/email-agents/internal/model"
)

// Separator terminates each block in the dump.
var Separator = strings.Repeat("-", 50)

const (
	prefixSubject   = "Subject: "
	prefixFrom      = "From: "
	prefixReceived  = "Received: "
	prefixMessageID = "Message-ID: "
	prefixBody      = "Body: "
)

// WriteBodyLimit caps the body written per block.
const WriteBodyLimit = 500

// maxLineSize lets the scanner cope with long unwrapped HTML lines.
const maxLineSize = 1 << 20

// block accumulates one record while parsing.
type block struct {
	email     model.InboundEmail
	bodyLines []string
}

func (b *block) finish() model.InboundEmail {
	kept := make([]string, 0, len(b.bodyLines))
	for _, l := range b.bodyLines {
		if strings.TrimSpace(l) != "" {
			kept = append(kept, l)
		}
	}
	e := b.email
	e.Body = strings.Join(kept, "\n")
	return e.WithSenderAddress()
}

// Parse converts a dump into ordered records. A "Subject: " line always
// starts a new record; everything that is not a recognized field or the
// separator continues the current body. Lines before the first subject
// are ignored.
func Parse(r io.Reader) ([]model.InboundEmail, error) {
	var (
		emails  []model.InboundEmail
		current *block
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r\n")

		if rest, ok := cutField(line, prefixSubject); ok {
			if current != nil {
				emails = append(emails, current.finish())
			}
			current = &block{email: model.InboundEmail{
				Subject: rest,
				Sender:  model.UnknownSender,
			}}
			continue
		}
		if current == nil || line == Separator {
			continue
		}

		if rest, ok := cutField(line, prefixFrom); ok {
			if rest != "" {
				current.email.Sender = rest
			}
		} else if rest, ok := cutField(line, prefixReceived); ok {
			current.email.Received = rest
		} else if rest, ok := cutField(line, prefixMessageID); ok {
			current.email.MessageID = strings.Trim(rest, "<> ")
		} else if rest, ok := cutField(line, prefixBody); ok {
			current.bodyLines = []string{rest}
		} else {
			current.bodyLines = append(current.bodyLines, line)
		}
	}
	if current != nil {
		emails = append(emails, current.finish())
	}

	if err := sc.Err(); err != nil {
		return emails, fmt.Errorf("scanning dump: %w", err)
	}
	return emails, nil
}

// Load parses the dump at path. It never fails: a missing file is
// created empty and yields no records, and an unreadable or malformed
// file yields no records with a warning.
func Load(path string, logger *slog.Logger) []model.InboundEmail {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		logger.Warn("dump file not found, creating empty file", "path", path)
		if werr := writeFile(path, nil); werr != nil {
			logger.Warn("creating empty dump file failed", "path", path, "error", werr)
		}
		return nil
	}
	if err != nil {
		logger.Warn("dump file unreadable", "path", path, "error", err)
		return nil
	}
	defer f.Close()

	emails, err := Parse(f)
	if err != nil {
		logger.Warn("dump file malformed", "path", path, "error", err)
		return nil
	}
	return emails
}

// Write renders emails in dump format, truncating each body to
// WriteBodyLimit characters.
func Write(w io.Writer, emails []model.InboundEmail) error {
	bw := bufio.NewWriter(w)
	for _, e := range emails {
		fmt.Fprintf(bw, "%s%s\n", prefixSubject, oneLine(e.Subject))
		fmt.Fprintf(bw, "%s%s\n", prefixFrom, oneLine(e.Sender))
		fmt.Fprintf(bw, "%s%s\n", prefixReceived, oneLine(e.Received))
		if e.MessageID != "" {
			fmt.Fprintf(bw, "%s<%s>\n", prefixMessageID, e.MessageID)
		}
		fmt.Fprintf(bw, "%s%s\n", prefixBody, escapeBody(truncateRunes(e.Body, WriteBodyLimit)))
		fmt.Fprintln(bw, Separator)
	}
	return bw.Flush()
}

// Save overwrites the dump at path with emails.
func Save(path string, emails []model.InboundEmail) error {
	var sb strings.Builder
	if err := Write(&sb, emails); err != nil {
		return fmt.Errorf("rendering dump: %w", err)
	}
	return writeFile(path, []byte(sb.String()))
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating dump directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing dump %s: %w", path, err)
	}
	return nil
}

var prefixes = []string{prefixSubject, prefixFrom, prefixReceived, prefixMessageID, prefixBody}

// cutField matches "Name: value" and the bare "Name:" left behind when
// trailing spaces are trimmed from an empty field.
func cutField(line, prefix string) (string, bool) {
	if line == strings.TrimRight(prefix, " ") {
		return "", true
	}
	return strings.CutPrefix(line, prefix)
}

func isFieldLine(line string) bool {
	for _, p := range prefixes {
		if _, ok := cutField(line, p); ok {
			return true
		}
	}
	return false
}

// escapeBody indents continuation lines that would read back as a field
// or the separator. The first line follows "Body: " and needs nothing.
func escapeBody(body string) string {
	lines := strings.Split(body, "\n")
	for i := 1; i < len(lines); i++ {
		t := strings.TrimRight(lines[i], " \t\r\n")
		if t == Separator || isFieldLine(t) {
			lines[i] = " " + lines[i]
		}
	}
	return strings.Join(lines, "\n")
}

// oneLine keeps header values from spilling into the next field.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
