package triage

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/yaontheroad/email-agents/internal/model"
)

const (
	// ReportPreviewLimit bounds the body preview printed in the report.
	ReportPreviewLimit = 300

	reportRule      = "=================================================="
	reportSeparator = "--------------------------------------------------"

	// AlreadyRespondedBanner marks records whose sender already got a reply.
	AlreadyRespondedBanner = "STATUS: ✅ ALREADY RESPONDED"
)

// WriteReport replaces the text report at path.
func (r *Result) WriteReport(path string) error {
	var sb strings.Builder
	if err := RenderReport(&sb, r.Records, r.GeneratedAt); err != nil {
		return err
	}
	return writeFile(path, []byte(sb.String()))
}

// RenderReport writes the human-readable report for records, which must
// already be sorted.
func RenderReport(w io.Writer, records []model.TriageRecord, generated time.Time) error {
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, reportRule)
	fmt.Fprintln(bw, "EMAILS REQUIRING RESPONSE")
	fmt.Fprintf(bw, "Generated on: %s\n", generated.Format(time.RFC3339))
	fmt.Fprintln(bw, reportRule)
	fmt.Fprintln(bw)

	if len(records) == 0 {
		fmt.Fprintln(bw, "No emails requiring immediate response were found.")
		fmt.Fprintln(bw)
		return bw.Flush()
	}

	for _, rec := range records {
		fmt.Fprintf(bw, "Subject: %s\n", rec.Subject)
		fmt.Fprintf(bw, "From: %s\n", rec.Sender)
		fmt.Fprintf(bw, "Received: %s\n", rec.Received)
		fmt.Fprintf(bw, "Importance: %s\n", strings.ToUpper(string(rec.Verdict.Importance)))
		fmt.Fprintf(bw, "Time Sensitive: %s\n", YesNo(rec.Verdict.TimeSensitive))
		fmt.Fprintf(bw, "Topics: %s\n", strings.Join(rec.Verdict.Topics, ", "))
		fmt.Fprintf(bw, "Reason: %s\n", rec.Verdict.Reason)
		if rec.AlreadyResponded {
			fmt.Fprintln(bw, AlreadyRespondedBanner)
		}
		fmt.Fprintf(bw, "Preview: %s\n", preview(rec.Body, ReportPreviewLimit))
		fmt.Fprintln(bw)
		fmt.Fprintln(bw, reportSeparator)
		fmt.Fprintln(bw)
	}
	return bw.Flush()
}

// YesNo renders time sensitivity the way the report does.
func YesNo(b bool) string {
	if b {
		return "YES"
	}
	return "No"
}
