package triage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaontheroad/email-agents/internal/model"
)

func TestRenderReport(t *testing.T) {
	rec := model.TriageRecord{
		InboundEmail: model.InboundEmail{
			Subject:  "Contract review",
			Sender:   "Ann <ann@corp.com>",
			Received: "Mon, 02 Jun 2025 09:00:00 +0000",
			Body:     strings.Repeat("x", ReportPreviewLimit+5),
		},
		Verdict: model.Verdict{
			Importance:    model.ImportanceHigh,
			Reason:        "Needs sign-off",
			NeedsResponse: true,
			TimeSensitive: true,
			Topics:        []string{"contract", "legal"},
		},
		AlreadyResponded: true,
	}

	var sb strings.Builder
	require.NoError(t, RenderReport(&sb, []model.TriageRecord{rec}, fixedNow))
	out := sb.String()

	assert.True(t, strings.HasPrefix(out, reportRule+"\nEMAILS REQUIRING RESPONSE\nGenerated on: 2025-06-02T12:00:00Z\n"))
	assert.Contains(t, out, "Subject: Contract review\n")
	assert.Contains(t, out, "From: Ann <ann@corp.com>\n")
	assert.Contains(t, out, "Importance: HIGH\n")
	assert.Contains(t, out, "Time Sensitive: YES\n")
	assert.Contains(t, out, "Topics: contract, legal\n")
	assert.Contains(t, out, "Reason: Needs sign-off\n")
	assert.Contains(t, out, AlreadyRespondedBanner+"\n")
	assert.Contains(t, out, "Preview: "+strings.Repeat("x", ReportPreviewLimit)+"...\n")
	assert.Contains(t, out, reportSeparator)
}

func TestRenderReport_KeepsOrder(t *testing.T) {
	records := []model.TriageRecord{
		record("first", false, true, model.ImportanceHigh),
		record("second", false, false, model.ImportanceLow),
	}

	var sb strings.Builder
	require.NoError(t, RenderReport(&sb, records, fixedNow))
	out := sb.String()

	assert.Less(t, strings.Index(out, "Subject: first"), strings.Index(out, "Subject: second"))
	assert.Contains(t, out, "Time Sensitive: No\n")
	assert.NotContains(t, out, AlreadyRespondedBanner)
}

func TestRenderReport_Empty(t *testing.T) {
	var sb strings.Builder
	require.NoError(t, RenderReport(&sb, nil, fixedNow))
	assert.Contains(t, sb.String(), "No emails requiring immediate response were found.")
	assert.NotContains(t, sb.String(), "Subject:")
}
