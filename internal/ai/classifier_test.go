package ai_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaontheroad/email-agents/internal/ai"
	"github.com/yaontheroad/email-agents/internal/model"
	"github.com/yaontheroad/email-agents/tests/testutil"
)

func TestParseVerdict_Valid(t *testing.T) {
	raw := `{"importance":"high","reason":"client asks for a quote","needs_response":true,"time_sensitive":true,"topics":["pricing","deadline"]}`

	v, err := ai.ParseVerdict(raw)
	require.NoError(t, err)
	assert.Equal(t, model.ImportanceHigh, v.Importance)
	assert.Equal(t, "client asks for a quote", v.Reason)
	assert.True(t, v.NeedsResponse)
	assert.True(t, v.TimeSensitive)
	assert.Equal(t, []string{"pricing", "deadline"}, v.Topics)
}

func TestParseVerdict_CodeFence(t *testing.T) {
	raw := "```json\n" + testutil.VerdictJSON("low", false, false) + "\n```"

	v, err := ai.ParseVerdict(raw)
	require.NoError(t, err)
	assert.Equal(t, model.ImportanceLow, v.Importance)
	assert.False(t, v.NeedsResponse)
}

func TestParseVerdict_Rejects(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not json", "This email is important."},
		{"missing needs_response", `{"importance":"high","reason":"r","time_sensitive":false,"topics":[]}`},
		{"missing topics", `{"importance":"high","reason":"r","needs_response":true,"time_sensitive":false}`},
		{"missing importance", `{"reason":"r","needs_response":true,"time_sensitive":false,"topics":["a"]}`},
		{"importance outside enum", `{"importance":"urgent","reason":"r","needs_response":true,"time_sensitive":false,"topics":["a"]}`},
		{"importance wrong case", `{"importance":"High","reason":"r","needs_response":true,"time_sensitive":false,"topics":["a"]}`},
		{"needs_response as string", `{"importance":"high","reason":"r","needs_response":"yes","time_sensitive":false,"topics":["a"]}`},
		{"time_sensitive as number", `{"importance":"high","reason":"r","needs_response":true,"time_sensitive":1,"topics":["a"]}`},
		{"topics as string", `{"importance":"high","reason":"r","needs_response":true,"time_sensitive":false,"topics":"a"}`},
		{"null field", `{"importance":"high","reason":null,"needs_response":true,"time_sensitive":false,"topics":["a"]}`},
		{"two objects", testutil.VerdictJSON("high", true, false) + testutil.VerdictJSON("low", false, false)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ai.ParseVerdict(tt.raw)
			require.Error(t, err)
			assert.ErrorIs(t, err, ai.ErrClassificationFailed)
		})
	}
}

func TestClassifier_Classify(t *testing.T) {
	svc := &testutil.ScriptedCompleter{
		Replies: map[string]string{"Quote request": testutil.VerdictJSON("high", true, true)},
	}
	c := ai.NewClassifier(svc, time.Second, testutil.DiscardLogger())

	v, err := c.Classify(context.Background(),
		testutil.Email("Quote request", "Bob <bob@client.com>", "Can you send a quote by Friday?"))
	require.NoError(t, err)
	assert.Equal(t, model.ImportanceHigh, v.Importance)
	assert.True(t, v.NeedsResponse)

	require.Equal(t, 1, svc.CallCount())
	call := svc.Calls[0]
	assert.True(t, call.JSON)
	assert.Contains(t, call.Prompt, "From: Bob <bob@client.com>")
	assert.Contains(t, call.Prompt, "Can you send a quote by Friday?")
}

func TestClassifier_TruncatesBody(t *testing.T) {
	svc := &testutil.ScriptedCompleter{Default: testutil.VerdictJSON("low", false, false)}
	c := ai.NewClassifier(svc, time.Second, testutil.DiscardLogger())

	body := strings.Repeat("a", ai.ClassifyBodyLimit+100)
	_, err := c.Classify(context.Background(), testutil.Email("Long", "x <x@y.z>", body))
	require.NoError(t, err)

	prompt := svc.Calls[0].Prompt
	assert.Contains(t, prompt, strings.Repeat("a", ai.ClassifyBodyLimit))
	assert.NotContains(t, prompt, strings.Repeat("a", ai.ClassifyBodyLimit+1))
}

func TestClassifier_ServiceError(t *testing.T) {
	svc := &testutil.ScriptedCompleter{
		Errors: map[string]error{"Hello": errors.New("connection reset")},
	}
	c := ai.NewClassifier(svc, time.Second, testutil.DiscardLogger())

	_, err := c.Classify(context.Background(), testutil.Email("Hello", "x <x@y.z>", "hi"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrClassificationFailed)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestClassifier_MalformedReplyIsSkippedNotDefaulted(t *testing.T) {
	svc := &testutil.ScriptedCompleter{Default: `{"importance":"high","reason":"r"}`}
	c := ai.NewClassifier(svc, time.Second, testutil.DiscardLogger())

	v, err := c.Classify(context.Background(), testutil.Email("Hello", "x <x@y.z>", "hi"))
	assert.ErrorIs(t, err, ai.ErrClassificationFailed)
	assert.Equal(t, model.Verdict{}, v)
	assert.Equal(t, 1, svc.CallCount(), "failed classification is not retried")
}

type blockingCompleter struct{}

func (blockingCompleter) Complete(ctx context.Context, _ ai.Completion) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestClassifier_Timeout(t *testing.T) {
	c := ai.NewClassifier(blockingCompleter{}, 20*time.Millisecond, testutil.DiscardLogger())

	_, err := c.Classify(context.Background(), testutil.Email("Hello", "x <x@y.z>", "hi"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ai.ErrClassificationFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
