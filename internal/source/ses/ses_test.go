package ses

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaontheroad/email-agents/internal/model"
	"github.com/yaontheroad/email-agents/internal/source"
	"github.com/yaontheroad/email-agents/tests/testutil"
)

// mockSESClient implements SendEmailAPI for testing.
type mockSESClient struct {
	err       error
	callCount int
	lastInput *sesv2.SendEmailInput
}

func (m *mockSESClient) SendEmail(_ context.Context, params *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	m.callCount++
	m.lastInput = params
	if m.err != nil {
		return nil, m.err
	}
	return &sesv2.SendEmailOutput{MessageId: aws.String("test-message-id")}, nil
}

func TestSend_RawMessageWithThreading(t *testing.T) {
	mock := &mockSESClient{}
	s := NewWithClient("me@x.com", mock, testutil.DiscardLogger())

	err := s.Send(context.Background(), source.Outbound{
		To:        "a@x.com",
		Subject:   "Re: Budget",
		Body:      "Approved.",
		InReplyTo: "abc@x.com",
	})
	require.NoError(t, err)
	require.Equal(t, 1, mock.callCount)

	in := mock.lastInput
	assert.Equal(t, "me@x.com", aws.ToString(in.FromEmailAddress))
	assert.Equal(t, []string{"a@x.com"}, in.Destination.ToAddresses)
	require.NotNil(t, in.Content.Raw)
	assert.Nil(t, in.Content.Simple)

	raw := string(in.Content.Raw.Data)
	assert.Contains(t, raw, "In-Reply-To: <abc@x.com>")
	assert.Contains(t, raw, "Subject: Re: Budget")
	assert.Contains(t, raw, "Approved.")
}

func TestSend_APIErrorIsNotRetried(t *testing.T) {
	mock := &mockSESClient{err: errors.New("throttled")}
	s := NewWithClient("me@x.com", mock, testutil.DiscardLogger())

	err := s.Send(context.Background(), source.Outbound{To: "a@x.com", Subject: "s", Body: "b"})
	require.Error(t, err)
	assert.True(t, source.IsGatewayError(err))
	assert.Equal(t, 1, mock.callCount)
}

func TestSend_NoRecipient(t *testing.T) {
	mock := &mockSESClient{}
	s := NewWithClient("me@x.com", mock, testutil.DiscardLogger())

	err := s.Send(context.Background(), source.Outbound{Subject: "s", Body: "b"})
	assert.True(t, source.IsGatewayError(err))
	assert.Zero(t, mock.callCount)
}

func TestNew_RequiresSender(t *testing.T) {
	_, err := New(context.Background(), model.SESConfig{Region: "us-east-1"}, testutil.DiscardLogger())
	assert.Error(t, err)
}

func TestNew_StaticCredentials(t *testing.T) {
	s, err := New(context.Background(), model.SESConfig{
		Region:          "us-east-1",
		AccessKeyID:     "AKIDEXAMPLE",
		SecretAccessKey: "secret",
		Sender:          "me@x.com",
	}, testutil.DiscardLogger())
	require.NoError(t, err)
	assert.Equal(t, "me@x.com", s.from)
}
