// Package ses delivers replies through the AWS SES v2 API.
package ses

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	sesv2 "github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/yaontheroad/email-agents/internal/model"
	"github.com/yaontheroad/email-agents/internal/source"
	"github.com/yaontheroad/email-agents/internal/source/email"
)

// SendEmailAPI is the interface for the SES v2 SendEmail operation.
type SendEmailAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// Sender implements source.Sender with SES. Replies are sent as raw
// MIME so threading headers survive.
type Sender struct {
	from   string
	client SendEmailAPI
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Sender from configuration. Static credentials are used
// when both keys are set; otherwise the default AWS credential chain is.
func New(ctx context.Context, cfg model.SESConfig, logger *slog.Logger) (*Sender, error) {
	if cfg.Sender == "" {
		return nil, fmt.Errorf("ses.sender is required")
	}

	var opts []func(*awsconfig.LoadOptions) error
	opts = append(opts, awsconfig.WithRegion(cfg.Region))

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return NewWithClient(cfg.Sender, sesv2.NewFromConfig(awsCfg), logger), nil
}

// NewWithClient creates a Sender with a custom client.
func NewWithClient(from string, client SendEmailAPI, logger *slog.Logger) *Sender {
	return &Sender{from: from, client: client, logger: logger, now: time.Now}
}

// Send delivers msg in a single attempt.
func (s *Sender) Send(ctx context.Context, msg source.Outbound) error {
	if strings.TrimSpace(msg.To) == "" {
		return &source.GatewayError{Op: "sending reply", Err: fmt.Errorf("no recipient address")}
	}

	raw, err := email.ComposeReply(s.from, msg, s.now())
	if err != nil {
		return &source.GatewayError{Op: "sending reply", Err: err}
	}

	out, err := s.client.SendEmail(ctx, &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(s.from),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Raw: &types.RawMessage{Data: raw},
		},
	})
	if err != nil {
		return &source.GatewayError{Op: "sending reply via SES", Err: err}
	}

	s.logger.Info("reply sent",
		"to", msg.To,
		"subject", msg.Subject,
		"ses_message_id", aws.ToString(out.MessageId),
	)
	return nil
}
