package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yaontheroad/email-agents/internal/model"
)

// AuthError indicates that authentication was rejected by the mail
// server or delivery service.
type AuthError struct {
	Transport string
	Message   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("auth error (%s): %s", e.Transport, e.Message)
}

// IsAuthError reports whether err (or any error in its chain) is an AuthError.
func IsAuthError(err error) bool {
	var authErr *AuthError
	return errors.As(err, &authErr)
}

// GatewayError wraps a failed mailbox or delivery operation.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// IsGatewayError reports whether err (or any error in its chain) is a
// GatewayError.
func IsGatewayError(err error) bool {
	var gwErr *GatewayError
	return errors.As(err, &gwErr)
}

// Mailbox reads the monitored mailbox.
type Mailbox interface {
	// FetchInbound returns inbox messages received on or after since.
	FetchInbound(ctx context.Context, since time.Time) ([]model.InboundEmail, error)

	// FetchSent returns sent-folder messages dated on or after since.
	FetchSent(ctx context.Context, since time.Time) ([]model.SentRecord, error)
}

// Outbound is a plain-text reply ready for delivery.
type Outbound struct {
	To      string
	Subject string
	Body    string

	// InReplyTo is the Message-ID being answered, without angle brackets.
	InReplyTo string
}

// Sender delivers replies.
type Sender interface {
	Send(ctx context.Context, msg Outbound) error
}
