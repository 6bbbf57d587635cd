package mail

import (
	"context"
	"errors"
	"io"
)

// ErrNotConfigured is returned by Unconfigured for every send.
var ErrNotConfigured = errors.New("email sending is not configured: set a relay host and sender")

// Message represents an email payload.
type Message struct {
	// From is an optional explicit sender; the configured default is used when empty.
	From string
	// To lists required recipients.
	To []string
	// Subject is the email subject line.
	Subject string
	// TextBody is the plain-text body.
	TextBody string
}

// Mail abstracts an email provider.
type Mail interface {
	io.Closer
	// Send dispatches the given message using the underlying provider.
	Send(ctx context.Context, msg Message) error
}

// Unconfigured is a Mail that cannot deliver anything.
type Unconfigured struct{}

// Send always fails with ErrNotConfigured.
func (Unconfigured) Send(context.Context, Message) error {
	return ErrNotConfigured
}

// Close implements io.Closer.
func (Unconfigured) Close() error {
	return nil
}

// New returns an SMTP sender for cfg, or Unconfigured when cfg names no relay
// host or no sender.
func New(cfg SMTPConfig) (Mail, error) {
	if cfg.Host == "" || cfg.sender() == "" {
		return Unconfigured{}, nil
	}

	return NewSMTP(cfg)
}
