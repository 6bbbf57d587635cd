package email

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/textproto"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/shandysiswandi/passcode/internal/pkg/instrument"
	"github.com/shandysiswandi/passcode/internal/pkg/mail"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const otpSubject = "Your one-time passcode"

const otpBody = `Hello,

Your one-time passcode is %s.
It expires once used.

If you did not request this code, please secure your account.

Thanks.`

var ErrNoRecipient = errors.New("no recipient email provided")

type Options struct {
	// Timeout bounds one dispatch including retries. Zero means no extra bound.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts after a transient failure.
	MaxRetries uint64
	// BaseDelay is the first backoff delay; it doubles on every retry.
	BaseDelay time.Duration
}

type Mail struct {
	client mail.Mail
	ins    instrument.Instrumentation
	opts   Options
}

func New(client mail.Mail, ins instrument.Instrumentation, opts Options) *Mail {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 200 * time.Millisecond
	}

	return &Mail{client: client, ins: ins, opts: opts}
}

// SendOTP mails code to recipient. It returns the error of the last attempt.
func (m *Mail) SendOTP(ctx context.Context, recipient, code string) (err error) {
	ctx, span := m.ins.Tracer("account.outbound.email").Start(ctx, "SendOTP")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if recipient == "" {
		return ErrNoRecipient
	}

	if m.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.Timeout)
		defer cancel()
	}

	msg := mail.Message{
		To:       []string{recipient},
		Subject:  otpSubject,
		TextBody: fmt.Sprintf(otpBody, code),
	}

	attempts := 0
	backoff := retry.WithMaxRetries(m.opts.MaxRetries, retry.NewExponential(m.opts.BaseDelay))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++

		sErr := m.client.Send(ctx, msg)
		if sErr == nil || permanent(sErr) {
			return sErr
		}

		slog.WarnContext(ctx, "failed attempt to send otp email", "attempt", attempts, "error", sErr)
		return retry.RetryableError(sErr)
	})
	span.SetAttributes(attribute.Int("mail.attempts", attempts))

	return err
}

// permanent reports failures that another attempt cannot fix: a missing relay
// configuration or a 5xx answer from the relay.
func permanent(err error) bool {
	if errors.Is(err, mail.ErrNotConfigured) {
		return true
	}

	var tpErr *textproto.Error
	return errors.As(err, &tpErr) && tpErr.Code >= 500
}
