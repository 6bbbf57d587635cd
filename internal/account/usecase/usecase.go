package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shandysiswandi/passcode/internal/account/entity"
	"github.com/shandysiswandi/passcode/internal/pkg/clock"
	"github.com/shandysiswandi/passcode/internal/pkg/goerror"
	"github.com/shandysiswandi/passcode/internal/pkg/hash"
	"github.com/shandysiswandi/passcode/internal/pkg/instrument"
	"github.com/shandysiswandi/passcode/internal/pkg/lock"
	"github.com/shandysiswandi/passcode/internal/pkg/otp"
	"github.com/shandysiswandi/passcode/internal/pkg/uid"
	"github.com/shandysiswandi/passcode/internal/pkg/validator"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const defaultLockTTL = 30 * time.Second

type repoDB interface {
	GetAccountByUsername(ctx context.Context, username string) (*entity.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*entity.Account, error)

	CreateAccount(ctx context.Context, in entity.NewAccount) error

	SetOTP(ctx context.Context, id int64, digest string, issuedAt time.Time) error
	ClearOTP(ctx context.Context, id int64) error
	ConsumeOTP(ctx context.Context, id int64, digest string) (bool, error)
}

type repoMail interface {
	SendOTP(ctx context.Context, recipient, code string) error
}

// Options are the start-up settings of the account flows.
type Options struct {
	Delivery entity.DeliveryMode
	// LockTTL bounds how long a crashed login can hold an account lock.
	LockTTL time.Duration
}

type Usecase struct {
	repoDB    repoDB
	repoMail  repoMail
	validator validator.Validator
	password  hash.Hash
	otpDigest hash.Hash
	otp       otp.Generator
	locker    lock.Locker
	uid       uid.NumberID
	clock     clock.Clocker
	ins       instrument.Instrumentation
	opts      Options

	otpIssued         metric.Int64Counter
	otpDispatchFailed metric.Int64Counter
	otpVerified       metric.Int64Counter
}

type Dependency struct {
	RepoDB     repoDB
	RepoMail   repoMail
	Validator  validator.Validator
	Password   hash.Hash
	OTPDigest  hash.Hash
	OTP        otp.Generator
	Locker     lock.Locker
	UID        uid.NumberID
	Clock      clock.Clocker
	Instrument instrument.Instrumentation
	Options    Options
}

func New(dep Dependency) *Usecase {
	ins := dep.Instrument
	if ins == nil {
		ins = instrument.NewNoop()
	}

	opts := dep.Options
	if opts.LockTTL <= 0 {
		opts.LockTTL = defaultLockTTL
	}

	s := &Usecase{
		repoDB:    dep.RepoDB,
		repoMail:  dep.RepoMail,
		validator: dep.Validator,
		password:  dep.Password,
		otpDigest: dep.OTPDigest,
		otp:       dep.OTP,
		locker:    dep.Locker,
		uid:       dep.UID,
		clock:     dep.Clock,
		ins:       ins,
		opts:      opts,
	}

	meter := ins.Meter("account.usecase")
	s.otpIssued = s.counter(meter, "account.otp.issued", "Number of one-time passcodes issued")
	s.otpDispatchFailed = s.counter(meter, "account.otp.dispatch_failed", "Number of passcode emails that could not be sent")
	s.otpVerified = s.counter(meter, "account.otp.verified", "Number of passcodes verified")

	return s
}

func (s *Usecase) counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		slog.Error("failed to create counter", "name", name, "error", err)
		return nil
	}
	return c
}

func (s *Usecase) incr(ctx context.Context, c metric.Int64Counter) {
	if c != nil {
		c.Add(ctx, 1)
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("account.usecase").Start(ctx, name)
}

// validate turns rule violations into a 400 carrying msg and the per-field details.
func (s *Usecase) validate(ctx context.Context, data any, msg string) error {
	err := s.validator.Validate(data)
	if err == nil {
		return nil
	}

	var verr validator.ValidationError
	if errors.As(err, &verr) {
		return goerror.NewInvalidInput(msg, verr.Values())
	}

	slog.ErrorContext(ctx, "failed to run validator", "error", err)
	return goerror.NewServer(err)
}
