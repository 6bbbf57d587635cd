// Package db stores accounts in PostgreSQL or SQLite.
//
// Usernames and emails are unique on their lower-cased form, kept in the
// username_key and email_key columns. Both drivers return goerror.ErrNotFound
// for missing rows and entity.ErrDuplicateUsername or entity.ErrDuplicateEmail
// for uniqueness violations.
package db

import (
	"context"
	"errors"
	"time"

	"github.com/shandysiswandi/passcode/internal/account/entity"
	"github.com/shandysiswandi/passcode/internal/pkg/goerror"
	"github.com/shandysiswandi/passcode/internal/pkg/instrument"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	usernameIndex = "accounts_username_key_uniq"
	emailIndex    = "accounts_email_key_uniq"
)

// Store is implemented by every driver.
type Store interface {
	GetAccountByUsername(ctx context.Context, username string) (*entity.Account, error)
	GetAccountByEmail(ctx context.Context, email string) (*entity.Account, error)
	CreateAccount(ctx context.Context, in entity.NewAccount) error
	SetOTP(ctx context.Context, id int64, digest string, issuedAt time.Time) error
	ClearOTP(ctx context.Context, id int64) error
	ConsumeOTP(ctx context.Context, id int64, digest string) (bool, error)
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*SQLite)(nil)
)

type tracing struct {
	ins instrument.Instrumentation
}

func (t tracing) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return t.ins.Tracer("account.outbound.db").Start(ctx, name)
}

func (t tracing) endSpan(span trace.Span, err error) {
	if err != nil && !errors.Is(err, goerror.ErrNotFound) && !errors.Is(err, goerror.ErrConflict) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// duplicateFor maps a violated unique index to the domain error.
func duplicateFor(index string) error {
	switch index {
	case usernameIndex:
		return entity.ErrDuplicateUsername
	case emailIndex:
		return entity.ErrDuplicateEmail
	default:
		return goerror.ErrConflict
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func now() time.Time {
	return time.Now().UTC()
}
