package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/passcode/internal/account/entity"
	"github.com/shandysiswandi/passcode/internal/pkg/goerror"
	"github.com/shandysiswandi/passcode/internal/pkg/instrument"
)

const pgSelectAccount = `SELECT id, username, email, password_hash, otp_digest, otp_issued_at, created_at, updated_at FROM accounts `

type Postgres struct {
	tracing
	conn *pgxpool.Pool
}

func NewPostgres(conn *pgxpool.Pool, ins instrument.Instrumentation) *Postgres {
	return &Postgres{tracing: tracing{ins: ins}, conn: conn}
}

// mapError turns 23505 unique_violation into the duplicate error of the
// violated index.
func (s *Postgres) mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return goerror.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return duplicateFor(pgErr.ConstraintName)
	}

	return err
}

func (s *Postgres) scanAccount(row pgx.Row) (*entity.Account, error) {
	var (
		acc    entity.Account
		email  *string
		digest *string
	)

	err := row.Scan(&acc.ID, &acc.Username, &email, &acc.PasswordHash, &digest, &acc.OTPIssuedAt, &acc.CreatedAt, &acc.UpdatedAt)
	if err != nil {
		return nil, s.mapError(err)
	}

	if email != nil {
		acc.Email = *email
	}
	if digest != nil {
		acc.OTPDigest = *digest
	}

	return &acc, nil
}

func (s *Postgres) GetAccountByUsername(ctx context.Context, username string) (_ *entity.Account, err error) {
	ctx, span := s.startSpan(ctx, "GetAccountByUsername")
	defer func() { s.endSpan(span, err) }()

	return s.scanAccount(s.conn.QueryRow(ctx, pgSelectAccount+`WHERE username_key = $1`, entity.Key(username)))
}

func (s *Postgres) GetAccountByEmail(ctx context.Context, email string) (_ *entity.Account, err error) {
	ctx, span := s.startSpan(ctx, "GetAccountByEmail")
	defer func() { s.endSpan(span, err) }()

	return s.scanAccount(s.conn.QueryRow(ctx, pgSelectAccount+`WHERE email_key = $1`, entity.Key(email)))
}

// CreateAccount checks both keys and inserts in one transaction. Two racing
// transactions can both pass the checks; the unique indexes reject the loser.
func (s *Postgres) CreateAccount(ctx context.Context, in entity.NewAccount) (err error) {
	ctx, span := s.startSpan(ctx, "CreateAccount")
	defer func() { s.endSpan(span, err) }()

	tx, err := s.conn.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if rErr := tx.Rollback(ctx); rErr != nil && !errors.Is(rErr, pgx.ErrTxClosed) {
			slog.ErrorContext(ctx, "failed to rollback", "error", rErr)
		}
	}()

	var taken bool
	if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE username_key = $1)`, entity.Key(in.Username)).Scan(&taken); err != nil {
		return s.mapError(err)
	}
	if taken {
		return entity.ErrDuplicateUsername
	}

	if in.Email != "" {
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE email_key = $1)`, entity.Key(in.Email)).Scan(&taken); err != nil {
			return s.mapError(err)
		}
		if taken {
			return entity.ErrDuplicateEmail
		}
	}

	createdAt := in.CreatedAt.UTC()
	if _, err := tx.Exec(ctx, `INSERT INTO accounts
		(id, username, username_key, email, email_key, password_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
		in.ID, in.Username, entity.Key(in.Username), nullable(in.Email), nullable(entity.Key(in.Email)), in.PasswordHash, createdAt,
	); err != nil {
		return s.mapError(err)
	}

	return s.mapError(tx.Commit(ctx))
}

func (s *Postgres) SetOTP(ctx context.Context, id int64, digest string, issuedAt time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "SetOTP")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `UPDATE accounts SET otp_digest = $2, otp_issued_at = $3, updated_at = $4 WHERE id = $1`,
		id, digest, issuedAt.UTC(), now())
	if err != nil {
		return s.mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return goerror.ErrNotFound
	}

	return nil
}

func (s *Postgres) ClearOTP(ctx context.Context, id int64) (err error) {
	ctx, span := s.startSpan(ctx, "ClearOTP")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.Exec(ctx, `UPDATE accounts SET otp_digest = NULL, otp_issued_at = NULL, updated_at = $2
		WHERE id = $1 AND otp_digest IS NOT NULL`, id, now())
	return s.mapError(err)
}

// ConsumeOTP clears the slot only while it still holds digest. Exactly one of
// several concurrent callers sees true.
func (s *Postgres) ConsumeOTP(ctx context.Context, id int64, digest string) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "ConsumeOTP")
	defer func() { s.endSpan(span, err) }()

	tag, err := s.conn.Exec(ctx, `UPDATE accounts SET otp_digest = NULL, otp_issued_at = NULL, updated_at = $3
		WHERE id = $1 AND otp_digest = $2`, id, digest, now())
	if err != nil {
		return false, s.mapError(err)
	}

	return tag.RowsAffected() == 1, nil
}
