package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shandysiswandi/passcode/internal/account/entity"
	"github.com/shandysiswandi/passcode/internal/pkg/goerror"
	"github.com/shandysiswandi/passcode/internal/pkg/instrument"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const liteSelectAccount = `SELECT id, username, email, password_hash, otp_digest, otp_issued_at, created_at, updated_at FROM accounts `

type SQLite struct {
	tracing
	conn *sql.DB
}

// OpenSQLite opens the database at dsn with a single connection, so every
// statement and transaction runs one at a time.
func OpenSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return conn, nil
}

func NewSQLite(conn *sql.DB, ins instrument.Instrumentation) *SQLite {
	return &SQLite{tracing: tracing{ins: ins}, conn: conn}
}

func (s *SQLite) mapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return goerror.ErrNotFound
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE {
		// message names the column: "UNIQUE constraint failed: accounts.username_key"
		msg := liteErr.Error()
		switch {
		case strings.Contains(msg, "accounts.username_key"):
			return duplicateFor(usernameIndex)
		case strings.Contains(msg, "accounts.email_key"):
			return duplicateFor(emailIndex)
		default:
			return goerror.ErrConflict
		}
	}

	return err
}

func (s *SQLite) scanAccount(row *sql.Row) (*entity.Account, error) {
	var (
		acc       entity.Account
		email     sql.NullString
		digest    sql.NullString
		issuedAt  sql.NullInt64
		createdAt int64
		updatedAt int64
	)

	err := row.Scan(&acc.ID, &acc.Username, &email, &acc.PasswordHash, &digest, &issuedAt, &createdAt, &updatedAt)
	if err != nil {
		return nil, s.mapError(err)
	}

	acc.Email = email.String
	acc.OTPDigest = digest.String
	if issuedAt.Valid {
		t := time.UnixMilli(issuedAt.Int64).UTC()
		acc.OTPIssuedAt = &t
	}
	acc.CreatedAt = time.UnixMilli(createdAt).UTC()
	acc.UpdatedAt = time.UnixMilli(updatedAt).UTC()

	return &acc, nil
}

func (s *SQLite) GetAccountByUsername(ctx context.Context, username string) (_ *entity.Account, err error) {
	ctx, span := s.startSpan(ctx, "GetAccountByUsername")
	defer func() { s.endSpan(span, err) }()

	return s.scanAccount(s.conn.QueryRowContext(ctx, liteSelectAccount+`WHERE username_key = ?`, entity.Key(username)))
}

func (s *SQLite) GetAccountByEmail(ctx context.Context, email string) (_ *entity.Account, err error) {
	ctx, span := s.startSpan(ctx, "GetAccountByEmail")
	defer func() { s.endSpan(span, err) }()

	return s.scanAccount(s.conn.QueryRowContext(ctx, liteSelectAccount+`WHERE email_key = ?`, entity.Key(email)))
}

func (s *SQLite) CreateAccount(ctx context.Context, in entity.NewAccount) (err error) {
	ctx, span := s.startSpan(ctx, "CreateAccount")
	defer func() { s.endSpan(span, err) }()

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if rErr := tx.Rollback(); rErr != nil && !errors.Is(rErr, sql.ErrTxDone) {
			slog.ErrorContext(ctx, "failed to rollback", "error", rErr)
		}
	}()

	var taken bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE username_key = ?)`, entity.Key(in.Username)).Scan(&taken); err != nil {
		return s.mapError(err)
	}
	if taken {
		return entity.ErrDuplicateUsername
	}

	if in.Email != "" {
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE email_key = ?)`, entity.Key(in.Email)).Scan(&taken); err != nil {
			return s.mapError(err)
		}
		if taken {
			return entity.ErrDuplicateEmail
		}
	}

	createdAt := in.CreatedAt.UTC().UnixMilli()
	if _, err := tx.ExecContext(ctx, `INSERT INTO accounts
		(id, username, username_key, email, email_key, password_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.Username, entity.Key(in.Username), nullable(in.Email), nullable(entity.Key(in.Email)), in.PasswordHash, createdAt, createdAt,
	); err != nil {
		return s.mapError(err)
	}

	return s.mapError(tx.Commit())
}

func (s *SQLite) SetOTP(ctx context.Context, id int64, digest string, issuedAt time.Time) (err error) {
	ctx, span := s.startSpan(ctx, "SetOTP")
	defer func() { s.endSpan(span, err) }()

	res, err := s.conn.ExecContext(ctx, `UPDATE accounts SET otp_digest = ?, otp_issued_at = ?, updated_at = ? WHERE id = ?`,
		digest, issuedAt.UTC().UnixMilli(), now().UnixMilli(), id)
	if err != nil {
		return s.mapError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return goerror.ErrNotFound
	}

	return nil
}

func (s *SQLite) ClearOTP(ctx context.Context, id int64) (err error) {
	ctx, span := s.startSpan(ctx, "ClearOTP")
	defer func() { s.endSpan(span, err) }()

	_, err = s.conn.ExecContext(ctx, `UPDATE accounts SET otp_digest = NULL, otp_issued_at = NULL, updated_at = ?
		WHERE id = ? AND otp_digest IS NOT NULL`, now().UnixMilli(), id)
	return s.mapError(err)
}

func (s *SQLite) ConsumeOTP(ctx context.Context, id int64, digest string) (_ bool, err error) {
	ctx, span := s.startSpan(ctx, "ConsumeOTP")
	defer func() { s.endSpan(span, err) }()

	res, err := s.conn.ExecContext(ctx, `UPDATE accounts SET otp_digest = NULL, otp_issued_at = NULL, updated_at = ?
		WHERE id = ? AND otp_digest = ?`, now().UnixMilli(), id, digest)
	if err != nil {
		return false, s.mapError(err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n == 1, nil
}
