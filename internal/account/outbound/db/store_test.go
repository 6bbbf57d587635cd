package db

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/passcode/internal/account/entity"
	"github.com/shandysiswandi/passcode/internal/pkg/goerror"
	"github.com/shandysiswandi/passcode/internal/pkg/instrument"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLite {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "passcode.db") + "?_pragma=busy_timeout(5000)"
	conn, err := OpenSQLite(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	require.NoError(t, MigrateSQLite(conn))
	// a second run finds nothing to do
	require.NoError(t, MigrateSQLite(conn))

	return NewSQLite(conn, instrument.NewNoop())
}

func TestSQLite(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store { return newSQLiteStore(t) })
}

// runStoreSuite checks the behavior every driver must share.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	createdAt := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	newAccount := func(id int64, username, email string) entity.NewAccount {
		return entity.NewAccount{
			ID:           id,
			Username:     username,
			Email:        email,
			PasswordHash: []byte("$2a$10$hash-of-" + username),
			CreatedAt:    createdAt,
		}
	}

	t.Run("CreateAndGet", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.CreateAccount(ctx, newAccount(1, "Bob", "bob@x.com")))

		acc, err := s.GetAccountByUsername(ctx, "bOB")
		require.NoError(t, err)
		assert.Equal(t, int64(1), acc.ID)
		assert.Equal(t, "Bob", acc.Username)
		assert.Equal(t, "bob@x.com", acc.Email)
		assert.Equal(t, []byte("$2a$10$hash-of-Bob"), acc.PasswordHash)
		assert.True(t, createdAt.Equal(acc.CreatedAt))
		assert.Equal(t, entity.OTPStateNone, acc.OTPState())
		assert.Nil(t, acc.OTPIssuedAt)

		byEmail, err := s.GetAccountByEmail(ctx, "BOB@X.COM")
		require.NoError(t, err)
		assert.Equal(t, acc.ID, byEmail.ID)

		_, err = s.GetAccountByUsername(ctx, "alice")
		assert.ErrorIs(t, err, goerror.ErrNotFound)
		_, err = s.GetAccountByEmail(ctx, "alice@x.com")
		assert.ErrorIs(t, err, goerror.ErrNotFound)
	})

	t.Run("Duplicates", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.CreateAccount(ctx, newAccount(1, "bob", "bob@x.com")))

		err := s.CreateAccount(ctx, newAccount(2, "BOB", "other@x.com"))
		assert.ErrorIs(t, err, entity.ErrDuplicateUsername)
		assert.ErrorIs(t, err, goerror.ErrConflict)

		err = s.CreateAccount(ctx, newAccount(3, "alice", "Bob@X.com"))
		assert.ErrorIs(t, err, entity.ErrDuplicateEmail)
	})

	t.Run("AccountsWithoutEmail", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		require.NoError(t, s.CreateAccount(ctx, newAccount(1, "bob", "")))
		require.NoError(t, s.CreateAccount(ctx, newAccount(2, "alice", "")))

		acc, err := s.GetAccountByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.Empty(t, acc.Email)

		_, err = s.GetAccountByEmail(ctx, "")
		assert.ErrorIs(t, err, goerror.ErrNotFound)
	})

	t.Run("ConcurrentSignupsOneWins", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)

		const n = 8
		errs := make([]error, n)

		var wg sync.WaitGroup
		for i := range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				username := "bob"
				if i%2 == 1 {
					username = "BOB"
				}
				errs[i] = s.CreateAccount(ctx, newAccount(int64(i+1), username, fmt.Sprintf("bob%d@x.com", i)))
			}()
		}
		wg.Wait()

		created := 0
		for _, err := range errs {
			if err == nil {
				created++
				continue
			}
			assert.ErrorIs(t, err, entity.ErrDuplicateUsername)
		}
		assert.Equal(t, 1, created)
	})

	t.Run("OTPSlot", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.CreateAccount(ctx, newAccount(1, "bob", "bob@x.com")))

		issuedAt := createdAt.Add(time.Minute)
		require.NoError(t, s.SetOTP(ctx, 1, "digest-1", issuedAt))
		require.NoError(t, s.SetOTP(ctx, 1, "digest-2", issuedAt))

		acc, err := s.GetAccountByUsername(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, "digest-2", acc.OTPDigest)
		require.NotNil(t, acc.OTPIssuedAt)
		assert.True(t, issuedAt.Equal(*acc.OTPIssuedAt))

		ok, err := s.ConsumeOTP(ctx, 1, "digest-1")
		require.NoError(t, err)
		assert.False(t, ok, "superseded digest must not consume")

		ok, err = s.ConsumeOTP(ctx, 1, "digest-2")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.ConsumeOTP(ctx, 1, "digest-2")
		require.NoError(t, err)
		assert.False(t, ok)

		acc, err = s.GetAccountByUsername(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, entity.OTPStateNone, acc.OTPState())
		assert.Nil(t, acc.OTPIssuedAt)

		require.NoError(t, s.SetOTP(ctx, 1, "digest-3", issuedAt))
		require.NoError(t, s.ClearOTP(ctx, 1))
		require.NoError(t, s.ClearOTP(ctx, 1))

		acc, err = s.GetAccountByUsername(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, entity.OTPStateNone, acc.OTPState())

		assert.ErrorIs(t, s.SetOTP(ctx, 42, "digest", issuedAt), goerror.ErrNotFound)
	})

	t.Run("ConcurrentConsumeOneWins", func(t *testing.T) {
		ctx := context.Background()
		s := newStore(t)
		require.NoError(t, s.CreateAccount(ctx, newAccount(1, "bob", "bob@x.com")))
		require.NoError(t, s.SetOTP(ctx, 1, "digest", createdAt))

		const n = 8
		var (
			mu   sync.Mutex
			wins int
			wg   sync.WaitGroup
		)
		for range n {
			wg.Add(1)
			go func() {
				defer wg.Done()
				ok, err := s.ConsumeOTP(ctx, 1, "digest")
				if !assert.NoError(t, err) {
					return
				}
				if ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		assert.Equal(t, 1, wins)
	})
}

func TestDuplicateFor(t *testing.T) {
	assert.ErrorIs(t, duplicateFor(usernameIndex), entity.ErrDuplicateUsername)
	assert.ErrorIs(t, duplicateFor(emailIndex), entity.ErrDuplicateEmail)
	assert.Equal(t, goerror.ErrConflict, duplicateFor("accounts_pkey"))
}
