package account

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shandysiswandi/passcode/internal/account/outbound/db"
	"github.com/shandysiswandi/passcode/internal/pkg/clock"
	"github.com/shandysiswandi/passcode/internal/pkg/config"
	"github.com/shandysiswandi/passcode/internal/pkg/hash"
	"github.com/shandysiswandi/passcode/internal/pkg/instrument"
	"github.com/shandysiswandi/passcode/internal/pkg/lock"
	"github.com/shandysiswandi/passcode/internal/pkg/otp"
	"github.com/shandysiswandi/passcode/internal/pkg/router"
	"github.com/shandysiswandi/passcode/internal/pkg/validator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type seqID struct{ n int64 }

func (s *seqID) Generate() int64 { s.n++; return s.n }

type fixedID string

func (f fixedID) Generate() string { return string(f) }

func newDependency(t *testing.T, cfgYAML string) Dependency {
	t.Helper()

	v, err := validator.NewV10Validator()
	require.NoError(t, err)

	cfg, err := config.NewViperFromBytes("yaml", []byte(cfgYAML))
	require.NoError(t, err)

	conn, err := db.OpenSQLite(context.Background(), "file:"+filepath.Join(t.TempDir(), "module.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, db.MigrateSQLite(conn))

	return Dependency{
		SQLiteConn: conn,
		Router:     router.NewRouter(router.Config{UUID: fixedID("cid")}),
		Config:     cfg,
		Instrument: instrument.NewNoop(),
		UID:        &seqID{},
		Clock:      clock.NewFixed(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)),
		Validator:  v,
		Password:   hash.NewBcrypt(bcrypt.MinCost, ""),
		OTPDigest:  hash.NewHMACSHA256("secret"),
		OTP:        otp.NewRandom(),
		Locker:     lock.NewMemory(),
	}
}

func TestNew(t *testing.T) {
	t.Run("Wired", func(t *testing.T) {
		dep := newDependency(t, "modules:\n  account:\n    delivery: inline\n")
		assert.NoError(t, New(dep))
	})

	t.Run("NoDatabase", func(t *testing.T) {
		dep := newDependency(t, "{}")
		dep.SQLiteConn = nil
		assert.Error(t, New(dep))
	})

	t.Run("MissingHasher", func(t *testing.T) {
		dep := newDependency(t, "{}")
		dep.Password = nil
		assert.Error(t, New(dep))
	})

	t.Run("UnknownDelivery", func(t *testing.T) {
		dep := newDependency(t, "modules:\n  account:\n    delivery: pigeon\n")
		assert.Error(t, New(dep))
	})
}
