package app

import (
	"log/slog"
	"os"

	"github.com/shandysiswandi/passcode/internal/account"
)

func (a *App) initModules() {
	if err := account.New(account.Dependency{
		PostgresConn: a.pgConn,
		SQLiteConn:   a.sqliteConn,
		Mail:         a.mail,
		Router:       a.router,
		Config:       a.config,
		Instrument:   a.ins,
		UID:          a.uid,
		Clock:        a.clock,
		Validator:    a.validator,
		Password:     a.password,
		OTPDigest:    a.otpDigest,
		OTP:          a.otp,
		Locker:       a.locker,
	}); err != nil {
		slog.Error("failed to init module account", "error", err)
		os.Exit(1)
	}
}
