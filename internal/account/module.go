package account

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shandysiswandi/passcode/internal/account/entity"
	"github.com/shandysiswandi/passcode/internal/account/inbound"
	"github.com/shandysiswandi/passcode/internal/account/outbound/db"
	"github.com/shandysiswandi/passcode/internal/account/outbound/email"
	"github.com/shandysiswandi/passcode/internal/account/usecase"
	"github.com/shandysiswandi/passcode/internal/pkg/clock"
	"github.com/shandysiswandi/passcode/internal/pkg/config"
	"github.com/shandysiswandi/passcode/internal/pkg/hash"
	"github.com/shandysiswandi/passcode/internal/pkg/instrument"
	"github.com/shandysiswandi/passcode/internal/pkg/lock"
	"github.com/shandysiswandi/passcode/internal/pkg/mail"
	"github.com/shandysiswandi/passcode/internal/pkg/otp"
	"github.com/shandysiswandi/passcode/internal/pkg/router"
	"github.com/shandysiswandi/passcode/internal/pkg/uid"
	"github.com/shandysiswandi/passcode/internal/pkg/validator"
)

var errNoDatabase = errors.New("account: no database connection")

// Dependency carries everything the account module needs. Exactly one of
// PostgresConn and SQLiteConn selects the store. A nil Mail fails every OTP
// email.
type Dependency struct {
	PostgresConn *pgxpool.Pool              `validate:"required_without=SQLiteConn"`
	SQLiteConn   *sql.DB                    `validate:"required_without=PostgresConn"`
	Router       *router.Router             `validate:"required"`
	Config       config.Config              `validate:"required"`
	Instrument   instrument.Instrumentation `validate:"required"`
	UID          uid.NumberID               `validate:"required"`
	Clock        clock.Clocker              `validate:"required"`
	Validator    validator.Validator        `validate:"required"`
	Password     hash.Hash                  `validate:"required"`
	OTPDigest    hash.Hash                  `validate:"required"`
	OTP          otp.Generator              `validate:"required"`
	Locker       lock.Locker                `validate:"required"`
	Mail         mail.Mail
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	delivery, err := entity.ParseDeliveryMode(dep.Config.GetString("modules.account.delivery"))
	if err != nil {
		return err
	}

	var repoDB db.Store
	switch {
	case dep.PostgresConn != nil:
		repoDB = db.NewPostgres(dep.PostgresConn, dep.Instrument)
	case dep.SQLiteConn != nil:
		repoDB = db.NewSQLite(dep.SQLiteConn, dep.Instrument)
	default:
		return errNoDatabase
	}

	if dep.Mail == nil {
		dep.Mail = mail.Unconfigured{}
	}

	repoMail := email.New(dep.Mail, dep.Instrument, email.Options{
		Timeout:    dep.Config.GetSecond("mail.timeout_seconds"),
		MaxRetries: uint64(max(dep.Config.GetInt("mail.retry.max_retries"), 0)),
		BaseDelay:  dep.Config.GetMillisecond("mail.retry.base_delay_ms"),
	})

	uc := usecase.New(usecase.Dependency{
		RepoDB:     repoDB,
		RepoMail:   repoMail,
		Validator:  dep.Validator,
		Password:   dep.Password,
		OTPDigest:  dep.OTPDigest,
		OTP:        dep.OTP,
		Locker:     dep.Locker,
		UID:        dep.UID,
		Clock:      dep.Clock,
		Instrument: dep.Instrument,
		Options: usecase.Options{
			Delivery: delivery,
			LockTTL:  dep.Config.GetSecond("lock.ttl_seconds"),
		},
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc, delivery)

	return nil
}
