package app

import (
	"context"
	"crypto/rand"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
	"github.com/shandysiswandi/passcode/internal/account/outbound/db"
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

func (a *App) initConfig() {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}

	cfg, err := config.NewViper(path)
	if err != nil {
		slog.Error("failed to init config", "error", err)
		os.Exit(1)
	}

	a.config = cfg
}

func (a *App) initInstrument() {
	a.logLevel = new(slog.LevelVar)

	ins, err := instrument.New(a.ctx, instrument.Config{
		Enabled:          a.config.GetBool("instrument.enabled"),
		ServiceName:      a.config.GetString("app.name"),
		ServiceVersion:   a.config.GetString("app.version"),
		Environment:      a.config.GetString("app.env"),
		OTLPEndpoint:     a.config.GetString("instrument.exporter.otlp.endpoint"),
		OTLPInsecure:     a.config.GetBool("instrument.exporter.otlp.insecure"),
		OTLPTimeout:      a.config.GetSecond("instrument.exporter.otlp.timeout_s"),
		TraceSampleRatio: a.config.GetFloat64("instrument.trace_sample_ratio"),
		MetricsInterval:  a.config.GetSecond("instrument.metric_interval_seconds"),
		LogLevel:         a.config.GetString("instrument.log_level"),
		Level:            a.logLevel,
		MaskFields:       a.config.GetArray("instrument.log_mask_fields"),
	})
	if err != nil {
		slog.Error("failed to init instrumentation", "error", err)
		os.Exit(1)
	}
	a.ins = ins

	// The log level is the one setting applied without a restart.
	a.config.OnChange(func() {
		a.logLevel.Set(instrument.ParseLevel(a.config.GetString("instrument.log_level")))
	})
}

func (a *App) initLibraries() {
	a.clock = clock.New()
	a.uuid = uid.NewUUID()

	validator, err := validator.NewV10Validator()
	if err != nil {
		slog.Error("failed to init validation v10 validator", "error", err)
		os.Exit(1)
	}
	a.validator = validator

	snow, err := uid.NewSnowflake(a.config.GetInt64("app.node_id"))
	if err != nil {
		slog.Error("failed to init uid number snowflake", "error", err)
		os.Exit(1)
	}
	a.uid = snow

	pepper := a.config.GetString("hash.pepper")
	switch algo := a.config.GetString("hash.algorithm"); algo {
	case "bcrypt":
		a.password = hash.NewBcrypt(a.config.GetInt("hash.bcrypt.cost"), pepper)
	case "argon2id":
		a.password = hash.NewArgon2id(pepper, a.config.GetInt("hash.argon2id.max_concurrent"))
	default:
		slog.Error("failed to init password hasher, unknown algorithm", "algorithm", algo)
		os.Exit(1)
	}

	secret := a.config.GetString("hash.otp_secret")
	if secret == "" {
		secret = rand.Text()
		slog.Warn("hash.otp_secret is empty, pending OTPs will not survive a restart")
	}
	a.otpDigest = hash.NewHMACSHA256(secret)

	gen, err := otp.New(a.config.GetString("otp.generator"))
	if err != nil {
		slog.Error("failed to init otp generator", "error", err)
		os.Exit(1)
	}
	a.otp = gen
}

func (a *App) initDatabase() {
	migrate := a.config.GetBool("database.migrate")

	switch driver := a.config.GetString("database.driver"); driver {
	case "sqlite":
		conn, err := db.OpenSQLite(a.ctx, a.config.GetString("database.sqlite.dsn"))
		if err != nil {
			slog.Error("failed to open sqlite database", "error", err)
			os.Exit(1)
		}

		if migrate {
			if err := db.MigrateSQLite(conn); err != nil {
				slog.Error("failed to migrate sqlite database", "error", err)
				os.Exit(1)
			}
		}

		a.sqliteConn = conn

	case "postgres":
		url := a.config.GetString("database.postgres.url")
		config, err := pgxpool.ParseConfig(url)
		if err != nil {
			slog.Error("failed to parse DB connection string.", "error", err)
			os.Exit(1)
		}

		config.MaxConns = int32(a.config.GetInt("database.postgres.pool.max_conns"))
		config.MinConns = int32(a.config.GetInt("database.postgres.pool.min_conns"))
		config.MaxConnIdleTime = a.config.GetSecond("database.postgres.pool.max_idle")
		config.MaxConnLifetime = a.config.GetSecond("database.postgres.pool.max_life")

		pool, err := pgxpool.NewWithConfig(a.ctx, config)
		if err != nil {
			slog.Error("failed to create DB connection pool", "error", err)
			os.Exit(1)
		}

		pingCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
		defer cancel()
		if err := pool.Ping(pingCtx); err != nil {
			slog.Error("failed to ping DB", "error", err)
			os.Exit(1)
		}

		if migrate {
			if err := db.MigratePostgres(url); err != nil {
				slog.Error("failed to migrate postgres database", "error", err)
				os.Exit(1)
			}
		}

		a.pgConn = pool

	default:
		slog.Error("failed to init database, unknown driver", "driver", driver)
		os.Exit(1)
	}
}

func (a *App) initLock() {
	switch driver := a.config.GetString("lock.driver"); driver {
	case "memory":
		a.locker = lock.NewMemory()

	case "redis":
		opt, err := redis.ParseURL(a.config.GetString("redis.url"))
		if err != nil {
			slog.Error("failed to parse redis url", "error", err)
			os.Exit(1)
		}

		rdb := redis.NewClient(opt)

		pingCtx, cancel := context.WithTimeout(a.ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			slog.Error("failed to init redis", "error", err)
			os.Exit(1)
		}

		a.cacheConn = rdb
		a.locker = lock.NewRedis(rdb, a.config.GetMillisecond("lock.poll_ms"))

	default:
		slog.Error("failed to init lock, unknown driver", "driver", driver)
		os.Exit(1)
	}
}

func (a *App) initMail() {
	tlsMode := mail.TLSStartTLS
	switch {
	case a.config.GetBool("mail.use_ssl"):
		tlsMode = mail.TLSImplicit
	case a.config.GetBool("mail.disable_tls"):
		tlsMode = mail.TLSNone
	}

	client, err := mail.New(mail.SMTPConfig{
		Host:        a.config.GetString("mail.host"),
		Port:        a.config.GetInt("mail.port"),
		Username:    a.config.GetString("mail.username"),
		Password:    a.config.GetString("mail.password"),
		From:        a.config.GetString("mail.from"),
		TLS:         tlsMode,
		DialTimeout: a.config.GetSecond("mail.timeout_seconds"),
	})
	if err != nil {
		slog.Error("failed to init mail", "error", err)
		os.Exit(1)
	}

	if _, ok := client.(mail.Unconfigured); ok {
		slog.Warn("smtp relay is not configured, OTP emails will fail")
	} else {
		slog.Info("smtp relay configured", "host", a.config.GetString("mail.host"), "tls", tlsMode.String())
	}

	a.mail = client
}

func (a *App) initHTTPServer() {
	a.router = router.NewRouter(router.Config{
		UUID:                 a.uuid,
		Instrument:           a.ins,
		MaskFields:           a.config.GetArray("instrument.log_mask_fields"),
		MaintenanceEndpoints: a.config.GetArray("app.maintenance.endpoints"),
		StaticDir:            a.config.GetString("app.static.dir"),
	})

	routerWithCORS := cors.New(cors.Options{
		AllowedOrigins: a.config.GetArray("app.server.cors"),
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodHead,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{instrument.CorrelationHeader},
	}).Handler(a.router)

	a.httpServer = &http.Server{
		Addr:              net.JoinHostPort(a.config.GetString("app.server.address"), strconv.Itoa(a.config.GetInt("app.server.port"))),
		Handler:           routerWithCORS,
		ReadTimeout:       a.config.GetSecond("app.server.http.read_timeout"),
		ReadHeaderTimeout: a.config.GetSecond("app.server.http.header_timeout"),
		WriteTimeout:      a.config.GetSecond("app.server.http.write_timeout"),
		IdleTimeout:       a.config.GetSecond("app.server.http.idle_timeout"),
	}
}

func (a *App) initClosers() {
	a.closers = []struct {
		name string
		fn   func(context.Context) error
	}{
		{
			name: "Mail",
			fn: func(context.Context) error {
				return a.mail.Close()
			},
		},
		{
			name: "Redis",
			fn: func(context.Context) error {
				if a.cacheConn == nil {
					return nil
				}

				return a.cacheConn.Close()
			},
		},
		{
			name: "Database",
			fn: func(context.Context) error {
				if a.pgConn != nil {
					a.pgConn.Close()
				}
				if a.sqliteConn != nil {
					return a.sqliteConn.Close()
				}

				return nil
			},
		},
		{
			name: "Instrument",
			fn: func(ctx context.Context) error {
				return a.ins.Shutdown(ctx)
			},
		},
		{
			name: "Config",
			fn: func(context.Context) error {
				return a.config.Close()
			},
		},
	}
}
