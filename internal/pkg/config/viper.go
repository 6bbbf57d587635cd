package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// envAliases binds keys to the short environment variables the service has
// always accepted, in addition to the derived upper snake case name.
var envAliases = map[string][]string{
	"app.server.port":  {"PORT"},
	"mail.host":        {"SMTP_HOST"},
	"mail.port":        {"SMTP_PORT"},
	"mail.username":    {"SMTP_USERNAME"},
	"mail.password":    {"SMTP_PASSWORD"},
	"mail.from":        {"SMTP_SENDER"},
	"mail.use_ssl":     {"SMTP_USE_SSL"},
	"mail.disable_tls": {"SMTP_DISABLE_TLS"},
	"app.static.dir":   {"STATIC_DIR"},
	"database.driver":  {"DATABASE_DRIVER"},
}

var defaults = map[string]any{
	"app.name":                           "passcode",
	"app.env":                            "local",
	"app.version":                        "dev",
	"app.node_id":                        1,
	"app.server.address":                 "0.0.0.0",
	"app.server.port":                    5000,
	"app.server.cors":                    "*",
	"app.server.http.read_timeout":       15,
	"app.server.http.write_timeout":      30,
	"app.server.http.idle_timeout":       60,
	"app.server.http.header_timeout":     5,
	"app.server.shutdown_timeout":        10,
	"app.static.dir":                     "./web",
	"app.maintenance.endpoints":          "",
	"database.driver":                    "sqlite",
	"database.migrate":                   true,
	"database.sqlite.dsn":                "file:passcode.db?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
	"database.postgres.pool.max_conns":   10,
	"database.postgres.pool.min_conns":   1,
	"database.postgres.pool.max_idle":    300,
	"database.postgres.pool.max_life":    3600,
	"lock.driver":                        "memory",
	"lock.ttl_seconds":                   30,
	"lock.poll_ms":                       50,
	"hash.algorithm":                     "bcrypt",
	"hash.bcrypt.cost":                   10,
	"hash.argon2id.max_concurrent":       4,
	"otp.generator":                      "random",
	"mail.port":                          587,
	"mail.timeout_seconds":               10,
	"mail.retry.max_retries":             0,
	"mail.retry.base_delay_ms":           200,
	"modules.account.delivery":           "email",
	"instrument.enabled":                 false,
	"instrument.log_level":               "info",
	"instrument.log_mask_fields":         "password,otp,code",
	"instrument.exporter.otlp.endpoint":  "localhost:4317",
	"instrument.exporter.otlp.insecure":  true,
	"instrument.exporter.otlp.timeout_s": 5,
	"instrument.trace_sample_ratio":      1.0,
	"instrument.metric_interval_seconds": 15,
}

// Viper is a Config implementation backed by github.com/spf13/viper.
type Viper struct {
	v *viper.Viper

	mu        sync.Mutex
	listeners []func()
}

// NewViper loads configuration from defaults, the optional file at pathFile
// and the environment, in increasing order of priority.
//
// A missing file is not an error; the service runs on defaults and
// environment alone. When the file exists it is watched and re-read on change,
// after which the OnChange listeners run.
func NewViper(pathFile string) (*Viper, error) {
	v := newViper()

	filename := path.Base(pathFile)
	configName := filename[:len(filename)-len(path.Ext(filename))]

	v.AddConfigPath(path.Dir(pathFile))
	v.SetConfigName(configName)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config %s: %w", pathFile, err)
		}

		slog.Info("config file not found, using defaults and environment", "path", pathFile)
		return &Viper{v: v}, nil
	}

	vc := &Viper{v: v}

	v.OnConfigChange(func(_ fsnotify.Event) {
		if err := v.ReadInConfig(); err != nil {
			slog.Error("config reload failed", "path", pathFile, "error", err)
			return
		}
		slog.Info("config success reloaded", "path", pathFile)
		vc.notify()
	})
	v.WatchConfig()

	return vc, nil
}

// OnChange registers fn to run after every successful reload of the config
// file. Values read before a reload are not updated; fn must read again.
func (vc *Viper) OnChange(fn func()) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	vc.listeners = append(vc.listeners, fn)
}

func (vc *Viper) notify() {
	vc.mu.Lock()
	listeners := append([]func(){}, vc.listeners...)
	vc.mu.Unlock()

	for _, fn := range listeners {
		fn()
	}
}

// NewViperFromBytes loads configuration from memory and returns a Viper-backed Config.
// configType should be a format supported by Viper (e.g. "yaml", "json", "toml").
// Defaults and environment overrides apply as for NewViper.
func NewViperFromBytes(configType string, data []byte) (*Viper, error) {
	if strings.TrimSpace(configType) == "" {
		return nil, errors.New("config type is required")
	}

	v := newViper()
	v.SetConfigType(configType)

	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, err
	}

	return &Viper{v: v}, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	for k, val := range defaults {
		v.SetDefault(k, val)
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range envAliases {
		envs := append([]string{strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, names...)
		_ = v.BindEnv(append([]string{key}, envs...)...)
	}

	return v
}

// Set overrides a key at runtime. It is meant for tests and wiring code that
// derives one value from another.
func (vc *Viper) Set(key string, value any) {
	vc.v.Set(key, value)
}

// GetBool returns the value for key as bool.
func (vc *Viper) GetBool(key string) bool {
	return vc.v.GetBool(key)
}

// GetInt returns the value for key as int.
func (vc *Viper) GetInt(key string) int {
	return vc.v.GetInt(key)
}

// GetInt64 returns the value for key as int64.
func (vc *Viper) GetInt64(key string) int64 {
	return vc.v.GetInt64(key)
}

// GetFloat64 returns the value for key as float64.
func (vc *Viper) GetFloat64(key string) float64 {
	return vc.v.GetFloat64(key)
}

// GetSecond returns the value for key as seconds.
func (vc *Viper) GetSecond(key string) time.Duration {
	return time.Duration(vc.v.GetInt64(key)) * time.Second
}

// GetMillisecond returns the value for key as milliseconds.
func (vc *Viper) GetMillisecond(key string) time.Duration {
	return time.Duration(vc.v.GetInt64(key)) * time.Millisecond
}

// GetString returns the value for key as string.
func (vc *Viper) GetString(key string) string {
	return strings.TrimSpace(vc.v.GetString(key))
}

// GetArray returns the value for key split by commas, or the YAML list as is.
func (vc *Viper) GetArray(key string) []string {
	var items []string

	switch raw := vc.v.Get(key).(type) {
	case nil:
		return nil
	case []string:
		items = raw
	case []any:
		items = lo.Map(raw, func(item any, _ int) string { return fmt.Sprint(item) })
	default:
		items = strings.Split(fmt.Sprint(raw), ",")
	}

	items = lo.Map(items, func(item string, _ int) string { return strings.TrimSpace(item) })

	return lo.Uniq(lo.Compact(items))
}

// Close implements io.Closer for interface compatibility.
func (vc *Viper) Close() error {
	// No resources to close for Viper; this is just for interface completeness.
	return nil
}
