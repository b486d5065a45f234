// Package config loads Latchflow's runtime configuration from
// environment variables (and an optional YAML file), binding every
// knob spec §6.5 names into a typed, validated struct. Grounded on the
// shape of the teacher's internal/config/config.go (struct-of-structs,
// mapstructure tags, viper.AutomaticEnv + SetDefault, a Validate()
// method) but built fresh: the teacher's hot-reload machinery
// (update_*.go, reload_coordinator.go, sanitizer*.go) has no
// counterpart here, since nothing in this spec asks for live config
// reload.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/latchflow/latchflow/internal/database/postgres"
	"github.com/latchflow/latchflow/internal/obslog"
)

// Config is the root of every environment-derived setting this module
// reads. Each nested struct is handed, as-is or translated, to the
// package that owns the concern: Auth to internal/auth.Config, Database
// to internal/database/postgres.PostgresConfig, and so on. The one
// other environment reader is postgres.LoadFromEnv, used by cmd/migrate.
type Config struct {
	Port    int    `mapstructure:"port" validate:"required,min=1,max=65535"`
	NodeEnv string `mapstructure:"node_env" validate:"required"`

	Storage StorageConfig `mapstructure:"storage"`
	Queue   QueueConfig   `mapstructure:"queue"`
	Plugins PluginsConfig `mapstructure:"plugins"`

	Database DatabaseConfig `mapstructure:"database"`
	Log      obslog.Config  `mapstructure:"log"`

	Auth    AuthConfig    `mapstructure:"auth"`
	History HistoryConfig `mapstructure:"history"`
	System  SystemConfig  `mapstructure:"system"`
	Action  ActionConfig  `mapstructure:"action"`
}

// StorageConfig binds spec §6.2/§6.5's STORAGE_* env vars.
type StorageConfig struct {
	Driver     string `mapstructure:"driver" validate:"required,oneof=memory filesystem s3"`
	BasePath   string `mapstructure:"base_path"`
	Bucket     string `mapstructure:"bucket"`
	KeyPrefix  string `mapstructure:"key_prefix"`
	ConfigJSON string `mapstructure:"config_json"`
}

// QueueConfig binds spec §6.3/§6.5's QUEUE_* env vars.
type QueueConfig struct {
	Driver     string `mapstructure:"driver" validate:"required,oneof=memory"`
	ConfigJSON string `mapstructure:"config_json"`
	Capacity   int    `mapstructure:"capacity" validate:"min=1"`
}

// PluginsConfig binds the on-disk plugin manifest directory.
type PluginsConfig struct {
	Path string `mapstructure:"path"`
}

// DatabaseConfig binds the Postgres connection knobs internal/store's
// pool needs. Field names mirror internal/database/postgres.PostgresConfig
// so ToPostgresConfig is a straight field copy.
type DatabaseConfig struct {
	Host              string        `mapstructure:"host" validate:"required"`
	Port              int           `mapstructure:"port" validate:"required,min=1,max=65535"`
	Database          string        `mapstructure:"database" validate:"required"`
	User              string        `mapstructure:"user" validate:"required"`
	Password          string        `mapstructure:"password"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns" validate:"min=1"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	ConnectTimeout    time.Duration `mapstructure:"connect_timeout"`
}

// ToPostgresConfig converts DatabaseConfig into the shape
// internal/database/postgres.NewPostgresPool expects.
func (d DatabaseConfig) ToPostgresConfig() *postgres.PostgresConfig {
	return &postgres.PostgresConfig{
		Host:              d.Host,
		Port:              d.Port,
		Database:          d.Database,
		User:              d.User,
		Password:          d.Password,
		SSLMode:           d.SSLMode,
		MaxConns:          d.MaxConns,
		MinConns:          d.MinConns,
		MaxConnLifetime:   d.MaxConnLifetime,
		MaxConnIdleTime:   d.MaxConnIdleTime,
		HealthCheckPeriod: d.HealthCheckPeriod,
		ConnectTimeout:    d.ConnectTimeout,
	}
}

// DSN builds a libpq-style connection string for pgx/goose, mirroring
// internal/database/postgres.PostgresConfig.DSN.
func (d DatabaseConfig) DSN() string {
	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Database, sslMode)
}

// AuthConfig binds spec §6.5's auth-related env vars. Its field names
// and units (whole minutes, hours, days) differ from internal/auth.Config;
// ToAuthConfigFields converts them.
type AuthConfig struct {
	AdminSessionCookie      string        `mapstructure:"admin_session_cookie"`
	RecipientSessionCookie  string        `mapstructure:"recipient_session_cookie"`
	RecipientOTPLength      int           `mapstructure:"recipient_otp_length" validate:"min=4,max=10"`
	RecipientOTPTTLMin      int           `mapstructure:"recipient_otp_ttl_min" validate:"min=1"`
	RecipientSessionTTLHrs  int           `mapstructure:"recipient_session_ttl_hours" validate:"min=1"`
	AdminMagicLinkTTLMin    int           `mapstructure:"admin_magiclink_ttl_min" validate:"min=1"`
	AuthSessionTTLHrs       int           `mapstructure:"auth_session_ttl_hours" validate:"min=1"`
	CookieSecure            bool          `mapstructure:"cookie_secure"`
	AllowDevAuth            bool          `mapstructure:"allow_dev_auth"`
	DeviceCodeTTLMin        int           `mapstructure:"device_code_ttl_min" validate:"min=1"`
	DeviceCodeIntervalSec   int           `mapstructure:"device_code_interval_sec" validate:"min=1"`
	APITokenPrefix          string        `mapstructure:"api_token_prefix" validate:"required"`
	APITokenTTLDays         int           `mapstructure:"api_token_ttl_days"`
	APITokenScopesDefault   string        `mapstructure:"api_token_scopes_default"`
}

// HistoryConfig binds the changelog snapshotting knobs.
type HistoryConfig struct {
	SnapshotInterval int `mapstructure:"snapshot_interval" validate:"min=1"`
	MaxChainDepth    int `mapstructure:"max_chain_depth" validate:"min=1"`
}

// SystemConfig binds miscellaneous system-identity env vars.
type SystemConfig struct {
	UserID string `mapstructure:"user_id" validate:"required"`
}

// ActionConfig binds the action consumer's concurrency bound.
type ActionConfig struct {
	Concurrency int `mapstructure:"concurrency" validate:"min=1"`
}

// ToAuthConfigFields converts AuthConfig into the individual values
// internal/auth.Config is built from, as plain values rather than an
// auth.Config; the caller (cmd/server's buildAuthConfig) overlays them
// onto auth.DefaultConfig().
func (a AuthConfig) ToAuthConfigFields() (
	otpLength int,
	otpTTL time.Duration,
	recipientSessionTTL time.Duration,
	recipientCookie string,
	adminMagicLinkTTL time.Duration,
	adminSessionTTL time.Duration,
	adminCookie string,
	cookieSecure bool,
	allowDevAuth bool,
	deviceCodeTTL time.Duration,
	deviceCodeInterval time.Duration,
	apiTokenPrefix string,
	apiTokenTTL time.Duration,
	apiTokenDefaultScopes []string,
) {
	var scopes []string
	if a.APITokenScopesDefault != "" {
		for _, s := range strings.Split(a.APITokenScopesDefault, ",") {
			s = strings.TrimSpace(s)
			if s != "" {
				scopes = append(scopes, s)
			}
		}
	}
	var apiTTL time.Duration
	if a.APITokenTTLDays > 0 {
		apiTTL = time.Duration(a.APITokenTTLDays) * 24 * time.Hour
	}
	return a.RecipientOTPLength,
		time.Duration(a.RecipientOTPTTLMin) * time.Minute,
		time.Duration(a.RecipientSessionTTLHrs) * time.Hour,
		a.RecipientSessionCookie,
		time.Duration(a.AdminMagicLinkTTLMin) * time.Minute,
		time.Duration(a.AuthSessionTTLHrs) * time.Hour,
		a.AdminSessionCookie,
		a.CookieSecure,
		a.AllowDevAuth,
		time.Duration(a.DeviceCodeTTLMin) * time.Minute,
		time.Duration(a.DeviceCodeIntervalSec) * time.Second,
		a.APITokenPrefix,
		apiTTL,
		scopes
}

var validate = validator.New()

// Load reads configuration from environment variables, overlaying an
// optional YAML file at configPath (ignored if empty or missing),
// applying spec §6.5's defaults, and validating the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	bindEnv(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config: read file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}

	return &cfg, nil
}

// bindEnv wires each mapstructure key to the literal spec §6.5 env var
// name, since several of them (e.g. PORT, NODE_ENV) don't follow the
// SetEnvKeyReplacer's dotted-path convention.
func bindEnv(v *viper.Viper) {
	binds := map[string]string{
		"port":                               "PORT",
		"node_env":                           "NODE_ENV",
		"storage.driver":                     "STORAGE_DRIVER",
		"storage.base_path":                  "STORAGE_BASE_PATH",
		"storage.bucket":                     "STORAGE_BUCKET",
		"storage.key_prefix":                 "STORAGE_KEY_PREFIX",
		"storage.config_json":                "STORAGE_CONFIG_JSON",
		"queue.driver":                       "QUEUE_DRIVER",
		"queue.config_json":                  "QUEUE_CONFIG_JSON",
		"plugins.path":                       "PLUGINS_PATH",
		"database.host":                      "DB_HOST",
		"database.port":                      "DB_PORT",
		"database.database":                  "DB_NAME",
		"database.user":                      "DB_USER",
		"database.password":                  "DB_PASSWORD",
		"database.ssl_mode":                  "DB_SSL_MODE",
		"database.max_conns":                 "DB_MAX_CONNS",
		"database.min_conns":                 "DB_MIN_CONNS",
		"database.max_conn_lifetime":         "DB_MAX_CONN_LIFETIME",
		"database.max_conn_idle_time":        "DB_MAX_CONN_IDLE_TIME",
		"database.health_check_period":       "DB_HEALTH_CHECK_PERIOD",
		"database.connect_timeout":           "DB_CONNECT_TIMEOUT",
		"log.level":                          "LOG_LEVEL",
		"log.format":                         "LOG_FORMAT",
		"log.output":                         "LOG_OUTPUT",
		"log.filename":                       "LOG_FILENAME",
		"log.max_size":                       "LOG_MAX_SIZE",
		"log.max_backups":                    "LOG_MAX_BACKUPS",
		"log.max_age":                        "LOG_MAX_AGE",
		"log.compress":                       "LOG_COMPRESS",
		"auth.admin_session_cookie":          "ADMIN_SESSION_COOKIE",
		"auth.recipient_session_cookie":      "RECIPIENT_SESSION_COOKIE",
		"auth.recipient_otp_length":          "RECIPIENT_OTP_LENGTH",
		"auth.recipient_otp_ttl_min":         "RECIPIENT_OTP_TTL_MIN",
		"auth.recipient_session_ttl_hours":   "RECIPIENT_SESSION_TTL_HOURS",
		"auth.admin_magiclink_ttl_min":       "ADMIN_MAGICLINK_TTL_MIN",
		"auth.auth_session_ttl_hours":        "AUTH_SESSION_TTL_HOURS",
		"auth.cookie_secure":                 "AUTH_COOKIE_SECURE",
		"auth.allow_dev_auth":                "ALLOW_DEV_AUTH",
		"auth.device_code_ttl_min":           "DEVICE_CODE_TTL_MIN",
		"auth.device_code_interval_sec":      "DEVICE_CODE_INTERVAL_SEC",
		"auth.api_token_prefix":              "API_TOKEN_PREFIX",
		"auth.api_token_ttl_days":            "API_TOKEN_TTL_DAYS",
		"auth.api_token_scopes_default":      "API_TOKEN_SCOPES_DEFAULT",
		"history.snapshot_interval":          "HISTORY_SNAPSHOT_INTERVAL",
		"history.max_chain_depth":            "HISTORY_MAX_CHAIN_DEPTH",
		"system.user_id":                     "SYSTEM_USER_ID",
		"action.concurrency":                 "PLUGIN_ACTION_CONCURRENCY",
	}
	for key, env := range binds {
		_ = v.BindEnv(key, env)
	}
}

// setDefaults applies spec §6.5's documented defaults, mirroring the
// teacher's setDefaults shape (one viper.SetDefault per key).
func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 8080)
	v.SetDefault("node_env", "development")

	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.key_prefix", "")

	v.SetDefault("queue.driver", "memory")
	v.SetDefault("queue.capacity", 256)

	v.SetDefault("plugins.path", "./plugins")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "latchflow")
	v.SetDefault("database.user", "latchflow")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "5m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.max_size", 100)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", true)

	v.SetDefault("auth.admin_session_cookie", "lf_admin_sess")
	v.SetDefault("auth.recipient_session_cookie", "lf_recipient_sess")
	v.SetDefault("auth.recipient_otp_length", 6)
	v.SetDefault("auth.recipient_otp_ttl_min", 10)
	v.SetDefault("auth.recipient_session_ttl_hours", 2)
	v.SetDefault("auth.admin_magiclink_ttl_min", 15)
	v.SetDefault("auth.auth_session_ttl_hours", 12)
	v.SetDefault("auth.cookie_secure", true)
	v.SetDefault("auth.allow_dev_auth", false)
	v.SetDefault("auth.device_code_ttl_min", 15)
	v.SetDefault("auth.device_code_interval_sec", 5)
	v.SetDefault("auth.api_token_prefix", "lfk_")
	v.SetDefault("auth.api_token_ttl_days", 0)
	v.SetDefault("auth.api_token_scopes_default", "")

	v.SetDefault("history.snapshot_interval", 20)
	v.SetDefault("history.max_chain_depth", 200)

	v.SetDefault("system.user_id", "system")

	v.SetDefault("action.concurrency", 10)
}

// IsDevelopment reports whether NODE_ENV selects the development
// profile, mirroring the teacher's AppConfig.IsDevelopment.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.NodeEnv, "development")
}

// IsProduction reports whether NODE_ENV selects the production profile.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.NodeEnv, "production")
}
