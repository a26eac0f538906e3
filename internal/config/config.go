// Package config loads gotoken-server settings from an optional YAML file
// and GOTOKEN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	goToken "github.com/MrEthical07/goToken"
	"github.com/spf13/viper"
)

type App struct {
	Name    string `mapstructure:"name"`
	Env     string `mapstructure:"env"`
	Version string `mapstructure:"version"`
}

type HTTP struct {
	Addr            string        `mapstructure:"addr"`
	BasePath        string        `mapstructure:"base_path"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	GracefulTimeout time.Duration `mapstructure:"graceful_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type Metrics struct {
	Enabled   bool   `mapstructure:"enabled"`
	Addr      string `mapstructure:"addr"`
	Latency   bool   `mapstructure:"latency"`
	OTelScope string `mapstructure:"otel_scope"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

type JWT struct {
	SigningKey    string        `mapstructure:"signing_key"`
	SigningMethod string        `mapstructure:"signing_method"`
	AccessTTL     time.Duration `mapstructure:"access_ttl"`
	RefreshTTL    time.Duration `mapstructure:"refresh_ttl"`
	Issuer        string        `mapstructure:"issuer"`
	Audience      string        `mapstructure:"audience"`
	Leeway        time.Duration `mapstructure:"leeway"`
}

type Session struct {
	// Backend is "redis", "postgres" or "memory".
	Backend          string        `mapstructure:"backend"`
	CompareAndSwap   bool          `mapstructure:"compare_and_swap"`
	ExpiredRetention time.Duration `mapstructure:"expired_retention"`
	PurgeInterval    time.Duration `mapstructure:"purge_interval"`
}

type Password struct {
	MinLength      int    `mapstructure:"min_length"`
	Memory         uint32 `mapstructure:"memory_kb"`
	Time           uint32 `mapstructure:"time"`
	Parallelism    uint8  `mapstructure:"parallelism"`
	UpgradeOnLogin bool   `mapstructure:"upgrade_on_login"`
}

type Account struct {
	RegistrationEnabled bool   `mapstructure:"registration_enabled"`
	DefaultRole         string `mapstructure:"default_role"`
	DefaultRoleID       string `mapstructure:"default_role_id"`
}

type Rate struct {
	LoginThrottle    bool          `mapstructure:"login_throttle"`
	IPThrottle       bool          `mapstructure:"ip_throttle"`
	MaxLoginAttempts int           `mapstructure:"max_login_attempts"`
	LoginCooldown    time.Duration `mapstructure:"login_cooldown"`
	RefreshThrottle  bool          `mapstructure:"refresh_throttle"`
	MaxRefreshes     int           `mapstructure:"max_refreshes"`
	RefreshCooldown  time.Duration `mapstructure:"refresh_cooldown"`
}

type Redis struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type Postgres struct {
	DSN               string        `mapstructure:"dsn"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	QueryTimeout      time.Duration `mapstructure:"query_timeout"`
}

type Audit struct {
	Enabled    bool     `mapstructure:"enabled"`
	BufferSize int      `mapstructure:"buffer_size"`
	DropIfFull bool     `mapstructure:"drop_if_full"`
	Sink       string   `mapstructure:"sink"` // "log" or "kafka"
	Brokers    []string `mapstructure:"brokers"`
	Topic      string   `mapstructure:"topic"`
}

type Config struct {
	App      App      `mapstructure:"app"`
	HTTP     HTTP     `mapstructure:"http"`
	Metrics  Metrics  `mapstructure:"metrics"`
	Log      Log      `mapstructure:"log"`
	JWT      JWT      `mapstructure:"jwt"`
	Session  Session  `mapstructure:"session"`
	Password Password `mapstructure:"password"`
	Account  Account  `mapstructure:"account"`
	Rate     Rate     `mapstructure:"rate"`
	Redis    Redis    `mapstructure:"redis"`
	Postgres Postgres `mapstructure:"postgres"`
	Audit    Audit    `mapstructure:"audit"`
}

// EnvPrefix prefixes every environment override, e.g. GOTOKEN_JWT_SIGNING_KEY.
const EnvPrefix = "GOTOKEN"

// Load reads path (when non-empty) and applies environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "gotoken")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.version", "")

	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.base_path", "/api")
	v.SetDefault("http.read_timeout", "5s")
	v.SetDefault("http.write_timeout", "10s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("http.request_timeout", "10s")
	v.SetDefault("http.graceful_timeout", "15s")
	v.SetDefault("http.max_body_bytes", 1<<20)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.addr", ":9102")
	v.SetDefault("metrics.latency", true)
	v.SetDefault("metrics.otel_scope", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("jwt.signing_key", "")
	v.SetDefault("jwt.signing_method", "hs256")
	v.SetDefault("jwt.access_ttl", "60m")
	v.SetDefault("jwt.refresh_ttl", "168h")
	v.SetDefault("jwt.issuer", "")
	v.SetDefault("jwt.audience", "")
	v.SetDefault("jwt.leeway", "0s")

	v.SetDefault("session.backend", "redis")
	v.SetDefault("session.compare_and_swap", false)
	v.SetDefault("session.expired_retention", "24h")
	v.SetDefault("session.purge_interval", "1h")

	v.SetDefault("password.min_length", 6)
	v.SetDefault("password.memory_kb", 64*1024)
	v.SetDefault("password.time", 3)
	v.SetDefault("password.parallelism", 2)
	v.SetDefault("password.upgrade_on_login", true)

	v.SetDefault("account.registration_enabled", true)
	v.SetDefault("account.default_role", "Employee")
	v.SetDefault("account.default_role_id", "")

	v.SetDefault("rate.login_throttle", true)
	v.SetDefault("rate.ip_throttle", false)
	v.SetDefault("rate.max_login_attempts", 5)
	v.SetDefault("rate.login_cooldown", "15m")
	v.SetDefault("rate.refresh_throttle", false)
	v.SetDefault("rate.max_refreshes", 30)
	v.SetDefault("rate.refresh_cooldown", "1m")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "gt")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.max_conns", 20)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "30m")
	v.SetDefault("postgres.max_conn_idle_time", "10m")
	v.SetDefault("postgres.health_check_period", "30s")
	v.SetDefault("postgres.query_timeout", "2s")

	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.buffer_size", 1024)
	v.SetDefault("audit.drop_if_full", true)
	v.SetDefault("audit.sink", "log")
	v.SetDefault("audit.brokers", []string{})
	v.SetDefault("audit.topic", "gotoken.audit")
}

func (c *Config) validate() error {
	var errs []error
	if c.JWT.SigningKey == "" {
		errs = append(errs, errors.New("jwt.signing_key is required"))
	}
	switch c.Session.Backend {
	case "redis", "memory":
	case "postgres":
		if c.Postgres.DSN == "" {
			errs = append(errs, errors.New("postgres.dsn is required for the postgres session backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("session.backend %q is not one of redis, postgres, memory", c.Session.Backend))
	}
	switch c.Audit.Sink {
	case "log":
	case "kafka":
		if len(c.Audit.Brokers) == 0 || c.Audit.Topic == "" {
			errs = append(errs, errors.New("audit.brokers and audit.topic are required for the kafka sink"))
		}
	default:
		errs = append(errs, fmt.Errorf("audit.sink %q is not one of log, kafka", c.Audit.Sink))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", goToken.ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Engine converts the loaded settings into an engine configuration.
func (c *Config) Engine() goToken.Config {
	cfg := goToken.DefaultConfig()

	cfg.JWT.SigningKey = []byte(c.JWT.SigningKey)
	cfg.JWT.SigningMethod = c.JWT.SigningMethod
	cfg.JWT.AccessTTL = c.JWT.AccessTTL
	cfg.JWT.RefreshTTL = c.JWT.RefreshTTL
	cfg.JWT.Issuer = c.JWT.Issuer
	cfg.JWT.Audience = c.JWT.Audience
	cfg.JWT.Leeway = c.JWT.Leeway

	cfg.Session.RedisPrefix = c.Redis.Prefix
	cfg.Session.CompareAndSwap = c.Session.CompareAndSwap
	cfg.Session.ExpiredRetention = c.Session.ExpiredRetention

	cfg.Password.MinLength = c.Password.MinLength
	cfg.Password.Memory = c.Password.Memory
	cfg.Password.Time = c.Password.Time
	cfg.Password.Parallelism = c.Password.Parallelism
	cfg.Password.UpgradeOnLogin = c.Password.UpgradeOnLogin

	cfg.Account.RegistrationEnabled = c.Account.RegistrationEnabled
	cfg.Account.DefaultRole = c.Account.DefaultRole
	cfg.Account.DefaultRoleID = c.Account.DefaultRoleID

	cfg.Security.EnableLoginThrottle = c.Rate.LoginThrottle
	cfg.Security.EnableIPThrottle = c.Rate.IPThrottle
	cfg.Security.MaxLoginAttempts = c.Rate.MaxLoginAttempts
	cfg.Security.LoginCooldownDuration = c.Rate.LoginCooldown
	cfg.Security.EnableRefreshThrottle = c.Rate.RefreshThrottle
	cfg.Security.MaxRefreshAttempts = c.Rate.MaxRefreshes
	cfg.Security.RefreshCooldownDuration = c.Rate.RefreshCooldown

	cfg.Audit.Enabled = c.Audit.Enabled
	cfg.Audit.BufferSize = c.Audit.BufferSize
	cfg.Audit.DropIfFull = c.Audit.DropIfFull

	cfg.Metrics.Enabled = c.Metrics.Enabled
	cfg.Metrics.EnableLatencyHistograms = c.Metrics.Latency
	return cfg
}
