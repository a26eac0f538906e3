package goToken

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete engine configuration. Start from DefaultConfig and
// override fields; the Builder validates the result once.
type Config struct {
	JWT      JWTConfig
	Session  SessionConfig
	Password PasswordConfig
	Account  AccountConfig
	Security SecurityConfig
	Audit    AuditConfig
	Metrics  MetricsConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig controls access token signing and the refresh token lifetime.
type JWTConfig struct {
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	SigningMethod string // "hs256" (default), "hs384", "hs512"
	SigningKey    []byte
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig controls the server-side refresh record.
type SessionConfig struct {
	RedisPrefix string
	// CompareAndSwap makes rotation conditional on the stored value still
	// matching the presented token. Off keeps last-writer-wins.
	CompareAndSwap bool
	// ExpiredRetention keeps expired records readable so Refresh can report
	// "expired" rather than "not found".
	ExpiredRetention time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

type PasswordConfig struct {
	MinLength        int
	Memory           uint32 // in KB
	Time             uint32
	Parallelism      uint8
	SaltLength       uint32
	KeyLength        uint32
	MaxPasswordBytes int
	UpgradeOnLogin   bool
}

// AccountConfig controls self-registration.
type AccountConfig struct {
	RegistrationEnabled bool
	DefaultRole         string
	DefaultRoleID       string
}

// SecurityConfig controls login and refresh throttling. Throttling needs a
// Redis client on the Builder.
type SecurityConfig struct {
	EnableLoginThrottle     bool
	EnableIPThrottle        bool
	EnableRefreshThrottle   bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the baseline configuration. JWT.SigningKey is left
// empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:     60 * time.Minute,
			RefreshTTL:    7 * 24 * time.Hour,
			SigningMethod: "hs256",
			Leeway:        0,
		},
		Session: SessionConfig{
			RedisPrefix:      "gt",
			CompareAndSwap:   false,
			ExpiredRetention: 24 * time.Hour,
		},
		Password: PasswordConfig{
			MinLength:        6,
			Memory:           64 * 1024,
			Time:             3,
			Parallelism:      2,
			SaltLength:       16,
			KeyLength:        32,
			MaxPasswordBytes: 1024,
			UpgradeOnLogin:   true,
		},
		Account: AccountConfig{
			RegistrationEnabled: true,
			DefaultRole:         "Employee",
		},
		Security: SecurityConfig{
			EnableLoginThrottle:     true,
			EnableIPThrottle:        false,
			EnableRefreshThrottle:   false,
			MaxLoginAttempts:        5,
			LoginCooldownDuration:   15 * time.Minute,
			MaxRefreshAttempts:      30,
			RefreshCooldownDuration: time.Minute,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.SigningKey = cloneBytes(cfg.JWT.SigningKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// Validate reports the first invalid setting wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	// JWT
	if c.JWT.AccessTTL <= 0 {
		return configError("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return configError("JWT RefreshTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= c.JWT.AccessTTL {
		return configError("JWT RefreshTTL must exceed AccessTTL")
	}
	switch strings.ToLower(c.JWT.SigningMethod) {
	case "hs256", "hs384", "hs512":
	default:
		return configError("unsupported JWT signing method")
	}
	if len(c.JWT.SigningKey) < 32 {
		return configError("JWT SigningKey must be at least 32 bytes")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return configError("JWT Leeway must be within [0, 2m]")
	}

	// Session
	if c.Session.ExpiredRetention < 0 {
		return configError("Session ExpiredRetention must be >= 0")
	}

	// Password
	if c.Password.MinLength < 1 {
		return configError("Password MinLength must be >= 1")
	}
	if c.Password.Memory < 8*1024 {
		return configError("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 {
		return configError("Password Time must be >= 1")
	}
	if c.Password.Parallelism < 1 {
		return configError("Password Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 {
		return configError("Password SaltLength must be >= 16")
	}
	if c.Password.KeyLength < 16 {
		return configError("Password KeyLength must be >= 16")
	}
	if c.Password.MaxPasswordBytes != 0 && c.Password.MaxPasswordBytes < c.Password.MinLength {
		return configError("Password MaxPasswordBytes must be >= MinLength")
	}

	// Account
	if c.Account.RegistrationEnabled && strings.TrimSpace(c.Account.DefaultRole) == "" {
		return configError("Account DefaultRole is required when registration is enabled")
	}

	// Security
	if c.Security.EnableLoginThrottle {
		if c.Security.MaxLoginAttempts <= 0 {
			return configError("Security MaxLoginAttempts must be > 0")
		}
		if c.Security.LoginCooldownDuration <= 0 {
			return configError("Security LoginCooldownDuration must be > 0")
		}
	}
	if c.Security.EnableRefreshThrottle {
		if c.Security.MaxRefreshAttempts <= 0 {
			return configError("Security MaxRefreshAttempts must be > 0")
		}
		if c.Security.RefreshCooldownDuration <= 0 {
			return configError("Security RefreshCooldownDuration must be > 0")
		}
	}

	// Audit
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return configError("Audit BufferSize must be > 0")
	}

	return nil
}

func configError(msg string) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, msg)
}
