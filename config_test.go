package goToken

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfigNeedsOnlyAKey(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected missing key to be rejected, got %v", err)
	}
	cfg.JWT.SigningKey = []byte(testSigningKey)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults plus key to validate: %v", err)
	}
}

func TestDefaultConfigLifetimes(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.JWT.AccessTTL != 60*time.Minute {
		t.Fatalf("unexpected access ttl %v", cfg.JWT.AccessTTL)
	}
	if cfg.JWT.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("unexpected refresh ttl %v", cfg.JWT.RefreshTTL)
	}
	if cfg.Password.MinLength != 6 {
		t.Fatalf("unexpected min password length %d", cfg.Password.MinLength)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		wantValid bool
	}{
		{"leeway within bounds", func(c *Config) { c.JWT.Leeway = 45 * time.Second }, true},
		{"leeway too large", func(c *Config) { c.JWT.Leeway = 3 * time.Minute }, false},
		{"hs512 signing", func(c *Config) { c.JWT.SigningMethod = "HS512" }, true},
		{"rs256 signing", func(c *Config) { c.JWT.SigningMethod = "rs256" }, false},
		{"short key", func(c *Config) { c.JWT.SigningKey = []byte("short") }, false},
		{"zero access ttl", func(c *Config) { c.JWT.AccessTTL = 0 }, false},
		{"refresh not longer than access", func(c *Config) { c.JWT.RefreshTTL = c.JWT.AccessTTL }, false},
		{"negative retention", func(c *Config) { c.Session.ExpiredRetention = -time.Second }, false},
		{"zero min length", func(c *Config) { c.Password.MinLength = 0 }, false},
		{"weak argon memory", func(c *Config) { c.Password.Memory = 1024 }, false},
		{"short salt", func(c *Config) { c.Password.SaltLength = 8 }, false},
		{"max bytes below min length", func(c *Config) { c.Password.MaxPasswordBytes = 3 }, false},
		{"registration without role", func(c *Config) { c.Account.DefaultRole = " " }, false},
		{"no role when registration off", func(c *Config) {
			c.Account.RegistrationEnabled = false
			c.Account.DefaultRole = ""
		}, true},
		{"login throttle without budget", func(c *Config) {
			c.Security.EnableLoginThrottle = true
			c.Security.MaxLoginAttempts = 0
		}, false},
		{"refresh throttle without cooldown", func(c *Config) {
			c.Security.EnableRefreshThrottle = true
			c.Security.MaxRefreshAttempts = 10
			c.Security.RefreshCooldownDuration = 0
		}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantValid && err != nil {
				t.Fatalf("expected valid, got %v", err)
			}
			if !tc.wantValid && !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestBuilderCopiesConfig(t *testing.T) {
	cfg := testConfig()
	f := newEngineFixture(t, cfg)

	cfg.JWT.SigningKey[0] = 'X'
	got := f.engine.Config()
	if got.JWT.SigningKey[0] != testSigningKey[0] {
		t.Fatal("engine config must not alias caller key bytes")
	}
	got.JWT.SigningKey[0] = 'Y'
	if f.engine.Config().JWT.SigningKey[0] != testSigningKey[0] {
		t.Fatal("Config must return a copy")
	}
}

func TestBuilderRequiresWiring(t *testing.T) {
	cfg := testConfig()

	if _, err := New().WithConfig(cfg).Build(); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady without provider, got %v", err)
	}
	if _, err := New().WithConfig(cfg).WithUserProvider(newTestUserProvider()).Build(); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady without store, got %v", err)
	}

	cfg.Security.EnableLoginThrottle = true
	_, err := New().WithConfig(cfg).WithUserProvider(newTestUserProvider()).
		WithSessionStore(newEngineFixture(t, testConfig()).store).Build()
	if !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected throttling without redis to be rejected, got %v", err)
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().WithConfig(testConfig()).WithUserProvider(newTestUserProvider()).
		WithSessionStore(newEngineFixture(t, testConfig()).store)
	e, err := b.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	defer e.Close()
	if _, err := b.Build(); err == nil {
		t.Fatal("expected second Build to fail")
	}
}
