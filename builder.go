package goToken

import (
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goToken/internal/rate"
	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/password"
	"github.com/MrEthical07/goToken/session"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	store  session.Store

	userProvider UserProvider
	hasher       PasswordHasher
	auditSink    AuditSink
	logger       *zap.Logger
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis supplies the client used for the default session store and for
// login/refresh throttling.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithSessionStore overrides the Redis-backed refresh record store.
func (b *Builder) WithSessionStore(store session.Store) *Builder {
	b.store = store
	return b
}

func (b *Builder) WithUserProvider(up UserProvider) *Builder {
	b.userProvider = up
	return b
}

// WithPasswordHasher overrides the Argon2id/bcrypt hasher derived from
// Config.Password.
func (b *Builder) WithPasswordHasher(h PasswordHasher) *Builder {
	b.hasher = h
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock replaces time.Now for token issuance and expiry checks.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wiring and returns a ready Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.userProvider == nil {
		return nil, fmt.Errorf("%w: user provider required", ErrEngineNotReady)
	}
	if b.store == nil && b.redis == nil {
		return nil, fmt.Errorf("%w: session store or redis client required", ErrEngineNotReady)
	}
	if b.redis == nil && (cfg.Security.EnableLoginThrottle || cfg.Security.EnableRefreshThrottle) {
		return nil, fmt.Errorf("%w: throttling requires a redis client", ErrEngineNotReady)
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	// -------- SESSION STORE --------
	store := b.store
	if store == nil {
		store = session.NewRedisStore(b.redis, cfg.Session.RedisPrefix, cfg.Session.ExpiredRetention).WithClock(now)
	}

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		SigningKey:    cloneBytes(cfg.JWT.SigningKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	// -------- PASSWORDS --------
	hasher := b.hasher
	if hasher == nil {
		ph, err := password.NewHasher(password.Config{
			Memory:           cfg.Password.Memory,
			Time:             cfg.Password.Time,
			Parallelism:      cfg.Password.Parallelism,
			SaltLength:       cfg.Password.SaltLength,
			KeyLength:        cfg.Password.KeyLength,
			MaxPasswordBytes: cfg.Password.MaxPasswordBytes,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
		hasher = ph
	}

	engine := &Engine{
		config:  cfg,
		issuer:  NewTokenIssuer(jm, store, b.userProvider, cfg.JWT.RefreshTTL, now),
		users:   b.userProvider,
		hasher:  hasher,
		audit:   newAuditDispatcher(cfg.Audit, b.auditSink, logger),
		metrics: NewMetrics(cfg.Metrics),
		logger:  logger.With(zap.String("component", "engine")),
		now:     now,
	}

	if b.redis != nil && (cfg.Security.EnableLoginThrottle || cfg.Security.EnableRefreshThrottle) {
		engine.limiter = rate.New(b.redis, rate.Config{
			Prefix:                  cfg.Session.RedisPrefix,
			EnableIPThrottle:        cfg.Security.EnableIPThrottle,
			EnableRefreshThrottle:   cfg.Security.EnableRefreshThrottle,
			MaxLoginAttempts:        cfg.Security.MaxLoginAttempts,
			LoginCooldownDuration:   cfg.Security.LoginCooldownDuration,
			MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
			RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
		})
	}

	if engine.dummyHash, err = hasher.Hash("gotoken-timing-equalizer"); err != nil {
		return nil, err
	}
	engine.initFlowDeps()

	b.built = true
	return engine, nil
}
