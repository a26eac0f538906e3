package client

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SessionConfig configures a [Session].
type SessionConfig struct {
	// ID namespaces the cache slots; generated when empty.
	ID             string
	Storage        Storage
	RefreshSlotTTL time.Duration
	ClockSkew      time.Duration
	Now            func() time.Time
	Logger         *zap.Logger
}

// Session is one logical client session: its cache, its auth state and the
// lock that serializes refreshes for it. Independent sessions in the same
// process never wait on each other.
type Session struct {
	id    string
	cache *SessionCache
	state *AuthState
	// refreshLock is a one-slot semaphore so waiters can give up on ctx.
	refreshLock chan struct{}
}

func NewSession(cfg SessionConfig) *Session {
	if cfg.ID == "" {
		cfg.ID = uuid.NewString()
	}
	if cfg.Storage == nil {
		cfg.Storage = NewMemoryStorage().WithClock(cfg.Now)
	}
	if cfg.ClockSkew == 0 {
		cfg.ClockSkew = DefaultClockSkew
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	logger := cfg.Logger.With(zap.String("component", "client_session"), zap.String("session_id", cfg.ID))

	cache := NewSessionCache(cfg.Storage, CacheConfig{
		Namespace:      cfg.ID,
		RefreshSlotTTL: cfg.RefreshSlotTTL,
		ClockSkew:      cfg.ClockSkew,
		Now:            cfg.Now,
	})
	return &Session{
		id:          cfg.ID,
		cache:       cache,
		state:       NewAuthState(cache, cfg.ClockSkew, cfg.Now, logger),
		refreshLock: make(chan struct{}, 1),
	}
}

func (s *Session) ID() string {
	return s.id
}

func (s *Session) Cache() *SessionCache {
	return s.cache
}

func (s *Session) State() *AuthState {
	return s.state
}

// lock blocks until the refresh lock is held or ctx ends.
func (s *Session) lock(ctx context.Context) error {
	select {
	case s.refreshLock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) unlock() {
	<-s.refreshLock
}
