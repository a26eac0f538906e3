package client

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/goToken/jwt"
	"go.uber.org/zap"
)

// Principal is the identity decoded from the cached access token. The zero
// value is [Anonymous].
type Principal struct {
	UserID     string
	Username   string
	Email      string
	FullName   string
	EmployeeID string
	Role       string
	RoleID     string
	TokenID    string
	ExpiresAt  time.Time
}

// Anonymous is the principal of a client without a usable session.
var Anonymous = Principal{}

func (p Principal) IsAnonymous() bool {
	return p.UserID == ""
}

// AuthState derives the current principal from a [SessionCache] and pushes
// every session change to its subscribers.
//
// Claims are decoded without verifying the signature: the token came from
// the issuer over the same secured channel the client uses for everything
// else, and the server verifies it on every call anyway.
type AuthState struct {
	cache  *SessionCache
	skew   time.Duration
	now    func() time.Time
	logger *zap.Logger

	mu     sync.Mutex
	subs   map[uint64]func(Principal)
	nextID uint64
}

func NewAuthState(cache *SessionCache, skew time.Duration, now func() time.Time, logger *zap.Logger) *AuthState {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthState{
		cache:  cache,
		skew:   skew,
		now:    now,
		logger: logger,
		subs:   make(map[uint64]func(Principal)),
	}
}

// CurrentPrincipal returns Anonymous when no session is cached. A token that
// no longer decodes, or whose exp is more than the skew tolerance in the
// past, ends the session. So does an access slot that storage already
// dropped while the other slots remain.
func (s *AuthState) CurrentPrincipal(ctx context.Context) (Principal, error) {
	access, err := s.cache.AccessToken(ctx)
	if err != nil {
		return Anonymous, err
	}
	if access == "" {
		return Anonymous, s.endOrphanedSession(ctx)
	}

	claims, err := jwt.DecodeUnverified(access)
	if err != nil {
		s.logger.Warn("cached access token is malformed; ending session", zap.Error(err))
		return Anonymous, s.EndSession(ctx)
	}
	if claims.ExpiresAt.Time.Before(s.now().Add(-s.skew)) {
		s.logger.Debug("cached access token expired; ending session", zap.Time("exp", claims.ExpiresAt.Time))
		return Anonymous, s.EndSession(ctx)
	}
	return principalFromClaims(claims), nil
}

// endOrphanedSession clears the refresh and user id slots left behind by an
// expired access slot.
func (s *AuthState) endOrphanedSession(ctx context.Context) error {
	userID, err := s.cache.UserID(ctx)
	if err != nil {
		return err
	}
	refresh, err := s.cache.RefreshToken(ctx)
	if err != nil {
		return err
	}
	if userID == "" && refresh == "" {
		return nil
	}
	s.logger.Debug("cached access token expired; ending session")
	return s.EndSession(ctx)
}

// BeginSession replaces all slots and notifies subscribers.
func (s *AuthState) BeginSession(ctx context.Context, userID, access, refresh string) error {
	if err := s.cache.Store(ctx, userID, access, refresh); err != nil {
		return err
	}
	s.notify(decodePrincipal(access))
	return nil
}

// UpdateTokens installs a refreshed pair under the cached user id.
func (s *AuthState) UpdateTokens(ctx context.Context, access, refresh string) error {
	userID, err := s.cache.UserID(ctx)
	if err != nil {
		return err
	}
	return s.BeginSession(ctx, userID, access, refresh)
}

// EndSession clears every slot and notifies subscribers with Anonymous.
func (s *AuthState) EndSession(ctx context.Context) error {
	err := s.cache.Clear(ctx)
	s.notify(Anonymous)
	return err
}

// Subscribe registers fn for every later state change. The returned func
// removes it.
func (s *AuthState) Subscribe(fn func(Principal)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
		})
	}
}

func (s *AuthState) notify(p Principal) {
	s.mu.Lock()
	fns := make([]func(Principal), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(p)
	}
}

func decodePrincipal(access string) Principal {
	claims, err := jwt.DecodeUnverified(access)
	if err != nil {
		return Anonymous
	}
	return principalFromClaims(claims)
}

func principalFromClaims(c *jwt.AccessClaims) Principal {
	return Principal{
		UserID:     c.UserID(),
		Username:   c.Username,
		Email:      c.Email,
		FullName:   c.FullName,
		EmployeeID: c.EmployeeID,
		Role:       c.Role,
		RoleID:     c.RoleID,
		TokenID:    c.ID,
		ExpiresAt:  c.ExpiresAt.Time,
	}
}
