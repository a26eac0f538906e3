package client

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/goToken/jwt"
)

const (
	slotAccess  = "access"
	slotRefresh = "refresh"
	slotUserID  = "uid"
)

const (
	// DefaultRefreshSlotTTL bounds how long the refresh token and user id
	// are kept, independent of the access token.
	DefaultRefreshSlotTTL = 7 * 24 * time.Hour
	// DefaultClockSkew is the tolerance applied to the access token's exp.
	DefaultClockSkew = time.Minute
)

// CacheConfig configures a [SessionCache].
type CacheConfig struct {
	// Namespace separates sessions sharing one Storage. Usually the session id.
	Namespace      string
	RefreshSlotTTL time.Duration
	// ClockSkew extends the access slot past exp so that [AuthState] can
	// apply its tolerance window.
	ClockSkew time.Duration
	Now       func() time.Time
}

// SessionCache holds the three session slots: access token, refresh token
// and user id. The access slot lives until the token's exp (plus the skew
// tolerance); the other two live for RefreshSlotTTL.
type SessionCache struct {
	storage    Storage
	ns         string
	refreshTTL time.Duration
	skew       time.Duration
	now        func() time.Time
}

func NewSessionCache(storage Storage, cfg CacheConfig) *SessionCache {
	if cfg.RefreshSlotTTL <= 0 {
		cfg.RefreshSlotTTL = DefaultRefreshSlotTTL
	}
	if cfg.ClockSkew < 0 {
		cfg.ClockSkew = 0
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &SessionCache{
		storage:    storage,
		ns:         cfg.Namespace,
		refreshTTL: cfg.RefreshSlotTTL,
		skew:       cfg.ClockSkew,
		now:        cfg.Now,
	}
}

// key groups the slots of one session under a Redis hash tag.
func (c *SessionCache) key(slot string) string {
	if c.ns == "" {
		return slot
	}
	return "{" + c.ns + "}:" + slot
}

func (c *SessionCache) AccessToken(ctx context.Context) (string, error) {
	return c.get(ctx, slotAccess)
}

func (c *SessionCache) RefreshToken(ctx context.Context) (string, error) {
	return c.get(ctx, slotRefresh)
}

func (c *SessionCache) UserID(ctx context.Context) (string, error) {
	return c.get(ctx, slotUserID)
}

// Store replaces all three slots. The access token must decode; its
// signature is not checked.
func (c *SessionCache) Store(ctx context.Context, userID, access, refresh string) error {
	claims, err := jwt.DecodeUnverified(access)
	if err != nil {
		return err
	}
	if userID == "" {
		userID = claims.UserID()
	}
	if userID == "" || refresh == "" {
		return errors.New("session cache: user id and refresh token are required")
	}

	accessTTL := claims.ExpiresAt.Time.Add(c.skew).Sub(c.now())
	if err := c.storage.Set(ctx, c.key(slotAccess), access, accessTTL); err != nil {
		return err
	}
	if err := c.storage.Set(ctx, c.key(slotRefresh), refresh, c.refreshTTL); err != nil {
		return err
	}
	return c.storage.Set(ctx, c.key(slotUserID), userID, c.refreshTTL)
}

// Clear empties every slot.
func (c *SessionCache) Clear(ctx context.Context) error {
	return c.storage.Delete(ctx, c.key(slotAccess), c.key(slotRefresh), c.key(slotUserID))
}

func (c *SessionCache) get(ctx context.Context, slot string) (string, error) {
	v, ok, err := c.storage.Get(ctx, c.key(slot))
	if err != nil || !ok {
		return "", err
	}
	return v, nil
}
