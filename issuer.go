package goToken

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/goToken/internal"
	"github.com/MrEthical07/goToken/jwt"
	"github.com/MrEthical07/goToken/session"
)

// TokenIssuer mints access and refresh tokens and owns the per-user refresh
// record.
type TokenIssuer struct {
	jwt        *jwt.Manager
	sessions   session.Store
	users      UserProvider
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenIssuer wires an issuer. users may be nil, in which case Persist and
// Revoke skip the existence check.
func NewTokenIssuer(manager *jwt.Manager, store session.Store, users UserProvider, refreshTTL time.Duration, now func() time.Time) *TokenIssuer {
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{
		jwt:        manager,
		sessions:   store,
		users:      users,
		refreshTTL: refreshTTL,
		now:        now,
	}
}

// IssueAccessToken signs an access token for user. A nil user is a caller
// bug and returns ErrInvalidArgument without touching any collaborator.
func (i *TokenIssuer) IssueAccessToken(user *UserRecord) (string, time.Time, error) {
	if user == nil {
		return "", time.Time{}, fmt.Errorf("%w: nil user", ErrInvalidArgument)
	}
	return i.jwt.CreateAccess(&jwt.Subject{
		UserID:     user.UserID,
		Username:   user.Username,
		Email:      user.Email,
		Role:       user.Role,
		RoleID:     user.RoleID,
		FullName:   user.FullName,
		EmployeeID: user.EmployeeID,
	})
}

// IssueRefreshToken returns a fresh opaque refresh token.
func (i *TokenIssuer) IssueRefreshToken() (string, error) {
	return internal.NewRefreshToken()
}

// PersistRefreshToken overwrites the stored token for userID with a new
// expiry of now + RefreshTTL. A missing user is a silent no-op.
func (i *TokenIssuer) PersistRefreshToken(ctx context.Context, userID, token string) error {
	if gone, err := i.userGone(ctx, userID); err != nil || gone {
		return err
	}
	rec := session.Record{
		TokenHash: internal.HashRefreshToken(token),
		ExpiresAt: i.now().Add(i.refreshTTL),
	}
	if err := i.sessions.Put(ctx, userID, rec); err != nil {
		return storeError(err)
	}
	return nil
}

// RotateRefreshToken replaces the stored token only while it still hashes to
// expected. Losing a concurrent rotation returns ErrRefreshTokenMismatch.
func (i *TokenIssuer) RotateRefreshToken(ctx context.Context, userID string, expected [32]byte, token string) error {
	next := session.Record{
		TokenHash: internal.HashRefreshToken(token),
		ExpiresAt: i.now().Add(i.refreshTTL),
	}
	if err := i.sessions.CompareAndSwap(ctx, userID, expected, next); err != nil {
		return storeError(err)
	}
	return nil
}

// RevokeRefreshToken clears the stored token. Revoking twice, or for a
// missing user, is not an error.
func (i *TokenIssuer) RevokeRefreshToken(ctx context.Context, userID string) error {
	if gone, err := i.userGone(ctx, userID); err != nil || gone {
		return err
	}
	if err := i.sessions.Delete(ctx, userID); err != nil {
		return storeError(err)
	}
	return nil
}

// RefreshRecord returns the stored record for userID.
func (i *TokenIssuer) RefreshRecord(ctx context.Context, userID string) (session.Record, error) {
	rec, err := i.sessions.Get(ctx, userID)
	if err != nil {
		return session.Record{}, storeError(err)
	}
	return rec, nil
}

// ParseAccessToken verifies an access token and returns its principal.
func (i *TokenIssuer) ParseAccessToken(token string) (*Principal, error) {
	claims, err := i.jwt.ParseAccess(token)
	if err != nil {
		return nil, err
	}
	return principalFromClaims(claims), nil
}

func (i *TokenIssuer) userGone(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return true, nil
	}
	if i.users == nil {
		return false, nil
	}
	if _, err := i.users.GetUserByID(ctx, userID); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return true, nil
		}
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return false, nil
}

func storeError(err error) error {
	switch {
	case errors.Is(err, session.ErrRecordNotFound):
		return ErrRefreshTokenNotFound
	case errors.Is(err, session.ErrHashMismatch):
		return ErrRefreshTokenMismatch
	case errors.Is(err, session.ErrRecordExpired):
		return ErrRefreshTokenExpired
	case errors.Is(err, session.ErrInvalidUserID):
		return fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	default:
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
}

func principalFromClaims(c *jwt.AccessClaims) *Principal {
	p := &Principal{
		UserID:     c.UserID(),
		Username:   c.Username,
		Email:      c.Email,
		FullName:   c.FullName,
		EmployeeID: c.EmployeeID,
		Role:       c.Role,
		RoleID:     c.RoleID,
		TokenID:    c.ID,
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p
}
