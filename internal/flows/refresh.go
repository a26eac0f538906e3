package flows

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/MrEthical07/goToken/internal"
	"github.com/MrEthical07/goToken/session"
)

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Now              func() time.Time
	CheckRefreshRate func(ctx context.Context, userID string) error
	GetUserByID      func(context.Context, string) (UserRecord, error)
	GetRecord        func(context.Context, string) (session.Record, error)

	IssueAccess     func(UserRecord) (string, time.Time, error)
	NewRefreshToken func() (string, error)
	// Rotate installs next for userID. expected is the digest of the
	// presented token; last-writer-wins implementations ignore it.
	Rotate func(ctx context.Context, userID string, expected [32]byte, next string) error

	// Host sentinels.
	UserNotFound  error
	RateLimited   error
	TokenNotFound error
	TokenMismatch error
	TokenExpired  error
}

// RunRefresh checks, in order, that the user exists, that a token is on
// file, that it matches the presented one and that it has not expired.
// Only then is a new pair minted and the stored token rotated.
func RunRefresh(ctx context.Context, userID, presented string, deps RefreshDeps) Result {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	if deps.CheckRefreshRate != nil {
		if err := deps.CheckRefreshRate(ctx, userID); err != nil {
			if deps.RateLimited != nil && errors.Is(err, deps.RateLimited) {
				return failed(FailureRateLimited, err)
			}
			return failed(FailureBackend, err)
		}
	}

	user, err := deps.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, deps.UserNotFound) {
			return failed(FailureUserNotFound, err)
		}
		return failed(FailureBackend, err)
	}

	rec, err := deps.GetRecord(ctx, userID)
	if err != nil {
		if errors.Is(err, deps.TokenNotFound) {
			return failed(FailureTokenNotFound, err)
		}
		return failed(FailureBackend, err)
	}

	presentedHash := internal.HashRefreshToken(presented)
	if subtle.ConstantTimeCompare(presentedHash[:], rec.TokenHash[:]) != 1 {
		return failed(FailureTokenMismatch, nil)
	}
	if rec.Expired(deps.Now()) {
		return failed(FailureTokenExpired, nil)
	}

	access, exp, err := deps.IssueAccess(user)
	if err != nil {
		return failed(FailureIssue, err)
	}
	next, err := deps.NewRefreshToken()
	if err != nil {
		return failed(FailureIssue, err)
	}

	if err := deps.Rotate(ctx, userID, presentedHash, next); err != nil {
		switch {
		case errors.Is(err, deps.TokenMismatch):
			return failed(FailureTokenMismatch, err)
		case errors.Is(err, deps.TokenExpired):
			return failed(FailureTokenExpired, err)
		case errors.Is(err, deps.TokenNotFound):
			return failed(FailureTokenNotFound, err)
		default:
			return failed(FailureBackend, err)
		}
	}

	return Result{
		User: user,
		Tokens: TokenPair{
			AccessToken:  access,
			RefreshToken: next,
			ExpiresAt:    exp,
		},
	}
}
