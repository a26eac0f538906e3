package flows

import (
	"context"
	"errors"
)

// LoginDeps captures login dependencies. Limiter hooks are optional.
type LoginDeps struct {
	ClientIPFromContext func(context.Context) string

	CheckLoginRate     func(ctx context.Context, identifier, ip string) error
	IncrementLoginRate func(ctx context.Context, identifier, ip string) error
	ResetLoginRate     func(ctx context.Context, identifier, ip string) error

	GetUserByIdentifier func(context.Context, string) (UserRecord, error)
	UpdatePasswordHash  func(ctx context.Context, userID, hash string) error

	VerifyPassword       func(password, hash string) (bool, error)
	PasswordNeedsUpgrade func(string) (bool, error)
	HashPassword         func(string) (string, error)
	OnPasswordUpgraded   func(userID string)
	// DummyHash is verified against when the identifier is unknown.
	DummyHash string

	Issue IssueDeps
	Warn  func(string, ...any)

	// Host sentinels.
	UserNotFound error
	RateLimited  error
}

// RunLogin authenticates identifier/password and issues a token pair.
// Unknown users, wrong passwords and inactive accounts all end in
// FailureInvalidCredentials.
func RunLogin(ctx context.Context, identifier, password string, deps LoginDeps) Result {
	if deps.Warn == nil {
		deps.Warn = func(string, ...any) {}
	}
	ip := ""
	if deps.ClientIPFromContext != nil {
		ip = deps.ClientIPFromContext(ctx)
	}

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, identifier, ip); err != nil {
			if deps.RateLimited != nil && errors.Is(err, deps.RateLimited) {
				return failed(FailureRateLimited, err)
			}
			return failed(FailureBackend, err)
		}
	}

	user, err := deps.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			if deps.DummyHash != "" {
				_, _ = deps.VerifyPassword(password, deps.DummyHash)
			}
			return rejectLogin(ctx, identifier, ip, deps)
		}
		return failed(FailureBackend, err)
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok || !user.Active {
		return rejectLogin(ctx, identifier, ip, deps)
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, identifier, ip); err != nil {
			deps.Warn("login rate reset failed", "error", err)
		}
	}

	upgradePassword(ctx, user, password, deps)

	return issuePair(ctx, user, deps.Issue)
}

func rejectLogin(ctx context.Context, identifier, ip string, deps LoginDeps) Result {
	if deps.IncrementLoginRate != nil {
		if err := deps.IncrementLoginRate(ctx, identifier, ip); err != nil &&
			(deps.RateLimited == nil || !errors.Is(err, deps.RateLimited)) {
			deps.Warn("login rate increment failed", "error", err)
		}
	}
	return failed(FailureInvalidCredentials, nil)
}

func upgradePassword(ctx context.Context, user UserRecord, password string, deps LoginDeps) {
	if deps.PasswordNeedsUpgrade == nil || deps.HashPassword == nil || deps.UpdatePasswordHash == nil {
		return
	}
	stale, err := deps.PasswordNeedsUpgrade(user.PasswordHash)
	if err != nil || !stale {
		return
	}
	hash, err := deps.HashPassword(password)
	if err != nil {
		deps.Warn("password rehash failed", "user_id", user.UserID, "error", err)
		return
	}
	if err := deps.UpdatePasswordHash(ctx, user.UserID, hash); err != nil {
		deps.Warn("password hash update failed", "user_id", user.UserID, "error", err)
		return
	}
	if deps.OnPasswordUpgraded != nil {
		deps.OnPasswordUpgraded(user.UserID)
	}
}
