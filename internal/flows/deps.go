package flows

import (
	"context"
	"time"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates each request method to the matching flow.
type Deps struct {
	Login    LoginDeps
	Register RegisterDeps
	Refresh  RefreshDeps
	Logout   LogoutDeps
}

// UserRecord is the flow-local user model.
type UserRecord struct {
	UserID       string
	Username     string
	Email        string
	FullName     string
	EmployeeID   string
	Role         string
	RoleID       string
	PasswordHash string
	Active       bool
}

// TokenPair is a freshly minted access/refresh pair.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// FailureKind classifies flow failures for root-level mapping.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureRateLimited
	FailureInvalidCredentials
	FailureConflict
	FailureUserNotFound
	FailureTokenNotFound
	FailureTokenMismatch
	FailureTokenExpired
	FailureBackend
	FailureIssue
)

// Result carries either the authenticated user with a token pair or
// failure metadata.
type Result struct {
	Failure FailureKind
	Err     error
	User    UserRecord
	Tokens  TokenPair
}

func failed(kind FailureKind, err error) Result {
	return Result{Failure: kind, Err: err}
}

// IssueDeps mints and stores a token pair for a user.
type IssueDeps struct {
	IssueAccess     func(UserRecord) (string, time.Time, error)
	NewRefreshToken func() (string, error)
	PersistRefresh  func(ctx context.Context, userID, token string) error
}

func issuePair(ctx context.Context, user UserRecord, deps IssueDeps) Result {
	access, exp, err := deps.IssueAccess(user)
	if err != nil {
		return failed(FailureIssue, err)
	}
	refresh, err := deps.NewRefreshToken()
	if err != nil {
		return failed(FailureIssue, err)
	}
	if err := deps.PersistRefresh(ctx, user.UserID, refresh); err != nil {
		return failed(FailureBackend, err)
	}
	return Result{
		User: user,
		Tokens: TokenPair{
			AccessToken:  access,
			RefreshToken: refresh,
			ExpiresAt:    exp,
		},
	}
}
