package flows

import (
	"context"
	"errors"
)

// NewUser is a validated registration with the password already hashed.
type NewUser struct {
	Username     string
	Email        string
	FullName     string
	EmployeeID   string
	Role         string
	RoleID       string
	PasswordHash string
}

// RegisterDeps captures registration dependencies.
type RegisterDeps struct {
	EmailExists  func(context.Context, string) (bool, error)
	HashPassword func(string) (string, error)
	CreateUser   func(context.Context, NewUser) (UserRecord, error)
	Issue        IssueDeps

	// Conflict is the host sentinel CreateUser returns for a duplicate
	// email that slipped past EmailExists.
	Conflict error
}

// RunRegister creates the account described by in (PasswordHash holds the
// plaintext on entry) and issues a token pair exactly like login.
func RunRegister(ctx context.Context, in NewUser, deps RegisterDeps) Result {
	exists, err := deps.EmailExists(ctx, in.Email)
	if err != nil {
		return failed(FailureBackend, err)
	}
	if exists {
		return failed(FailureConflict, nil)
	}

	hash, err := deps.HashPassword(in.PasswordHash)
	if err != nil {
		return failed(FailureIssue, err)
	}
	in.PasswordHash = hash

	user, err := deps.CreateUser(ctx, in)
	if err != nil {
		if deps.Conflict != nil && errors.Is(err, deps.Conflict) {
			return failed(FailureConflict, err)
		}
		return failed(FailureBackend, err)
	}

	return issuePair(ctx, user, deps.Issue)
}
