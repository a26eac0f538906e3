package goToken

import (
	"context"
	"time"
)

// UserRecord is the account record returned by [UserProvider].
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
	CreatedAt    time.Time
}

// CreateUserInput carries a validated registration with the password
// already hashed.
type CreateUserInput struct {
	Username     string
	Email        string
	FullName     string
	EmployeeID   string
	Role         string
	RoleID       string
	PasswordHash string
}

// UserProvider is the user-record collaborator. Implementations return
// ErrUserNotFound for unknown users and ErrConflict for duplicate emails.
type UserProvider interface {
	// GetUserByIdentifier matches username or email, case-insensitively.
	GetUserByIdentifier(ctx context.Context, identifier string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
}

// PasswordHasher hashes new passwords and verifies stored hashes.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
}

// PasswordUpgrader is implemented by hashers that can report stale
// encodings. The Engine re-hashes on login when it is available.
type PasswordUpgrader interface {
	NeedsUpgrade(encodedHash string) (bool, error)
}

type LoginRequest struct {
	// Email accepts an email address or a username.
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Username   string `json:"username"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	FullName   string `json:"fullName"`
	EmployeeID string `json:"employeeId,omitempty"`
}

type RefreshRequest struct {
	UserID       string `json:"userId"`
	RefreshToken string `json:"refreshToken"`
}

// AuthResult is the successful outcome of Login, Register and Refresh.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	// Expiration is the access token's exp claim.
	Expiration time.Time
	UserID     string
	Username   string
	FullName   string
	Email      string
	EmployeeID string
	Role       string
}

// Principal is the identity carried by a verified access token.
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

func newAuthResult(user UserRecord, access, refresh string, exp time.Time) *AuthResult {
	return &AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		Expiration:   exp,
		UserID:       user.UserID,
		Username:     user.Username,
		FullName:     user.FullName,
		Email:        user.Email,
		EmployeeID:   user.EmployeeID,
		Role:         user.Role,
	}
}
