package goToken

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks a missing or malformed request field. Concrete
	// failures are returned as *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials is the single failure for unknown identifiers,
	// wrong passwords and inactive accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrConflict is returned by Register when the email is taken.
	ErrConflict = errors.New("email already registered")
	// ErrUserNotFound is returned by Refresh when the user id is unknown.
	ErrUserNotFound = errors.New("user not found")
	// ErrRefreshTokenNotFound is returned when no refresh token is on file.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	// ErrRefreshTokenMismatch is returned when the presented refresh token
	// differs from the stored one.
	ErrRefreshTokenMismatch = errors.New("refresh token mismatch")
	// ErrRefreshTokenExpired is returned when the stored refresh token is
	// past its expiry.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
	// ErrUnauthorized is returned for a missing or invalid bearer token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when a valid principal lacks the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrRateLimited is returned when login or refresh throttling applies.
	ErrRateLimited = errors.New("rate limited")
	// ErrUnavailable wraps session store, user store and limiter failures.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrInvalidArgument reports a programmer error such as a nil user.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrEngineNotReady is returned by Builder.Build for incomplete wiring.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid config")
)

// Kind classifies an error for transport mapping and audit codes.
type Kind int

const (
	KindNone Kind = iota
	KindValidation
	KindInvalidCredentials
	KindConflict
	KindUserNotFound
	KindTokenNotFound
	KindTokenMismatch
	KindTokenExpired
	KindUnauthorized
	KindForbidden
	KindRateLimited
	KindUnavailable
	KindInternal
)

var kindNames = [...]string{
	KindNone:               "none",
	KindValidation:         "validation",
	KindInvalidCredentials: "invalid_credentials",
	KindConflict:           "conflict",
	KindUserNotFound:       "user_not_found",
	KindTokenNotFound:      "token_not_found",
	KindTokenMismatch:      "token_mismatch",
	KindTokenExpired:       "token_expired",
	KindUnauthorized:       "unauthorized",
	KindForbidden:          "forbidden",
	KindRateLimited:        "rate_limited",
	KindUnavailable:        "unavailable",
	KindInternal:           "internal",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalidField(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// KindOf resolves err to its Kind. Unrecognized errors are KindInternal.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrInvalidCredentials):
		return KindInvalidCredentials
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrUserNotFound):
		return KindUserNotFound
	case errors.Is(err, ErrRefreshTokenNotFound):
		return KindTokenNotFound
	case errors.Is(err, ErrRefreshTokenMismatch):
		return KindTokenMismatch
	case errors.Is(err, ErrRefreshTokenExpired):
		return KindTokenExpired
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	default:
		return KindInternal
	}
}

// User-facing messages carried in response envelopes.
const (
	MessageLoginSucceeded    = "Login successful"
	MessageRegisterSucceeded = "Registration successful"
	MessageRefreshSucceeded  = "Token refreshed successfully"
	MessageLogoutSucceeded   = "Logged out successfully"

	MessageInvalidCredentials = "Invalid email or password"
	MessageEmailTaken         = "Email is already registered"
	MessageUserNotFound       = "User not found. Please login again."
	MessageTokenNotFound      = "No refresh token found. Please login again."
	MessageTokenMismatch      = "Invalid refresh token. Please login again."
	MessageTokenExpired       = "Refresh token expired. Please login again."
	MessageUnauthorized       = "Unauthorized"
	MessageForbidden          = "You don't have permission to perform this action."
	MessageRateLimited        = "Too many attempts. Please try again later."
	MessageUnavailable        = "Service temporarily unavailable. Please try again."
	MessageInternal           = "An unexpected error occurred"
)

// MessageOf returns the message shown to end users for err.
func MessageOf(err error) string {
	switch KindOf(err) {
	case KindNone:
		return ""
	case KindValidation:
		var verr *ValidationError
		if errors.As(err, &verr) {
			return verr.Message
		}
		return "Invalid request"
	case KindInvalidCredentials:
		return MessageInvalidCredentials
	case KindConflict:
		return MessageEmailTaken
	case KindUserNotFound:
		return MessageUserNotFound
	case KindTokenNotFound:
		return MessageTokenNotFound
	case KindTokenMismatch:
		return MessageTokenMismatch
	case KindTokenExpired:
		return MessageTokenExpired
	case KindUnauthorized:
		return MessageUnauthorized
	case KindForbidden:
		return MessageForbidden
	case KindRateLimited:
		return MessageRateLimited
	case KindUnavailable:
		return MessageUnavailable
	default:
		return MessageInternal
	}
}
