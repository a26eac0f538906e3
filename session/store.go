package session

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrRecordNotFound is returned when no refresh token is on file for a user.
	ErrRecordNotFound = errors.New("refresh record not found")
	// ErrHashMismatch is returned by CompareAndSwap when the stored digest
	// differs from the expected one.
	ErrHashMismatch = errors.New("refresh hash mismatch")
	// ErrRecordExpired is returned by CompareAndSwap when the stored token is
	// past its expiry.
	ErrRecordExpired = errors.New("refresh record expired")
	// ErrRedisUnavailable wraps Redis transport and server failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrInvalidUserID is returned for an empty user id.
	ErrInvalidUserID = errors.New("invalid user id")
)

// Record is the persisted refresh token state of one user.
type Record struct {
	TokenHash [32]byte
	ExpiresAt time.Time
}

// Expired reports whether the record is past its expiry at now.
func (r Record) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// Store persists one refresh [Record] per user.
//
// Put is an unconditional overwrite: two concurrent writers race and the last
// one wins. CompareAndSwap offers the guarded alternative.
type Store interface {
	Get(ctx context.Context, userID string) (Record, error)
	Put(ctx context.Context, userID string, rec Record) error
	CompareAndSwap(ctx context.Context, userID string, expected [32]byte, next Record) error
	Delete(ctx context.Context, userID string) error
}
