package internal

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

const refreshTokenSize = 64

// ErrInvalidRefreshHash is returned when a stored digest cannot be decoded.
var ErrInvalidRefreshHash = errors.New("invalid refresh hash")

// NewRefreshToken returns an opaque refresh token backed by 64 bytes of
// crypto/rand entropy, encoded as base64url without padding.
func NewRefreshToken() (string, error) {
	raw := make([]byte, refreshTokenSize)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

// HashRefreshToken returns the digest persisted in place of the token.
func HashRefreshToken(token string) [32]byte {
	return sha256.Sum256([]byte(token))
}

// EncodeRefreshHash renders a digest for text-only backends (Redis hashes,
// Postgres TEXT columns).
func EncodeRefreshHash(hash [32]byte) string {
	return hex.EncodeToString(hash[:])
}

// DecodeRefreshHash parses the output of [EncodeRefreshHash].
func DecodeRefreshHash(encoded string) ([32]byte, error) {
	var out [32]byte
	raw, err := hex.DecodeString(encoded)
	if err != nil || len(raw) != len(out) {
		return out, ErrInvalidRefreshHash
	}
	copy(out[:], raw)
	return out, nil
}
