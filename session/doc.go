// Package session persists the single active refresh token of each user.
//
// A user has at most one [Record]: the SHA-256 digest of the current refresh
// token and its absolute expiry. Writing a new record overwrites the old one,
// which is how issuing a new refresh token invalidates the previous value.
//
// # Implementations
//
//   - [RedisStore] keeps one hash per user with a key TTL past the expiry so an
//     expired token stays distinguishable from a missing one.
//   - [MemoryStore] is a mutex-guarded map for tests and single-process demos.
//   - postgres.SessionStore keeps one row per user in refresh_tokens.
//
// # Architecture boundaries
//
// This package owns storage only. Deciding whether a presented token is
// acceptable belongs to the Engine.
//
// # What this package must NOT do
//
//   - Import goToken or jwt (no upward imports).
//   - Store plaintext refresh tokens.
package session
