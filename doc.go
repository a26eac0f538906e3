// Package goToken provides the server half of a token lifecycle: HMAC-signed
// access JWTs, single-use rotating refresh tokens with one active token per
// user, and the login, register, refresh and logout use cases around them.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build]. The client half (session cache,
// auth state, refresh-then-retry pipeline) lives in package client.
//
// # Architecture boundaries
//
// goToken is the public surface. It exposes [Engine], [Builder], [Config],
// [TokenIssuer] and value types. Flow orchestration, rate limiting and token
// randomness live under internal/. Storage adapters (session, postgres) and
// transports (httpapi, middleware) depend on goToken, never the reverse.
//
// # What this package must NOT do
//
//   - Expose Redis clients or store encodings in its public API.
//   - Revoke access tokens. They are stateless and expire on their own.
//   - Import any sub-package that re-imports goToken (no import cycles).
//
// # Refresh record races
//
// Two concurrent refreshes for the same user race on the stored record. By
// default the last writer wins. Setting Session.CompareAndSwap makes the
// rotation conditional so the loser gets ErrRefreshTokenMismatch.
package goToken
