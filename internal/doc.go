// Package internal contains helpers that are private to goToken: refresh token
// generation and digest encoding.
//
// # Sub-packages
//
//   - flows: use-case orchestrators behind every Engine operation
//   - rate: Redis-backed login throttling
//   - obs: zap logger construction and the metrics listener
//   - config: viper-backed server configuration
//   - userstore: in-memory user provider for demos and load tests
//
// # What this package must NOT do
//
//   - Export types that appear in the public goToken API.
//   - Be imported by any package outside the goToken module.
package internal
