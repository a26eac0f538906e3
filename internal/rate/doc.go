// Package rate provides Redis-backed fixed-window counters for login and
// refresh throttling.
//
// # Window semantics
//
// INCR + EXPIRE on the first hit. Key suffixes under the configured prefix:
//   - al:  login per identifier (lower-cased)
//   - ali: login per IP
//   - ar:  refresh per user id
//
// # What this package must NOT do
//
//   - Decide what a failed attempt is (the Engine does).
//   - Be imported outside the goToken module.
package rate
