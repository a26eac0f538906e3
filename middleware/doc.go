// Package middleware holds the net/http middleware used in front of the
// goToken HTTP surface.
//
// [Guard] reads the Authorization header, calls Validate and stores the
// verified principal in the request context; [RequireRole] turns a role
// mismatch into 403. [RequestID], [Logging], [Recover] and [Timeout] are the
// request plumbing the server mounts on its chi router.
//
// The package translates HTTP into engine calls and makes no token decisions
// of its own.
package middleware
