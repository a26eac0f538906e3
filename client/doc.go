// Package client is the consumer side of goToken: it caches a session's
// tokens, derives the current principal from the access token and sends
// requests through a pipeline that refreshes on 401.
//
// # Sessions
//
// A [Session] owns one [SessionCache], one [AuthState] and one refresh
// lock. Concurrent 401s within a session produce a single refresh call;
// callers that waited reuse the installed token. Separate sessions refresh
// independently, even when they share a [Storage].
//
// # Trust boundary
//
// The client decodes access tokens without verifying their signature. It
// never makes an authorization decision from those claims; the server
// verifies every token it receives.
//
// # Errors
//
// Failures are *[Error] values whose [Kind] tells a session-expired failure
// apart from 403, 5xx, network, timeout, cancellation and protocol
// failures. Only a 401 on the first attempt leads to a refresh.
package client
