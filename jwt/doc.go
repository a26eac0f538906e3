// Package jwt issues and verifies HMAC-signed access tokens.
//
// An access token carries the user's profile claims (sub/nameid, username,
// email, role, roleId, fullName, optional employeeId), a unique jti and an
// exp. Tokens are never persisted server-side; validity is signature plus
// expiry.
//
// [DecodeUnverified] is the client-side counterpart: it reads claims without
// a key. It must never be used to authorize a request on the server.
//
// # What this package must NOT do
//
//   - Import goToken or any store package.
//   - Persist or revoke tokens.
package jwt
