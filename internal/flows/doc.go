// Package flows contains pure-function orchestrators for every Engine
// operation.
//
// Each flow function (RunLogin, RunRegister, RunRefresh, RunLogout) accepts
// a typed dependency struct and returns results without side effects beyond
// those dependencies. Host sentinel errors are passed in so the package never
// imports goToken.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the user provider, token issuer,
// session store and rate limiter. They do NOT own any of these resources.
// Ownership stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import goToken (to avoid import cycles).
//   - Perform I/O directly. All I/O is mediated through dependency functions.
package flows
