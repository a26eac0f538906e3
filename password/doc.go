// Package password implements password hashing and verification with Argon2id
// defaults and bcrypt verification for imported accounts.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// [Hasher] dispatches on the stored prefix: `$argon2id$` goes to [Argon2],
// `$2a$`, `$2b$` and `$2y$` go to [Bcrypt]. [Hasher.NeedsUpgrade] returns true
// for bcrypt hashes and for Argon2id hashes with weaker parameters so the
// caller can re-hash on the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (minimum
// length, required fields) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other goToken package.
//   - Log plaintext passwords or hash parameters at runtime.
package password
