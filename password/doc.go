// Package password implements password hashing and verification with bcrypt.
//
// The default work factor is 12. [Bcrypt.NeedsUpgrade] reports hashes produced
// with a lower cost so the caller can re-hash after the next successful login.
//
// # Architecture boundaries
//
// This package owns hashing and verification only. Password policy (minimum
// length per tenant) is enforced by the Engine.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords — callers supply plaintext and receive hashes.
//   - Import any other tenantguard package.
//   - Log plaintext passwords at runtime.
package password
