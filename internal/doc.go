// Package internal contains helpers private to tenantguard: secure random
// backup codes and token digests.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//   - flows — flow orchestrators for every Engine operation
//   - ids — ULID record identifiers
//   - model — records and storage contracts
//   - rate — Redis-backed login throttle
//   - stores — fast cache adapter, MFA enrollment stores, timeout decorators
//
// # What this package must NOT do
//
//   - Export types that appear in the public tenantguard API.
//   - Be imported by any package outside the tenantguard module.
package internal
