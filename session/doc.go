// Package session tracks one persisted record per issued refresh token and
// governs its rotation and revocation.
//
// # Lifecycle
//
// [Manager.Create] inserts an active row when a pair is minted.
// [Manager.Refresh] checks the refresh token signature first, then requires a
// live row holding the same token digest, and swaps the row's token digests in
// a single conditional update. Two concurrent refreshes with the same token
// cannot both succeed. [Manager.Logout] deactivates matching rows and always
// reports success.
//
// # Architecture boundaries
//
// This package owns session state transitions. It does NOT load users, check
// tenant status or evaluate roles; those belong to the flows that call it.
//
// # What this package must NOT do
//
//   - Store raw token values; rows carry SHA-256 digests only.
//   - Delete session rows. Logout flips is_active.
//   - Import tenantguard or internal/flows.
package session
