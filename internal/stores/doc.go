// Package stores provides the fast-cache adapter, the MFA enrollment stores
// and bounded-timeout decorators around the credential store.
//
// # Design
//
// [EnrollmentStore] has two implementations: [CacheEnrollmentStore] keeps
// pending MFA material in Redis under a TTL, [DurableEnrollmentStore] embeds
// it in the user record with an explicit expiry. [FailoverEnrollmentStore]
// tries the cache first and falls back to the durable copy on any cache
// failure, so MFA enrollment survives a cache outage.
//
// # Architecture boundaries
//
// This package owns persistence and timeouts for transient records. It does
// NOT generate secrets, verify codes or make authentication decisions; those
// belong to internal/flows.
//
// # What this package must NOT do
//
//   - Import tenantguard or internal/flows.
//   - Log plaintext secrets.
package stores
