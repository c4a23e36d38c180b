// Package tenantguard provides a multi-tenant identity engine: tenant
// resolution, self registration, credential login with an optional TOTP
// second factor, JWT access/refresh pairs bound to server-side sessions,
// MFA enrollment, and tenant-scoped role and permission checks.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// tenantguard is the public surface. It exposes [Engine], [Builder], [Config],
// the error taxonomy ([KindOf], [HTTPStatus]) and response types. Flow
// orchestration, cache and enrollment stores, rate limiting and audit
// dispatch live under internal/ and are never exported.
//
// # Storage
//
// A [CredentialStore] is the source of truth. store/memstore and
// store/sqlstore implement it. Redis is optional: it holds pending MFA
// enrollments, with the credential store as fallback, and backs the login
// throttle.
//
// # Tenant isolation
//
// Every lookup below tenant resolution is keyed by tenant ID. A user, role
// or session of one tenant never satisfies a check in another.
package tenantguard
