// Package permission evaluates role and permission requirements for
// tenantguard access checks.
//
// # Matching
//
// Permission strings are "resource:action". A granted "resource:*" covers
// every action on resource, a lone "*" covers everything, and any other
// string matches only itself.
//
// # Operation table
//
// A [Table] maps an operation name to the [Rule] guarding it. Public rules
// allow anyone; otherwise the caller must hold one of the listed roles.
// Operations missing from the table are denied.
//
// # What this package must NOT do
//
//   - Access Redis, databases, or the network.
//   - Import tenantguard, jwt, or session.
//   - Load role assignments; callers pass the roles already filtered to the
//     caller's tenant.
package permission
