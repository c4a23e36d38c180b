// Package middleware adapts tenantguard.Engine to net/http.
//
// # Middleware
//
//   - [TenantResolver] attaches the active tenant named by subdomain, header,
//     chi path parameter or query parameter. It never rejects.
//   - [RequireTenant] rejects requests without a resolved tenant.
//   - [ClientInfo] records caller IP and user agent for audit and throttling.
//   - [Guard] verifies the bearer access token through Engine.Authenticate.
//   - [RequireOperation] and [RequireRoles] consult the access control
//     evaluator.
//
// # What this package must NOT do
//
//   - Parse or sign JWTs directly.
//   - Touch stores or Redis; every decision is delegated to the Engine.
package middleware
