// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunRegister, RunLogin, RunRefresh, RunVerifyMFA, etc.)
// accepts a typed dependency struct and returns results without side-effects
// beyond those dependencies. The Engine builds a [Deps] once and delegates
// through [Service].
//
// # Architecture boundaries
//
// Flow functions coordinate the credential store, session manager, token
// service, enrollment store, audit and metrics hooks. They do NOT own any of
// these resources; ownership stays with the Engine.
//
// Store not-found results never leave a flow as-is: each flow maps them to an
// unauthorized or policy error from [Errors].
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import tenantguard (to avoid import cycles).
//   - Read tenant or user identity from anywhere but explicit parameters.
package flows
