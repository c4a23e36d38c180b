// Package rate provides the Redis-backed failed-login throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes:
//   - tg:rl:login:<tenant>:<email> — login per identifier
//   - tg:rl:ip:<ip>                — login per IP
//
// # What this package must NOT do
//
//   - Decide whether a backend failure blocks a login (the engine fails open).
//   - Be imported outside the tenantguard module.
package rate
