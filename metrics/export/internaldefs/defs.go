package internaldefs

import (
	"github.com/MrEthical07/tenantguard"
)

// CounterDef defines a public type used by tenantguard APIs.
//
// CounterDef instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   tenantguard.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by tenantguard APIs.
type HistogramDef struct {
	ID   tenantguard.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter fed by Engine.AuditDropped.
const AuditDroppedName = "tenantguard_audit_dropped_total"

// CounterDefs is an exported constant or variable used by the authentication engine.
var CounterDefs = []CounterDef{
	{ID: tenantguard.MetricRegisterSuccess, Name: "tenantguard_register_success_total", Help: "Successful self registrations."},
	{ID: tenantguard.MetricRegisterFailure, Name: "tenantguard_register_failure_total", Help: "Registrations rejected by tenant policy."},
	{ID: tenantguard.MetricLoginSuccess, Name: "tenantguard_login_success_total", Help: "Successful login attempts."},
	{ID: tenantguard.MetricLoginFailure, Name: "tenantguard_login_failure_total", Help: "Failed login attempts."},
	{ID: tenantguard.MetricLoginRateLimited, Name: "tenantguard_login_rate_limited_total", Help: "Rate-limited login attempts."},
	{ID: tenantguard.MetricMFARequired, Name: "tenantguard_mfa_required_total", Help: "Logins answered with an MFA prompt."},
	{ID: tenantguard.MetricRefreshSuccess, Name: "tenantguard_refresh_success_total", Help: "Successful refresh operations."},
	{ID: tenantguard.MetricRefreshFailure, Name: "tenantguard_refresh_failure_total", Help: "Failed refresh operations."},
	{ID: tenantguard.MetricSessionCreated, Name: "tenantguard_session_created_total", Help: "Created sessions."},
	{ID: tenantguard.MetricLogout, Name: "tenantguard_logout_total", Help: "Logout operations."},
	{ID: tenantguard.MetricMFASetup, Name: "tenantguard_mfa_setup_total", Help: "Started MFA enrollments."},
	{ID: tenantguard.MetricMFAEnabled, Name: "tenantguard_mfa_enabled_total", Help: "Completed MFA enrollments."},
	{ID: tenantguard.MetricMFAVerifyFailure, Name: "tenantguard_mfa_verify_failure_total", Help: "MFA enrollment codes rejected."},
	{ID: tenantguard.MetricMFAFallbackUsed, Name: "tenantguard_mfa_fallback_used_total", Help: "MFA enrollment operations served by the durable fallback."},
	{ID: tenantguard.MetricCacheFailure, Name: "tenantguard_cache_failure_total", Help: "Fast cache operations that failed."},
	{ID: tenantguard.MetricAuthorizeAllowed, Name: "tenantguard_authorize_allowed_total", Help: "Authorization checks that passed."},
	{ID: tenantguard.MetricAuthorizeDenied, Name: "tenantguard_authorize_denied_total", Help: "Authorization checks that failed."},
}

// HistogramDefs is an exported constant or variable used by the authentication engine.
var HistogramDefs = []HistogramDef{
	{ID: tenantguard.MetricLoginLatency, Name: "tenantguard_login_latency_seconds", Help: "Login latency histogram."},
}

// HistogramUpperBounds are the bucket upper bounds in seconds. The last
// bucket is unbounded.
var HistogramUpperBounds = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// NormalizeBuckets describes the normalizebuckets operation and its observable behavior.
//
// NormalizeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets describes the cumulativebuckets operation and its observable behavior.
//
// CumulativeBuckets does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
