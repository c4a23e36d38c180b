package tenantguard

import (
	"errors"
	"net/http"
)

var (
	// ErrTenantNotFound is an exported constant or variable used by the authentication engine.
	ErrTenantNotFound = errors.New("invalid tenant")
	// ErrTenantInactive is an exported constant or variable used by the authentication engine.
	ErrTenantInactive = errors.New("tenant is not active")
	// ErrSelfSignupDisabled is an exported constant or variable used by the authentication engine.
	ErrSelfSignupDisabled = errors.New("self-signup is not allowed for this tenant")
	// ErrEmailDomainNotAllowed is an exported constant or variable used by the authentication engine.
	ErrEmailDomainNotAllowed = errors.New("email domain is not allowed for this tenant")
	// ErrInvalidEmail is an exported constant or variable used by the authentication engine.
	ErrInvalidEmail = errors.New("invalid email address")
	// ErrPasswordPolicy is an exported constant or variable used by the authentication engine.
	ErrPasswordPolicy = errors.New("password does not meet tenant policy")
	// ErrTenantUserLimit is an exported constant or variable used by the authentication engine.
	ErrTenantUserLimit = errors.New("tenant user limit reached")
	// ErrUserExists is an exported constant or variable used by the authentication engine.
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials is an exported constant or variable used by the authentication engine.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrMFACodeRequired is an exported constant or variable used by the authentication engine.
	ErrMFACodeRequired = errors.New("MFA code required")
	// ErrMFACodeInvalid is an exported constant or variable used by the authentication engine.
	ErrMFACodeInvalid = errors.New("invalid MFA code")
	// ErrMFAAlreadyEnabled is an exported constant or variable used by the authentication engine.
	ErrMFAAlreadyEnabled = errors.New("MFA is already enabled")
	// ErrMFASetupExpired is an exported constant or variable used by the authentication engine.
	ErrMFASetupExpired = errors.New("MFA setup session expired")
	// ErrTokenInvalid is an exported constant or variable used by the authentication engine.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrSessionInvalid is an exported constant or variable used by the authentication engine.
	ErrSessionInvalid = errors.New("session expired or invalid")
	// ErrUnauthorized is an exported constant or variable used by the authentication engine.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrPermissionDenied is an exported constant or variable used by the authentication engine.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrLoginRateLimited is an exported constant or variable used by the authentication engine.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrStoreUnavailable is an exported constant or variable used by the authentication engine.
	ErrStoreUnavailable = errors.New("credential store unavailable")
	// ErrEngineNotReady is an exported constant or variable used by the authentication engine.
	ErrEngineNotReady = errors.New("engine not initialized")
)

// Kind classifies engine errors for transport mapping.
type Kind int

const (
	// KindUnknown is returned for errors the engine did not produce.
	KindUnknown Kind = iota
	// KindPolicyViolation covers tenant and registration policy rejections.
	KindPolicyViolation
	// KindConflict covers duplicate records.
	KindConflict
	// KindUnauthorized covers credential, token and session rejections.
	KindUnauthorized
	// KindMFAPrompt is the "send an MFA code too" signal.
	KindMFAPrompt
	// KindForbidden covers authenticated callers lacking a role or permission.
	KindForbidden
	// KindRateLimited covers throttled attempts.
	KindRateLimited
	// KindStoreFailure covers credential store outages.
	KindStoreFailure
)

func (k Kind) String() string {
	switch k {
	case KindPolicyViolation:
		return "policy_violation"
	case KindConflict:
		return "conflict"
	case KindUnauthorized:
		return "unauthorized"
	case KindMFAPrompt:
		return "mfa_required"
	case KindForbidden:
		return "forbidden"
	case KindRateLimited:
		return "rate_limited"
	case KindStoreFailure:
		return "store_failure"
	default:
		return "unknown"
	}
}

var kindTable = []struct {
	err  error
	kind Kind
}{
	{ErrTenantNotFound, KindPolicyViolation},
	{ErrTenantInactive, KindPolicyViolation},
	{ErrSelfSignupDisabled, KindPolicyViolation},
	{ErrEmailDomainNotAllowed, KindPolicyViolation},
	{ErrInvalidEmail, KindPolicyViolation},
	{ErrPasswordPolicy, KindPolicyViolation},
	{ErrTenantUserLimit, KindPolicyViolation},
	{ErrMFAAlreadyEnabled, KindPolicyViolation},
	{ErrMFASetupExpired, KindPolicyViolation},
	{ErrUserExists, KindConflict},
	{ErrInvalidCredentials, KindUnauthorized},
	{ErrMFACodeInvalid, KindUnauthorized},
	{ErrTokenInvalid, KindUnauthorized},
	{ErrSessionInvalid, KindUnauthorized},
	{ErrUnauthorized, KindUnauthorized},
	{ErrMFACodeRequired, KindMFAPrompt},
	{ErrPermissionDenied, KindForbidden},
	{ErrLoginRateLimited, KindRateLimited},
	{ErrStoreUnavailable, KindStoreFailure},
	{ErrEngineNotReady, KindStoreFailure},
}

// KindOf returns the taxonomy bucket of err.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	for _, e := range kindTable {
		if errors.Is(err, e.err) {
			return e.kind
		}
	}
	return KindUnknown
}

// HTTPStatus maps err to the status code an HTTP layer should answer with.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindPolicyViolation, KindMFAPrompt:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text safe to show a caller. Store failures collapse to
// a generic message.
func PublicMessage(err error) string {
	switch KindOf(err) {
	case KindUnknown, KindStoreFailure:
		return "internal server error"
	}
	for _, e := range kindTable {
		if errors.Is(err, e.err) {
			return e.err.Error()
		}
	}
	return "internal server error"
}
