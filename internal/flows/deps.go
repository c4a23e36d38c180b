package flows

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/tenantguard/internal/model"
)

// Deps groups flow dependency sets. The root engine builds this once and
// delegates request methods to the matching flow implementation.
type Deps struct {
	Register     RegisterDeps
	Login        LoginDeps
	Refresh      RefreshDeps
	Logout       LogoutDeps
	MFA          MFADeps
	Authorize    AuthorizeDeps
	Authenticate AuthenticateDeps
	Tenant       TenantDeps
}

// Errors carries host-level sentinel errors returned by flows.
type Errors struct {
	EngineNotReady        error
	TenantNotFound        error
	TenantInactive        error
	SelfSignupDisabled    error
	EmailDomainNotAllowed error
	InvalidEmail          error
	PasswordPolicy        error
	TenantUserLimit       error
	UserExists            error
	InvalidCredentials    error
	MFACodeRequired       error
	MFACodeInvalid        error
	MFAAlreadyEnabled     error
	MFASetupExpired       error
	TokenInvalid          error
	SessionInvalid        error
	Unauthorized          error
	PermissionDenied      error
	LoginRateLimited      error
	StoreUnavailable      error
}

// AuditRecord is the flow-side shape of an audit event. The engine stamps
// time, IP and user agent.
type AuditRecord struct {
	Type      string
	Success   bool
	UserID    string
	TenantID  string
	SessionID string
	Err       error
	Meta      map[string]string
}

// Hooks are the ambient callbacks every flow may use. Nil members are
// replaced with no-ops.
type Hooks struct {
	Now       func() time.Time
	MetricInc func(int)
	Audit     func(context.Context, AuditRecord)
	Warn      func(string, ...any)
}

func (h Hooks) withDefaults() Hooks {
	if h.Now == nil {
		h.Now = time.Now
	}
	if h.MetricInc == nil {
		h.MetricInc = func(int) {}
	}
	if h.Audit == nil {
		h.Audit = func(context.Context, AuditRecord) {}
	}
	if h.Warn == nil {
		h.Warn = func(string, ...any) {}
	}
	return h
}

// Tokens is a freshly minted pair as returned to callers.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	SessionID    string
}

// AuthResult is the shared outcome of register, login and refresh.
type AuthResult struct {
	User   *model.User
	Tokens Tokens
}

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeSlug trims and lower-cases a tenant slug.
func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

func storeFailure(errs Errors, err error) error {
	if errs.StoreUnavailable == nil {
		return err
	}
	return fmt.Errorf("%w: %v", errs.StoreUnavailable, err)
}
