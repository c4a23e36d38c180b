package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/tenantguard/internal/model"
)

// LoginInput is one login attempt. MFACode is required only for users with
// MFA enabled.
type LoginInput struct {
	Email      string
	Password   string
	TenantSlug string
	MFACode    string
	ClientIP   string
}

// LoginMetrics carries metric IDs used by the login flow.
type LoginMetrics struct {
	Success     int
	Failure     int
	RateLimited int
	MFARequired int
}

// LoginEvents carries audit event names used by the login flow.
type LoginEvents struct {
	Success string
	Failure string
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Hooks

	Tenants model.TenantStore
	Users   model.UserStore

	VerifyPassword       func(password, hash string) (bool, error)
	PasswordNeedsUpgrade func(hash string) bool
	HashPassword         func(string) (string, error)
	UpgradeOnLogin       bool
	VerifyTOTP           func(secret, code string) bool
	IssueTokens          func(context.Context, *model.User) (Tokens, error)

	// CheckLoginRate returns a non-nil error only when the attempt must be
	// refused. Backend failures are the caller's to swallow.
	CheckLoginRate func(ctx context.Context, tenantSlug, email, ip string) error
	RecordFailure  func(ctx context.Context, tenantSlug, email, ip string)
	ResetLoginRate func(ctx context.Context, tenantSlug, email string)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  Errors
}

// RunLogin verifies credentials inside a tenant, enforces the MFA second
// factor when enabled, and mints a new session.
func RunLogin(ctx context.Context, in LoginInput, deps LoginDeps) (*AuthResult, error) {
	h := deps.Hooks.withDefaults()
	if deps.Tenants == nil || deps.Users == nil || deps.VerifyPassword == nil || deps.IssueTokens == nil {
		return nil, deps.Errors.EngineNotReady
	}

	email := NormalizeEmail(in.Email)
	slug := NormalizeSlug(in.TenantSlug)

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, slug, email, in.ClientIP); err != nil {
			h.MetricInc(deps.Metrics.RateLimited)
			h.Audit(ctx, AuditRecord{
				Type: deps.Events.Failure,
				Err:  deps.Errors.LoginRateLimited,
				Meta: map[string]string{"email": email, "tenant": slug, "reason": "rate_limited"},
			})
			return nil, deps.Errors.LoginRateLimited
		}
	}

	reject := func(userID, tenantID, reason string, err error) (*AuthResult, error) {
		if deps.RecordFailure != nil {
			deps.RecordFailure(ctx, slug, email, in.ClientIP)
		}
		h.MetricInc(deps.Metrics.Failure)
		h.Audit(ctx, AuditRecord{
			Type:     deps.Events.Failure,
			UserID:   userID,
			TenantID: tenantID,
			Err:      err,
			Meta:     map[string]string{"email": email, "tenant": slug, "reason": reason},
		})
		return nil, err
	}

	if in.Password == "" {
		return reject("", "", "empty_password", deps.Errors.InvalidCredentials)
	}

	tenant, err := deps.Tenants.FindTenantBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return reject("", "", "tenant_not_found", deps.Errors.InvalidCredentials)
		}
		return nil, storeFailure(deps.Errors, err)
	}
	if !tenant.Active() {
		return reject("", tenant.ID, "tenant_inactive", deps.Errors.InvalidCredentials)
	}

	user, err := deps.Users.FindUserByTenantAndEmail(ctx, tenant.ID, email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return reject("", tenant.ID, "user_not_found", deps.Errors.InvalidCredentials)
		}
		return nil, storeFailure(deps.Errors, err)
	}
	if !user.Active() {
		return reject(user.ID, tenant.ID, "user_inactive", deps.Errors.InvalidCredentials)
	}

	ok, err := deps.VerifyPassword(in.Password, user.PasswordHash)
	if err != nil || !ok {
		return reject(user.ID, tenant.ID, "password_mismatch", deps.Errors.InvalidCredentials)
	}

	if user.MFAEnabled {
		code := strings.TrimSpace(in.MFACode)
		if code == "" {
			h.MetricInc(deps.Metrics.MFARequired)
			return nil, deps.Errors.MFACodeRequired
		}
		if deps.VerifyTOTP == nil || !deps.VerifyTOTP(user.MFASecret, code) {
			return reject(user.ID, tenant.ID, "mfa_invalid", deps.Errors.MFACodeInvalid)
		}
	}

	if deps.UpgradeOnLogin && deps.PasswordNeedsUpgrade != nil && deps.HashPassword != nil && deps.PasswordNeedsUpgrade(user.PasswordHash) {
		if upgraded, err := deps.HashPassword(in.Password); err == nil {
			if err := deps.Users.UpdatePasswordHash(ctx, user.ID, upgraded); err != nil {
				h.Warn("tenantguard: password hash upgrade update failed: %v", err)
			} else {
				user.PasswordHash = upgraded
			}
		} else {
			h.Warn("tenantguard: password hash upgrade generation failed: %v", err)
		}
	}

	tokens, err := deps.IssueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	now := h.Now()
	if err := deps.Users.RecordLogin(ctx, user.ID, now); err != nil {
		h.Warn("tenantguard: login counters not updated for user %s: %v", user.ID, err)
	} else {
		user.LastLoginAt = &now
		user.LoginCount++
	}
	if deps.ResetLoginRate != nil {
		deps.ResetLoginRate(ctx, slug, email)
	}

	h.MetricInc(deps.Metrics.Success)
	h.Audit(ctx, AuditRecord{
		Type:      deps.Events.Success,
		Success:   true,
		UserID:    user.ID,
		TenantID:  tenant.ID,
		SessionID: tokens.SessionID,
		Meta:      map[string]string{"loginMethod": "native"},
	})

	return &AuthResult{User: user, Tokens: tokens}, nil
}
