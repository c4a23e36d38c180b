package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/tenantguard/internal/model"
)

// RegisterInput is the self-signup request.
type RegisterInput struct {
	Email      string
	Password   string
	FirstName  string
	LastName   string
	TenantSlug string
}

// RegisterMetrics carries metric IDs used by the register flow.
type RegisterMetrics struct {
	Success int
	Failure int
}

// RegisterEvents carries audit event names used by the register flow.
type RegisterEvents struct {
	Registered string
}

// RegisterDeps captures register flow dependencies.
type RegisterDeps struct {
	Hooks

	Tenants model.TenantStore
	Users   model.UserStore
	Roles   model.RoleStore

	MinPasswordLength int
	HashPassword      func(string) (string, error)
	IssueTokens       func(context.Context, *model.User) (Tokens, error)

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  Errors
}

// RunRegister creates an active, unverified user in an active tenant that
// allows self signup and returns a fresh token pair for it.
func RunRegister(ctx context.Context, in RegisterInput, deps RegisterDeps) (*AuthResult, error) {
	h := deps.Hooks.withDefaults()
	if deps.Tenants == nil || deps.Users == nil || deps.HashPassword == nil || deps.IssueTokens == nil {
		return nil, deps.Errors.EngineNotReady
	}

	email := NormalizeEmail(in.Email)
	slug := NormalizeSlug(in.TenantSlug)

	reject := func(tenantID string, err error, reason string) (*AuthResult, error) {
		h.MetricInc(deps.Metrics.Failure)
		h.Audit(ctx, AuditRecord{
			Type:     deps.Events.Registered,
			TenantID: tenantID,
			Err:      err,
			Meta:     map[string]string{"email": email, "reason": reason},
		})
		return nil, err
	}

	tenant, err := deps.Tenants.FindTenantBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return reject("", deps.Errors.TenantNotFound, "tenant_not_found")
		}
		return nil, storeFailure(deps.Errors, err)
	}
	if !tenant.Active() {
		return reject(tenant.ID, deps.Errors.TenantInactive, "tenant_inactive")
	}

	settings := tenant.Settings
	if !settings.AllowSelfSignup {
		return reject(tenant.ID, deps.Errors.SelfSignupDisabled, "self_signup_disabled")
	}
	if at := strings.LastIndexByte(email, '@'); at <= 0 || at == len(email)-1 {
		return reject(tenant.ID, deps.Errors.InvalidEmail, "invalid_email")
	}
	if !settings.AllowsDomain(email) {
		return reject(tenant.ID, deps.Errors.EmailDomainNotAllowed, "domain_not_allowed")
	}
	minLen := deps.MinPasswordLength
	if settings.PasswordMinLength > minLen {
		minLen = settings.PasswordMinLength
	}
	if in.Password == "" || len(in.Password) < minLen {
		return reject(tenant.ID, deps.Errors.PasswordPolicy, "password_policy")
	}

	if _, err := deps.Users.FindUserByTenantAndEmail(ctx, tenant.ID, email); err == nil {
		return reject(tenant.ID, deps.Errors.UserExists, "duplicate")
	} else if !errors.Is(err, model.ErrNotFound) {
		return nil, storeFailure(deps.Errors, err)
	}

	if tenant.MaxUsers > 0 {
		count, err := deps.Users.CountUsersByTenant(ctx, tenant.ID)
		if err != nil {
			return nil, storeFailure(deps.Errors, err)
		}
		if count >= tenant.MaxUsers {
			return reject(tenant.ID, deps.Errors.TenantUserLimit, "user_limit")
		}
	}

	hash, err := deps.HashPassword(in.Password)
	if err != nil {
		return reject(tenant.ID, deps.Errors.PasswordPolicy, "hash_failed")
	}

	now := h.Now()
	user := &model.User{
		TenantID:        tenant.ID,
		Email:           email,
		PasswordHash:    hash,
		FirstName:       strings.TrimSpace(in.FirstName),
		LastName:        strings.TrimSpace(in.LastName),
		Status:          model.UserActive,
		IsEmailVerified: false,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := deps.Users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return reject(tenant.ID, deps.Errors.UserExists, "duplicate")
		}
		return nil, storeFailure(deps.Errors, err)
	}

	if settings.DefaultRole != "" && deps.Roles != nil {
		assignDefaultRole(ctx, h, deps.Roles, user, settings.DefaultRole)
	}

	tokens, err := deps.IssueTokens(ctx, user)
	if err != nil {
		return nil, err
	}

	h.MetricInc(deps.Metrics.Success)
	h.Audit(ctx, AuditRecord{
		Type:      deps.Events.Registered,
		Success:   true,
		UserID:    user.ID,
		TenantID:  tenant.ID,
		SessionID: tokens.SessionID,
		Meta:      map[string]string{"email": email},
	})

	return &AuthResult{User: user, Tokens: tokens}, nil
}

func assignDefaultRole(ctx context.Context, h Hooks, roles model.RoleStore, user *model.User, name string) {
	role, err := roles.FindRoleByName(ctx, user.TenantID, name)
	if err != nil {
		h.Warn("tenantguard: default role %q lookup failed for tenant %s: %v", name, user.TenantID, err)
		return
	}
	err = roles.CreateRoleAssignment(ctx, &model.RoleAssignment{
		UserID:     user.ID,
		RoleID:     role.ID,
		TenantID:   user.TenantID,
		AssignedBy: user.ID,
	})
	if err != nil {
		h.Warn("tenantguard: default role %q assignment failed: %v", name, err)
	}
}
