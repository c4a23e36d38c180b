package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/tenantguard/internal/model"
	"github.com/MrEthical07/tenantguard/permission"
)

// AuthorizeMetrics carries metric IDs used by the access control flows.
type AuthorizeMetrics struct {
	Allowed int
	Denied  int
}

// AuthorizeDeps captures access control dependencies.
type AuthorizeDeps struct {
	Hooks

	Users  model.UserStore
	Roles  model.RoleStore
	Table  *permission.Table
	Denied string

	Metrics AuthorizeMetrics
	Errors  Errors
}

// RunAuthorize allows when required is empty, otherwise when the user holds
// at least one required role inside tenantID.
func RunAuthorize(ctx context.Context, userID, tenantID string, required []string, deps AuthorizeDeps) error {
	h := deps.Hooks.withDefaults()
	if len(required) == 0 {
		h.MetricInc(deps.Metrics.Allowed)
		return nil
	}
	return authorizeRoles(ctx, h, userID, tenantID, required, "", deps)
}

// RunAuthorizeOperation looks op up in the operation table. Unknown
// operations are denied; public ones are allowed without a user; a rule
// without roles admits any active member of tenantID.
func RunAuthorizeOperation(ctx context.Context, userID, tenantID, op string, deps AuthorizeDeps) error {
	h := deps.Hooks.withDefaults()

	rule, err := deps.Table.Rule(op)
	if err != nil {
		h.MetricInc(deps.Metrics.Denied)
		h.Audit(ctx, AuditRecord{
			Type:     deps.Denied,
			UserID:   userID,
			TenantID: tenantID,
			Err:      deps.Errors.PermissionDenied,
			Meta:     map[string]string{"operation": op, "reason": "unknown_operation"},
		})
		return deps.Errors.PermissionDenied
	}
	if rule.Public {
		h.MetricInc(deps.Metrics.Allowed)
		return nil
	}
	if len(rule.Roles) == 0 {
		if _, err := member(ctx, userID, tenantID, deps); err != nil {
			h.MetricInc(deps.Metrics.Denied)
			return err
		}
		h.MetricInc(deps.Metrics.Allowed)
		return nil
	}
	return authorizeRoles(ctx, h, userID, tenantID, rule.Roles, op, deps)
}

// RunHasPermission reports whether any of the user's roles in tenantID
// grants perm, honouring "resource:*" and "*" grants.
func RunHasPermission(ctx context.Context, userID, tenantID, perm string, deps AuthorizeDeps) (bool, error) {
	if _, err := member(ctx, userID, tenantID, deps); err != nil {
		return false, err
	}
	roles, err := EffectiveRoles(ctx, userID, tenantID, deps.Roles)
	if err != nil {
		return false, storeFailure(deps.Errors, err)
	}
	var granted permission.Set
	for _, r := range roles {
		granted = append(granted, r.Permissions...)
	}
	return granted.Allows(perm), nil
}

// EffectiveRoles returns the roles assigned to userID that belong to
// tenantID. Assignments pointing at another tenant's role are dropped even
// if the store returned them.
func EffectiveRoles(ctx context.Context, userID, tenantID string, roles model.RoleStore) ([]model.Role, error) {
	assignments, err := roles.FindRoleAssignmentsForUser(ctx, userID, tenantID)
	if err != nil {
		return nil, err
	}
	out := make([]model.Role, 0, len(assignments))
	for _, a := range assignments {
		if a.Role.ID == "" || a.Role.TenantID != tenantID {
			continue
		}
		out = append(out, a.Role)
	}
	return out, nil
}

func member(ctx context.Context, userID, tenantID string, deps AuthorizeDeps) (*model.User, error) {
	if deps.Users == nil || deps.Roles == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if userID == "" || tenantID == "" {
		return nil, deps.Errors.Unauthorized
	}
	user, err := deps.Users.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, deps.Errors.Unauthorized
		}
		return nil, storeFailure(deps.Errors, err)
	}
	if !user.Active() {
		return nil, deps.Errors.Unauthorized
	}
	if user.TenantID != tenantID {
		return nil, deps.Errors.PermissionDenied
	}
	return user, nil
}

func authorizeRoles(ctx context.Context, h Hooks, userID, tenantID string, required []string, op string, deps AuthorizeDeps) error {
	deny := func(err error, reason string) error {
		h.MetricInc(deps.Metrics.Denied)
		meta := map[string]string{"reason": reason}
		if op != "" {
			meta["operation"] = op
		}
		h.Audit(ctx, AuditRecord{
			Type:     deps.Denied,
			UserID:   userID,
			TenantID: tenantID,
			Err:      err,
			Meta:     meta,
		})
		return err
	}

	if _, err := member(ctx, userID, tenantID, deps); err != nil {
		if errors.Is(err, deps.Errors.PermissionDenied) {
			return deny(err, "tenant_mismatch")
		}
		if errors.Is(err, deps.Errors.Unauthorized) {
			return deny(err, "not_a_member")
		}
		return err
	}

	roles, err := EffectiveRoles(ctx, userID, tenantID, deps.Roles)
	if err != nil {
		return storeFailure(deps.Errors, err)
	}
	held := make([]string, 0, len(roles))
	for _, r := range roles {
		held = append(held, r.Name)
	}
	if !permission.HasAnyRole(held, required) {
		return deny(deps.Errors.PermissionDenied, "missing_role")
	}

	h.MetricInc(deps.Metrics.Allowed)
	return nil
}
