// Package seed provisions the demo tenants, roles and users into any store
// that can create them.
package seed

import (
	"context"
	"fmt"

	"github.com/MrEthical07/tenantguard/internal/model"
)

// Writer is the provisioning surface a store exposes in addition to
// model.CredentialStore.
type Writer interface {
	CreateTenant(ctx context.Context, tenant *model.Tenant) error
	CreateUser(ctx context.Context, user *model.User) error
	CreateRole(ctx context.Context, role *model.Role) error
	CreateRoleAssignment(ctx context.Context, assignment *model.RoleAssignment) error
}

// HashFunc produces a stored password hash.
type HashFunc func(password string) (string, error)

// Result names the records created by Demo.
type Result struct {
	DemoTenant  *model.Tenant
	AcmeTenant  *model.Tenant
	AdminUser   *model.User
	DemoUser    *model.User
	OwnerUser   *model.User
	RolesByName map[string]*model.Role
}

type roleDef struct {
	name        string
	description string
	permissions []string
}

var demoRoles = []roleDef{
	{"Organization Admin", "Full access to organization and all accounts", []string{"org:*", "account:*", "user:*", "role:*", "idp:*", "audit:read"}},
	{"Account Admin", "Full access to specific accounts", []string{"account:manage", "user:manage", "role:assign"}},
	{"Developer", "Access to development resources", []string{"resource:read", "resource:write", "account:read"}},
	{"Employee", "Standard employee access", []string{"resource:read", "account:read", "profile:manage"}},
	{"Read Only", "Read-only access to resources", []string{"resource:read", "account:read"}},
}

var acmeRoles = []roleDef{
	{"Owner", "Full access to everything", []string{"*"}},
	{"Employee", "Standard employee access", []string{"resource:read", "resource:write", "profile:manage"}},
}

// Demo creates the demo-corp and acme-startup tenants.
func Demo(ctx context.Context, w Writer, hash HashFunc) (*Result, error) {
	res := &Result{RolesByName: make(map[string]*model.Role)}

	res.DemoTenant = &model.Tenant{
		Slug:     "demo-corp",
		Name:     "Demo Corporation",
		Status:   model.TenantActive,
		Plan:     "enterprise",
		MaxUsers: 1000,
		MaxOrgs:  5,
		Settings: model.TenantSettings{
			AllowSelfSignup:          true,
			PasswordMinLength:        8,
			SelfSignupDomains:        []string{"demo-corp.com", "gmail.com"},
			DefaultRole:              "Employee",
			RequireEmailVerification: true,
		},
	}
	if err := w.CreateTenant(ctx, res.DemoTenant); err != nil {
		return nil, fmt.Errorf("create tenant demo-corp: %w", err)
	}

	for _, def := range demoRoles {
		role, err := createRole(ctx, w, res.DemoTenant.ID, def)
		if err != nil {
			return nil, err
		}
		res.RolesByName[def.name] = role
	}

	var err error
	res.AdminUser, err = createUser(ctx, w, hash, &model.User{
		TenantID:        res.DemoTenant.ID,
		Email:           "admin@demo-corp.com",
		FirstName:       "System",
		LastName:        "Administrator",
		IsEmailVerified: true,
		IsBreakGlass:    true,
	}, "AdminPassword123!")
	if err != nil {
		return nil, err
	}
	res.DemoUser, err = createUser(ctx, w, hash, &model.User{
		TenantID:        res.DemoTenant.ID,
		Email:           "user@demo-corp.com",
		FirstName:       "Demo",
		LastName:        "User",
		IsEmailVerified: true,
	}, "UserPassword123!")
	if err != nil {
		return nil, err
	}

	if err := assign(ctx, w, res.AdminUser, res.RolesByName["Organization Admin"], res.AdminUser.ID); err != nil {
		return nil, err
	}
	if err := assign(ctx, w, res.DemoUser, res.RolesByName["Developer"], res.AdminUser.ID); err != nil {
		return nil, err
	}

	res.AcmeTenant = &model.Tenant{
		Slug:     "acme-startup",
		Name:     "ACME Startup",
		Status:   model.TenantActive,
		Plan:     "basic",
		MaxUsers: 10,
		MaxOrgs:  1,
		Settings: model.TenantSettings{
			AllowSelfSignup:   true,
			PasswordMinLength: 6,
		},
	}
	if err := w.CreateTenant(ctx, res.AcmeTenant); err != nil {
		return nil, fmt.Errorf("create tenant acme-startup: %w", err)
	}
	var owner *model.Role
	for _, def := range acmeRoles {
		role, err := createRole(ctx, w, res.AcmeTenant.ID, def)
		if err != nil {
			return nil, err
		}
		if def.name == "Owner" {
			owner = role
		}
	}
	res.OwnerUser, err = createUser(ctx, w, hash, &model.User{
		TenantID:        res.AcmeTenant.ID,
		Email:           "owner@acme-startup.com",
		FirstName:       "John",
		LastName:        "Owner",
		IsEmailVerified: true,
		IsBreakGlass:    true,
	}, "OwnerPassword123!")
	if err != nil {
		return nil, err
	}
	if err := assign(ctx, w, res.OwnerUser, owner, res.OwnerUser.ID); err != nil {
		return nil, err
	}

	return res, nil
}

func createRole(ctx context.Context, w Writer, tenantID string, def roleDef) (*model.Role, error) {
	role := &model.Role{
		TenantID:     tenantID,
		Name:         def.name,
		Description:  def.description,
		Permissions:  def.permissions,
		IsSystemRole: true,
	}
	if err := w.CreateRole(ctx, role); err != nil {
		return nil, fmt.Errorf("create role %s: %w", def.name, err)
	}
	return role, nil
}

func createUser(ctx context.Context, w Writer, hash HashFunc, user *model.User, password string) (*model.User, error) {
	h, err := hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password for %s: %w", user.Email, err)
	}
	user.PasswordHash = h
	user.Status = model.UserActive
	if err := w.CreateUser(ctx, user); err != nil {
		return nil, fmt.Errorf("create user %s: %w", user.Email, err)
	}
	return user, nil
}

func assign(ctx context.Context, w Writer, user *model.User, role *model.Role, by string) error {
	err := w.CreateRoleAssignment(ctx, &model.RoleAssignment{
		UserID:     user.ID,
		RoleID:     role.ID,
		TenantID:   user.TenantID,
		AssignedBy: by,
	})
	if err != nil {
		return fmt.Errorf("assign %s to %s: %w", role.Name, user.Email, err)
	}
	return nil
}
