package tenantguard

import (
	"github.com/MrEthical07/tenantguard/internal/model"
)

// Tenant is the resolved tenant record. See [Engine.ResolveTenant].
type Tenant = model.Tenant

// TenantSettings is the typed tenant policy document.
type TenantSettings = model.TenantSettings

// User is the stored user record.
type User = model.User

// Session is one refresh-token lineage.
type Session = model.Session

// Role is a named permission set owned by one tenant.
type Role = model.Role

// RoleAssignment links a user to a role.
type RoleAssignment = model.RoleAssignment

// AuditLog is the durable form of an audit event.
type AuditLog = model.AuditLog

// MFAEnrollmentState is pending secret material for an unfinished enrollment.
type MFAEnrollmentState = model.MFAEnrollmentState

// CredentialStore is the durable source of truth the engine is built on.
// store/memstore and store/sqlstore provide implementations.
//
//	Docs: store/memstore, store/sqlstore
type CredentialStore = model.CredentialStore

// Cache is an optional low-latency key/value store with TTL.
type Cache = model.Cache

const (
	TenantActive    = model.TenantActive
	TenantSuspended = model.TenantSuspended
	TenantInactive  = model.TenantInactive

	UserActive    = model.UserActive
	UserSuspended = model.UserSuspended
	UserDeleted   = model.UserDeleted
)

// RegisterRequest defines a public type used by tenantguard APIs.
//
// RegisterRequest instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type RegisterRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	TenantSlug string `json:"tenantSlug"`
}

// LoginRequest defines a public type used by tenantguard APIs.
//
// MFACode is required only for users with MFA enabled.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	TenantSlug string `json:"tenantSlug"`
	MFACode    string `json:"mfaCode,omitempty"`
}

// PublicUser is the user view returned to callers. It never carries
// credential material.
type PublicUser struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	TenantID   string `json:"tenantId"`
	MFAEnabled bool   `json:"mfaEnabled"`
}

// NewPublicUser projects a stored user.
func NewPublicUser(u *User) PublicUser {
	if u == nil {
		return PublicUser{}
	}
	return PublicUser{
		ID:         u.ID,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		TenantID:   u.TenantID,
		MFAEnabled: u.MFAEnabled,
	}
}

// AuthResponse is returned by [Engine.Register], [Engine.Login] and
// [Engine.Refresh]. ExpiresIn is the access token lifetime in seconds.
type AuthResponse struct {
	User         PublicUser `json:"user"`
	AccessToken  string     `json:"accessToken"`
	RefreshToken string     `json:"refreshToken"`
	ExpiresIn    int64      `json:"expiresIn"`
	SessionID    string     `json:"-"`
}

// MFASetup holds the enrollment material returned by [Engine.SetupMFA].
// Backup codes are shown once here and stored only as hashes.
type MFASetup struct {
	QRCode      string   `json:"qrCode"`
	Secret      string   `json:"secret"`
	BackupCodes []string `json:"backupCodes"`
}
