package model

import (
	"encoding/json"
	"strings"
	"time"
)

// TenantStatus is the lifecycle state of a tenant.
type TenantStatus string

const (
	TenantActive    TenantStatus = "ACTIVE"
	TenantSuspended TenantStatus = "SUSPENDED"
	TenantInactive  TenantStatus = "INACTIVE"
)

// UserStatus is the lifecycle state of a user.
type UserStatus string

const (
	UserActive    UserStatus = "ACTIVE"
	UserSuspended UserStatus = "SUSPENDED"
	UserDeleted   UserStatus = "DELETED"
)

// TenantSettings is the typed form of the tenant settings document. It is
// decoded once at the store boundary; unknown keys are ignored.
type TenantSettings struct {
	AllowSelfSignup          bool     `json:"allowSelfSignup"`
	RequireMFA               bool     `json:"requireMfa"`
	PasswordMinLength        int      `json:"passwordMinLength,omitempty"`
	SelfSignupDomains        []string `json:"selfSignupDomains,omitempty"`
	DefaultRole              string   `json:"defaultRole,omitempty"`
	RequireEmailVerification bool     `json:"requireEmailVerification"`
}

// ParseTenantSettings decodes a settings document. Empty or malformed input
// yields zero settings, which deny self signup.
func ParseTenantSettings(raw []byte) TenantSettings {
	var s TenantSettings
	if len(raw) == 0 {
		return s
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return TenantSettings{}
	}
	return s
}

// Encode renders settings for storage.
func (s TenantSettings) Encode() []byte {
	data, err := json.Marshal(s)
	if err != nil {
		return []byte("{}")
	}
	return data
}

// AllowsDomain reports whether email may self-register. An empty domain list
// allows any domain.
func (s TenantSettings) AllowsDomain(email string) bool {
	if len(s.SelfSignupDomains) == 0 {
		return true
	}
	at := strings.LastIndexByte(email, '@')
	if at < 0 || at == len(email)-1 {
		return false
	}
	domain := strings.ToLower(email[at+1:])
	for _, d := range s.SelfSignupDomains {
		if strings.EqualFold(strings.TrimSpace(d), domain) {
			return true
		}
	}
	return false
}

type Tenant struct {
	ID        string
	Slug      string
	Name      string
	Status    TenantStatus
	Plan      string
	MaxUsers  int
	MaxOrgs   int
	Settings  TenantSettings
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (t *Tenant) Active() bool {
	return t != nil && t.Status == TenantActive
}

type User struct {
	ID               string
	TenantID         string
	Email            string
	PasswordHash     string
	FirstName        string
	LastName         string
	Status           UserStatus
	IsEmailVerified  bool
	IsBreakGlass     bool
	MFAEnabled       bool
	MFASecret        string
	BackupCodeHashes []string
	TempMFASetup     *MFAEnrollmentState
	LastLoginAt      *time.Time
	LoginCount       int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (u *User) Active() bool {
	return u != nil && u.Status == UserActive
}

// Session tracks one refresh-token lineage. Token values are held as
// SHA-256 hex digests.
type Session struct {
	ID               string
	UserID           string
	TenantID         string
	AccessTokenHash  string
	RefreshTokenHash string
	ExpiresAt        time.Time
	IsActive         bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Usable reports whether the session may still mint tokens at now.
func (s *Session) Usable(now time.Time) bool {
	return s != nil && s.IsActive && now.Before(s.ExpiresAt)
}

type Role struct {
	ID           string
	TenantID     string
	Name         string
	Description  string
	Permissions  []string
	IsSystemRole bool
	CreatedAt    time.Time
}

type RoleAssignment struct {
	ID         string
	UserID     string
	RoleID     string
	TenantID   string
	AccountID  string
	AssignedBy string
	CreatedAt  time.Time
	Role       Role
}

type AuditLog struct {
	ID         string
	TenantID   string
	UserID     string
	Action     string
	Resource   string
	ResourceID string
	Success    bool
	IPAddress  string
	UserAgent  string
	Details    map[string]string
	CreatedAt  time.Time
}

// MFAEnrollmentState is the pending secret material for an unfinished MFA
// enrollment.
type MFAEnrollmentState struct {
	Secret      string    `json:"secret"`
	BackupCodes []string  `json:"backupCodes"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
}

// Expired reports whether an explicit expiry has passed. States without an
// expiry rely on the backend TTL.
func (s *MFAEnrollmentState) Expired(now time.Time) bool {
	if s == nil {
		return true
	}
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}
