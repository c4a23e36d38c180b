package model

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by stores when no record matches.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned by stores on a uniqueness violation.
	ErrDuplicate = errors.New("duplicate record")
	// ErrBackend wraps driver and transport failures.
	ErrBackend = errors.New("store backend failure")
	// ErrCacheMiss is returned by caches when a key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")
)

type TenantStore interface {
	FindTenantBySlug(ctx context.Context, slug string) (*Tenant, error)
	FindTenantByID(ctx context.Context, id string) (*Tenant, error)
}

type UserStore interface {
	FindUserByTenantAndEmail(ctx context.Context, tenantID, email string) (*User, error)
	FindUserByID(ctx context.Context, id string) (*User, error)
	CountUsersByTenant(ctx context.Context, tenantID string) (int, error)
	CreateUser(ctx context.Context, user *User) error
	RecordLogin(ctx context.Context, userID string, at time.Time) error
	UpdatePasswordHash(ctx context.Context, userID, hash string) error
	SetMFASetup(ctx context.Context, userID string, state *MFAEnrollmentState) error
	ClearMFASetup(ctx context.Context, userID string) error
	// EnableMFA sets mfa_enabled, stores the secret and backup code hashes
	// and clears the pending setup in one update conditioned on MFA being
	// disabled. It returns ErrNotFound when no row qualified.
	EnableMFA(ctx context.Context, userID, secret string, backupCodeHashes []string) error
}

// SessionRotation describes a compare-and-swap replacement of a session's
// token values.
type SessionRotation struct {
	SessionID      string
	OldRefreshHash string
	NewAccessHash  string
	NewRefreshHash string
	ExpiresAt      time.Time
	Now            time.Time
}

type SessionStore interface {
	CreateSession(ctx context.Context, session *Session) error
	FindSessionByRefreshToken(ctx context.Context, refreshHash string) (*Session, error)
	// RotateSession applies rot only if the row still holds OldRefreshHash,
	// is active and unexpired at rot.Now. Otherwise it returns ErrNotFound.
	RotateSession(ctx context.Context, rot SessionRotation) error
	DeactivateSessions(ctx context.Context, userID, refreshHash string) (int64, error)
}

type RoleStore interface {
	// FindRoleAssignmentsForUser returns assignments whose role belongs to
	// tenantID.
	FindRoleAssignmentsForUser(ctx context.Context, userID, tenantID string) ([]RoleAssignment, error)
	FindRoleByName(ctx context.Context, tenantID, name string) (*Role, error)
	CreateRoleAssignment(ctx context.Context, assignment *RoleAssignment) error
}

type AuditStore interface {
	CreateAuditLog(ctx context.Context, entry *AuditLog) error
}

// CredentialStore is the durable source of truth.
type CredentialStore interface {
	TenantStore
	UserStore
	SessionStore
	RoleStore
	AuditStore
}

// Cache is an optional low-latency key/value store with TTL. Every call may
// fail.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}
