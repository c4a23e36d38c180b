package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/tenantguard/internal"
	"github.com/MrEthical07/tenantguard/internal/model"
)

func bounded(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// TimeoutCache bounds every cache call. Calls return at the deadline even
// when the client does not honour context deadlines, and a deadline is
// reported as ErrCacheUnavailable so callers fall back instead of failing.
type TimeoutCache struct {
	inner   model.Cache
	timeout time.Duration
}

func NewTimeoutCache(inner model.Cache, timeout time.Duration) *TimeoutCache {
	return &TimeoutCache{inner: inner, timeout: timeout}
}

func (c *TimeoutCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return cacheErr(internal.Bounded(ctx, c.timeout, func(ctx context.Context) error {
		return c.inner.Set(ctx, key, value, ttl)
	}))
}

func (c *TimeoutCache) Get(ctx context.Context, key string) ([]byte, error) {
	var data []byte
	err := internal.Bounded(ctx, c.timeout, func(ctx context.Context) error {
		v, err := c.inner.Get(ctx, key)
		data = v
		return err
	})
	if err != nil {
		return nil, cacheErr(err)
	}
	return data, nil
}

func (c *TimeoutCache) Delete(ctx context.Context, key string) error {
	return cacheErr(internal.Bounded(ctx, c.timeout, func(ctx context.Context) error {
		return c.inner.Delete(ctx, key)
	}))
}

func cacheErr(err error) error {
	if err == nil || errors.Is(err, ErrCacheUnavailable) || errors.Is(err, model.ErrCacheMiss) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %w", ErrCacheUnavailable, err)
	}
	return err
}

// TimeoutStore bounds every credential store call.
type TimeoutStore struct {
	inner   model.CredentialStore
	timeout time.Duration
}

func NewTimeoutStore(inner model.CredentialStore, timeout time.Duration) *TimeoutStore {
	return &TimeoutStore{inner: inner, timeout: timeout}
}

func (s *TimeoutStore) FindTenantBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()
	return s.inner.FindTenantBySlug(ctx, slug)
}

func (s *TimeoutStore) FindTenantByID(ctx context.Context, id string) (*model.Tenant, error) {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()
	return s.inner.FindTenantByID(ctx, id)
}

func (s *TimeoutStore) FindUserByTenantAndEmail(ctx context.Context, tenantID, email string) (*model.User, error) {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()
	return s.inner.FindUserByTenantAndEmail(ctx, tenantID, email)
}

func (s *TimeoutStore) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()
	return s.inner.FindUserByID(ctx, id)
}

func (s *TimeoutStore) CountUsersByTenant(ctx context.Context, tenantID string) (int, error) {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()
	return s.inner.CountUsersByTenant(ctx, tenantID)
}

func (s *TimeoutStore) CreateUser(ctx context.Context, user *model.User) error {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()
	return s.inner.CreateUser(ctx, user)
}

func (s *TimeoutStore) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()
	return s.inner.RecordLogin(ctx, userID, at)
}

func (s *TimeoutStore) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()
	return s.inner.UpdatePasswordHash(ctx, userID, hash)
}

func (s *TimeoutStore) SetMFASetup(ctx context.Context, userID string, state *model.MFAEnrollmentState) error {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()
	return s.inner.SetMFASetup(ctx, userID, state)
}

func (s *TimeoutStore) ClearMFASetup(ctx context.Context, userID string) error {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()
	return s.inner.ClearMFASetup(ctx, userID)
}

func (s *TimeoutStore) EnableMFA(ctx context.Context, userID, secret string, backupCodeHashes []string) error {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()
	return s.inner.EnableMFA(ctx, userID, secret, backupCodeHashes)
}

func (s *TimeoutStore) CreateSession(ctx context.Context, session *model.Session) error {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()
	return s.inner.CreateSession(ctx, session)
}

func (s *TimeoutStore) FindSessionByRefreshToken(ctx context.Context, refreshHash string) (*model.Session, error) {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()
	return s.inner.FindSessionByRefreshToken(ctx, refreshHash)
}

func (s *TimeoutStore) RotateSession(ctx context.Context, rot model.SessionRotation) error {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()
	return s.inner.RotateSession(ctx, rot)
}

func (s *TimeoutStore) DeactivateSessions(ctx context.Context, userID, refreshHash string) (int64, error) {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()
	return s.inner.DeactivateSessions(ctx, userID, refreshHash)
}

func (s *TimeoutStore) FindRoleAssignmentsForUser(ctx context.Context, userID, tenantID string) ([]model.RoleAssignment, error) {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()
	return s.inner.FindRoleAssignmentsForUser(ctx, userID, tenantID)
}

func (s *TimeoutStore) FindRoleByName(ctx context.Context, tenantID, name string) (*model.Role, error) {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()
	return s.inner.FindRoleByName(ctx, tenantID, name)
}

func (s *TimeoutStore) CreateRoleAssignment(ctx context.Context, assignment *model.RoleAssignment) error {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()
	return s.inner.CreateRoleAssignment(ctx, assignment)
}

func (s *TimeoutStore) CreateAuditLog(ctx context.Context, entry *model.AuditLog) error {
	ctx, cancel := bounded(ctx, s.timeout)
	defer cancel()
	return s.inner.CreateAuditLog(ctx, entry)
}

var (
	_ model.Cache           = (*TimeoutCache)(nil)
	_ model.CredentialStore = (*TimeoutStore)(nil)
)
