// Package memstore is an in-memory model.CredentialStore. It backs tests, the
// load generator and single-process demos; data is lost on exit.
package memstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/tenantguard/internal/ids"
	"github.com/MrEthical07/tenantguard/internal/model"
)

// Store is safe for concurrent use. Every mutation happens under one lock,
// which makes RotateSession and EnableMFA atomic.
type Store struct {
	mu          sync.RWMutex
	tenants     map[string]*model.Tenant
	tenantSlugs map[string]string
	users       map[string]*model.User
	sessions    map[string]*model.Session
	roles       map[string]*model.Role
	assignments []*model.RoleAssignment
	auditLogs   []*model.AuditLog
	failWith    error
}

func New() *Store {
	return &Store{
		tenants:     make(map[string]*model.Tenant),
		tenantSlugs: make(map[string]string),
		users:       make(map[string]*model.User),
		sessions:    make(map[string]*model.Session),
		roles:       make(map[string]*model.Role),
	}
}

// InjectError makes every subsequent call fail with err until it is called
// again with nil.
func (s *Store) InjectError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *Store) CreateTenant(_ context.Context, tenant *model.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if _, exists := s.tenantSlugs[tenant.Slug]; exists {
		return model.ErrDuplicate
	}
	if tenant.ID == "" {
		tenant.ID = ids.New()
	}
	now := time.Now()
	tenant.CreatedAt, tenant.UpdatedAt = now, now
	cp := *tenant
	s.tenants[cp.ID] = &cp
	s.tenantSlugs[cp.Slug] = cp.ID
	return nil
}

func (s *Store) FindTenantBySlug(_ context.Context, slug string) (*model.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	id, ok := s.tenantSlugs[slug]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *s.tenants[id]
	return &cp, nil
}

func (s *Store) FindTenantByID(_ context.Context, id string) (*model.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	t, ok := s.tenants[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func copyUser(u *model.User) *model.User {
	cp := *u
	cp.BackupCodeHashes = append([]string(nil), u.BackupCodeHashes...)
	if u.TempMFASetup != nil {
		setup := *u.TempMFASetup
		setup.BackupCodes = append([]string(nil), u.TempMFASetup.BackupCodes...)
		cp.TempMFASetup = &setup
	}
	if u.LastLoginAt != nil {
		at := *u.LastLoginAt
		cp.LastLoginAt = &at
	}
	return &cp
}

func (s *Store) FindUserByTenantAndEmail(_ context.Context, tenantID, email string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	for _, u := range s.users {
		if u.TenantID == tenantID && strings.EqualFold(u.Email, email) {
			return copyUser(u), nil
		}
	}
	return nil, model.ErrNotFound
}

func (s *Store) FindUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	u, ok := s.users[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return copyUser(u), nil
}

func (s *Store) CountUsersByTenant(_ context.Context, tenantID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return 0, s.failWith
	}
	n := 0
	for _, u := range s.users {
		if u.TenantID == tenantID {
			n++
		}
	}
	return n, nil
}

func (s *Store) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	for _, u := range s.users {
		if u.TenantID == user.TenantID && strings.EqualFold(u.Email, user.Email) {
			return model.ErrDuplicate
		}
	}
	if user.ID == "" {
		user.ID = ids.New()
	}
	now := time.Now()
	user.CreatedAt, user.UpdatedAt = now, now
	s.users[user.ID] = copyUser(user)
	return nil
}

func (s *Store) mutateUser(userID string, fn func(u *model.User) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	u, ok := s.users[userID]
	if !ok {
		return model.ErrNotFound
	}
	if err := fn(u); err != nil {
		return err
	}
	u.UpdatedAt = time.Now()
	return nil
}

func (s *Store) RecordLogin(_ context.Context, userID string, at time.Time) error {
	return s.mutateUser(userID, func(u *model.User) error {
		u.LastLoginAt = &at
		u.LoginCount++
		return nil
	})
}

func (s *Store) UpdatePasswordHash(_ context.Context, userID, hash string) error {
	return s.mutateUser(userID, func(u *model.User) error {
		u.PasswordHash = hash
		return nil
	})
}

func (s *Store) SetMFASetup(_ context.Context, userID string, state *model.MFAEnrollmentState) error {
	return s.mutateUser(userID, func(u *model.User) error {
		setup := *state
		setup.BackupCodes = append([]string(nil), state.BackupCodes...)
		u.TempMFASetup = &setup
		return nil
	})
}

func (s *Store) ClearMFASetup(_ context.Context, userID string) error {
	return s.mutateUser(userID, func(u *model.User) error {
		u.TempMFASetup = nil
		return nil
	})
}

func (s *Store) EnableMFA(_ context.Context, userID, secret string, backupCodeHashes []string) error {
	return s.mutateUser(userID, func(u *model.User) error {
		if u.MFAEnabled {
			return model.ErrNotFound
		}
		u.MFAEnabled = true
		u.MFASecret = secret
		u.BackupCodeHashes = append([]string(nil), backupCodeHashes...)
		u.TempMFASetup = nil
		return nil
	})
}

// SetUserStatus changes a user's lifecycle status.
func (s *Store) SetUserStatus(_ context.Context, userID string, status model.UserStatus) error {
	return s.mutateUser(userID, func(u *model.User) error {
		u.Status = status
		return nil
	})
}

func (s *Store) CreateSession(_ context.Context, session *model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if session.ID == "" {
		session.ID = ids.New()
	}
	now := time.Now()
	session.CreatedAt, session.UpdatedAt = now, now
	cp := *session
	s.sessions[cp.ID] = &cp
	return nil
}

func (s *Store) FindSessionByRefreshToken(_ context.Context, refreshHash string) (*model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	for _, sess := range s.sessions {
		if sess.RefreshTokenHash == refreshHash {
			cp := *sess
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

func (s *Store) RotateSession(_ context.Context, rot model.SessionRotation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	sess, ok := s.sessions[rot.SessionID]
	if !ok || sess.RefreshTokenHash != rot.OldRefreshHash || !sess.Usable(rot.Now) {
		return model.ErrNotFound
	}
	sess.AccessTokenHash = rot.NewAccessHash
	sess.RefreshTokenHash = rot.NewRefreshHash
	sess.ExpiresAt = rot.ExpiresAt
	sess.UpdatedAt = rot.Now
	return nil
}

func (s *Store) DeactivateSessions(_ context.Context, userID, refreshHash string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return 0, s.failWith
	}
	var n int64
	for _, sess := range s.sessions {
		if sess.UserID == userID && sess.RefreshTokenHash == refreshHash && sess.IsActive {
			sess.IsActive = false
			sess.UpdatedAt = time.Now()
			n++
		}
	}
	return n, nil
}

// Sessions returns copies of every session of userID ordered by creation.
func (s *Store) Sessions(userID string) []model.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Session
	for _, sess := range s.sessions {
		if sess.UserID == userID {
			out = append(out, *sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) CreateRole(_ context.Context, role *model.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	for _, r := range s.roles {
		if r.TenantID == role.TenantID && r.Name == role.Name {
			return model.ErrDuplicate
		}
	}
	if role.ID == "" {
		role.ID = ids.New()
	}
	role.CreatedAt = time.Now()
	cp := *role
	cp.Permissions = append([]string(nil), role.Permissions...)
	s.roles[cp.ID] = &cp
	return nil
}

func (s *Store) FindRoleByName(_ context.Context, tenantID, name string) (*model.Role, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	for _, r := range s.roles {
		if r.TenantID == tenantID && r.Name == name {
			cp := *r
			cp.Permissions = append([]string(nil), r.Permissions...)
			return &cp, nil
		}
	}
	return nil, model.ErrNotFound
}

func (s *Store) CreateRoleAssignment(_ context.Context, assignment *model.RoleAssignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if _, ok := s.roles[assignment.RoleID]; !ok {
		return model.ErrNotFound
	}
	for _, a := range s.assignments {
		if a.UserID == assignment.UserID && a.RoleID == assignment.RoleID && a.AccountID == assignment.AccountID {
			return model.ErrDuplicate
		}
	}
	if assignment.ID == "" {
		assignment.ID = ids.New()
	}
	assignment.CreatedAt = time.Now()
	cp := *assignment
	cp.Role = model.Role{}
	s.assignments = append(s.assignments, &cp)
	return nil
}

func (s *Store) FindRoleAssignmentsForUser(_ context.Context, userID, tenantID string) ([]model.RoleAssignment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	var out []model.RoleAssignment
	for _, a := range s.assignments {
		if a.UserID != userID {
			continue
		}
		role, ok := s.roles[a.RoleID]
		if !ok || role.TenantID != tenantID {
			continue
		}
		cp := *a
		cp.Role = *role
		cp.Role.Permissions = append([]string(nil), role.Permissions...)
		out = append(out, cp)
	}
	return out, nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry *model.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	cp := *entry
	s.auditLogs = append(s.auditLogs, &cp)
	return nil
}

// AuditLogs returns copies of every stored audit entry.
func (s *Store) AuditLogs() []model.AuditLog {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.AuditLog, 0, len(s.auditLogs))
	for _, e := range s.auditLogs {
		out = append(out, *e)
	}
	return out
}

var _ model.CredentialStore = (*Store)(nil)
