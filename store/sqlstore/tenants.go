package sqlstore

import (
	"context"
	"strings"

	"github.com/MrEthical07/tenantguard/internal/ids"
	"github.com/MrEthical07/tenantguard/internal/model"
)

const tenantColumns = `id, slug, name, status, plan, max_users, max_orgs, settings, created_at, updated_at`

// CreateTenant inserts tenant, assigning an ID and timestamps when unset.
func (s *Store) CreateTenant(ctx context.Context, tenant *model.Tenant) error {
	if tenant.ID == "" {
		tenant.ID = ids.New()
	}
	tenant.Slug = strings.ToLower(strings.TrimSpace(tenant.Slug))
	tenant.CreatedAt = nowOr(tenant.CreatedAt)
	tenant.UpdatedAt = nowOr(tenant.UpdatedAt)

	_, err := s.exec(ctx, `INSERT INTO tenants (`+tenantColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tenant.ID,
		tenant.Slug,
		tenant.Name,
		string(tenant.Status),
		tenant.Plan,
		tenant.MaxUsers,
		tenant.MaxOrgs,
		string(tenant.Settings.Encode()),
		toMillis(tenant.CreatedAt),
		toMillis(tenant.UpdatedAt),
	)
	return mapErr(err)
}

func (s *Store) FindTenantBySlug(ctx context.Context, slug string) (*model.Tenant, error) {
	row := s.queryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE slug = ?`, strings.ToLower(strings.TrimSpace(slug)))
	return scanTenant(row)
}

func (s *Store) FindTenantByID(ctx context.Context, id string) (*model.Tenant, error) {
	row := s.queryRow(ctx, `SELECT `+tenantColumns+` FROM tenants WHERE id = ?`, id)
	return scanTenant(row)
}

func scanTenant(row rowScanner) (*model.Tenant, error) {
	var (
		t         model.Tenant
		status    string
		settings  string
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&t.ID, &t.Slug, &t.Name, &status, &t.Plan, &t.MaxUsers, &t.MaxOrgs, &settings, &createdAt, &updatedAt); err != nil {
		return nil, mapErr(err)
	}
	t.Status = model.TenantStatus(status)
	t.Settings = model.ParseTenantSettings([]byte(settings))
	t.CreatedAt = fromMillis(createdAt)
	t.UpdatedAt = fromMillis(updatedAt)
	return &t, nil
}
