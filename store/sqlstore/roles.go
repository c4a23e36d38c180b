package sqlstore

import (
	"context"
	"fmt"

	"github.com/MrEthical07/tenantguard/internal/ids"
	"github.com/MrEthical07/tenantguard/internal/model"
)

func (s *Store) CreateRole(ctx context.Context, role *model.Role) error {
	if role.ID == "" {
		role.ID = ids.New()
	}
	role.CreatedAt = nowOr(role.CreatedAt)

	_, err := s.exec(ctx, `INSERT INTO roles (id, tenant_id, name, description, permissions, is_system_role, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		role.ID,
		role.TenantID,
		role.Name,
		role.Description,
		encodeStrings(role.Permissions),
		role.IsSystemRole,
		toMillis(role.CreatedAt),
	)
	return mapErr(err)
}

func (s *Store) FindRoleByName(ctx context.Context, tenantID, name string) (*model.Role, error) {
	var (
		role        model.Role
		permissions string
		createdAt   int64
	)
	err := s.queryRow(ctx, `SELECT id, tenant_id, name, description, permissions, is_system_role, created_at
FROM roles WHERE tenant_id = ? AND name = ?`, tenantID, name).Scan(
		&role.ID, &role.TenantID, &role.Name, &role.Description, &permissions, &role.IsSystemRole, &createdAt)
	if err != nil {
		return nil, mapErr(err)
	}
	role.Permissions = decodeStrings(permissions)
	role.CreatedAt = fromMillis(createdAt)
	return &role, nil
}

// CreateRoleAssignment links a user to an existing role. A missing role is
// model.ErrNotFound.
func (s *Store) CreateRoleAssignment(ctx context.Context, assignment *model.RoleAssignment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return mapErr(fmt.Errorf("start transaction: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var roleTenant string
	if err := tx.QueryRowContext(ctx, s.rebind(`SELECT tenant_id FROM roles WHERE id = ?`), assignment.RoleID).Scan(&roleTenant); err != nil {
		return mapErr(err)
	}

	if assignment.ID == "" {
		assignment.ID = ids.New()
	}
	if assignment.TenantID == "" {
		assignment.TenantID = roleTenant
	}
	assignment.CreatedAt = nowOr(assignment.CreatedAt)

	_, err = tx.ExecContext(ctx, s.rebind(`INSERT INTO role_assignments (id, user_id, role_id, tenant_id, account_id, assigned_by, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`),
		assignment.ID,
		assignment.UserID,
		assignment.RoleID,
		assignment.TenantID,
		assignment.AccountID,
		assignment.AssignedBy,
		toMillis(assignment.CreatedAt),
	)
	if err != nil {
		return mapErr(err)
	}
	return mapErr(tx.Commit())
}

// FindRoleAssignmentsForUser joins each assignment with its role and keeps
// only roles owned by tenantID.
func (s *Store) FindRoleAssignmentsForUser(ctx context.Context, userID, tenantID string) ([]model.RoleAssignment, error) {
	rows, err := s.query(ctx, `SELECT ra.id, ra.user_id, ra.role_id, ra.tenant_id, ra.account_id, ra.assigned_by, ra.created_at,
    r.id, r.tenant_id, r.name, r.description, r.permissions, r.is_system_role, r.created_at
FROM role_assignments ra
JOIN roles r ON r.id = ra.role_id
WHERE ra.user_id = ? AND r.tenant_id = ?
ORDER BY ra.created_at, ra.id`, userID, tenantID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []model.RoleAssignment
	for rows.Next() {
		var (
			a             model.RoleAssignment
			permissions   string
			createdAt     int64
			roleCreatedAt int64
		)
		if err := rows.Scan(
			&a.ID, &a.UserID, &a.RoleID, &a.TenantID, &a.AccountID, &a.AssignedBy, &createdAt,
			&a.Role.ID, &a.Role.TenantID, &a.Role.Name, &a.Role.Description, &permissions, &a.Role.IsSystemRole, &roleCreatedAt,
		); err != nil {
			return nil, mapErr(err)
		}
		a.CreatedAt = fromMillis(createdAt)
		a.Role.Permissions = decodeStrings(permissions)
		a.Role.CreatedAt = fromMillis(roleCreatedAt)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}
