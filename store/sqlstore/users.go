package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/MrEthical07/tenantguard/internal/ids"
	"github.com/MrEthical07/tenantguard/internal/model"
)

const userColumns = `id, tenant_id, email, password_hash, first_name, last_name, status,
    is_email_verified, is_break_glass, mfa_enabled, mfa_secret, backup_code_hashes,
    temp_mfa_setup, last_login_at, login_count, created_at, updated_at`

// CreateUser inserts user. Emails are stored lower-cased; a second user with
// the same (tenant, email) yields model.ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	if user.ID == "" {
		user.ID = ids.New()
	}
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	user.CreatedAt = nowOr(user.CreatedAt)
	user.UpdatedAt = nowOr(user.UpdatedAt)

	setup, err := encodeSetup(user.TempMFASetup)
	if err != nil {
		return err
	}
	var lastLogin sql.NullInt64
	if user.LastLoginAt != nil {
		lastLogin = sql.NullInt64{Int64: toMillis(*user.LastLoginAt), Valid: true}
	}

	_, err = s.exec(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		user.ID,
		user.TenantID,
		user.Email,
		user.PasswordHash,
		user.FirstName,
		user.LastName,
		string(user.Status),
		user.IsEmailVerified,
		user.IsBreakGlass,
		user.MFAEnabled,
		user.MFASecret,
		encodeStrings(user.BackupCodeHashes),
		setup,
		lastLogin,
		user.LoginCount,
		toMillis(user.CreatedAt),
		toMillis(user.UpdatedAt),
	)
	return mapErr(err)
}

func (s *Store) FindUserByTenantAndEmail(ctx context.Context, tenantID, email string) (*model.User, error) {
	row := s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE tenant_id = ? AND email = ?`,
		tenantID, strings.ToLower(strings.TrimSpace(email)))
	return scanUser(row)
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	row := s.queryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

func (s *Store) CountUsersByTenant(ctx context.Context, tenantID string) (int, error) {
	var n int
	if err := s.queryRow(ctx, `SELECT COUNT(*) FROM users WHERE tenant_id = ?`, tenantID).Scan(&n); err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}

func (s *Store) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	return s.execOne(ctx, `UPDATE users SET last_login_at = ?, login_count = login_count + 1, updated_at = ? WHERE id = ?`,
		toMillis(at), toMillis(at), userID)
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, hash string) error {
	return s.execOne(ctx, `UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?`,
		hash, toMillis(time.Now()), userID)
}

func (s *Store) SetMFASetup(ctx context.Context, userID string, state *model.MFAEnrollmentState) error {
	setup, err := encodeSetup(state)
	if err != nil {
		return err
	}
	return s.execOne(ctx, `UPDATE users SET temp_mfa_setup = ?, updated_at = ? WHERE id = ?`,
		setup, toMillis(time.Now()), userID)
}

func (s *Store) ClearMFASetup(ctx context.Context, userID string) error {
	return s.execOne(ctx, `UPDATE users SET temp_mfa_setup = NULL, updated_at = ? WHERE id = ?`,
		toMillis(time.Now()), userID)
}

func (s *Store) EnableMFA(ctx context.Context, userID, secret string, backupCodeHashes []string) error {
	return s.execOne(ctx, `UPDATE users
SET mfa_enabled = ?, mfa_secret = ?, backup_code_hashes = ?, temp_mfa_setup = NULL, updated_at = ?
WHERE id = ? AND mfa_enabled = ?`,
		true, secret, encodeStrings(backupCodeHashes), toMillis(time.Now()), userID, false)
}

// SetUserStatus changes a user's lifecycle status.
func (s *Store) SetUserStatus(ctx context.Context, userID string, status model.UserStatus) error {
	return s.execOne(ctx, `UPDATE users SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), toMillis(time.Now()), userID)
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u         model.User
		status    string
		backup    string
		setup     sql.NullString
		lastLogin sql.NullInt64
		createdAt int64
		updatedAt int64
	)
	err := row.Scan(
		&u.ID,
		&u.TenantID,
		&u.Email,
		&u.PasswordHash,
		&u.FirstName,
		&u.LastName,
		&status,
		&u.IsEmailVerified,
		&u.IsBreakGlass,
		&u.MFAEnabled,
		&u.MFASecret,
		&backup,
		&setup,
		&lastLogin,
		&u.LoginCount,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}

	u.Status = model.UserStatus(status)
	u.BackupCodeHashes = decodeStrings(backup)
	if setup.Valid && setup.String != "" {
		var state model.MFAEnrollmentState
		if err := json.Unmarshal([]byte(setup.String), &state); err == nil {
			u.TempMFASetup = &state
		}
	}
	if lastLogin.Valid {
		at := fromMillis(lastLogin.Int64)
		u.LastLoginAt = &at
	}
	u.CreatedAt = fromMillis(createdAt)
	u.UpdatedAt = fromMillis(updatedAt)
	return &u, nil
}

func encodeSetup(state *model.MFAEnrollmentState) (sql.NullString, error) {
	if state == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(state)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func encodeStrings(values []string) string {
	if len(values) == 0 {
		return "[]"
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func decodeStrings(raw string) []string {
	var out []string
	if raw == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
