package sqlstore

import (
	"context"
	"time"

	"github.com/MrEthical07/tenantguard/internal/ids"
	"github.com/MrEthical07/tenantguard/internal/model"
)

const sessionColumns = `id, user_id, tenant_id, access_token_hash, refresh_token_hash, expires_at, is_active, created_at, updated_at`

func (s *Store) CreateSession(ctx context.Context, session *model.Session) error {
	if session.ID == "" {
		session.ID = ids.New()
	}
	session.CreatedAt = nowOr(session.CreatedAt)
	session.UpdatedAt = nowOr(session.UpdatedAt)

	_, err := s.exec(ctx, `INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID,
		session.UserID,
		session.TenantID,
		session.AccessTokenHash,
		session.RefreshTokenHash,
		toMillis(session.ExpiresAt),
		session.IsActive,
		toMillis(session.CreatedAt),
		toMillis(session.UpdatedAt),
	)
	return mapErr(err)
}

func (s *Store) FindSessionByRefreshToken(ctx context.Context, refreshHash string) (*model.Session, error) {
	var (
		sess      model.Session
		expiresAt int64
		createdAt int64
		updatedAt int64
	)
	err := s.queryRow(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE refresh_token_hash = ?`, refreshHash).Scan(
		&sess.ID,
		&sess.UserID,
		&sess.TenantID,
		&sess.AccessTokenHash,
		&sess.RefreshTokenHash,
		&expiresAt,
		&sess.IsActive,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, mapErr(err)
	}
	sess.ExpiresAt = fromMillis(expiresAt)
	sess.CreatedAt = fromMillis(createdAt)
	sess.UpdatedAt = fromMillis(updatedAt)
	return &sess, nil
}

// RotateSession swaps token digests only while the row still holds the old
// refresh digest and is active and unexpired. Concurrent callers race on
// the WHERE clause; the loser sees zero affected rows.
func (s *Store) RotateSession(ctx context.Context, rot model.SessionRotation) error {
	return s.execOne(ctx, `UPDATE sessions
SET access_token_hash = ?, refresh_token_hash = ?, expires_at = ?, updated_at = ?
WHERE id = ? AND refresh_token_hash = ? AND is_active = ? AND expires_at > ?`,
		rot.NewAccessHash,
		rot.NewRefreshHash,
		toMillis(rot.ExpiresAt),
		toMillis(rot.Now),
		rot.SessionID,
		rot.OldRefreshHash,
		true,
		toMillis(rot.Now),
	)
}

func (s *Store) DeactivateSessions(ctx context.Context, userID, refreshHash string) (int64, error) {
	res, err := s.exec(ctx, `UPDATE sessions SET is_active = ?, updated_at = ?
WHERE user_id = ? AND refresh_token_hash = ? AND is_active = ?`,
		false, toMillis(time.Now()), userID, refreshHash, true)
	if err != nil {
		return 0, mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapErr(err)
	}
	return n, nil
}
