package sqlstore

import (
	"context"
	"encoding/json"

	"github.com/MrEthical07/tenantguard/internal/ids"
	"github.com/MrEthical07/tenantguard/internal/model"
)

func (s *Store) CreateAuditLog(ctx context.Context, entry *model.AuditLog) error {
	if entry.ID == "" {
		entry.ID = ids.New()
	}
	entry.CreatedAt = nowOr(entry.CreatedAt)
	details := "{}"
	if len(entry.Details) > 0 {
		if data, err := json.Marshal(entry.Details); err == nil {
			details = string(data)
		}
	}

	_, err := s.exec(ctx, `INSERT INTO audit_logs (id, tenant_id, user_id, action, resource, resource_id, success, ip_address, user_agent, details, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.TenantID,
		entry.UserID,
		entry.Action,
		entry.Resource,
		entry.ResourceID,
		entry.Success,
		entry.IPAddress,
		entry.UserAgent,
		details,
		toMillis(entry.CreatedAt),
	)
	return mapErr(err)
}

// AuditLogs returns the newest entries for tenantID, newest first.
func (s *Store) AuditLogs(ctx context.Context, tenantID string, limit int) ([]model.AuditLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.query(ctx, `SELECT id, tenant_id, user_id, action, resource, resource_id, success, ip_address, user_agent, details, created_at
FROM audit_logs WHERE tenant_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, tenantID, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []model.AuditLog
	for rows.Next() {
		var (
			e         model.AuditLog
			details   string
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.TenantID, &e.UserID, &e.Action, &e.Resource, &e.ResourceID, &e.Success,
			&e.IPAddress, &e.UserAgent, &details, &createdAt); err != nil {
			return nil, mapErr(err)
		}
		if details != "" && details != "{}" {
			_ = json.Unmarshal([]byte(details), &e.Details)
		}
		e.CreatedAt = fromMillis(createdAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}
