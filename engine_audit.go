package tenantguard

import (
	"context"

	internalaudit "github.com/MrEthical07/tenantguard/internal/audit"
	"github.com/MrEthical07/tenantguard/internal/flows"
)

func (e *Engine) emitAudit(ctx context.Context, rec flows.AuditRecord) {
	if e == nil || e.audit == nil {
		return
	}

	event := internalaudit.Event{
		Timestamp: e.now().UTC(),
		EventType: rec.Type,
		UserID:    rec.UserID,
		TenantID:  rec.TenantID,
		SessionID: rec.SessionID,
		IP:        ClientIPFromContext(ctx),
		UserAgent: userAgentFromContext(ctx),
		Success:   rec.Success,
		Metadata:  rec.Meta,
	}
	if rec.Err != nil {
		event.Error = auditErrorCode(rec.Err)
	}

	e.audit.Emit(ctx, event)
}

// auditErrorCode renders the failure kind rather than the message so that
// audit rows never carry user input.
func auditErrorCode(err error) string {
	kind := KindOf(err)
	if kind == KindUnknown {
		return "internal_error"
	}
	return kind.String()
}
