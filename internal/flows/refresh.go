package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/tenantguard/internal/model"
	"github.com/MrEthical07/tenantguard/jwt"
	"github.com/MrEthical07/tenantguard/session"
)

// SessionRotator is the session manager surface used by refresh.
type SessionRotator interface {
	Lookup(ctx context.Context, refreshToken string) (*model.Session, *jwt.Claims, error)
	Rotate(ctx context.Context, sess *model.Session, oldRefreshToken string, next jwt.Pair) error
}

// RefreshMetrics carries metric IDs used by the refresh flow.
type RefreshMetrics struct {
	Success int
	Failure int
}

// RefreshEvents carries audit event names used by the refresh flow.
type RefreshEvents struct {
	Success string
	Failure string
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Hooks

	Sessions  SessionRotator
	Users     model.UserStore
	IssuePair func(userID, email, tenantID string) (jwt.Pair, error)
	ExpiresIn int64

	Metrics RefreshMetrics
	Events  RefreshEvents
	Errors  Errors
}

// RunRefresh trades a refresh token for a new pair. The session row is
// swapped with a compare-and-swap on the old token digest, so a token can
// be spent at most once.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) (*AuthResult, error) {
	h := deps.Hooks.withDefaults()
	if deps.Sessions == nil || deps.Users == nil || deps.IssuePair == nil {
		return nil, deps.Errors.EngineNotReady
	}

	fail := func(sess *model.Session, reason string, err error) (*AuthResult, error) {
		rec := AuditRecord{Type: deps.Events.Failure, Err: err, Meta: map[string]string{"reason": reason}}
		if sess != nil {
			rec.UserID, rec.TenantID, rec.SessionID = sess.UserID, sess.TenantID, sess.ID
		}
		h.MetricInc(deps.Metrics.Failure)
		h.Audit(ctx, rec)
		return nil, err
	}

	sess, _, err := deps.Sessions.Lookup(ctx, refreshToken)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrInvalidToken):
			return fail(nil, "token_invalid", deps.Errors.TokenInvalid)
		case errors.Is(err, session.ErrInvalidSession):
			return fail(nil, "session_invalid", deps.Errors.SessionInvalid)
		default:
			return nil, storeFailure(deps.Errors, err)
		}
	}

	user, err := deps.Users.FindUserByID(ctx, sess.UserID)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return fail(sess, "user_not_found", deps.Errors.SessionInvalid)
		}
		return nil, storeFailure(deps.Errors, err)
	}
	if !user.Active() || user.TenantID != sess.TenantID {
		return fail(sess, "user_inactive", deps.Errors.SessionInvalid)
	}

	next, err := deps.IssuePair(user.ID, user.Email, user.TenantID)
	if err != nil {
		return nil, err
	}
	if err := deps.Sessions.Rotate(ctx, sess, refreshToken, next); err != nil {
		if errors.Is(err, session.ErrInvalidSession) {
			return fail(sess, "rotation_lost", deps.Errors.SessionInvalid)
		}
		return nil, storeFailure(deps.Errors, err)
	}

	h.MetricInc(deps.Metrics.Success)
	h.Audit(ctx, AuditRecord{
		Type:      deps.Events.Success,
		Success:   true,
		UserID:    user.ID,
		TenantID:  user.TenantID,
		SessionID: sess.ID,
	})

	return &AuthResult{
		User: user,
		Tokens: Tokens{
			AccessToken:  next.AccessToken,
			RefreshToken: next.RefreshToken,
			ExpiresIn:    deps.ExpiresIn,
			SessionID:    sess.ID,
		},
	}, nil
}
