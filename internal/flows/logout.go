package flows

import "context"

// SessionRevoker is the session manager surface used by logout.
type SessionRevoker interface {
	Logout(ctx context.Context, userID, refreshToken string) error
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Hooks

	Sessions     SessionRevoker
	MetricLogout int
	Event        string
	Errors       Errors
}

// RunLogout deactivates the user's session for refreshToken. Repeating it or
// naming an unknown session still succeeds.
func RunLogout(ctx context.Context, userID, refreshToken string, deps LogoutDeps) error {
	h := deps.Hooks.withDefaults()
	if deps.Sessions == nil {
		return deps.Errors.EngineNotReady
	}
	if userID == "" {
		return deps.Errors.Unauthorized
	}

	if err := deps.Sessions.Logout(ctx, userID, refreshToken); err != nil {
		return storeFailure(deps.Errors, err)
	}

	h.MetricInc(deps.MetricLogout)
	h.Audit(ctx, AuditRecord{Type: deps.Event, Success: true, UserID: userID})
	return nil
}
