package middleware

import (
	"net/http"

	"github.com/MrEthical07/tenantguard"
)

// RequireOperation evaluates the engine's operation table for op. Public
// operations pass without a user; everything else needs Guard upstream.
// The tenant is the resolved request tenant, or the user's own tenant when
// none was resolved.
func RequireOperation(engine *tenantguard.Engine, op string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, tenantID := subject(r)
			if err := engine.AuthorizeOperation(r.Context(), userID, tenantID, op); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRoles admits callers holding at least one of roles in the request
// tenant.
func RequireRoles(engine *tenantguard.Engine, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, tenantID := subject(r)
			if userID == "" {
				WriteError(w, tenantguard.ErrUnauthorized)
				return
			}
			if err := engine.Authorize(r.Context(), userID, tenantID, roles...); err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func subject(r *http.Request) (userID, tenantID string) {
	if u, ok := UserFromContext(r.Context()); ok {
		userID = u.ID
		tenantID = u.TenantID
	}
	if t, ok := TenantFromContext(r.Context()); ok {
		tenantID = t.ID
	}
	return userID, tenantID
}
