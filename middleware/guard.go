package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/tenantguard"
)

type userContextKey struct{}

// UserFromContext returns the user authenticated by Guard.
func UserFromContext(ctx context.Context) (*tenantguard.User, bool) {
	u, ok := ctx.Value(userContextKey{}).(*tenantguard.User)
	return u, ok && u != nil
}

// Guard requires a bearer access token. The token must belong to an ACTIVE
// user and, when TenantResolver attached a tenant, to that tenant.
func Guard(engine *tenantguard.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				WriteError(w, tenantguard.ErrUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				WriteError(w, tenantguard.ErrUnauthorized)
				return
			}

			var tenantID string
			if t, ok := TenantFromContext(r.Context()); ok {
				tenantID = t.ID
			}

			user, err := engine.Authenticate(r.Context(), token, tenantID)
			if err != nil {
				WriteError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey{}, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ClientInfo records the caller's address and user agent for audit events
// and IP throttling.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := r.RemoteAddr
		if h, _, err := net.SplitHostPort(ip); err == nil {
			ip = h
		}
		ctx := tenantguard.WithClientIP(r.Context(), ip)
		ctx = tenantguard.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WriteError answers with {"error": msg} and the status mapped from err.
func WriteError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(tenantguard.HTTPStatus(err))
	_ = json.NewEncoder(w).Encode(map[string]string{"error": tenantguard.PublicMessage(err)})
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
