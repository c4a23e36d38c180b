package middleware

import (
	"context"
	"log"
	"net"
	"net/http"
	"strings"

	"github.com/MrEthical07/tenantguard"
	"github.com/go-chi/chi/v5"
)

type tenantContextKey struct{}

// WithTenant returns a copy of ctx carrying tenant.
func WithTenant(ctx context.Context, tenant *tenantguard.Tenant) context.Context {
	return context.WithValue(ctx, tenantContextKey{}, tenant)
}

// TenantFromContext returns the tenant attached by TenantResolver, if any.
func TenantFromContext(ctx context.Context) (*tenantguard.Tenant, bool) {
	t, ok := ctx.Value(tenantContextKey{}).(*tenantguard.Tenant)
	return t, ok && t != nil
}

// TenantResolver attaches the active tenant named by the request, checking
// the host subdomain, the tenant header, the chi path parameter and the query
// parameter in that order. The first non-empty candidate wins.
//
// Resolution never rejects a request. Unknown or inactive tenants and
// backend failures leave the context without a tenant; the latter is logged.
func TenantResolver(engine *tenantguard.Engine) func(http.Handler) http.Handler {
	cfg := engine.TenantConfig()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			slug := TenantSlug(r, cfg)
			if slug == "" {
				next.ServeHTTP(w, r)
				return
			}

			tenant, err := engine.ResolveTenant(r.Context(), slug)
			if err != nil {
				log.Printf("tenantguard: tenant resolution failed for %q: %v", slug, err)
				next.ServeHTTP(w, r)
				return
			}
			if tenant == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), tenant)))
		})
	}
}

// TenantSlug extracts the first non-empty tenant slug candidate from r.
func TenantSlug(r *http.Request, cfg tenantguard.TenantConfig) string {
	if slug := subdomain(r.Host, cfg.IgnoredSubdomains); slug != "" {
		return slug
	}
	if cfg.Header != "" {
		if slug := strings.TrimSpace(r.Header.Get(cfg.Header)); slug != "" {
			return slug
		}
	}
	if cfg.PathParam != "" {
		if slug := strings.TrimSpace(chi.URLParam(r, cfg.PathParam)); slug != "" {
			return slug
		}
	}
	if cfg.QueryParam != "" {
		if slug := strings.TrimSpace(r.URL.Query().Get(cfg.QueryParam)); slug != "" {
			return slug
		}
	}
	return ""
}

// subdomain returns the leftmost label of a dotted host name. IP literals,
// single-label hosts and ignored labels yield "".
func subdomain(host string, ignored []string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	if host == "" || net.ParseIP(strings.Trim(host, "[]")) != nil {
		return ""
	}
	label, _, found := strings.Cut(host, ".")
	if !found || label == "" {
		return ""
	}
	for _, skip := range ignored {
		if strings.EqualFold(label, skip) {
			return ""
		}
	}
	return label
}

// RequireTenant rejects requests that reached it without a resolved tenant.
func RequireTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := TenantFromContext(r.Context()); !ok {
			WriteError(w, tenantguard.ErrTenantNotFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
