package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MrEthical07/tenantguard"
	"github.com/MrEthical07/tenantguard/password"
	"github.com/MrEthical07/tenantguard/permission"
	"github.com/MrEthical07/tenantguard/store/memstore"
	"github.com/MrEthical07/tenantguard/store/seed"
	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	engine *tenantguard.Engine
	store  *memstore.Store
	demo   *seed.Result
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := memstore.New()
	hasher, err := password.NewBcrypt(password.Config{Cost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	demo, err := seed.Demo(context.Background(), store, hasher.Hash)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	ops := permission.NewTable()
	mustRegister(t, ops, "health", permission.Rule{Public: true})
	mustRegister(t, ops, "profile.read", permission.Rule{})
	mustRegister(t, ops, "audit.read", permission.Rule{Roles: []string{"Organization Admin"}})

	cfg := tenantguard.DefaultConfig()
	cfg.JWT.Secret = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.BcryptCost = bcrypt.MinCost

	engine, err := tenantguard.New().
		WithConfig(cfg).
		WithCredentialStore(store).
		WithOperations(ops).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return &fixture{engine: engine, store: store, demo: demo}
}

func mustRegister(t *testing.T, table *permission.Table, op string, rule permission.Rule) {
	t.Helper()
	if err := table.Register(op, rule); err != nil {
		t.Fatalf("register %s: %v", op, err)
	}
}

func (f *fixture) login(t *testing.T, email, pass, slug string) string {
	t.Helper()
	res, err := f.engine.Login(context.Background(), tenantguard.LoginRequest{
		Email:      email,
		Password:   pass,
		TenantSlug: slug,
	})
	if err != nil {
		t.Fatalf("login %s: %v", email, err)
	}
	return res.AccessToken
}

func (f *fixture) adminToken(t *testing.T) string {
	return f.login(t, "admin@demo-corp.com", "AdminPassword123!", "demo-corp")
}

func (f *fixture) developerToken(t *testing.T) string {
	return f.login(t, "user@demo-corp.com", "UserPassword123!", "demo-corp")
}

func withPathParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body["error"]
}

func TestTenantSlugPrecedence(t *testing.T) {
	cfg := tenantguard.DefaultConfig().Tenant

	tests := []struct {
		name   string
		host   string
		header string
		param  string
		query  string
		want   string
	}{
		{name: "subdomain wins", host: "demo-corp.example.com:8080", header: "acme-startup", query: "other", want: "demo-corp"},
		{name: "ignored subdomain falls through", host: "api.example.com", header: "acme-startup", want: "acme-startup"},
		{name: "www ignored case-insensitively", host: "WWW.example.com", query: "acme-startup", want: "acme-startup"},
		{name: "dotless host", host: "localhost:3000", param: "demo-corp", want: "demo-corp"},
		{name: "ip literal", host: "127.0.0.1:3000", query: "demo-corp", want: "demo-corp"},
		{name: "path before query", host: "localhost", param: "acme-startup", query: "demo-corp", want: "acme-startup"},
		{name: "nothing", host: "localhost", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			target := "/"
			if tc.query != "" {
				target = "/?tenant=" + tc.query
			}
			r := httptest.NewRequest(http.MethodGet, target, nil)
			r.Host = tc.host
			if tc.header != "" {
				r.Header.Set("X-Tenant-Slug", tc.header)
			}
			if tc.param != "" {
				r = withPathParam(r, "tenantSlug", tc.param)
			}
			if got := TenantSlug(r, cfg); got != tc.want {
				t.Fatalf("TenantSlug() = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTenantResolverAttachesActiveTenantOnly(t *testing.T) {
	f := newFixture(t)

	suspended := &tenantguard.Tenant{Slug: "frozen-co", Name: "Frozen", Status: tenantguard.TenantSuspended}
	if err := f.store.CreateTenant(context.Background(), suspended); err != nil {
		t.Fatalf("create tenant: %v", err)
	}

	tests := []struct {
		slug   string
		wantID string
	}{
		{slug: "demo-corp", wantID: f.demo.DemoTenant.ID},
		{slug: "ACME-Startup", wantID: f.demo.AcmeTenant.ID},
		{slug: "frozen-co", wantID: ""},
		{slug: "nope", wantID: ""},
	}

	for _, tc := range tests {
		var gotID string
		h := TenantResolver(f.engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tenant, ok := TenantFromContext(r.Context()); ok {
				gotID = tenant.ID
			}
			w.WriteHeader(http.StatusNoContent)
		}))

		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.Header.Set("X-Tenant-Slug", tc.slug)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("%s: expected request to pass, got %d", tc.slug, rec.Code)
		}
		if gotID != tc.wantID {
			t.Fatalf("%s: tenant id = %q, want %q", tc.slug, gotID, tc.wantID)
		}
	}
}

func TestTenantResolverBackendFailureContinues(t *testing.T) {
	f := newFixture(t)
	f.store.InjectError(errors.New("db down"))

	reached := false
	h := TenantResolver(f.engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		if _, ok := TenantFromContext(r.Context()); ok {
			t.Fatal("expected no tenant after backend failure")
		}
	}))

	r := httptest.NewRequest(http.MethodGet, "/?tenant=demo-corp", nil)
	h.ServeHTTP(httptest.NewRecorder(), r)
	if !reached {
		t.Fatal("expected request to continue after backend failure")
	}
}

func TestRequireTenant(t *testing.T) {
	h := RequireTenant(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without tenant, got %d", rec.Code)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(WithTenant(r.Context(), &tenantguard.Tenant{ID: "t1"}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 with tenant, got %d", rec.Code)
	}
}

func TestGuard(t *testing.T) {
	f := newFixture(t)
	token := f.adminToken(t)

	var seen *tenantguard.User
	protected := Guard(f.engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	h := TenantResolver(f.engine)(protected)

	tests := []struct {
		name   string
		auth   string
		tenant string
		want   int
	}{
		{name: "missing header", auth: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", auth: "Basic " + token, want: http.StatusUnauthorized},
		{name: "garbage token", auth: "Bearer not-a-jwt", want: http.StatusUnauthorized},
		{name: "valid", auth: "Bearer " + token, want: http.StatusOK},
		{name: "valid in own tenant", auth: "Bearer " + token, tenant: "demo-corp", want: http.StatusOK},
		{name: "foreign tenant", auth: "Bearer " + token, tenant: "acme-startup", want: http.StatusUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			seen = nil
			r := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.auth != "" {
				r.Header.Set("Authorization", tc.auth)
			}
			if tc.tenant != "" {
				r.Header.Set("X-Tenant-Slug", tc.tenant)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, r)

			if rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
			if tc.want == http.StatusOK {
				if seen == nil || seen.ID != f.demo.AdminUser.ID {
					t.Fatalf("expected admin user in context, got %+v", seen)
				}
				return
			}
			if seen != nil {
				t.Fatal("handler must not run on rejection")
			}
			if msg := errorBody(t, rec); msg == "" {
				t.Fatal("expected error message in body")
			}
		})
	}
}

func TestGuardRejectsSuspendedUser(t *testing.T) {
	f := newFixture(t)
	token := f.developerToken(t)

	if err := f.store.SetUserStatus(context.Background(), f.demo.DemoUser.ID, tenantguard.UserSuspended); err != nil {
		t.Fatalf("suspend: %v", err)
	}

	h := Guard(f.engine)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	r := httptest.NewRequest(http.MethodGet, "/me", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireOperation(t *testing.T) {
	f := newFixture(t)
	admin := f.adminToken(t)
	developer := f.developerToken(t)

	serve := func(op, token string) int {
		final := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		})
		var h http.Handler = RequireOperation(f.engine, op)(final)
		if token != "" {
			h = Guard(f.engine)(h)
		}
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if token != "" {
			r.Header.Set("Authorization", "Bearer "+token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, r)
		return rec.Code
	}

	tests := []struct {
		name  string
		op    string
		token string
		want  int
	}{
		{name: "public without user", op: "health", want: http.StatusOK},
		{name: "member rule without user", op: "profile.read", want: http.StatusUnauthorized},
		{name: "member rule with user", op: "profile.read", token: developer, want: http.StatusOK},
		{name: "role rule allowed", op: "audit.read", token: admin, want: http.StatusOK},
		{name: "role rule denied", op: "audit.read", token: developer, want: http.StatusForbidden},
		{name: "unknown operation", op: "billing.write", token: admin, want: http.StatusForbidden},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := serve(tc.op, tc.token); got != tc.want {
				t.Fatalf("status = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestRequireRoles(t *testing.T) {
	f := newFixture(t)
	developer := f.developerToken(t)

	h := Guard(f.engine)(RequireRoles(f.engine, "Developer", "Read Only")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+developer)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected developer to pass, got %d", rec.Code)
	}

	h = RequireRoles(f.engine, "Developer")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without a user")
	}))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without user, got %d", rec.Code)
	}
}

func TestClientInfo(t *testing.T) {
	var ip string
	h := ClientInfo(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip = tenantguard.ClientIPFromContext(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.9:51234"
	h.ServeHTTP(httptest.NewRecorder(), r)
	if ip != "203.0.113.9" {
		t.Fatalf("client ip = %q", ip)
	}
}
