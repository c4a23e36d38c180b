package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/MrEthical07/tenantguard"
	promexport "github.com/MrEthical07/tenantguard/metrics/export/prometheus"
	"github.com/MrEthical07/tenantguard/password"
	"github.com/MrEthical07/tenantguard/store/memstore"
	"github.com/MrEthical07/tenantguard/store/seed"
)

func newTestEngine(t *testing.T) *tenantguard.Engine {
	t.Helper()

	store := memstore.New()
	hasher, err := password.NewBcrypt(password.Config{Cost: bcrypt.MinCost})
	if err != nil {
		t.Fatalf("hasher: %v", err)
	}
	if _, err := seed.Demo(context.Background(), store, hasher.Hash); err != nil {
		t.Fatalf("seed: %v", err)
	}

	cfg := serverConfig{
		JWTSecret:      "0123456789abcdef0123456789abcdef",
		JWTIssuer:      "tenantguard",
		AccessTTL:      tenantguard.DefaultConfig().JWT.AccessTTL,
		RefreshTTL:     tenantguard.DefaultConfig().JWT.RefreshTTL,
		BcryptCost:     bcrypt.MinCost,
		MetricsEnabled: true,
	}
	engine, err := tenantguard.New().
		WithConfig(cfg.engineConfig()).
		WithCredentialStore(store).
		WithOperations(operations()).
		Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	engine := newTestEngine(t)
	srv := httptest.NewServer(newRouter(engine, promexport.NewPrometheusExporter(engine).Handler()))
	t.Cleanup(srv.Close)
	return srv
}

type call struct {
	method string
	path   string
	body   any
	token  string
	header map[string]string
}

func do(t *testing.T, srv *httptest.Server, c call) (int, []byte) {
	t.Helper()

	var body io.Reader
	switch b := c.body.(type) {
	case nil:
	case string:
		body = strings.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(c.method, srv.URL+c.path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	for k, v := range c.header {
		req.Header.Set(k, v)
	}

	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", c.method, c.path, err)
	}
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp.StatusCode, out
}

func decodeAuth(t *testing.T, raw []byte) tenantguard.AuthResponse {
	t.Helper()
	var res tenantguard.AuthResponse
	if err := json.Unmarshal(raw, &res); err != nil {
		t.Fatalf("decode auth response %s: %v", raw, err)
	}
	if res.AccessToken == "" || res.RefreshToken == "" {
		t.Fatalf("missing tokens in %s", raw)
	}
	return res
}

func loginAdmin(t *testing.T, srv *httptest.Server) tenantguard.AuthResponse {
	t.Helper()
	status, raw := do(t, srv, call{
		method: http.MethodPost,
		path:   "/auth/login",
		body:   map[string]string{"email": "admin@demo-corp.com", "password": "AdminPassword123!"},
		header: map[string]string{"X-Tenant-Slug": "demo-corp"},
	})
	if status != http.StatusOK {
		t.Fatalf("login status = %d body=%s", status, raw)
	}
	return decodeAuth(t, raw)
}

func TestLoginWithTenantHeaderAndFetchProfile(t *testing.T) {
	srv := newTestServer(t)
	res := loginAdmin(t, srv)

	status, raw := do(t, srv, call{method: http.MethodGet, path: "/me", token: res.AccessToken})
	if status != http.StatusOK {
		t.Fatalf("/me status = %d body=%s", status, raw)
	}
	var user tenantguard.PublicUser
	if err := json.Unmarshal(raw, &user); err != nil {
		t.Fatalf("decode user: %v", err)
	}
	if user.Email != "admin@demo-corp.com" || user.ID != res.User.ID {
		t.Fatalf("unexpected profile %+v", user)
	}
}

func TestLoginUnderTenantPath(t *testing.T) {
	srv := newTestServer(t)

	status, raw := do(t, srv, call{
		method: http.MethodPost,
		path:   "/t/acme-startup/auth/login",
		body:   map[string]string{"email": "owner@acme-startup.com", "password": "OwnerPassword123!"},
	})
	if status != http.StatusOK {
		t.Fatalf("status = %d body=%s", status, raw)
	}
	res := decodeAuth(t, raw)

	status, _ = do(t, srv, call{method: http.MethodGet, path: "/t/demo-corp/me", token: res.AccessToken})
	if status != http.StatusUnauthorized {
		t.Fatalf("token from another tenant must be rejected, got %d", status)
	}
	status, _ = do(t, srv, call{method: http.MethodGet, path: "/t/acme-startup/me", token: res.AccessToken})
	if status != http.StatusOK {
		t.Fatalf("same-tenant profile status = %d", status)
	}
}

func TestLoginErrors(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		name   string
		body   any
		status int
		errMsg string
	}{
		{
			name:   "wrong password",
			body:   map[string]string{"email": "admin@demo-corp.com", "password": "nope", "tenantSlug": "demo-corp"},
			status: http.StatusUnauthorized,
			errMsg: tenantguard.ErrInvalidCredentials.Error(),
		},
		{
			name:   "unknown tenant",
			body:   map[string]string{"email": "admin@demo-corp.com", "password": "AdminPassword123!", "tenantSlug": "nowhere"},
			status: http.StatusUnauthorized,
			errMsg: tenantguard.ErrInvalidCredentials.Error(),
		},
		{
			name:   "malformed body",
			body:   "{not json",
			status: http.StatusBadRequest,
			errMsg: errBadRequest.Error(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, raw := do(t, srv, call{method: http.MethodPost, path: "/auth/login", body: tt.body})
			if status != tt.status {
				t.Fatalf("status = %d, want %d (body=%s)", status, tt.status, raw)
			}
			var body map[string]string
			if err := json.Unmarshal(raw, &body); err != nil {
				t.Fatalf("decode error body: %v", err)
			}
			if body["error"] != tt.errMsg {
				t.Fatalf("error = %q, want %q", body["error"], tt.errMsg)
			}
		})
	}
}

func TestRegisterUsesResolvedTenant(t *testing.T) {
	srv := newTestServer(t)

	status, raw := do(t, srv, call{
		method: http.MethodPost,
		path:   "/t/demo-corp/auth/register",
		body: map[string]string{
			"email":     "new.hire@demo-corp.com",
			"password":  "CorrectHorse9",
			"firstName": "New",
			"lastName":  "Hire",
		},
	})
	if status != http.StatusCreated {
		t.Fatalf("status = %d body=%s", status, raw)
	}
	res := decodeAuth(t, raw)
	if res.User.Email != "new.hire@demo-corp.com" {
		t.Fatalf("unexpected user %+v", res.User)
	}

	status, _ = do(t, srv, call{
		method: http.MethodPost,
		path:   "/t/demo-corp/auth/register",
		body:   map[string]string{"email": "new.hire@demo-corp.com", "password": "CorrectHorse9"},
	})
	if status != http.StatusConflict {
		t.Fatalf("duplicate register status = %d", status)
	}
}

func TestRefreshRotationAndLogout(t *testing.T) {
	srv := newTestServer(t)
	first := loginAdmin(t, srv)

	status, raw := do(t, srv, call{
		method: http.MethodPost,
		path:   "/auth/refresh",
		body:   map[string]string{"refreshToken": first.RefreshToken},
	})
	if status != http.StatusOK {
		t.Fatalf("refresh status = %d body=%s", status, raw)
	}
	second := decodeAuth(t, raw)

	status, _ = do(t, srv, call{
		method: http.MethodPost,
		path:   "/auth/refresh",
		body:   map[string]string{"refreshToken": first.RefreshToken},
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("replayed refresh status = %d", status)
	}

	for i := 0; i < 2; i++ {
		status, raw = do(t, srv, call{
			method: http.MethodPost,
			path:   "/auth/logout",
			body:   map[string]string{"refreshToken": second.RefreshToken},
			token:  second.AccessToken,
		})
		if status != http.StatusOK {
			t.Fatalf("logout #%d status = %d body=%s", i+1, status, raw)
		}
	}

	status, _ = do(t, srv, call{
		method: http.MethodPost,
		path:   "/auth/refresh",
		body:   map[string]string{"refreshToken": second.RefreshToken},
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("refresh after logout status = %d", status)
	}
}

func TestProtectedRoutesRequireBearer(t *testing.T) {
	srv := newTestServer(t)

	for _, c := range []call{
		{method: http.MethodGet, path: "/me"},
		{method: http.MethodPost, path: "/auth/logout", body: map[string]string{}},
		{method: http.MethodPost, path: "/auth/mfa/setup"},
		{method: http.MethodPost, path: "/auth/mfa/verify", body: map[string]string{"token": "123456"}},
	} {
		status, _ := do(t, srv, c)
		if status != http.StatusUnauthorized {
			t.Fatalf("%s %s status = %d", c.method, c.path, status)
		}
	}
}

func TestMFASetupAndInvalidVerify(t *testing.T) {
	srv := newTestServer(t)
	res := loginAdmin(t, srv)

	status, raw := do(t, srv, call{method: http.MethodPost, path: "/auth/mfa/setup", token: res.AccessToken})
	if status != http.StatusOK {
		t.Fatalf("setup status = %d body=%s", status, raw)
	}
	var setup tenantguard.MFASetup
	if err := json.Unmarshal(raw, &setup); err != nil {
		t.Fatalf("decode setup: %v", err)
	}
	if setup.Secret == "" || len(setup.BackupCodes) == 0 {
		t.Fatalf("incomplete setup %+v", setup)
	}

	status, _ = do(t, srv, call{
		method: http.MethodPost,
		path:   "/auth/mfa/verify",
		body:   map[string]string{"token": "000000x"},
		token:  res.AccessToken,
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("invalid code status = %d", status)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newTestServer(t)

	status, _ := do(t, srv, call{method: http.MethodGet, path: "/healthz"})
	if status != http.StatusOK {
		t.Fatalf("healthz status = %d", status)
	}

	loginAdmin(t, srv)
	status, raw := do(t, srv, call{method: http.MethodGet, path: "/metrics"})
	if status != http.StatusOK {
		t.Fatalf("metrics status = %d", status)
	}
	if !strings.Contains(string(raw), "tenantguard_login_success_total 1") {
		t.Fatalf("login counter missing from scrape:\n%s", raw)
	}
}

func TestOperationsTable(t *testing.T) {
	table := operations()
	for _, op := range []string{opRegister, opLogin, opRefresh} {
		rule, err := table.Rule(op)
		if err != nil || !rule.Public {
			t.Fatalf("%s should be public: %+v %v", op, rule, err)
		}
	}
	for _, op := range []string{opLogout, opMFASetup, opMFAVerify, opProfile} {
		rule, err := table.Rule(op)
		if err != nil || rule.Public {
			t.Fatalf("%s should require a user: %+v %v", op, rule, err)
		}
	}
}
