package tenantguard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/MrEthical07/tenantguard/internal"
	internalaudit "github.com/MrEthical07/tenantguard/internal/audit"
	"github.com/MrEthical07/tenantguard/internal/flows"
	"github.com/MrEthical07/tenantguard/internal/model"
	"github.com/MrEthical07/tenantguard/internal/rate"
	"github.com/MrEthical07/tenantguard/internal/stores"
	"github.com/MrEthical07/tenantguard/jwt"
	"github.com/MrEthical07/tenantguard/password"
	"github.com/MrEthical07/tenantguard/permission"
	"github.com/MrEthical07/tenantguard/session"
)

// Engine defines a public type used by tenantguard APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config      Config
	store       CredentialStore
	cache       Cache
	enrollment  stores.EnrollmentStore
	sessions    *session.Manager
	rateLimiter *rate.Limiter
	audit       *internalaudit.Dispatcher
	metrics     *Metrics
	hasher      *password.Bcrypt
	backupHash  *password.Bcrypt
	totp        *totpManager
	jwtManager  *jwt.Manager
	operations  *permission.Table
	now         func() time.Time
	flow        flows.Service
}

// Close describes the close operation and its observable behavior.
//
// Close drains pending audit events. It is safe to call more than once.
func (e *Engine) Close() {
	_ = e.Shutdown(context.Background())
}

// Shutdown drains pending audit events, giving up when ctx ends. Events
// still queued at that point keep draining in the background.
func (e *Engine) Shutdown(ctx context.Context) error {
	if e == nil || e.audit == nil {
		return nil
	}
	return e.audit.Shutdown(ctx)
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditFailed counts audit events lost because the sink panicked.
func (e *Engine) AuditFailed() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Failed()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// TenantConfig returns the tenant resolution settings used by the HTTP
// middleware.
func (e *Engine) TenantConfig() TenantConfig {
	cfg := e.config.Tenant
	cfg.IgnoredSubdomains = append([]string(nil), cfg.IgnoredSubdomains...)
	return cfg
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || !e.flow.Initialized() {
		return ErrEngineNotReady
	}
	return nil
}

// Register describes the register operation and its observable behavior.
//
// Register creates an ACTIVE user in the tenant named by req.TenantSlug and opens its first session.
// It fails with a policy error when the tenant is missing, inactive, closed to self signup or the password is too short.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	res, err := e.flow.Register(ctx, flows.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		TenantSlug: req.TenantSlug,
	})
	if err != nil {
		return nil, err
	}
	return authResponse(res), nil
}

// Login describes the login operation and its observable behavior.
//
// Every credential failure returns ErrInvalidCredentials. Users with MFA enabled get ErrMFACodeRequired until
// req.MFACode is supplied.
func (e *Engine) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	res, err := e.flow.Login(ctx, flows.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		TenantSlug: req.TenantSlug,
		MFACode:    req.MFACode,
		ClientIP:   ClientIPFromContext(ctx),
	})
	e.metrics.Observe(MetricLoginLatency, time.Since(start))
	if err != nil {
		return nil, err
	}
	return authResponse(res), nil
}

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh rotates the session's token pair. Of several concurrent calls presenting the same refresh
// token exactly one succeeds and the rest get ErrSessionInvalid.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*AuthResponse, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	res, err := e.flow.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return authResponse(res), nil
}

// Logout describes the logout operation and its observable behavior.
//
// Logout deactivates every session of userID holding refreshToken. It is idempotent.
func (e *Engine) Logout(ctx context.Context, userID, refreshToken string) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.flow.Logout(ctx, userID, refreshToken)
}

// SetupMFA describes the setupmfa operation and its observable behavior.
//
// SetupMFA generates a pending TOTP secret and backup codes. The pending state lives in the fast cache
// and falls back to the credential store when the cache is unavailable.
func (e *Engine) SetupMFA(ctx context.Context, userID string) (*MFASetup, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	res, err := e.flow.SetupMFA(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &MFASetup{
		QRCode:      res.QRCode,
		Secret:      res.Secret,
		BackupCodes: res.BackupCodes,
	}, nil
}

// VerifyMFA describes the verifymfa operation and its observable behavior.
//
// VerifyMFA enables MFA when code matches the pending secret. A wrong code keeps the pending state.
func (e *Engine) VerifyMFA(ctx context.Context, userID, code string) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.flow.VerifyMFA(ctx, userID, code)
}

// Authorize reports nil when userID holds, within tenantID, at least one of
// the required role names. An empty requirement allows any caller.
func (e *Engine) Authorize(ctx context.Context, userID, tenantID string, requiredRoles ...string) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.flow.Authorize(ctx, userID, tenantID, requiredRoles)
}

// AuthorizeOperation evaluates the rule registered for op. Unknown
// operations are denied.
func (e *Engine) AuthorizeOperation(ctx context.Context, userID, tenantID, op string) error {
	if err := e.ready(); err != nil {
		return err
	}
	return e.flow.AuthorizeOperation(ctx, userID, tenantID, op)
}

// HasPermission reports whether any of the user's roles in tenantID grants
// perm, honouring "*" and "resource:*" wildcards.
func (e *Engine) HasPermission(ctx context.Context, userID, tenantID, perm string) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	return e.flow.HasPermission(ctx, userID, tenantID, perm)
}

// Authenticate verifies an access token and returns its ACTIVE user. A
// non-empty tenantID must match the token's tenant.
func (e *Engine) Authenticate(ctx context.Context, accessToken, tenantID string) (*User, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.flow.Authenticate(ctx, accessToken, tenantID)
}

// ResolveTenant returns the ACTIVE tenant with slug, or nil when there is
// none. Only backend failures are returned as errors.
func (e *Engine) ResolveTenant(ctx context.Context, slug string) (*Tenant, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.flow.ResolveTenant(ctx, slug)
}

func authResponse(res *flows.AuthResult) *AuthResponse {
	return &AuthResponse{
		User:         NewPublicUser(res.User),
		AccessToken:  res.Tokens.AccessToken,
		RefreshToken: res.Tokens.RefreshToken,
		ExpiresIn:    res.Tokens.ExpiresIn,
		SessionID:    res.Tokens.SessionID,
	}
}

func (e *Engine) accessExpiresIn() int64 {
	return int64(e.config.JWT.AccessTTL / time.Second)
}

// issueTokens signs a pair and records the session holding it.
func (e *Engine) issueTokens(ctx context.Context, user *model.User) (flows.Tokens, error) {
	pair, err := e.jwtManager.IssuePair(user.ID, user.Email, user.TenantID)
	if err != nil {
		return flows.Tokens{}, err
	}
	sess, err := e.sessions.Create(ctx, user.ID, user.TenantID, pair)
	if err != nil {
		return flows.Tokens{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.metricInc(MetricSessionCreated)
	return flows.Tokens{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    e.accessExpiresIn(),
		SessionID:    sess.ID,
	}, nil
}

func (e *Engine) checkLoginRate(ctx context.Context, tenantSlug, email, ip string) error {
	if e.rateLimiter == nil {
		return nil
	}
	err := e.rateLimiter.CheckLogin(ctx, tenantSlug, email, ip)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return err
	default:
		e.metricInc(MetricCacheFailure)
		log.Printf("tenantguard: login throttle unavailable, allowing attempt: %v", err)
		return nil
	}
}

func (e *Engine) recordLoginFailure(ctx context.Context, tenantSlug, email, ip string) {
	if e.rateLimiter == nil {
		return
	}
	if err := e.rateLimiter.IncrementLogin(ctx, tenantSlug, email, ip); err != nil {
		e.metricInc(MetricCacheFailure)
		log.Printf("tenantguard: login failure not counted: %v", err)
	}
}

func (e *Engine) resetLoginRate(ctx context.Context, tenantSlug, email string) {
	if e.rateLimiter == nil {
		return
	}
	if err := e.rateLimiter.ResetLogin(ctx, tenantSlug, email); err != nil {
		log.Printf("tenantguard: login throttle reset failed: %v", err)
	}
}

func (e *Engine) passwordNeedsUpgrade(hash string) bool {
	upgrade, err := e.hasher.NeedsUpgrade(hash)
	return err == nil && upgrade
}

func (e *Engine) hashBackupCodes(codes []string) ([]string, error) {
	return internal.HashBackupCodes(codes, e.backupHash.Hash)
}

func (e *Engine) newBackupCodes() ([]string, error) {
	return internal.NewBackupCodes(e.config.MFA.BackupCodeCount, e.config.MFA.BackupCodeLength)
}

func (e *Engine) initFlows() {
	hooks := flows.Hooks{
		Now:       e.now,
		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		Audit:     e.emitAudit,
		Warn:      log.Printf,
	}
	errs := flows.Errors{
		EngineNotReady:        ErrEngineNotReady,
		TenantNotFound:        ErrTenantNotFound,
		TenantInactive:        ErrTenantInactive,
		SelfSignupDisabled:    ErrSelfSignupDisabled,
		EmailDomainNotAllowed: ErrEmailDomainNotAllowed,
		InvalidEmail:          ErrInvalidEmail,
		PasswordPolicy:        ErrPasswordPolicy,
		TenantUserLimit:       ErrTenantUserLimit,
		UserExists:            ErrUserExists,
		InvalidCredentials:    ErrInvalidCredentials,
		MFACodeRequired:       ErrMFACodeRequired,
		MFACodeInvalid:        ErrMFACodeInvalid,
		MFAAlreadyEnabled:     ErrMFAAlreadyEnabled,
		MFASetupExpired:       ErrMFASetupExpired,
		TokenInvalid:          ErrTokenInvalid,
		SessionInvalid:        ErrSessionInvalid,
		Unauthorized:          ErrUnauthorized,
		PermissionDenied:      ErrPermissionDenied,
		LoginRateLimited:      ErrLoginRateLimited,
		StoreUnavailable:      ErrStoreUnavailable,
	}

	e.flow = flows.New(flows.Deps{
		Register: flows.RegisterDeps{
			Hooks:             hooks,
			Tenants:           e.store,
			Users:             e.store,
			Roles:             e.store,
			MinPasswordLength: e.config.Password.MinLength,
			HashPassword:      e.hasher.Hash,
			IssueTokens:       e.issueTokens,
			Metrics: flows.RegisterMetrics{
				Success: int(MetricRegisterSuccess),
				Failure: int(MetricRegisterFailure),
			},
			Events: flows.RegisterEvents{Registered: internalaudit.EventUserRegistered},
			Errors: errs,
		},
		Login: flows.LoginDeps{
			Hooks:                hooks,
			Tenants:              e.store,
			Users:                e.store,
			VerifyPassword:       e.hasher.Verify,
			PasswordNeedsUpgrade: e.passwordNeedsUpgrade,
			HashPassword:         e.hasher.Hash,
			UpgradeOnLogin:       e.config.Password.UpgradeOnLogin,
			VerifyTOTP:           e.totp.Validate,
			IssueTokens:          e.issueTokens,
			CheckLoginRate:       e.checkLoginRate,
			RecordFailure:        e.recordLoginFailure,
			ResetLoginRate:       e.resetLoginRate,
			Metrics: flows.LoginMetrics{
				Success:     int(MetricLoginSuccess),
				Failure:     int(MetricLoginFailure),
				RateLimited: int(MetricLoginRateLimited),
				MFARequired: int(MetricMFARequired),
			},
			Events: flows.LoginEvents{
				Success: internalaudit.EventUserLogin,
				Failure: internalaudit.EventLoginFailed,
			},
			Errors: errs,
		},
		Refresh: flows.RefreshDeps{
			Hooks:     hooks,
			Sessions:  e.sessions,
			Users:     e.store,
			IssuePair: e.jwtManager.IssuePair,
			ExpiresIn: e.accessExpiresIn(),
			Metrics: flows.RefreshMetrics{
				Success: int(MetricRefreshSuccess),
				Failure: int(MetricRefreshFailure),
			},
			Events: flows.RefreshEvents{
				Success: internalaudit.EventTokenRefreshed,
				Failure: internalaudit.EventRefreshFailed,
			},
			Errors: errs,
		},
		Logout: flows.LogoutDeps{
			Hooks:        hooks,
			Sessions:     e.sessions,
			MetricLogout: int(MetricLogout),
			Event:        internalaudit.EventUserLogout,
			Errors:       errs,
		},
		MFA: flows.MFADeps{
			Hooks:           hooks,
			Users:           e.store,
			Tenants:         e.store,
			Enrollment:      e.enrollment,
			OTP:             e.totp,
			NewBackupCodes:  e.newBackupCodes,
			HashBackupCodes: e.hashBackupCodes,
			SetupTTL:        e.config.MFA.SetupTTL,
			Metrics: flows.MFAMetrics{
				SetupStarted: int(MetricMFASetup),
				Enabled:      int(MetricMFAEnabled),
				VerifyFailed: int(MetricMFAVerifyFailure),
			},
			Events: flows.MFAEvents{
				SetupStarted: internalaudit.EventMFASetupStarted,
				Enabled:      internalaudit.EventMFAEnabled,
				VerifyFailed: internalaudit.EventMFAVerifyFailed,
			},
			Errors: errs,
		},
		Authorize: flows.AuthorizeDeps{
			Hooks:  hooks,
			Users:  e.store,
			Roles:  e.store,
			Table:  e.operations,
			Denied: internalaudit.EventAccessDenied,
			Metrics: flows.AuthorizeMetrics{
				Allowed: int(MetricAuthorizeAllowed),
				Denied:  int(MetricAuthorizeDenied),
			},
			Errors: errs,
		},
		Authenticate: flows.AuthenticateDeps{
			ParseAccess: e.jwtManager.ParseAccess,
			Users:       e.store,
			Errors:      errs,
		},
		Tenant: flows.TenantDeps{
			Tenants: e.store,
		},
	})
}
