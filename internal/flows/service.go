package flows

import (
	"context"

	"github.com/MrEthical07/tenantguard/internal/model"
)

// Service is the centralized flow runner built once by the root engine.
type Service struct {
	deps Deps
}

// New returns a flow service with immutable dependency wiring.
func New(deps Deps) Service {
	return Service{deps: deps}
}

// Initialized reports whether the service has been wired with flow deps.
func (s Service) Initialized() bool {
	return s.deps.Login.IssueTokens != nil
}

func (s Service) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	return RunRegister(ctx, in, s.deps.Register)
}

func (s Service) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	return RunLogin(ctx, in, s.deps.Login)
}

func (s Service) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	return RunRefresh(ctx, refreshToken, s.deps.Refresh)
}

func (s Service) Logout(ctx context.Context, userID, refreshToken string) error {
	return RunLogout(ctx, userID, refreshToken, s.deps.Logout)
}

func (s Service) SetupMFA(ctx context.Context, userID string) (*MFASetupResult, error) {
	return RunSetupMFA(ctx, userID, s.deps.MFA)
}

func (s Service) VerifyMFA(ctx context.Context, userID, code string) error {
	return RunVerifyMFA(ctx, userID, code, s.deps.MFA)
}

func (s Service) Authorize(ctx context.Context, userID, tenantID string, required []string) error {
	return RunAuthorize(ctx, userID, tenantID, required, s.deps.Authorize)
}

func (s Service) AuthorizeOperation(ctx context.Context, userID, tenantID, op string) error {
	return RunAuthorizeOperation(ctx, userID, tenantID, op, s.deps.Authorize)
}

func (s Service) HasPermission(ctx context.Context, userID, tenantID, perm string) (bool, error) {
	return RunHasPermission(ctx, userID, tenantID, perm, s.deps.Authorize)
}

func (s Service) Authenticate(ctx context.Context, accessToken, tenantID string) (*model.User, error) {
	return RunAuthenticate(ctx, accessToken, tenantID, s.deps.Authenticate)
}

func (s Service) ResolveTenant(ctx context.Context, slug string) (*model.Tenant, error) {
	return RunResolveTenant(ctx, slug, s.deps.Tenant)
}
