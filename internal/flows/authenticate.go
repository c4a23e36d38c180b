package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/tenantguard/internal/model"
	"github.com/MrEthical07/tenantguard/jwt"
)

// AuthenticateDeps captures access token verification dependencies.
type AuthenticateDeps struct {
	ParseAccess func(string) (*jwt.Claims, error)
	Users       model.UserStore
	Errors      Errors
}

// RunAuthenticate verifies an access token and returns its active user.
// When tenantID is set the token must have been issued for that tenant.
func RunAuthenticate(ctx context.Context, accessToken, tenantID string, deps AuthenticateDeps) (*model.User, error) {
	if deps.ParseAccess == nil || deps.Users == nil {
		return nil, deps.Errors.EngineNotReady
	}

	claims, err := deps.ParseAccess(accessToken)
	if err != nil {
		return nil, deps.Errors.TokenInvalid
	}
	if tenantID != "" && claims.TenantID != tenantID {
		return nil, deps.Errors.Unauthorized
	}

	user, err := deps.Users.FindUserByID(ctx, claims.UserID())
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, deps.Errors.Unauthorized
		}
		return nil, storeFailure(deps.Errors, err)
	}
	if !user.Active() || user.TenantID != claims.TenantID {
		return nil, deps.Errors.Unauthorized
	}
	return user, nil
}
