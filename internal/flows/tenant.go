package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/tenantguard/internal/model"
)

// TenantDeps captures tenant resolution dependencies.
type TenantDeps struct {
	Tenants model.TenantStore
}

// RunResolveTenant returns the active tenant named by slug. Empty, unknown
// and non-active slugs resolve to nil without error; only backend failures
// are returned.
func RunResolveTenant(ctx context.Context, slug string, deps TenantDeps) (*model.Tenant, error) {
	slug = NormalizeSlug(slug)
	if slug == "" || deps.Tenants == nil {
		return nil, nil
	}
	tenant, err := deps.Tenants.FindTenantBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if !tenant.Active() {
		return nil, nil
	}
	return tenant, nil
}
