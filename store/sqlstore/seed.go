package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/tenantguard/internal/model"
	"github.com/MrEthical07/tenantguard/store/seed"
)

// SeedDemo provisions the demo tenants inside an empty database. It returns
// nil without error when demo-corp already exists.
func (s *Store) SeedDemo(ctx context.Context, hash seed.HashFunc) (*seed.Result, error) {
	_, err := s.FindTenantBySlug(ctx, "demo-corp")
	switch {
	case err == nil:
		return nil, nil
	case !errors.Is(err, model.ErrNotFound):
		return nil, fmt.Errorf("check demo tenant: %w", err)
	}
	return seed.Demo(ctx, s, hash)
}
