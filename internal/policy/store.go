package policy

import (
	"context"

	id "gatehouse/pkg/domain"
)

// Store holds negotiation policy rows. At most one platform default and at
// most one override per (tenant, negotiation_type).
type Store interface {
	// FindPlatform returns the platform default for the type, or
	// sentinel.ErrNotFound.
	FindPlatform(ctx context.Context, negotiationType string) (*NegotiationPolicy, error)
	// FindTenantOverride returns the tenant override, or sentinel.ErrNotFound
	// when the tenant has none (which is the common case, not an error for
	// resolution).
	FindTenantOverride(ctx context.Context, tenantID id.TenantID, negotiationType string) (*NegotiationPolicy, error)
	// Put creates or replaces a policy row. Administrative operation.
	Put(ctx context.Context, p *NegotiationPolicy) error
}
