package scope

import (
	"context"

	id "gatehouse/pkg/domain"
	"gatehouse/pkg/sentinel"
)

// Directory resolves tenants to their anchor scope, the scope capability
// gates evaluate against when a caller names a tenant rather than a scope.
type Directory struct {
	store Store
}

func NewDirectory(store Store) *Directory {
	return &Directory{store: store}
}

// TenantScopeID returns the tenant-typed scope owned by the tenant, or
// sentinel.ErrNotFound when the tenant has no scope row.
func (d *Directory) TenantScopeID(ctx context.Context, tenantID id.TenantID) (id.ScopeID, error) {
	scopes, err := d.store.ListByTenant(ctx, tenantID)
	if err != nil {
		return id.ScopeID{}, err
	}
	for _, s := range scopes {
		if s.Type == TypeTenant {
			return s.ID, nil
		}
	}
	return id.ScopeID{}, sentinel.ErrNotFound
}
