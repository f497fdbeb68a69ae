package scope

import (
	"context"

	id "gatehouse/pkg/domain"
)

// Store is the scope graph contract. Implementations must treat unknown scope
// ids as contributing nothing: AncestorChain returns an empty chain and
// IsAncestor returns false, never an error that would block an unrelated
// evaluation.
type Store interface {
	// FindByID returns the scope or sentinel.ErrNotFound.
	FindByID(ctx context.Context, scopeID id.ScopeID) (*Scope, error)

	// AncestorChain returns the scope's deterministic ancestor chain,
	// self-first, ending at the platform scope. Unknown ids yield an empty
	// chain with a nil error.
	AncestorChain(ctx context.Context, scopeID id.ScopeID) ([]id.ScopeID, error)

	// IsAncestor reports whether candidate equals target or is a proper
	// ancestor of it.
	IsAncestor(ctx context.Context, candidate, target id.ScopeID) (bool, error)

	// ListByType returns all scopes of the given type, used by the snapshot
	// fan-out.
	ListByType(ctx context.Context, scopeType Type) ([]*Scope, error)

	// ListByTenant returns all scopes belonging to a tenant.
	ListByTenant(ctx context.Context, tenantID id.TenantID) ([]*Scope, error)

	// Put creates or replaces a scope. Administrative operation.
	Put(ctx context.Context, s *Scope) error
}

// chainContains is shared by implementations layering IsAncestor on
// AncestorChain.
func chainContains(chain []id.ScopeID, candidate id.ScopeID) bool {
	for _, sc := range chain {
		if sc == candidate {
			return true
		}
	}
	return false
}
