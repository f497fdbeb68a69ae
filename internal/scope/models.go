package scope

import (
	id "gatehouse/pkg/domain"
)

// Type classifies a node in the scope graph.
type Type string

const (
	TypePlatform     Type = "platform"
	TypeOrganization Type = "organization"
	TypeTenant       Type = "tenant"
	TypeResource     Type = "resource"
)

// Scope is a node in the hierarchical authorization namespace.
//
// Invariants:
//   - Exactly one platform scope exists, with the well-known id
//     domain.PlatformScopeID and no parent.
//   - Every other scope has a parent, and following parents always terminates
//     at the platform scope (ancestry is acyclic and total).
//   - TenantID is set on tenant scopes and their descendants.
type Scope struct {
	ID       id.ScopeID
	Type     Type
	Path     string
	ParentID *id.ScopeID
	TenantID *id.TenantID
}

// IsPlatform reports whether this is the singleton root scope.
func (s *Scope) IsPlatform() bool {
	return s.Type == TypePlatform
}

// maxDepth bounds ancestor traversal. Real hierarchies are four levels deep;
// the bound exists so a corrupted parent cycle terminates instead of spinning.
const maxDepth = 64
