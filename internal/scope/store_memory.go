package scope

import (
	"context"
	"sync"

	id "gatehouse/pkg/domain"
	"gatehouse/pkg/sentinel"
)

// InMemory is the development and test implementation of Store.
type InMemory struct {
	mu     sync.RWMutex
	scopes map[id.ScopeID]*Scope
}

func NewInMemory() *InMemory {
	return &InMemory{scopes: make(map[id.ScopeID]*Scope)}
}

func (s *InMemory) Put(_ context.Context, sc *Scope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sc
	s.scopes[sc.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, scopeID id.ScopeID) (*Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sc, ok := s.scopes[scopeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *sc
	return &cp, nil
}

func (s *InMemory) AncestorChain(_ context.Context, scopeID id.ScopeID) ([]id.ScopeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chain := make([]id.ScopeID, 0, 4)
	current, ok := s.scopes[scopeID]
	if !ok {
		return chain, nil
	}
	for depth := 0; depth < maxDepth; depth++ {
		chain = append(chain, current.ID)
		if current.ParentID == nil {
			return chain, nil
		}
		next, ok := s.scopes[*current.ParentID]
		if !ok {
			// Dangling parent: the chain ends here rather than erroring so
			// unrelated evaluations are never blocked.
			return chain, nil
		}
		current = next
	}
	return chain, nil
}

func (s *InMemory) IsAncestor(ctx context.Context, candidate, target id.ScopeID) (bool, error) {
	if candidate == target {
		s.mu.RLock()
		_, known := s.scopes[candidate]
		s.mu.RUnlock()
		return known, nil
	}
	chain, err := s.AncestorChain(ctx, target)
	if err != nil {
		return false, err
	}
	return chainContains(chain, candidate), nil
}

func (s *InMemory) ListByType(_ context.Context, scopeType Type) ([]*Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Scope
	for _, sc := range s.scopes {
		if sc.Type == scopeType {
			cp := *sc
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *InMemory) ListByTenant(_ context.Context, tenantID id.TenantID) ([]*Scope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Scope
	for _, sc := range s.scopes {
		if sc.TenantID != nil && *sc.TenantID == tenantID {
			cp := *sc
			out = append(out, &cp)
		}
	}
	return out, nil
}
