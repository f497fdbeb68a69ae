package grant

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	id "gatehouse/pkg/domain"
	"gatehouse/pkg/sentinel"
)

// InMemory is the development and test implementation of Store.
type InMemory struct {
	mu             sync.RWMutex
	grants         []Grant
	resourceGrants []ResourceGrant
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Put(_ context.Context, g Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.grants = append(s.grants, g)
	return nil
}

func (s *InMemory) PutResourceGrant(_ context.Context, g ResourceGrant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == uuid.Nil {
		g.ID = uuid.New()
	}
	s.resourceGrants = append(s.resourceGrants, g)
	return nil
}

func (s *InMemory) GrantsFor(_ context.Context, principalID id.PrincipalID, asOf time.Time) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Grant
	for _, g := range s.grants {
		if g.PrincipalID == principalID && g.ActiveAt(asOf) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *InMemory) GrantsForAll(_ context.Context, principalID id.PrincipalID) ([]Grant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Grant
	for _, g := range s.grants {
		if g.PrincipalID == principalID {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *InMemory) ResourceGrantsFor(_ context.Context, principalID id.PrincipalID, table, resourceID string, asOf time.Time) ([]ResourceGrant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []ResourceGrant
	for _, g := range s.resourceGrants {
		if g.PrincipalID == principalID && g.ResourceTable == table && g.ResourceID == resourceID && g.ActiveAt(asOf) {
			out = append(out, g)
		}
	}
	return out, nil
}

func (s *InMemory) ResourceGrantTablesFor(_ context.Context, principalID id.PrincipalID, asOf time.Time) (map[string][]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]string)
	for _, g := range s.resourceGrants {
		if g.PrincipalID == principalID && g.ActiveAt(asOf) {
			out[g.ResourceTable] = append(out[g.ResourceTable], g.CapabilityCode)
		}
	}
	return out, nil
}

func (s *InMemory) Revoke(_ context.Context, principalID id.PrincipalID, roleCode string, scopeID id.ScopeID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	revoked := false
	for i := range s.grants {
		g := &s.grants[i]
		if g.PrincipalID == principalID && g.RoleCode == roleCode && g.ScopeID == scopeID && g.ActiveAt(at) {
			end := at
			g.ValidUntil = &end
			revoked = true
		}
	}
	if !revoked {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *InMemory) RevokeResourceGrant(_ context.Context, grantID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.resourceGrants {
		g := &s.resourceGrants[i]
		if g.ID == grantID {
			end := at
			g.ValidUntil = &end
			return nil
		}
	}
	return sentinel.ErrNotFound
}
