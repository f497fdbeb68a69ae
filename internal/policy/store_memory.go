package policy

import (
	"context"
	"sync"

	id "gatehouse/pkg/domain"
	"gatehouse/pkg/sentinel"
)

type policyKey struct {
	tenantID        id.TenantID
	negotiationType string
}

// InMemory is the development and test implementation of Store. Platform
// defaults are keyed with the zero tenant id.
type InMemory struct {
	mu       sync.RWMutex
	policies map[policyKey]*NegotiationPolicy
}

func NewInMemory() *InMemory {
	return &InMemory{policies: make(map[policyKey]*NegotiationPolicy)}
}

func (s *InMemory) Put(_ context.Context, p *NegotiationPolicy) error {
	key := policyKey{negotiationType: p.NegotiationType}
	if p.TenantID != nil {
		key.tenantID = *p.TenantID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.policies[key] = &cp
	return nil
}

func (s *InMemory) FindPlatform(_ context.Context, negotiationType string) (*NegotiationPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[policyKey{negotiationType: negotiationType}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemory) FindTenantOverride(_ context.Context, tenantID id.TenantID, negotiationType string) (*NegotiationPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.policies[policyKey{tenantID: tenantID, negotiationType: negotiationType}]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}
