package scope

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "gatehouse/pkg/domain"
)

type StoreSuite struct {
	suite.Suite

	ctx      context.Context
	store    *InMemory
	orgScope id.ScopeID
	t1Scope  id.ScopeID
	resource id.ScopeID
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()

	platform := &Scope{ID: id.PlatformScopeID, Type: TypePlatform, Path: "/"}
	s.Require().NoError(s.store.Put(s.ctx, platform))

	s.orgScope = id.NewScopeID()
	s.Require().NoError(s.store.Put(s.ctx, &Scope{
		ID: s.orgScope, Type: TypeOrganization, Path: "/org", ParentID: &platform.ID,
	}))
	tenant := id.TenantID(id.NewScopeID())
	s.t1Scope = id.NewScopeID()
	s.Require().NoError(s.store.Put(s.ctx, &Scope{
		ID: s.t1Scope, Type: TypeTenant, Path: "/org/t1", ParentID: &s.orgScope, TenantID: &tenant,
	}))
	s.resource = id.NewScopeID()
	s.Require().NoError(s.store.Put(s.ctx, &Scope{
		ID: s.resource, Type: TypeResource, Path: "/org/t1/jobs", ParentID: &s.t1Scope, TenantID: &tenant,
	}))
}

func (s *StoreSuite) TestAncestorChainSelfFirstToPlatform() {
	chain, err := s.store.AncestorChain(s.ctx, s.resource)
	s.Require().NoError(err)
	s.Equal([]id.ScopeID{s.resource, s.t1Scope, s.orgScope, id.PlatformScopeID}, chain)
}

func (s *StoreSuite) TestAncestorChainUnknownScopeIsEmptyNotError() {
	chain, err := s.store.AncestorChain(s.ctx, id.NewScopeID())
	s.Require().NoError(err)
	s.Empty(chain)
}

func (s *StoreSuite) TestIsAncestor() {
	cases := []struct {
		name      string
		candidate id.ScopeID
		target    id.ScopeID
		want      bool
	}{
		{"self", s.t1Scope, s.t1Scope, true},
		{"parent", s.t1Scope, s.resource, true},
		{"root over leaf", id.PlatformScopeID, s.resource, true},
		{"child is not ancestor of parent", s.resource, s.t1Scope, false},
		{"unknown candidate", id.NewScopeID(), s.resource, false},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			got, err := s.store.IsAncestor(s.ctx, tc.candidate, tc.target)
			s.NoError(err)
			s.Equal(tc.want, got)
		})
	}
}

func (s *StoreSuite) TestCachedStoreServesWithinTTLAndInvalidatesOnPut() {
	cached := NewCachedStore(s.store, 16, time.Minute)

	chain, err := cached.AncestorChain(s.ctx, s.resource)
	s.Require().NoError(err)
	s.Len(chain, 4)

	// Reparent the resource directly under the org. The write-through
	// invalidation must drop the cached closure immediately.
	s.Require().NoError(cached.Put(s.ctx, &Scope{
		ID: s.resource, Type: TypeResource, Path: "/org/jobs", ParentID: &s.orgScope,
	}))

	chain, err = cached.AncestorChain(s.ctx, s.resource)
	s.Require().NoError(err)
	s.Equal([]id.ScopeID{s.resource, s.orgScope, id.PlatformScopeID}, chain)
}

func (s *StoreSuite) TestCachedStoreDoesNotCacheUnknownScopes() {
	cached := NewCachedStore(s.store, 16, time.Minute)
	fresh := id.NewScopeID()

	chain, err := cached.AncestorChain(s.ctx, fresh)
	s.Require().NoError(err)
	s.Empty(chain)

	// The scope shows up after the miss; a cached empty chain would hide it.
	s.Require().NoError(s.store.Put(s.ctx, &Scope{
		ID: fresh, Type: TypeResource, Path: "/org/t1/new", ParentID: &s.t1Scope,
	}))
	chain, err = cached.AncestorChain(s.ctx, fresh)
	s.Require().NoError(err)
	s.Len(chain, 4)
}

func (s *StoreSuite) TestDirectoryFindsTenantScope() {
	dir := NewDirectory(s.store)

	sc, err := s.store.FindByID(s.ctx, s.t1Scope)
	s.Require().NoError(err)
	got, err := dir.TenantScopeID(s.ctx, *sc.TenantID)
	s.Require().NoError(err)
	s.Equal(s.t1Scope, got)

	_, err = dir.TenantScopeID(s.ctx, id.TenantID(id.NewScopeID()))
	s.Error(err)
}
