package grant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "gatehouse/pkg/domain"
	"gatehouse/pkg/sentinel"
)

type StoreSuite struct {
	suite.Suite

	ctx       context.Context
	store     *InMemory
	principal id.PrincipalID
	scope     id.ScopeID
	now       time.Time
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()
	s.principal = id.NewPrincipalID()
	s.scope = id.NewScopeID()
	s.now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) TestGrantWindows() {
	until := s.now.Add(time.Hour)
	s.Require().NoError(s.store.Put(s.ctx, Grant{
		PrincipalID: s.principal, RoleCode: "tenant_admin", ScopeID: s.scope,
		ValidFrom: s.now.Add(-time.Hour), ValidUntil: &until,
	}))
	s.Require().NoError(s.store.Put(s.ctx, Grant{
		PrincipalID: s.principal, RoleCode: "auditor", ScopeID: s.scope,
		ValidFrom: s.now.Add(time.Hour),
	}))

	s.Run("active window visible", func() {
		grants, err := s.store.GrantsFor(s.ctx, s.principal, s.now)
		s.Require().NoError(err)
		s.Require().Len(grants, 1)
		s.Equal("tenant_admin", grants[0].RoleCode)
	})

	s.Run("future grant invisible until valid_from", func() {
		grants, err := s.store.GrantsFor(s.ctx, s.principal, s.now.Add(2*time.Hour))
		s.Require().NoError(err)
		s.Require().Len(grants, 1)
		s.Equal("auditor", grants[0].RoleCode)
	})

	s.Run("valid_until is exclusive", func() {
		grants, err := s.store.GrantsFor(s.ctx, s.principal, until)
		s.Require().NoError(err)
		for _, g := range grants {
			s.NotEqual("tenant_admin", g.RoleCode)
		}
	})

	s.Run("all windows visible to GrantsForAll", func() {
		grants, err := s.store.GrantsForAll(s.ctx, s.principal)
		s.Require().NoError(err)
		s.Len(grants, 2)
	})
}

func (s *StoreSuite) TestRevoke() {
	s.Require().NoError(s.store.Put(s.ctx, Grant{
		PrincipalID: s.principal, RoleCode: "tenant_admin", ScopeID: s.scope,
		ValidFrom: s.now.Add(-time.Hour),
	}))

	s.Require().NoError(s.store.Revoke(s.ctx, s.principal, "tenant_admin", s.scope, s.now))

	grants, err := s.store.GrantsFor(s.ctx, s.principal, s.now)
	s.Require().NoError(err)
	s.Empty(grants)

	s.Run("revoking an inactive grant is not found", func() {
		err := s.store.Revoke(s.ctx, s.principal, "tenant_admin", s.scope, s.now)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *StoreSuite) TestResourceGrants() {
	s.Require().NoError(s.store.PutResourceGrant(s.ctx, ResourceGrant{
		PrincipalID: s.principal, ScopeID: s.scope,
		ResourceTable: "work_requests", ResourceID: "wr-1",
		CapabilityCode: "work_requests.read",
		ValidFrom:      s.now.Add(-time.Minute),
		CreatedBy:      id.NewPrincipalID(),
	}))
	s.Require().NoError(s.store.PutResourceGrant(s.ctx, ResourceGrant{
		PrincipalID: s.principal, ScopeID: s.scope,
		ResourceTable: "reservations", ResourceID: "rsv-7",
		CapabilityCode: "reservations.read",
		ValidFrom:      s.now.Add(-time.Minute),
		CreatedBy:      id.NewPrincipalID(),
	}))

	s.Run("lookup by table and id", func() {
		overrides, err := s.store.ResourceGrantsFor(s.ctx, s.principal, "work_requests", "wr-1", s.now)
		s.Require().NoError(err)
		s.Require().Len(overrides, 1)
		s.Equal("work_requests.read", overrides[0].CapabilityCode)
	})

	s.Run("different resource id excluded", func() {
		overrides, err := s.store.ResourceGrantsFor(s.ctx, s.principal, "work_requests", "wr-2", s.now)
		s.Require().NoError(err)
		s.Empty(overrides)
	})

	s.Run("tables map groups capabilities", func() {
		tables, err := s.store.ResourceGrantTablesFor(s.ctx, s.principal, s.now)
		s.Require().NoError(err)
		s.Len(tables, 2)
		s.Equal([]string{"work_requests.read"}, tables["work_requests"])
	})

	s.Run("revoke by id", func() {
		overrides, err := s.store.ResourceGrantsFor(s.ctx, s.principal, "reservations", "rsv-7", s.now)
		s.Require().NoError(err)
		s.Require().Len(overrides, 1)

		s.Require().NoError(s.store.RevokeResourceGrant(s.ctx, overrides[0].ID, s.now))
		overrides, err = s.store.ResourceGrantsFor(s.ctx, s.principal, "reservations", "rsv-7", s.now)
		s.Require().NoError(err)
		s.Empty(overrides)
	})
}

func TestKnownResourceTable(t *testing.T) {
	cases := []struct {
		table string
		want  bool
	}{
		{"work_requests", true},
		{"reservations", true},
		{"jobs", true},
		{"service_runs", true},
		{"negotiations", true},
		{"secrets", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := KnownResourceTable(tc.table); got != tc.want {
			t.Fatalf("KnownResourceTable(%q) = %v, want %v", tc.table, got, tc.want)
		}
	}
}
