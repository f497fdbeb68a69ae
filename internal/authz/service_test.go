package authz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gatehouse/internal/audit"
	"gatehouse/internal/catalog"
	"gatehouse/internal/grant"
	"gatehouse/internal/principal"
	"gatehouse/internal/scope"
	id "gatehouse/pkg/domain"
	"gatehouse/pkg/requestcontext"
)

type ServiceSuite struct {
	suite.Suite

	ctx        context.Context
	now        time.Time
	principals *principal.InMemory
	scopes     *scope.InMemory
	grants     *grant.InMemory
	ledger     *audit.InMemory
	service    *Service

	admin      id.PrincipalID
	inactive   id.PrincipalID
	tenant1    id.TenantID
	tenant2    id.TenantID
	orgScope   id.ScopeID
	t1Scope    id.ScopeID
	t2Scope    id.ScopeID
	t1Resource id.ScopeID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.principals = principal.NewInMemory()
	s.scopes = scope.NewInMemory()
	s.grants = grant.NewInMemory()
	s.ledger = audit.NewInMemory()

	cat, err := catalog.Load(catalog.DefaultSeed())
	s.Require().NoError(err)
	s.service = New(s.principals, s.scopes, cat, s.grants, s.ledger)

	s.admin = id.NewPrincipalID()
	s.Require().NoError(s.principals.Put(s.ctx, &principal.Principal{
		ID: s.admin, Type: principal.TypeUser, DisplayName: "Tenant Admin", Active: true,
	}))
	s.inactive = id.NewPrincipalID()
	s.Require().NoError(s.principals.Put(s.ctx, &principal.Principal{
		ID: s.inactive, Type: principal.TypeUser, DisplayName: "Former Employee", Active: false,
	}))

	s.tenant1 = id.TenantID(id.NewScopeID())
	s.tenant2 = id.TenantID(id.NewScopeID())

	platform := &scope.Scope{ID: id.PlatformScopeID, Type: scope.TypePlatform, Path: "/"}
	s.Require().NoError(s.scopes.Put(s.ctx, platform))

	s.orgScope = id.NewScopeID()
	s.Require().NoError(s.scopes.Put(s.ctx, &scope.Scope{
		ID: s.orgScope, Type: scope.TypeOrganization, Path: "/org-a", ParentID: &platform.ID,
	}))
	s.t1Scope = id.NewScopeID()
	s.Require().NoError(s.scopes.Put(s.ctx, &scope.Scope{
		ID: s.t1Scope, Type: scope.TypeTenant, Path: "/org-a/t1", ParentID: &s.orgScope, TenantID: &s.tenant1,
	}))
	s.t2Scope = id.NewScopeID()
	s.Require().NoError(s.scopes.Put(s.ctx, &scope.Scope{
		ID: s.t2Scope, Type: scope.TypeTenant, Path: "/org-a/t2", ParentID: &s.orgScope, TenantID: &s.tenant2,
	}))
	s.t1Resource = id.NewScopeID()
	s.Require().NoError(s.scopes.Put(s.ctx, &scope.Scope{
		ID: s.t1Resource, Type: scope.TypeResource, Path: "/org-a/t1/work-requests", ParentID: &s.t1Scope, TenantID: &s.tenant1,
	}))

	s.Require().NoError(s.grants.Put(s.ctx, grant.Grant{
		PrincipalID: s.admin, RoleCode: "tenant_admin", ScopeID: s.t1Scope, ValidFrom: s.now.Add(-time.Hour),
	}))
}

func (s *ServiceSuite) lastEntry() audit.Entry {
	entries := s.ledger.All()
	s.Require().NotEmpty(entries)
	return entries[len(entries)-1]
}

func (s *ServiceSuite) TestGrantVisibleAtSelfAndDescendants() {
	s.Run("allow at granted scope", func() {
		allowed, err := s.service.HasCapability(s.ctx, s.admin, "work_requests.read", s.t1Scope)
		s.NoError(err)
		s.True(allowed)
		entry := s.lastEntry()
		s.Equal(audit.DecisionAllow, entry.Decision)
		s.Equal(audit.ReasonGranted, entry.Reason)
	})

	s.Run("allow at descendant resource scope", func() {
		allowed, err := s.service.HasCapability(s.ctx, s.admin, "work_requests.read", s.t1Resource)
		s.NoError(err)
		s.True(allowed)
	})

	s.Run("deny at unrelated tenant scope", func() {
		allowed, err := s.service.HasCapability(s.ctx, s.admin, "work_requests.read", s.t2Scope)
		s.NoError(err)
		s.False(allowed)
		entry := s.lastEntry()
		s.Equal(audit.DecisionDeny, entry.Decision)
		s.Equal(audit.ReasonNoMatchingGrant, entry.Reason)
	})

	s.Run("deny at ancestor of granted scope", func() {
		allowed, err := s.service.HasCapability(s.ctx, s.admin, "work_requests.read", s.orgScope)
		s.NoError(err)
		s.False(allowed)
		s.Equal(audit.ReasonNoMatchingGrant, s.lastEntry().Reason)
	})
}

func (s *ServiceSuite) TestFailClosedReasons() {
	s.Run("nil principal", func() {
		allowed, err := s.service.HasCapability(s.ctx, id.PrincipalID{}, "tenant.read", s.t1Scope)
		s.NoError(err)
		s.False(allowed)
		s.Equal(audit.ReasonNoEffectivePrincipal, s.lastEntry().Reason)
	})

	s.Run("unknown principal", func() {
		allowed, err := s.service.HasCapability(s.ctx, id.NewPrincipalID(), "tenant.read", s.t1Scope)
		s.NoError(err)
		s.False(allowed)
		s.Equal(audit.ReasonNoEffectivePrincipal, s.lastEntry().Reason)
	})

	s.Run("inactive principal", func() {
		allowed, err := s.service.HasCapability(s.ctx, s.inactive, "tenant.read", s.t1Scope)
		s.NoError(err)
		s.False(allowed)
		s.Equal(audit.ReasonNoEffectivePrincipal, s.lastEntry().Reason)
	})

	s.Run("unknown capability", func() {
		allowed, err := s.service.HasCapability(s.ctx, s.admin, "tenant.fly", s.t1Scope)
		s.NoError(err)
		s.False(allowed)
		s.Equal(audit.ReasonUnknownCapability, s.lastEntry().Reason)
	})

	s.Run("unknown scope", func() {
		allowed, err := s.service.HasCapability(s.ctx, s.admin, "tenant.read", id.NewScopeID())
		s.NoError(err)
		s.False(allowed)
		s.Equal(audit.ReasonUnknownScope, s.lastEntry().Reason)
	})
}

func (s *ServiceSuite) TestEveryCallWritesExactlyOneEntry() {
	before := len(s.ledger.All())

	_, _ = s.service.HasCapability(s.ctx, s.admin, "work_requests.read", s.t1Scope)
	_, _ = s.service.HasCapability(s.ctx, s.admin, "work_requests.read", s.t2Scope)
	_, _ = s.service.HasCapability(s.ctx, id.PrincipalID{}, "tenant.read", s.t1Scope)
	_, _ = s.service.CanAccessResource(s.ctx, s.admin, "work_requests.read", s.t1Scope, "work_requests", "wr-1")
	_, _ = s.service.CanAccessResource(s.ctx, s.admin, "work_requests.read", s.t1Scope, "bogus_table", "wr-1")

	s.Equal(before+5, len(s.ledger.All()))
}

func (s *ServiceSuite) TestResourceAccess() {
	other := id.NewPrincipalID()
	s.Require().NoError(s.principals.Put(s.ctx, &principal.Principal{
		ID: other, Type: principal.TypeUser, DisplayName: "Provider", Active: true,
	}))

	s.Run("unknown resource table denies before evaluation", func() {
		allowed, err := s.service.CanAccessResource(s.ctx, s.admin, "work_requests.read", s.t1Scope, "secrets", "x")
		s.NoError(err)
		s.False(allowed)
		entry := s.lastEntry()
		s.Equal(audit.ReasonUnknownResourceTable, entry.Reason)
		s.Equal(audit.ActionResourceAccessCheck, entry.Action)
	})

	s.Run("scope path allows without override", func() {
		allowed, err := s.service.CanAccessResource(s.ctx, s.admin, "work_requests.read", s.t1Resource, "work_requests", "wr-1")
		s.NoError(err)
		s.True(allowed)
		s.Equal(audit.ReasonGranted, s.lastEntry().Reason)
	})

	s.Run("resource grant rescues a scope denial", func() {
		allowed, err := s.service.CanAccessResource(s.ctx, other, "work_requests.read", s.t1Resource, "work_requests", "wr-1")
		s.NoError(err)
		s.False(allowed)

		s.Require().NoError(s.grants.PutResourceGrant(s.ctx, grant.ResourceGrant{
			PrincipalID:    other,
			ScopeID:        s.t1Resource,
			ResourceTable:  "work_requests",
			ResourceID:     "wr-1",
			CapabilityCode: "work_requests.read",
			ValidFrom:      s.now.Add(-time.Minute),
			CreatedBy:      s.admin,
		}))

		allowed, err = s.service.CanAccessResource(s.ctx, other, "work_requests.read", s.t1Resource, "work_requests", "wr-1")
		s.NoError(err)
		s.True(allowed)
		s.Equal(audit.ReasonResourceGrant, s.lastEntry().Reason)
	})

	s.Run("resource grant never covers a different resource", func() {
		allowed, err := s.service.CanAccessResource(s.ctx, other, "work_requests.read", s.t1Resource, "work_requests", "wr-2")
		s.NoError(err)
		s.False(allowed)
		s.Equal(audit.ReasonNoMatchingGrant, s.lastEntry().Reason)
	})

	s.Run("resource grant never rescues an unknown capability", func() {
		allowed, err := s.service.CanAccessResource(s.ctx, other, "work_requests.teleport", s.t1Resource, "work_requests", "wr-1")
		s.NoError(err)
		s.False(allowed)
		s.Equal(audit.ReasonUnknownCapability, s.lastEntry().Reason)
	})
}

func (s *ServiceSuite) TestExpiredGrantDenies() {
	expired := s.now.Add(-time.Minute)
	s.Require().NoError(s.grants.Revoke(s.ctx, s.admin, "tenant_admin", s.t1Scope, expired))

	allowed, err := s.service.HasCapability(s.ctx, s.admin, "work_requests.read", s.t1Scope)
	s.NoError(err)
	s.False(allowed)
	s.Equal(audit.ReasonNoMatchingGrant, s.lastEntry().Reason)
}

func (s *ServiceSuite) TestAuditRowCarriesRequestContext() {
	ctx := requestcontext.WithClientMetadata(s.ctx, "203.0.113.9", "workbench/2.1")
	ctx = requestcontext.WithRequestID(ctx, "req-42")
	ctx = requestcontext.WithRoute(ctx, "/authz/check")
	ctx = requestcontext.WithMethod(ctx, "POST")
	operator := id.NewPrincipalID()
	sessionID := id.NewSessionID()
	ctx = requestcontext.WithPrincipal(ctx, requestcontext.EffectivePrincipal{
		PrincipalID:         s.admin,
		AuthenticatedID:     operator,
		ImpersonationActive: true,
		SessionID:           sessionID,
	})

	allowed, err := s.service.HasCapability(ctx, s.admin, "work_requests.read", s.t1Scope)
	s.NoError(err)
	s.True(allowed)

	entry := s.lastEntry()
	s.Equal(operator, entry.PrincipalID)
	s.Equal(s.admin, entry.EffectivePrincipalID)
	s.Equal(sessionID.String(), entry.SessionID)
	s.Equal("203.0.113.9", entry.RequestIP)
	s.Equal("workbench/2.1", entry.UserAgent)
	s.Equal("/authz/check", entry.Route)
	s.Equal("POST", entry.Method)
	s.Equal("req-42", entry.Metadata["request_id"])
	s.Require().NotNil(entry.TenantID)
	s.Equal(s.tenant1, *entry.TenantID)
}

type failingLedger struct{}

func (failingLedger) Append(context.Context, audit.Entry) (id.EntryID, error) {
	return id.EntryID{}, errors.New("ledger unavailable")
}

func (s *ServiceSuite) TestLedgerFailureDeniesAndErrors() {
	cat, err := catalog.Load(catalog.DefaultSeed())
	s.Require().NoError(err)
	svc := New(s.principals, s.scopes, cat, s.grants, failingLedger{})

	allowed, err := svc.HasCapability(s.ctx, s.admin, "work_requests.read", s.t1Scope)
	s.Error(err)
	s.False(allowed)
}
