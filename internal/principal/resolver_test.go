package principal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"gatehouse/internal/audit"
	id "gatehouse/pkg/domain"
	derrors "gatehouse/pkg/domain-errors"
	"gatehouse/pkg/requestcontext"
)

type ResolverSuite struct {
	suite.Suite

	ctx        context.Context
	now        time.Time
	principals *InMemory
	sessions   *SessionInMemory
	ledger     *audit.InMemory
	resolver   *Resolver

	operator   id.PrincipalID
	individual id.PrincipalID
	tenantID   id.TenantID
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.now = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)

	s.principals = NewInMemory()
	s.sessions = NewSessionInMemory()
	s.ledger = audit.NewInMemory()
	s.resolver = NewResolver(s.principals, s.sessions, s.ledger)

	s.operator = id.NewPrincipalID()
	s.Require().NoError(s.principals.Put(s.ctx, &Principal{
		ID: s.operator, Type: TypeUser, DisplayName: "Operator", Active: true,
	}))
	s.individual = id.NewPrincipalID()
	s.Require().NoError(s.principals.Put(s.ctx, &Principal{
		ID: s.individual, Type: TypeUser, DisplayName: "Member", Active: true,
	}))
	s.tenantID = id.TenantID(id.NewScopeID())
}

func (s *ResolverSuite) TestStartValidation() {
	s.Run("reason required", func() {
		_, err := s.resolver.Start(s.ctx, s.operator, StartRequest{DurationHours: 2})
		s.True(derrors.HasCode(err, derrors.CodeValidation))
	})

	s.Run("duration required", func() {
		_, err := s.resolver.Start(s.ctx, s.operator, StartRequest{Reason: "support ticket 812"})
		s.True(derrors.HasCode(err, derrors.CodeValidation))
	})

	s.Run("unknown individual rejected", func() {
		ghost := id.NewPrincipalID()
		_, err := s.resolver.Start(s.ctx, s.operator, StartRequest{
			Reason: "support ticket 812", DurationHours: 2, IndividualID: &ghost,
		})
		s.True(derrors.HasCode(err, derrors.CodeNotFound))
	})

	s.Run("inactive individual rejected", func() {
		former := id.NewPrincipalID()
		s.Require().NoError(s.principals.Put(s.ctx, &Principal{ID: former, Type: TypeUser, Active: false}))
		_, err := s.resolver.Start(s.ctx, s.operator, StartRequest{
			Reason: "support ticket 812", DurationHours: 2, IndividualID: &former,
		})
		s.True(derrors.HasCode(err, derrors.CodeValidation))
	})
}

func (s *ResolverSuite) TestStartStopLifecycle() {
	session, err := s.resolver.Start(s.ctx, s.operator, StartRequest{
		Reason: "support ticket 812", DurationHours: 2, TenantID: &s.tenantID,
	})
	s.Require().NoError(err)
	s.Equal(s.now.Add(2*time.Hour), session.ExpiresAt)

	entries := s.ledger.All()
	s.Require().Len(entries, 1)
	s.Equal(audit.ActionImpersonationStarted, entries[0].Action)
	s.Equal(s.operator, entries[0].PrincipalID)

	s.Require().NoError(s.resolver.Stop(s.ctx, s.operator, session.ID))
	entries = s.ledger.All()
	s.Require().Len(entries, 2)
	s.Equal(audit.ActionImpersonationStopped, entries[1].Action)

	s.Run("stopping again is an invalid transition", func() {
		err := s.resolver.Stop(s.ctx, s.operator, session.ID)
		s.True(derrors.HasCode(err, derrors.CodeInvalidTransition))
	})

	s.Run("status after stop is not found", func() {
		_, err := s.resolver.Status(s.ctx, session.ID)
		s.True(derrors.HasCode(err, derrors.CodeNotFound))
	})
}

func (s *ResolverSuite) TestResolveAxes() {
	s.Run("nil authenticated id errors", func() {
		_, err := s.resolver.Resolve(s.ctx, id.PrincipalID{}, id.SessionID{})
		s.True(derrors.HasCode(err, derrors.CodeValidation))
	})

	s.Run("no session resolves to authenticated principal", func() {
		ep, err := s.resolver.Resolve(s.ctx, s.operator, id.SessionID{})
		s.Require().NoError(err)
		s.Equal(s.operator, ep.PrincipalID)
		s.Equal(s.operator, ep.AuthenticatedID)
		s.False(ep.ImpersonationActive)
	})

	s.Run("expired session falls back without impersonation", func() {
		ep, err := s.resolver.Resolve(s.ctx, s.operator, id.NewSessionID())
		s.Require().NoError(err)
		s.False(ep.ImpersonationActive)
	})

	s.Run("tenant context without individual", func() {
		session, err := s.resolver.Start(s.ctx, s.operator, StartRequest{
			Reason: "browse as tenant", DurationHours: 1, TenantID: &s.tenantID,
		})
		s.Require().NoError(err)

		ep, err := s.resolver.Resolve(s.ctx, s.operator, session.ID)
		s.Require().NoError(err)
		s.True(ep.ImpersonationActive)
		s.Equal(s.operator, ep.PrincipalID)
		s.Require().NotNil(ep.TenantContext)
		s.Equal(s.tenantID, *ep.TenantContext)
	})

	s.Run("individual selected switches effective id", func() {
		session, err := s.resolver.Start(s.ctx, s.operator, StartRequest{
			Reason: "reproduce member bug", DurationHours: 1, IndividualID: &s.individual,
		})
		s.Require().NoError(err)

		ep, err := s.resolver.Resolve(s.ctx, s.operator, session.ID)
		s.Require().NoError(err)
		s.True(ep.ImpersonationActive)
		s.Equal(s.individual, ep.PrincipalID)
		s.Equal(s.operator, ep.AuthenticatedID)
		s.Nil(ep.TenantContext)
	})
}

func (s *ResolverSuite) TestSessionExpiryIsAtomicWithReads() {
	session, err := s.resolver.Start(s.ctx, s.operator, StartRequest{
		Reason: "short session", DurationHours: 1,
	})
	s.Require().NoError(err)

	// A read one second past expiry must observe no session at all.
	later := requestcontext.WithTime(context.Background(), s.now.Add(time.Hour+time.Second))
	ep, err := s.resolver.Resolve(later, s.operator, session.ID)
	s.Require().NoError(err)
	s.False(ep.ImpersonationActive)
}
