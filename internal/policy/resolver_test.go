package policy

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	id "gatehouse/pkg/domain"
	derrors "gatehouse/pkg/domain-errors"
)

type ResolverSuite struct {
	suite.Suite

	ctx      context.Context
	store    *InMemory
	resolver *Resolver
	tenantID id.TenantID
	platform NegotiationPolicy
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = NewInMemory()
	s.resolver = NewResolver(s.store)
	s.tenantID = id.TenantID(id.NewScopeID())

	s.platform = NegotiationPolicy{
		ID:                   id.NewPolicyID(),
		NegotiationType:      "booking",
		MaxTurns:             6,
		AllowCounter:         true,
		AllowProposalContext: true,
		CloseOnAccept:        true,
		UpdatedAt:            time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}
	s.Require().NoError(s.store.Put(s.ctx, &s.platform))
}

func (s *ResolverSuite) TestPlatformDefaultApplies() {
	effective, trace, err := s.resolver.Resolve(s.ctx, s.tenantID, "booking")
	s.Require().NoError(err)

	s.Equal(s.platform.ID, effective.ID)
	s.Equal(SourcePlatform, trace.EffectiveSource)
	s.Equal(s.platform.ID, trace.PlatformPolicyID)
	s.Nil(trace.TenantPolicyID)
	s.Equal(s.platform.ID, trace.EffectivePolicyID)
	s.Equal(ComputeHash(s.platform), trace.EffectiveHash)
}

func (s *ResolverSuite) TestTenantOverrideWins() {
	override := NegotiationPolicy{
		ID:              id.NewPolicyID(),
		TenantID:        &s.tenantID,
		NegotiationType: "booking",
		MaxTurns:        3,
		UpdatedAt:       time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC),
	}
	s.Require().NoError(s.store.Put(s.ctx, &override))

	effective, trace, err := s.resolver.Resolve(s.ctx, s.tenantID, "booking")
	s.Require().NoError(err)

	s.Equal(override.ID, effective.ID)
	s.Equal(3, effective.MaxTurns)
	s.Equal(SourceTenantOverride, trace.EffectiveSource)
	// The displaced platform row stays on the trace for proof exports.
	s.Equal(s.platform.ID, trace.PlatformPolicyID)
	s.Require().NotNil(trace.TenantPolicyID)
	s.Equal(override.ID, *trace.TenantPolicyID)
	s.Equal(ComputeHash(override), trace.EffectiveHash)

	s.Run("another tenant still gets the default", func() {
		other := id.TenantID(id.NewScopeID())
		effective, trace, err := s.resolver.Resolve(s.ctx, other, "booking")
		s.Require().NoError(err)
		s.Equal(s.platform.ID, effective.ID)
		s.Equal(SourcePlatform, trace.EffectiveSource)
	})
}

func (s *ResolverSuite) TestMissingPlatformDefaultIsNotFound() {
	_, _, err := s.resolver.Resolve(s.ctx, s.tenantID, "mediation")
	s.True(derrors.HasCode(err, derrors.CodeNotFound))
}

func (s *ResolverSuite) TestEmptyTypeRejected() {
	_, _, err := s.resolver.Resolve(s.ctx, s.tenantID, "")
	s.True(derrors.HasCode(err, derrors.CodeValidation))
}
