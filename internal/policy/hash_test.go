package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	id "gatehouse/pkg/domain"
)

func basePolicy() NegotiationPolicy {
	return NegotiationPolicy{
		ID:                     id.NewPolicyID(),
		NegotiationType:        "booking",
		MaxTurns:               6,
		AllowCounter:           true,
		AllowProposalContext:   true,
		CloseOnAccept:          true,
		CloseOnDecline:         false,
		ProviderCanInitiate:    true,
		StakeholderCanInitiate: true,
		UpdatedAt:              time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC),
	}
}

func TestComputeHashIgnoresBookkeeping(t *testing.T) {
	a := basePolicy()
	b := basePolicy()
	b.ID = id.NewPolicyID()
	b.UpdatedAt = b.UpdatedAt.Add(48 * time.Hour)
	tenant := id.TenantID(id.NewScopeID())
	b.TenantID = &tenant

	assert.Equal(t, ComputeHash(a), ComputeHash(b))
	assert.Len(t, ComputeHash(a), 64)
}

func TestComputeHashCoversEveryBehaviorField(t *testing.T) {
	base := ComputeHash(basePolicy())

	mutations := map[string]func(*NegotiationPolicy){
		"maxTurns":               func(p *NegotiationPolicy) { p.MaxTurns = 7 },
		"allowCounter":           func(p *NegotiationPolicy) { p.AllowCounter = false },
		"allowProposalContext":   func(p *NegotiationPolicy) { p.AllowProposalContext = false },
		"closeOnAccept":          func(p *NegotiationPolicy) { p.CloseOnAccept = false },
		"closeOnDecline":         func(p *NegotiationPolicy) { p.CloseOnDecline = true },
		"providerCanInitiate":    func(p *NegotiationPolicy) { p.ProviderCanInitiate = false },
		"stakeholderCanInitiate": func(p *NegotiationPolicy) { p.StakeholderCanInitiate = false },
	}
	for field, mutate := range mutations {
		t.Run(field, func(t *testing.T) {
			p := basePolicy()
			mutate(&p)
			assert.NotEqual(t, base, ComputeHash(p))
		})
	}
}
