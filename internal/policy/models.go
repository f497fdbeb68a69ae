package policy

import (
	"time"

	id "gatehouse/pkg/domain"
)

// NegotiationPolicy governs one negotiation type. The same shape serves as
// platform default (nil TenantID) and tenant override. The seven behavior
// fields are the load-bearing set: they alone feed the canonical hash.
// Policies are closed records; unknown keys are rejected at the decode
// boundary, never passed through.
type NegotiationPolicy struct {
	ID                     id.PolicyID  `json:"id"`
	TenantID               *id.TenantID `json:"tenant_id,omitempty"`
	NegotiationType        string       `json:"negotiation_type"`
	MaxTurns               int          `json:"maxTurns"`
	AllowCounter           bool         `json:"allowCounter"`
	AllowProposalContext   bool         `json:"allowProposalContext"`
	CloseOnAccept          bool         `json:"closeOnAccept"`
	CloseOnDecline         bool         `json:"closeOnDecline"`
	ProviderCanInitiate    bool         `json:"providerCanInitiate"`
	StakeholderCanInitiate bool         `json:"stakeholderCanInitiate"`
	UpdatedAt              time.Time    `json:"updated_at"`
}

// Source says which policy row won resolution.
type Source string

const (
	SourcePlatform       Source = "platform"
	SourceTenantOverride Source = "tenant_override"
)

// Trace records which policy was effective for a resolution and the hash of
// its load-bearing fields. This is the audit system's primary means of
// detecting policy drift between recorded decisions.
type Trace struct {
	NegotiationType    string       `json:"negotiation_type"`
	EffectiveSource    Source       `json:"effective_source"`
	PlatformPolicyID   id.PolicyID  `json:"platform_policy_id"`
	TenantPolicyID     *id.PolicyID `json:"tenant_policy_id,omitempty"`
	EffectivePolicyID  id.PolicyID  `json:"effective_policy_id"`
	EffectiveUpdatedAt time.Time    `json:"effective_policy_updated_at"`
	EffectiveHash      string       `json:"effective_policy_hash"`
}
