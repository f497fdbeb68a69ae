package httptransport

// Request bodies are closed records: the decoder rejects unknown fields.

type checkRequest struct {
	CapabilityCode string `json:"capability_code"`
	ScopeID        string `json:"scope_id"`
}

type checkResourceRequest struct {
	CapabilityCode string `json:"capability_code"`
	ScopeID        string `json:"scope_id"`
	ResourceTable  string `json:"resource_table"`
	ResourceID     string `json:"resource_id"`
}

type impersonationStartRequest struct {
	Reason        string  `json:"reason"`
	DurationHours int     `json:"duration_hours"`
	TenantID      *string `json:"tenant_id,omitempty"`
	IndividualID  *string `json:"individual_id,omitempty"`
}

type policyUpsertRequest struct {
	TenantID               *string `json:"tenant_id,omitempty"`
	NegotiationType        string  `json:"negotiation_type"`
	MaxTurns               int     `json:"maxTurns"`
	AllowCounter           bool    `json:"allowCounter"`
	AllowProposalContext   bool    `json:"allowProposalContext"`
	CloseOnAccept          bool    `json:"closeOnAccept"`
	CloseOnDecline         bool    `json:"closeOnDecline"`
	ProviderCanInitiate    bool    `json:"providerCanInitiate"`
	StakeholderCanInitiate bool    `json:"stakeholderCanInitiate"`
}
