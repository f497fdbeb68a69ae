package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// hashInput fixes the canonical serialization of the seven load-bearing
// fields. Keys are emitted in lexical order by construction (Go's
// encoding/json serializes struct fields in declaration order, so the fields
// are declared sorted); id and updated_at never participate, so two policies
// differing only in bookkeeping hash identically.
type hashInput struct {
	AllowCounter           bool `json:"allowCounter"`
	AllowProposalContext   bool `json:"allowProposalContext"`
	CloseOnAccept          bool `json:"closeOnAccept"`
	CloseOnDecline         bool `json:"closeOnDecline"`
	MaxTurns               int  `json:"maxTurns"`
	ProviderCanInitiate    bool `json:"providerCanInitiate"`
	StakeholderCanInitiate bool `json:"stakeholderCanInitiate"`
}

// ComputeHash returns the SHA-256 hex digest of the policy's canonical form.
func ComputeHash(p NegotiationPolicy) string {
	canonical, err := json.Marshal(hashInput{
		AllowCounter:           p.AllowCounter,
		AllowProposalContext:   p.AllowProposalContext,
		CloseOnAccept:          p.CloseOnAccept,
		CloseOnDecline:         p.CloseOnDecline,
		MaxTurns:               p.MaxTurns,
		ProviderCanInitiate:    p.ProviderCanInitiate,
		StakeholderCanInitiate: p.StakeholderCanInitiate,
	})
	if err != nil {
		// Marshalling a fixed struct of bools and an int cannot fail.
		panic(err)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}
