package snapshot

import "time"

// Version is the published snapshot contract version. The response shape is
// locked: fields may be added, never renamed or restructured, because UI
// clients cache and branch on it.
const Version = "1"

// CapabilitySnapshot is the advisory aggregate served to clients. It is never
// an authorization source of truth; every protected operation re-evaluates.
type CapabilitySnapshot struct {
	Version              string         `json:"version"`
	GeneratedAt          time.Time      `json:"generatedAt"`
	PrincipalID          string         `json:"principal_id"`
	EffectivePrincipalID string         `json:"effective_principal_id"`
	Capabilities         CapabilitySets `json:"capabilities"`
}

// CapabilitySets groups reachable capability codes by scope level. Lists are
// sorted and deduplicated; empty levels serialize as empty arrays, never null.
type CapabilitySets struct {
	Platform      []string            `json:"platform"`
	Organization  []string            `json:"organization"`
	Tenant        []string            `json:"tenant"`
	ResourceTypes map[string][]string `json:"resource_types"`
}

// Count returns the total number of codes across all levels, recorded as
// capability_count on the success audit event.
func (s CapabilitySets) Count() int {
	n := len(s.Platform) + len(s.Organization) + len(s.Tenant)
	for _, codes := range s.ResourceTypes {
		n += len(codes)
	}
	return n
}

// Empty returns a versioned snapshot with no capabilities. Transports serve
// it when generation fails so error responses stay on the locked contract.
func Empty(generatedAt time.Time) *CapabilitySnapshot {
	return &CapabilitySnapshot{
		Version:      Version,
		GeneratedAt:  generatedAt,
		Capabilities: emptySets(),
	}
}

func emptySets() CapabilitySets {
	return CapabilitySets{
		Platform:      []string{},
		Organization:  []string{},
		Tenant:        []string{},
		ResourceTypes: map[string][]string{},
	}
}
