package catalog

// Capability is an atomic permission code, namespaced as "<domain>.<action>".
// The vocabulary is static: additions arrive through a new seed revision,
// never through runtime creation by tenants.
type Capability struct {
	Code string
}

// Role bundles capabilities. Roles that mirror an external system carry the
// locked mapping pair; a (ExternalSystem, ExternalRoleCode) pair maps to
// exactly one role code.
type Role struct {
	Code             string
	ExternalSystem   string
	ExternalRoleCode string
}

// RoleCapability links one role to one capability.
type RoleCapability struct {
	RoleCode       string
	CapabilityCode string
}

// Seed is the full static vocabulary loaded at startup.
type Seed struct {
	Capabilities     []Capability
	Roles            []Role
	RoleCapabilities []RoleCapability
	// ExternalSystems lists every external system the platform integrates
	// with. Load refuses a seed in which any of these has zero mappings.
	ExternalSystems []string
}
