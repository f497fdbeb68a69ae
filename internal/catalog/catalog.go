package catalog

import (
	"fmt"

	derrors "gatehouse/pkg/domain-errors"
)

// Catalog is the immutable capability and role vocabulary. Built once by Load
// and shared by reference; no mutation after construction, so reads need no
// locking.
type Catalog struct {
	capabilities map[string]struct{}
	roleBundles  map[string]map[string]struct{}
	external     map[externalKey]string
}

type externalKey struct {
	system   string
	roleCode string
}

// Load validates the seed and builds the catalog. Validation failures are
// startup errors: the engine must refuse to serve with a half-configured
// vocabulary.
func Load(seed Seed) (*Catalog, error) {
	c := &Catalog{
		capabilities: make(map[string]struct{}, len(seed.Capabilities)),
		roleBundles:  make(map[string]map[string]struct{}, len(seed.Roles)),
		external:     make(map[externalKey]string),
	}

	for _, cap := range seed.Capabilities {
		if cap.Code == "" {
			return nil, derrors.New(derrors.CodeInvariantViolation, "capability with empty code")
		}
		c.capabilities[cap.Code] = struct{}{}
	}

	for _, role := range seed.Roles {
		if role.Code == "" {
			return nil, derrors.New(derrors.CodeInvariantViolation, "role with empty code")
		}
		if _, dup := c.roleBundles[role.Code]; dup {
			return nil, derrors.New(derrors.CodeInvariantViolation,
				fmt.Sprintf("duplicate role code %q", role.Code))
		}
		c.roleBundles[role.Code] = make(map[string]struct{})

		if role.ExternalSystem == "" && role.ExternalRoleCode == "" {
			continue
		}
		if role.ExternalSystem == "" || role.ExternalRoleCode == "" {
			return nil, derrors.New(derrors.CodeInvariantViolation,
				fmt.Sprintf("role %q has a partial external mapping", role.Code))
		}
		key := externalKey{system: role.ExternalSystem, roleCode: role.ExternalRoleCode}
		if existing, dup := c.external[key]; dup {
			return nil, derrors.New(derrors.CodeInvariantViolation,
				fmt.Sprintf("external role %s/%s mapped to both %q and %q",
					role.ExternalSystem, role.ExternalRoleCode, existing, role.Code))
		}
		c.external[key] = role.Code
	}

	for _, rc := range seed.RoleCapabilities {
		bundle, ok := c.roleBundles[rc.RoleCode]
		if !ok {
			return nil, derrors.New(derrors.CodeInvariantViolation,
				fmt.Sprintf("role capability references unknown role %q", rc.RoleCode))
		}
		if _, ok := c.capabilities[rc.CapabilityCode]; !ok {
			return nil, derrors.New(derrors.CodeInvariantViolation,
				fmt.Sprintf("role %q references unknown capability %q", rc.RoleCode, rc.CapabilityCode))
		}
		bundle[rc.CapabilityCode] = struct{}{}
	}

	for _, system := range seed.ExternalSystems {
		if !c.hasMappingFor(system) {
			return nil, derrors.New(derrors.CodeInvariantViolation,
				fmt.Sprintf("external system %q has zero role mappings configured", system))
		}
	}

	return c, nil
}

func (c *Catalog) hasMappingFor(system string) bool {
	for key := range c.external {
		if key.system == system {
			return true
		}
	}
	return false
}

// KnownCapability reports whether code is part of the vocabulary.
func (c *Catalog) KnownCapability(code string) bool {
	_, ok := c.capabilities[code]
	return ok
}

// CapabilitiesOf returns the capability bundle of a role. Unknown roles yield
// an empty set; the caller decides whether that is an error.
func (c *Catalog) CapabilitiesOf(roleCode string) map[string]struct{} {
	return c.roleBundles[roleCode]
}

// RoleHasCapability reports whether the role's bundle contains the capability.
func (c *Catalog) RoleHasCapability(roleCode, capabilityCode string) bool {
	_, ok := c.roleBundles[roleCode][capabilityCode]
	return ok
}

// RoleForExternal resolves a locked external mapping. An unmapped pair is a
// provisioning error (CodeNotMapped) surfaced to the caller; there is no
// default role to fall back to.
func (c *Catalog) RoleForExternal(system, externalRoleCode string) (string, error) {
	role, ok := c.external[externalKey{system: system, roleCode: externalRoleCode}]
	if !ok {
		return "", derrors.New(derrors.CodeNotMapped,
			fmt.Sprintf("no role mapped for external role %s/%s", system, externalRoleCode))
	}
	return role, nil
}

// Capabilities returns all capability codes, for snapshot fan-out.
func (c *Catalog) Capabilities() []string {
	out := make([]string, 0, len(c.capabilities))
	for code := range c.capabilities {
		out = append(out, code)
	}
	return out
}
