package catalog

// DefaultSeed is the shipped vocabulary. Changing it is a migration: new
// codes are appended, existing codes are never renamed, because grant rows
// and audit rows reference them by value.
func DefaultSeed() Seed {
	return Seed{
		Capabilities: []Capability{
			{Code: "platform.configure"},
			{Code: "platform.impersonate"},
			{Code: "platform.audit_export"},
			{Code: "org.read"},
			{Code: "org.manage"},
			{Code: "tenant.read"},
			{Code: "tenant.manage"},
			{Code: "tenant.grant"},
			{Code: "work_requests.read"},
			{Code: "work_requests.write"},
			{Code: "reservations.read"},
			{Code: "reservations.write"},
			{Code: "service_runs.read"},
			{Code: "service_runs.write"},
			{Code: "negotiations.read"},
			{Code: "negotiations.respond"},
		},
		Roles: []Role{
			{Code: "platform_admin"},
			{Code: "founder_operator"},
			{Code: "org_admin"},
			{Code: "tenant_admin", ExternalSystem: "workspace", ExternalRoleCode: "admin"},
			{Code: "tenant_member", ExternalSystem: "workspace", ExternalRoleCode: "member"},
			{Code: "provider", ExternalSystem: "workspace", ExternalRoleCode: "provider"},
			{Code: "auditor"},
		},
		RoleCapabilities: []RoleCapability{
			{RoleCode: "platform_admin", CapabilityCode: "platform.configure"},
			{RoleCode: "platform_admin", CapabilityCode: "platform.impersonate"},
			{RoleCode: "platform_admin", CapabilityCode: "platform.audit_export"},
			{RoleCode: "platform_admin", CapabilityCode: "org.read"},
			{RoleCode: "platform_admin", CapabilityCode: "org.manage"},
			{RoleCode: "platform_admin", CapabilityCode: "tenant.read"},
			{RoleCode: "platform_admin", CapabilityCode: "tenant.manage"},

			{RoleCode: "founder_operator", CapabilityCode: "platform.configure"},
			{RoleCode: "founder_operator", CapabilityCode: "platform.audit_export"},

			{RoleCode: "org_admin", CapabilityCode: "org.read"},
			{RoleCode: "org_admin", CapabilityCode: "org.manage"},
			{RoleCode: "org_admin", CapabilityCode: "tenant.read"},

			{RoleCode: "tenant_admin", CapabilityCode: "tenant.read"},
			{RoleCode: "tenant_admin", CapabilityCode: "tenant.manage"},
			{RoleCode: "tenant_admin", CapabilityCode: "tenant.grant"},
			{RoleCode: "tenant_admin", CapabilityCode: "work_requests.read"},
			{RoleCode: "tenant_admin", CapabilityCode: "work_requests.write"},
			{RoleCode: "tenant_admin", CapabilityCode: "reservations.read"},
			{RoleCode: "tenant_admin", CapabilityCode: "reservations.write"},
			{RoleCode: "tenant_admin", CapabilityCode: "service_runs.read"},
			{RoleCode: "tenant_admin", CapabilityCode: "service_runs.write"},
			{RoleCode: "tenant_admin", CapabilityCode: "negotiations.read"},
			{RoleCode: "tenant_admin", CapabilityCode: "negotiations.respond"},

			{RoleCode: "tenant_member", CapabilityCode: "tenant.read"},
			{RoleCode: "tenant_member", CapabilityCode: "work_requests.read"},
			{RoleCode: "tenant_member", CapabilityCode: "reservations.read"},
			{RoleCode: "tenant_member", CapabilityCode: "service_runs.read"},
			{RoleCode: "tenant_member", CapabilityCode: "negotiations.read"},

			{RoleCode: "provider", CapabilityCode: "service_runs.read"},
			{RoleCode: "provider", CapabilityCode: "service_runs.write"},
			{RoleCode: "provider", CapabilityCode: "negotiations.read"},
			{RoleCode: "provider", CapabilityCode: "negotiations.respond"},

			{RoleCode: "auditor", CapabilityCode: "platform.audit_export"},
			{RoleCode: "auditor", CapabilityCode: "tenant.read"},
		},
		ExternalSystems: []string{"workspace"},
	}
}
