// Package domain holds the identifier types shared across the engine.
//
// IDs are distinct named types over uuid.UUID so that a principal id can never
// be passed where a scope id is expected. Parse helpers validate external
// input at the boundary; zero values are treated as "absent" everywhere.
package domain

import "github.com/google/uuid"

type (
	// PrincipalID identifies an authenticated actor (user or service).
	PrincipalID uuid.UUID
	// ScopeID identifies a node in the authorization scope graph.
	ScopeID uuid.UUID
	// TenantID identifies a tenant organization.
	TenantID uuid.UUID
	// OrgID identifies an organization scope owner.
	OrgID uuid.UUID
	// SessionID identifies an impersonation session.
	SessionID uuid.UUID
	// PolicyID identifies a negotiation policy row.
	PolicyID uuid.UUID
	// EntryID identifies an audit ledger entry.
	EntryID uuid.UUID
)

// PlatformScopeID is the well-known singleton root of the scope graph. All
// other scopes are descendants of it.
var PlatformScopeID = ScopeID(uuid.MustParse("00000000-0000-0000-0000-000000000001"))

func (id PrincipalID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PrincipalID) String() string { return uuid.UUID(id).String() }

func (id ScopeID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ScopeID) String() string { return uuid.UUID(id).String() }

func (id TenantID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TenantID) String() string { return uuid.UUID(id).String() }

func (id OrgID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id OrgID) String() string { return uuid.UUID(id).String() }

func (id SessionID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id SessionID) String() string { return uuid.UUID(id).String() }

func (id PolicyID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PolicyID) String() string { return uuid.UUID(id).String() }

func (id EntryID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id EntryID) String() string { return uuid.UUID(id).String() }

// NewPrincipalID returns a fresh random principal id.
func NewPrincipalID() PrincipalID { return PrincipalID(uuid.New()) }

// NewScopeID returns a fresh random scope id.
func NewScopeID() ScopeID { return ScopeID(uuid.New()) }

// NewSessionID returns a fresh random session id.
func NewSessionID() SessionID { return SessionID(uuid.New()) }

// NewPolicyID returns a fresh random policy id.
func NewPolicyID() PolicyID { return PolicyID(uuid.New()) }

// ParsePrincipalID parses an external principal id string.
func ParsePrincipalID(s string) (PrincipalID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return PrincipalID{}, err
	}
	return PrincipalID(u), nil
}

// ParseScopeID parses an external scope id string.
func ParseScopeID(s string) (ScopeID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return ScopeID{}, err
	}
	return ScopeID(u), nil
}

// ParseTenantID parses an external tenant id string.
func ParseTenantID(s string) (TenantID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return TenantID{}, err
	}
	return TenantID(u), nil
}

// ParseSessionID parses an external session id string.
func ParseSessionID(s string) (SessionID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return SessionID{}, err
	}
	return SessionID(u), nil
}
