package grant

import (
	"time"

	"github.com/google/uuid"

	id "gatehouse/pkg/domain"
)

// Grant assigns a role's capability bundle to a principal at a scope. It is
// visible at the granted scope and every descendant. A nil ValidUntil means
// indefinite.
type Grant struct {
	PrincipalID id.PrincipalID
	RoleCode    string
	ScopeID     id.ScopeID
	ValidFrom   time.Time
	ValidUntil  *time.Time
}

// ActiveAt reports whether the grant window covers asOf
// (valid_from <= asOf < valid_until).
func (g Grant) ActiveAt(asOf time.Time) bool {
	if asOf.Before(g.ValidFrom) {
		return false
	}
	return g.ValidUntil == nil || asOf.Before(*g.ValidUntil)
}

// ResourceGrant is a narrow, explicit override granting one capability on one
// concrete resource instance, independent of the role/scope graph. Used for
// ad hoc sharing ("let this provider read this one request").
type ResourceGrant struct {
	ID             uuid.UUID
	PrincipalID    id.PrincipalID
	ScopeID        id.ScopeID
	ResourceTable  string
	ResourceID     string
	CapabilityCode string
	ValidFrom      time.Time
	ValidUntil     *time.Time
	CreatedBy      id.PrincipalID
}

// ActiveAt reports whether the override window covers asOf.
func (g ResourceGrant) ActiveAt(asOf time.Time) bool {
	if asOf.Before(g.ValidFrom) {
		return false
	}
	return g.ValidUntil == nil || asOf.Before(*g.ValidUntil)
}
