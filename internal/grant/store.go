package grant

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "gatehouse/pkg/domain"
)

// Store is the authoritative grant source. Reads are time-filtered by the
// store so callers never see expired or not-yet-valid rows. Reads honor a
// transaction carried in context (pkg/platform/tx) so an evaluation's grant
// read and the audit append that follows it can share one transaction.
type Store interface {
	// GrantsFor returns all grants active for the principal at asOf.
	GrantsFor(ctx context.Context, principalID id.PrincipalID, asOf time.Time) ([]Grant, error)

	// GrantsForAll returns every grant row of the principal regardless of
	// validity. Snapshot and admin tooling filter by their own asOf.
	GrantsForAll(ctx context.Context, principalID id.PrincipalID) ([]Grant, error)

	// ResourceGrantsFor returns the active resource overrides for exactly
	// this principal/table/resource at asOf.
	ResourceGrantsFor(ctx context.Context, principalID id.PrincipalID, table, resourceID string, asOf time.Time) ([]ResourceGrant, error)

	// ResourceGrantTablesFor lists the distinct resource tables on which the
	// principal holds any active override at asOf, with the capability codes
	// granted per table. Used by the capability snapshot.
	ResourceGrantTablesFor(ctx context.Context, principalID id.PrincipalID, asOf time.Time) (map[string][]string, error)

	// Put records a grant. Administrative operation; postgres uses row-level
	// locking so a revocation is visible to evaluations started after it.
	Put(ctx context.Context, g Grant) error

	// PutResourceGrant records a resource override.
	PutResourceGrant(ctx context.Context, g ResourceGrant) error

	// Revoke ends a grant as of the given instant.
	Revoke(ctx context.Context, principalID id.PrincipalID, roleCode string, scopeID id.ScopeID, at time.Time) error

	// RevokeResourceGrant ends a resource override as of the given instant.
	RevokeResourceGrant(ctx context.Context, grantID uuid.UUID, at time.Time) error
}
