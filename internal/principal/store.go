package principal

import (
	"context"

	id "gatehouse/pkg/domain"
)

// Store holds principal records.
type Store interface {
	// FindByID returns the principal or sentinel.ErrNotFound.
	FindByID(ctx context.Context, principalID id.PrincipalID) (*Principal, error)
	// Put creates or replaces a principal record.
	Put(ctx context.Context, p *Principal) error
	// Deactivate marks the principal inactive; the row is retained for audit
	// referential integrity.
	Deactivate(ctx context.Context, principalID id.PrincipalID) error
}

// SessionStore holds impersonation sessions. Start and stop must be atomic
// with respect to reads: Find on a stopped or expired session returns
// sentinel.ErrNotFound, never a half-dead record.
type SessionStore interface {
	Create(ctx context.Context, session *ImpersonationSession) error
	Find(ctx context.Context, sessionID id.SessionID) (*ImpersonationSession, error)
	Delete(ctx context.Context, sessionID id.SessionID) error
}
