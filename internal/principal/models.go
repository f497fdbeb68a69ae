package principal

import (
	"time"

	id "gatehouse/pkg/domain"
)

// Type classifies principals.
type Type string

const (
	TypeUser    Type = "user"
	TypeService Type = "service"
)

// Principal is an authenticated actor capable of holding grants. Principals
// are deactivated, never hard-deleted, so audit rows always resolve.
type Principal struct {
	ID          id.PrincipalID
	Type        Type
	DisplayName string
	Active      bool
	CreatedAt   time.Time
}

// ImpersonationSession lets a platform operator act as a tenant or as a
// specific individual. The two axes are independent: a session may carry a
// tenant context without an individual, an individual without a tenant, both,
// or neither.
type ImpersonationSession struct {
	ID           id.SessionID
	OperatorID   id.PrincipalID
	TenantID     *id.TenantID
	IndividualID *id.PrincipalID
	Reason       string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

// ActiveAt reports whether the session is live at the instant. Stop deletes
// the session record, so existence plus an unexpired window is the whole
// liveness test; a reader can never observe active and expired at once.
func (s *ImpersonationSession) ActiveAt(now time.Time) bool {
	return now.Before(s.ExpiresAt)
}

// StartRequest carries the operator's intent. Reason and duration are both
// required.
type StartRequest struct {
	Reason        string
	DurationHours int
	TenantID      *id.TenantID
	IndividualID  *id.PrincipalID
}
