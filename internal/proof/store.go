package proof

import (
	"context"
)

// Store holds policy audit events and negotiation run events. Reads of a
// run's rows must be mutually consistent; the Postgres implementation takes
// a snapshot-isolated transaction, the memory implementation copies under a
// single lock acquisition.
type Store interface {
	// AppendPolicyAudit inserts one event. A second event with the same
	// fingerprint returns sentinel.ErrAlreadyUsed.
	AppendPolicyAudit(ctx context.Context, event PolicyAuditEvent) error
	// PolicyAuditsByRun returns all policy audit events for the run, in
	// store order (the builder sorts).
	PolicyAuditsByRun(ctx context.Context, runID string) ([]PolicyAuditEvent, error)
	// NegotiationEventsByRun returns all negotiation events for the run,
	// consistent with PolicyAuditsByRun when both are read inside RunRows.
	NegotiationEventsByRun(ctx context.Context, runID string) ([]NegotiationEvent, error)
	// RunRows reads both event sets for a run in one consistent view.
	RunRows(ctx context.Context, runID string) ([]PolicyAuditEvent, []NegotiationEvent, error)
	// PutNegotiationEvent stores one negotiation turn.
	PutNegotiationEvent(ctx context.Context, event NegotiationEvent) error
	// FindRun returns the run record, or sentinel.ErrNotFound.
	FindRun(ctx context.Context, runID string) (*Run, error)
	// PutRun creates or replaces a run record.
	PutRun(ctx context.Context, run Run) error
}
