package audit

import (
	"context"
	"time"

	id "gatehouse/pkg/domain"
)

// Store is the append-only ledger contract. There is deliberately no update
// or delete method: retention is handled outside this engine, and consumers
// only ever read.
type Store interface {
	// Append writes one entry and returns its id.
	Append(ctx context.Context, entry Entry) (id.EntryID, error)

	// ListByPrincipal returns entries for a principal within [from, to),
	// oldest first. Compliance read path.
	ListByPrincipal(ctx context.Context, principalID id.PrincipalID, from, to time.Time) ([]Entry, error)
}

// Recorder is the narrow interface evaluation code depends on.
type Recorder interface {
	Append(ctx context.Context, entry Entry) (id.EntryID, error)
}
