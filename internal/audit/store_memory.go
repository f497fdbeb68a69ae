package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	id "gatehouse/pkg/domain"
	"gatehouse/pkg/requestcontext"
)

// InMemory is the development and test implementation of Store.
type InMemory struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewInMemory() *InMemory {
	return &InMemory{}
}

func (s *InMemory) Append(ctx context.Context, entry Entry) (id.EntryID, error) {
	if entry.ID.IsNil() {
		entry.ID = id.EntryID(uuid.New())
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = requestcontext.Now(ctx)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return entry.ID, nil
}

func (s *InMemory) ListByPrincipal(_ context.Context, principalID id.PrincipalID, from, to time.Time) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.entries {
		if e.PrincipalID != principalID && e.EffectivePrincipalID != principalID {
			continue
		}
		if e.CreatedAt.Before(from) || !e.CreatedAt.Before(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// All returns a copy of every entry, oldest first. Test helper.
func (s *InMemory) All() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
