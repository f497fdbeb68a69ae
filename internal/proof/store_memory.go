package proof

import (
	"context"
	"sync"

	"gatehouse/pkg/sentinel"
)

// InMemory is the development and test implementation of Store.
type InMemory struct {
	mu           sync.RWMutex
	fingerprints map[string]struct{}
	audits       []PolicyAuditEvent
	events       []NegotiationEvent
	runs         map[string]Run
}

func NewInMemory() *InMemory {
	return &InMemory{
		fingerprints: make(map[string]struct{}),
		runs:         make(map[string]Run),
	}
}

func (s *InMemory) PutRun(_ context.Context, run Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

func (s *InMemory) FindRun(_ context.Context, runID string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &run, nil
}

func (s *InMemory) AppendPolicyAudit(_ context.Context, event PolicyAuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.fingerprints[event.Fingerprint]; dup {
		return sentinel.ErrAlreadyUsed
	}
	s.fingerprints[event.Fingerprint] = struct{}{}
	s.audits = append(s.audits, event)
	return nil
}

func (s *InMemory) PolicyAuditsByRun(_ context.Context, runID string) ([]PolicyAuditEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auditsByRunLocked(runID), nil
}

func (s *InMemory) NegotiationEventsByRun(_ context.Context, runID string) ([]NegotiationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.eventsByRunLocked(runID), nil
}

func (s *InMemory) RunRows(_ context.Context, runID string) ([]PolicyAuditEvent, []NegotiationEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auditsByRunLocked(runID), s.eventsByRunLocked(runID), nil
}

func (s *InMemory) PutNegotiationEvent(_ context.Context, event NegotiationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ProposalContext != nil {
		ctx := *event.ProposalContext
		event.ProposalContext = &ctx
	}
	s.events = append(s.events, event)
	return nil
}

func (s *InMemory) auditsByRunLocked(runID string) []PolicyAuditEvent {
	var out []PolicyAuditEvent
	for _, a := range s.audits {
		if a.RunID == runID {
			cp := a
			if a.Metadata != nil {
				cp.Metadata = make(map[string]string, len(a.Metadata))
				for k, v := range a.Metadata {
					cp.Metadata[k] = v
				}
			}
			out = append(out, cp)
		}
	}
	return out
}

func (s *InMemory) eventsByRunLocked(runID string) []NegotiationEvent {
	var out []NegotiationEvent
	for _, e := range s.events {
		if e.RunID == runID {
			cp := e
			if e.ProposalContext != nil {
				pc := *e.ProposalContext
				cp.ProposalContext = &pc
			}
			out = append(out, cp)
		}
	}
	return out
}
