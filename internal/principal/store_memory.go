package principal

import (
	"context"
	"sync"

	id "gatehouse/pkg/domain"
	"gatehouse/pkg/requestcontext"
	"gatehouse/pkg/sentinel"
)

// InMemory is the development and test implementation of Store.
type InMemory struct {
	mu         sync.RWMutex
	principals map[id.PrincipalID]*Principal
}

func NewInMemory() *InMemory {
	return &InMemory{principals: make(map[id.PrincipalID]*Principal)}
}

func (s *InMemory) Put(_ context.Context, p *Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *p
	s.principals[p.ID] = &cp
	return nil
}

func (s *InMemory) FindByID(_ context.Context, principalID id.PrincipalID) (*Principal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.principals[principalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *InMemory) Deactivate(_ context.Context, principalID id.PrincipalID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.principals[principalID]
	if !ok {
		return sentinel.ErrNotFound
	}
	p.Active = false
	return nil
}

// SessionInMemory is the in-memory SessionStore. Expired sessions are treated
// as absent on read so liveness never depends on a sweeper.
type SessionInMemory struct {
	mu       sync.Mutex
	sessions map[id.SessionID]*ImpersonationSession
}

func NewSessionInMemory() *SessionInMemory {
	return &SessionInMemory{sessions: make(map[id.SessionID]*ImpersonationSession)}
}

func (s *SessionInMemory) Create(_ context.Context, session *ImpersonationSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *session
	s.sessions[session.ID] = &cp
	return nil
}

func (s *SessionInMemory) Find(ctx context.Context, sessionID id.SessionID) (*ImpersonationSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if !session.ActiveAt(requestcontext.Now(ctx)) {
		delete(s.sessions, sessionID)
		return nil, sentinel.ErrNotFound
	}
	cp := *session
	return &cp, nil
}

func (s *SessionInMemory) Delete(_ context.Context, sessionID id.SessionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}
