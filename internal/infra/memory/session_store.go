package memory

import (
	"context"
	"sync"

	"trivia-service/internal/app"
	"trivia-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
// Sessions are kept as snapshots so callers never share a live instance.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]app.SessionSnapshot
}

func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]app.SessionSnapshot),
	}
}

func (s *SessionStore) Save(_ context.Context, session *app.Session) error {
	snap := session.Snapshot()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[snap.ID] = snap
	return nil
}

func (s *SessionStore) Get(_ context.Context, id string) (*app.Session, error) {
	s.mu.RLock()
	snap, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return app.RestoreSession(snap)
}

func (s *SessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

// Len reports how many sessions are held.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
