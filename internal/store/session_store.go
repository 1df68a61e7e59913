package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"executor-metrics-backend/internal/presenter"
)

var (
	ErrSessionNotFound = errors.New("live session not found")
)

// Session is one viewer following one run.
type Session struct {
	ID        string
	RunID     string
	CreatedAt time.Time
	Presenter *presenter.LivePresenter
	cancel    context.CancelFunc
}

// Stop cancels the session's stream consumer.
func (s *Session) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
}

// SessionStore tracks open live sessions.
type SessionStore interface {
	Create(runID string, p *presenter.LivePresenter, cancel context.CancelFunc) *Session
	Get(id string) (*Session, error)
	Remove(id string) (*Session, error)
	Count() int
}

type inMemorySessionStore struct {
	sessions map[string]*Session
	mu       sync.RWMutex
}

func NewInMemorySessionStore() SessionStore {
	return &inMemorySessionStore{
		sessions: make(map[string]*Session),
	}
}

func (s *inMemorySessionStore) Create(runID string, p *presenter.LivePresenter, cancel context.CancelFunc) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	session := &Session{
		ID:        uuid.NewString(),
		RunID:     runID,
		CreatedAt: time.Now(),
		Presenter: p,
		cancel:    cancel,
	}
	s.sessions[session.ID] = session
	return session
}

func (s *inMemorySessionStore) Get(id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if session, ok := s.sessions[id]; ok {
		return session, nil
	}
	return nil, ErrSessionNotFound
}

func (s *inMemorySessionStore) Remove(id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	delete(s.sessions, id)
	return session, nil
}

func (s *inMemorySessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
