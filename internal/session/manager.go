package session

import (
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrNotFound is returned for unknown session ids.
var ErrNotFound = errors.New("session not found")

// Manager owns the live sessions of a server process.
type Manager struct {
	predictor Predictor
	opts      Options
	logger    *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager returns a manager that creates sessions with opts.
func NewManager(predictor Predictor, opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	opts.Logger = logger
	return &Manager{
		predictor: predictor,
		opts:      opts,
		logger:    logger.Named("session_manager"),
		sessions:  make(map[string]*Session),
	}
}

// Create starts a new session.
func (m *Manager) Create() *Session {
	s := New(m.predictor, m.opts)
	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	m.logger.Debug("session created", zap.String("session_id", s.ID()))
	return s
}

// Get looks up a live session.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove closes and forgets a session.
func (m *Manager) Remove(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	s.Close()
	return nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close closes every session.
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range sessions {
		s.Close()
	}
}
