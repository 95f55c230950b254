package session

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

var ErrSessionNotFound = errors.New("session: not found")

// Manager is the in-memory registry of live sessions. Sessions are
// registered once and superseded by newer ones, never removed; each
// session serializes its own mutations, the manager only guards the
// registry map.
type Manager struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[uuid.UUID]*Session)}
}

func (m *Manager) Add(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID()] = s
}

func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (m *Manager) List() []Description {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Description, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s.Describe())
	}
	return out
}
