package session

import (
	"sync"

	"github.com/google/uuid"
)

// Session pairs a State with its turn lock. Turns within one session are
// strictly sequential: callers hold the lock for the whole turn, delegate
// calls included.
type Session struct {
	mu    sync.Mutex
	State *State
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// Manager owns all live sessions, keyed by session id. Independent sessions
// share no mutable state, so they may run concurrently.
type Manager struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
}

func NewManager() *Manager {
	return &Manager{sessions: make(map[uuid.UUID]*Session)}
}

// Create registers a fresh session and returns it.
func (m *Manager) Create() *Session {
	s := &Session{State: New()}
	m.mu.Lock()
	m.sessions[s.State.ID] = s
	m.mu.Unlock()
	return s
}

// Get looks up a session by id.
func (m *Manager) Get(id uuid.UUID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Remove drops a session from the registry.
func (m *Manager) Remove(id uuid.UUID) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
