package session

import (
	"sync"

	"github.com/google/uuid"
)

type sessionKey struct {
	testID      uuid.UUID
	candidateID int
}

// Manager is the registry of live controllers. It enforces the at-most-one
// active attempt rule: a candidate can hold at most one controller per test,
// and registering while one exists returns the existing controller instead.
type Manager struct {
	mu       sync.Mutex
	sessions map[sessionKey]*Controller
}

// NewManager creates an empty registry.
func NewManager() *Manager {
	return &Manager{sessions: make(map[sessionKey]*Controller)}
}

// Register stores the controller unless one already exists for the same
// test and candidate. Returns the controller that is now registered and
// whether it was the caller's.
func (m *Manager) Register(testID uuid.UUID, candidateID int, c *Controller) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey{testID: testID, candidateID: candidateID}
	if existing, ok := m.sessions[key]; ok {
		return existing, false
	}
	m.sessions[key] = c
	return c, true
}

// Get returns the live controller for a test-candidate pair, if any.
func (m *Manager) Get(testID uuid.UUID, candidateID int) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.sessions[sessionKey{testID: testID, candidateID: candidateID}]
	return c, ok
}

// Remove drops the registration, but only while it still points at c.
// A terminal session's asynchronous cleanup must not evict a successor
// that already took the slot.
func (m *Manager) Remove(testID uuid.UUID, candidateID int, c *Controller) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := sessionKey{testID: testID, candidateID: candidateID}
	if m.sessions[key] == c {
		delete(m.sessions, key)
	}
}

// TeardownAll tears down every live session. Used on server shutdown so
// media handles are released and no countdown outlives the process.
func (m *Manager) TeardownAll() {
	m.mu.Lock()
	controllers := make([]*Controller, 0, len(m.sessions))
	for _, c := range m.sessions {
		controllers = append(controllers, c)
	}
	m.sessions = make(map[sessionKey]*Controller)
	m.mu.Unlock()

	for _, c := range controllers {
		c.Teardown()
	}
}
