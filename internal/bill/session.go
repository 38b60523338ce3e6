package bill

import (
	"errors"
	"sync"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned when an operation references a session
// id the store does not hold
var ErrSessionNotFound = errors.New("session not found")

// Session is the state for one bill-splitting session: the ledger under
// edit and a non-fatal notice for the client (e.g. extraction failed,
// enter items manually).
type Session struct {
	ID     string `json:"id"`
	Ledger Ledger `json:"items"`
	Notice string `json:"notice,omitempty"`

	// generation is bumped each time an extraction starts or the
	// session resets. A completing extraction only applies when its
	// generation is still current, so a result superseded by a newer
	// upload (or a reset) is dropped.
	generation uint64
}

// clone returns a copy safe to hand out across the lock boundary
func (s *Session) clone() Session {
	ledger := make(Ledger, len(s.Ledger))
	copy(ledger, s.Ledger)
	return Session{
		ID:         s.ID,
		Ledger:     ledger,
		Notice:     s.Notice,
		generation: s.generation,
	}
}

// MemoryStore holds sessions in memory. Sessions are scoped to the
// process lifetime; nothing is persisted.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty session store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*Session),
	}
}

// Create makes a new empty session and returns it
func (m *MemoryStore) Create() Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	session := &Session{
		ID:     uuid.NewString(),
		Ledger: Ledger{},
	}
	m.sessions[session.ID] = session
	return session.clone()
}

// Get returns a copy of the session with the given id
func (m *MemoryStore) Get(id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session.clone(), nil
}

// Update applies fn to the session under the store lock and returns the
// resulting state. fn receives the live session; there is a single
// logical writer per session so no finer locking is needed.
func (m *MemoryStore) Update(id string, fn func(*Session) error) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	if err := fn(session); err != nil {
		return Session{}, err
	}
	return session.clone(), nil
}

// Reset discards the session's ledger and notice. Any in-flight
// extraction result for the old state is invalidated.
func (m *MemoryStore) Reset(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	session.Ledger = Ledger{}
	session.Notice = ""
	session.generation++
	return nil
}

// BeginExtraction marks a new extraction as the session's current one
// and returns its generation token. Starting another extraction (or a
// reset) supersedes it.
func (m *MemoryStore) BeginExtraction(id string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return 0, ErrSessionNotFound
	}
	session.generation++
	return session.generation, nil
}

// CompleteExtraction applies an extraction outcome if gen is still the
// session's current generation. Returns whether the result was applied;
// a stale result is dropped without touching the session.
func (m *MemoryStore) CompleteExtraction(id string, gen uint64, ledger Ledger, notice string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	session, ok := m.sessions[id]
	if !ok {
		return false, ErrSessionNotFound
	}
	if session.generation != gen {
		return false, nil
	}
	session.Ledger = ledger
	session.Notice = notice
	return true, nil
}
