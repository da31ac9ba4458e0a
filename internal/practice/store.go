package practice

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound is returned by Get and Delete when no session with
// the given ID exists.
var ErrSessionNotFound = errors.New("practice: session not found")

// Store keeps live sessions keyed by token. It replaces any process-wide
// registry: the caller owns the store, hands sessions to the engine one at
// a time, and decides when an idle session is abandoned.
//
// All implementations must be safe for concurrent use. The store guards
// only its own map; callers still serialize engine calls per session.
type Store interface {
	// Put registers a session. When the session has no ID, one is
	// generated and written back before storing.
	Put(ctx context.Context, s *Session) error

	// Get retrieves a session by ID.
	// Returns [ErrSessionNotFound] when no such session exists.
	Get(ctx context.Context, id string) (*Session, error)

	// Delete removes a session by ID.
	// Returns [ErrSessionNotFound] when no such session exists.
	Delete(ctx context.Context, id string) error

	// PruneIdle removes sessions whose last activity is older than maxIdle
	// relative to now, returning how many were removed.
	PruneIdle(ctx context.Context, now time.Time, maxIdle time.Duration) (int, error)
}

// Compile-time assertion that MemStore satisfies the Store interface.
var _ Store = (*MemStore)(nil)

// MemStore is a thread-safe, in-memory implementation of [Store].
type MemStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewMemStore returns an initialised [MemStore].
func NewMemStore() *MemStore {
	return &MemStore{
		sessions: make(map[string]*Session),
	}
}

// Put implements [Store.Put].
func (m *MemStore) Put(ctx context.Context, s *Session) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sessions == nil {
		m.sessions = make(map[string]*Session)
	}
	m.sessions[s.ID] = s
	return nil
}

// Get implements [Store.Get].
func (m *MemStore) Get(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Delete implements [Store.Delete].
func (m *MemStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(m.sessions, id)
	return nil
}

// PruneIdle implements [Store.PruneIdle].
func (m *MemStore) PruneIdle(ctx context.Context, now time.Time, maxIdle time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, s := range m.sessions {
		if now.Sub(s.LastActivity) > maxIdle {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Len returns the number of stored sessions.
func (m *MemStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
