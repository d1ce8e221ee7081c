package drivers

import (
	"context"
	"sync"
	"time"

	"github.com/creastat/krishi"
	"github.com/creastat/krishi/session"
)

// InMemoryStore implements session.Store using an in-memory map with optimistic locking.
// Stored values are deep copies, so callers never share state with the store.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*session.SessionData
	now      func() time.Time
}

// NewInMemoryStore creates a new in-memory session store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]*session.SessionData),
		now:      time.Now,
	}
}

// Create implements session.Store.
func (s *InMemoryStore) Create(ctx context.Context, data *session.SessionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessions == nil {
		return krishi.ErrSessionClosed
	}
	if _, exists := s.sessions[data.ID]; exists {
		return krishi.ErrAlreadyExists
	}

	now := s.now()
	data.CreatedAt = now
	data.UpdatedAt = now
	data.Version = 1

	s.sessions[data.ID] = data.Clone()
	return nil
}

// Get implements session.Store.
func (s *InMemoryStore) Get(ctx context.Context, id string) (*session.SessionData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, exists := s.sessions[id]
	if !exists {
		return nil, nil
	}
	return data.Clone(), nil
}

// Update implements session.Store.
func (s *InMemoryStore) Update(ctx context.Context, data *session.SessionData) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.sessions[data.ID]
	if !exists {
		return krishi.ErrNotFound
	}
	if stored.Version != data.Version {
		return krishi.ErrVersionConflict
	}

	data.Version++
	data.UpdatedAt = s.now()

	s.sessions[data.ID] = data.Clone()
	return nil
}

// Delete implements session.Store.
func (s *InMemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, id)
	return nil
}

// Close implements session.Store.
func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions = nil
	return nil
}

var _ session.Store = (*InMemoryStore)(nil)
