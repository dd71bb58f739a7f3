package session

import (
	"context"
	"sync"
	"time"

	"watchnext-suggestion-service/internal/models"
)

type memoryEntry struct {
	state     models.ConversationState
	expiresAt time.Time
}

// MemoryStore implements Store in process memory. It is the fallback when
// Redis is unavailable and the backend used by tests. Expired entries are
// dropped lazily on access.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[int64]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryStore creates a new MemoryStore.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		entries: make(map[int64]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Get returns the user's conversation state, or the idle state if none is
// cached or the entry has expired.
func (s *MemoryStore) Get(_ context.Context, userID int64) (models.ConversationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[userID]
	if !ok || s.now().After(e.expiresAt) {
		delete(s.entries, userID)
		return models.IdleState(), nil
	}
	return e.state, nil
}

// Set overwrites the user's conversation state and refreshes its TTL.
func (s *MemoryStore) Set(_ context.Context, userID int64, st models.ConversationState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[userID] = memoryEntry{state: st, expiresAt: s.now().Add(s.ttl)}
	return nil
}

// Clear removes the user's conversation state.
func (s *MemoryStore) Clear(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, userID)
	return nil
}
