package memory

import (
	"context"
	"sync"

	id "kycgate/pkg/domain"
	audit "kycgate/pkg/platform/audit"
)

// InMemoryStore keeps entries per user in append order.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[id.UserID][]audit.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[id.UserID][]audit.Entry)}
}

func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[entry.UserID] = append(s.entries[entry.UserID], entry)
	return nil
}

func (s *InMemoryStore) ListByUser(_ context.Context, userID id.UserID) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Entry{}, s.entries[userID]...), nil
}

// Count returns the number of entries across all users.
func (s *InMemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		n += len(e)
	}
	return n
}
