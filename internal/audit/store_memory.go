package audit

import (
	"context"
	"sort"
	"sync"

	domain "tracevault/pkg/domain"
)

// InMemoryStore holds events per owner for tests or local use. Safe for
// concurrent access; does not persist across process restarts.
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[domain.DID][]Event
}

// NewInMemoryStore constructs an empty in-memory audit store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[domain.DID][]Event)}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[event.Owner] = append(s.events[event.Owner], event)
	return nil
}

func (s *InMemoryStore) ListByOwner(_ context.Context, owner domain.DID) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]Event{}, s.events[owner]...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Count reports the number of events held for an owner. Test helper.
func (s *InMemoryStore) Count(owner domain.DID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events[owner])
}

var _ Store = (*InMemoryStore)(nil)
