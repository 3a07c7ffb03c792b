package store

import (
	"context"
	"sync"

	"tracevault/internal/credential/models"
	domain "tracevault/pkg/domain"
)

// InMemoryStore is an in-memory implementation of Store for tests or
// local use. Safe for concurrent access; does not persist.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[domain.CredentialKey]models.Record
}

// NewInMemoryStore constructs an empty in-memory metadata store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[domain.CredentialKey]models.Record)}
}

// Put stores a record, refusing to overwrite an existing key.
func (s *InMemoryStore) Put(_ context.Context, record models.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[record.Key]; exists {
		return ErrDuplicateKey
	}
	s.records[record.Key] = record
	return nil
}

// Get retrieves a record by key or returns ErrNotFound.
func (s *InMemoryStore) Get(_ context.Context, key domain.CredentialKey) (models.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if record, ok := s.records[key]; ok {
		return record, nil
	}
	return models.Record{}, ErrNotFound
}

var _ Store = (*InMemoryStore)(nil)
