package blob

import (
	"context"
	"encoding/hex"
	"sync"

	"github.com/zeebo/blake3"
)

// MemoryStore is an in-process content-addressed store for tests and local
// runs. Addresses are hex-encoded BLAKE3 digests with a "b3:" prefix so
// they cannot be confused with keys from other stores.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[ContentID][]byte
}

// NewMemoryStore constructs an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[ContentID][]byte)}
}

// Put stores a copy of data under its content address.
func (s *MemoryStore) Put(ctx context.Context, data []byte) (ContentID, error) {
	if err := ctx.Err(); err != nil {
		return "", wrapTimeout(err, "blob put cancelled")
	}
	id := addressOf(data)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.blobs[id]; !ok {
		s.blobs[id] = append([]byte(nil), data...)
	}
	return id, nil
}

// Get returns a copy of the bytes at id, or ErrNotFound.
func (s *MemoryStore) Get(ctx context.Context, id ContentID) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, wrapTimeout(err, "blob get cancelled")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.blobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), data...), nil
}

// Len reports the number of distinct blobs held. Test helper.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}

func addressOf(data []byte) ContentID {
	sum := blake3.Sum256(data)
	return ContentID("b3:" + hex.EncodeToString(sum[:]))
}

var _ Store = (*MemoryStore)(nil)
