package trace

import (
	"context"
	"sync"

	"tracevault/internal/blob"
	pkgerrors "tracevault/pkg/domain-errors"
)

var (
	// ErrNoPointer means the name has never been published. The first
	// append treats this as "start a new chain", not a failure.
	ErrNoPointer = pkgerrors.New(pkgerrors.CodeNotFound, "no pointer published for name")

	// ErrPointerConflict means the pointer moved between the caller's read
	// and its publish attempt. The losing writer re-reads and retries; a
	// blind overwrite here would silently drop the winner's entries.
	ErrPointerConflict = pkgerrors.New(pkgerrors.CodeConflict, "pointer changed since read")
)

// NameLayer is the mutable-pointer layer over the immutable blob store,
// one named pointer per chain.
type NameLayer interface {
	// Resolve returns the content id the name currently points at, or
	// ErrNoPointer if the name has never been published.
	Resolve(ctx context.Context, name string) (blob.ContentID, error)

	// CompareAndPublish moves name to next only if it still points at
	// expected (zero expected means "name must be unpublished"). Returns
	// ErrPointerConflict otherwise.
	CompareAndPublish(ctx context.Context, name string, expected, next blob.ContentID) error
}

// Receipt acknowledges a successful append: the pointer name and the
// content id it now resolves to.
type Receipt struct {
	Name      string         `json:"name"`
	ContentID blob.ContentID `json:"cid"`
}

// MemoryNameLayer is an in-process NameLayer. The mutex gives
// CompareAndPublish real atomicity, so concurrent-writer behavior is the
// same as against a remote pointer service.
type MemoryNameLayer struct {
	mu       sync.Mutex
	pointers map[string]blob.ContentID
}

func NewMemoryNameLayer() *MemoryNameLayer {
	return &MemoryNameLayer{pointers: make(map[string]blob.ContentID)}
}

func (l *MemoryNameLayer) Resolve(_ context.Context, name string) (blob.ContentID, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cid, ok := l.pointers[name]
	if !ok {
		return "", ErrNoPointer
	}
	return cid, nil
}

func (l *MemoryNameLayer) CompareAndPublish(_ context.Context, name string, expected, next blob.ContentID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if current := l.pointers[name]; current != expected {
		return ErrPointerConflict
	}
	l.pointers[name] = next
	return nil
}

var _ NameLayer = (*MemoryNameLayer)(nil)
