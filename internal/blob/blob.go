// Package blob wraps the external content-addressed store. Identical bytes
// always yield the identical ContentID, and written content is immutable;
// everything above this package relies on both properties.
package blob

import (
	"context"

	pkgerrors "tracevault/pkg/domain-errors"
)

var (
	// ErrNotFound is returned when a content id dereferences to nothing.
	// After a successful metadata lookup this signals store divergence.
	ErrNotFound = pkgerrors.New(pkgerrors.CodeBlobNotFound, "blob not found")
)

// ContentID is a deterministic identifier derived from a blob's bytes.
type ContentID string

func (c ContentID) String() string { return string(c) }
func (c ContentID) IsNil() bool    { return c == "" }

// Store is the boundary to the content-addressed store. Implementations
// must be safe for concurrent use and honour context deadlines on every
// call; a deadline hit surfaces as CodeBlobTimeout.
type Store interface {
	// Put writes bytes and returns their content address. Writing the same
	// bytes twice returns the same id.
	Put(ctx context.Context, data []byte) (ContentID, error)

	// Get streams back the bytes at the given address, or ErrNotFound.
	Get(ctx context.Context, id ContentID) ([]byte, error)
}
