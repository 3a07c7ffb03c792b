package audit

import (
	"context"

	domain "tracevault/pkg/domain"
	pkgerrors "tracevault/pkg/domain-errors"
)

var (
	// ErrNotFound keeps storage-specific lookup misses consistent across implementations.
	ErrNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "record not found")
)

// Store is the queryable audit index: append-only rows partitioned by
// owner. Rows are independent, so concurrent appends need no
// coordination; there is no read-modify-write hazard here.
type Store interface {
	Append(ctx context.Context, event Event) error

	// ListByOwner returns all events for an owner, newest first.
	ListByOwner(ctx context.Context, owner domain.DID) ([]Event, error)
}
