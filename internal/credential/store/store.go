package store

import (
	"context"

	"tracevault/internal/credential/models"
	domain "tracevault/pkg/domain"
	pkgerrors "tracevault/pkg/domain-errors"
)

var (
	// ErrNotFound keeps storage-specific lookup misses consistent across implementations.
	ErrNotFound = pkgerrors.New(pkgerrors.CodeNotFound, "credential not found")

	// ErrDuplicateKey signals that a key is already bound. Keys are freshly
	// generated UUIDs, so collisions are vanishingly rare, but a put must
	// never silently overwrite an existing record.
	ErrDuplicateKey = pkgerrors.New(pkgerrors.CodeDuplicateKey, "credential key already exists")
)

// Store is the metadata index. No update or delete is exposed: records
// are immutable once written.
type Store interface {
	Put(ctx context.Context, record models.Record) error
	Get(ctx context.Context, key domain.CredentialKey) (models.Record, error)
}
