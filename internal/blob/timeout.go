package blob

import (
	"context"
	"errors"

	pkgerrors "tracevault/pkg/domain-errors"
)

// wrapTimeout distinguishes deadline hits from ordinary cancellation so a
// slow store surfaces as CodeBlobTimeout rather than a generic failure.
// Timeouts are never silently retried here; retry policy belongs to callers.
func wrapTimeout(err error, msg string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(err, pkgerrors.CodeBlobTimeout, msg)
	}
	return pkgerrors.Wrap(err, pkgerrors.CodeStorage, msg)
}
