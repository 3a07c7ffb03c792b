// Package trace maintains the chained access log: every append stores a
// new batch in the content-addressed blob store and moves a per-owner
// named pointer onto it. Each batch records the content id of its
// predecessor, so the pointer's history is a verifiable hash chain.
package trace

import (
	"encoding/json"

	"github.com/gowebpki/jcs"

	"tracevault/internal/audit"
	"tracevault/internal/blob"
	pkgerrors "tracevault/pkg/domain-errors"
)

// Batch is one link of the chain: the owner's accumulated access events
// plus the content id of the previous link. The first link has no
// predecessor.
type Batch struct {
	Entries  []audit.Event  `json:"entries"`
	Previous blob.ContentID `json:"previous,omitempty"`
}

// EncodeBatch serializes a batch as canonical JSON (RFC 8785). Canonical
// form matters because the chain addresses batches by content: two
// replicas encoding the same batch must land on the same content id.
func EncodeBatch(batch Batch) ([]byte, error) {
	data, err := json.Marshal(batch)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "marshal batch")
	}
	canonical, err := jcs.Transform(data)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "canonicalize batch")
	}
	return canonical, nil
}

// DecodeBatch parses a stored batch. Callers translate failures into
// chain corruption: a published pointer must always dereference to a
// readable batch.
func DecodeBatch(data []byte) (Batch, error) {
	var batch Batch
	if err := json.Unmarshal(data, &batch); err != nil {
		return Batch{}, pkgerrors.Wrap(err, pkgerrors.CodeChainCorruption, "undecodable batch")
	}
	return batch, nil
}
