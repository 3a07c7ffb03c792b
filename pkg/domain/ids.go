// Package domain provides type-safe identifiers to prevent mixing up IDs at compile time.
package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "tracevault/pkg/domain-errors"
)

// DID is a decentralized identifier (did:<method>:<method-specific-id>).
// It resolves to a document carrying verification keys; the vault never
// stores key material alongside it.
type DID string

// CredentialKey is the opaque key binding a stored credential to its
// metadata record. Freshly generated per issuance, never reused.
type CredentialKey uuid.UUID

// SigningKeyID names the per-owner mutable pointer in the naming layer.
// It is the identity of the key that endorses the latest log batch.
type SigningKeyID string

// Parse functions - use at trust boundaries (handlers, API inputs).

// ParseDID validates the three-part did:<method>:<suffix> shape. Method
// internals are not interpreted here; resolution decides whether the
// identifier is known.
func ParseDID(s string) (DID, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "DID cannot be empty")
	}
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] != "did" || parts[1] == "" || parts[2] == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid DID format")
	}
	return DID(s), nil
}

func ParseCredentialKey(s string) (CredentialKey, error) {
	if s == "" {
		return CredentialKey(uuid.Nil), dErrors.New(dErrors.CodeBadRequest, "credential key cannot be empty")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return CredentialKey(uuid.Nil), dErrors.New(dErrors.CodeBadRequest, "invalid credential key format")
	}
	return CredentialKey(id), nil
}

// NewCredentialKey generates a fresh random key. Collisions are not
// expected; the metadata store still refuses to overwrite on the off
// chance one occurs.
func NewCredentialKey() CredentialKey {
	return CredentialKey(uuid.New())
}

// String methods - for logging and persistence.

func (d DID) String() string           { return string(d) }
func (k CredentialKey) String() string { return uuid.UUID(k).String() }
func (id SigningKeyID) String() string { return string(id) }

// IsNil checks - used for service-layer validation.

func (d DID) IsNil() bool           { return d == "" }
func (k CredentialKey) IsNil() bool { return uuid.UUID(k) == uuid.Nil }
func (id SigningKeyID) IsNil() bool { return id == "" }

// Method extracts the DID method name ("ion" for did:ion:...). Returns
// empty string for a zero DID.
func (d DID) Method() string {
	parts := strings.SplitN(string(d), ":", 3)
	if len(parts) != 3 {
		return ""
	}
	return parts[1]
}
