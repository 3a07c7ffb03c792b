// Package identity consumes the external decentralized-identifier resolution
// protocol. The vault keeps no local key registry: every verification key is
// fetched through a Resolver, so trust is delegated entirely to the
// resolution layer and the gate stays stateless and re-verifiable.
package identity

import (
	"context"

	domain "tracevault/pkg/domain"
	pkgerrors "tracevault/pkg/domain-errors"
)

var (
	// ErrUnresolvable covers unknown identifiers, unreachable resolvers,
	// and resolved documents carrying no usable key material.
	ErrUnresolvable = pkgerrors.New(pkgerrors.CodeResolution, "identity could not be resolved")
)

// JSONWebKey carries the public key material published in a DID document.
// Only the members needed for signature verification are modeled.
type JSONWebKey struct {
	Kty string `json:"kty"`
	Crv string `json:"crv,omitempty"`
	Alg string `json:"alg,omitempty"`
	Kid string `json:"kid,omitempty"`
	X   string `json:"x,omitempty"`
	Y   string `json:"y,omitempty"`
	N   string `json:"n,omitempty"`
	E   string `json:"e,omitempty"`
}

// VerificationMethod is one entry of a DID document's verificationMethod list.
type VerificationMethod struct {
	ID           string      `json:"id"`
	Type         string      `json:"type"`
	Controller   string      `json:"controller"`
	PublicKeyJwk *JSONWebKey `json:"publicKeyJwk,omitempty"`
}

// Document is the resolved DID document, reduced to what the gate consumes.
type Document struct {
	ID                 string               `json:"id"`
	VerificationMethod []VerificationMethod `json:"verificationMethod,omitempty"`
}

// FirstKey returns the first verification method carrying JWK material.
// The gate verifies against the document's first usable key, matching how
// tokens are produced by holders publishing a single signing key.
func (d *Document) FirstKey() (*JSONWebKey, error) {
	if d == nil {
		return nil, ErrUnresolvable
	}
	for _, vm := range d.VerificationMethod {
		if vm.PublicKeyJwk != nil {
			return vm.PublicKeyJwk, nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeResolution, "resolved document carries no usable key")
}

// Resolver resolves a DID to its document. Implementations must be safe for
// concurrent use and must honour context deadlines; a deadline hit surfaces
// as CodeResolutionTimeout.
type Resolver interface {
	Resolve(ctx context.Context, did domain.DID) (*Document, error)
}
