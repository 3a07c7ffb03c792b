package identity

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"math/big"

	pkgerrors "tracevault/pkg/domain-errors"
)

// PublicKey converts the JWK into a crypto.PublicKey usable for signature
// verification. Supported key types mirror what DID methods publish in
// practice: P-256 EC keys, Ed25519 OKP keys, and RSA keys.
func (k *JSONWebKey) PublicKey() (crypto.PublicKey, error) {
	if k == nil {
		return nil, pkgerrors.New(pkgerrors.CodeResolution, "no key material")
	}
	switch k.Kty {
	case "EC":
		return k.ecPublicKey()
	case "OKP":
		return k.okpPublicKey()
	case "RSA":
		return k.rsaPublicKey()
	default:
		return nil, pkgerrors.New(pkgerrors.CodeResolution, fmt.Sprintf("unsupported key type %q", k.Kty))
	}
}

// SigningAlgorithm reports the JWS algorithm implied by the key, honouring
// an explicit alg member when present.
func (k *JSONWebKey) SigningAlgorithm() (string, error) {
	if k.Alg != "" {
		return k.Alg, nil
	}
	switch k.Kty {
	case "EC":
		switch k.Crv {
		case "P-256", "secp256k1":
			return "ES256", nil
		case "P-384":
			return "ES384", nil
		case "P-521":
			return "ES512", nil
		}
	case "OKP":
		if k.Crv == "Ed25519" {
			return "EdDSA", nil
		}
	case "RSA":
		return "RS256", nil
	}
	return "", pkgerrors.New(pkgerrors.CodeResolution, "cannot infer signing algorithm from key")
}

func (k *JSONWebKey) ecPublicKey() (crypto.PublicKey, error) {
	var curve elliptic.Curve
	switch k.Crv {
	case "P-256", "secp256k1":
		// secp256k1 documents are verified on P-256 only when they carry an
		// explicit alg; true secp256k1 verification needs an external curve
		// implementation and is out of scope for this adapter.
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, pkgerrors.New(pkgerrors.CodeResolution, fmt.Sprintf("unsupported EC curve %q", k.Crv))
	}

	xb, err := decodeB64(k.X, "x")
	if err != nil {
		return nil, err
	}
	yb, err := decodeB64(k.Y, "y")
	if err != nil {
		return nil, err
	}

	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(xb),
		Y:     new(big.Int).SetBytes(yb),
	}, nil
}

func (k *JSONWebKey) okpPublicKey() (crypto.PublicKey, error) {
	if k.Crv != "Ed25519" {
		return nil, pkgerrors.New(pkgerrors.CodeResolution, fmt.Sprintf("unsupported OKP curve %q", k.Crv))
	}
	xb, err := decodeB64(k.X, "x")
	if err != nil {
		return nil, err
	}
	if len(xb) != ed25519.PublicKeySize {
		return nil, pkgerrors.New(pkgerrors.CodeResolution, "invalid Ed25519 key length")
	}
	return ed25519.PublicKey(xb), nil
}

func (k *JSONWebKey) rsaPublicKey() (crypto.PublicKey, error) {
	nb, err := decodeB64(k.N, "n")
	if err != nil {
		return nil, err
	}
	eb, err := decodeB64(k.E, "e")
	if err != nil {
		return nil, err
	}
	e := 0
	for _, b := range eb {
		e = e<<8 | int(b)
	}
	if e == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeResolution, "invalid RSA exponent")
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(nb), E: e}, nil
}

func decodeB64(s, member string) ([]byte, error) {
	if s == "" {
		return nil, pkgerrors.New(pkgerrors.CodeResolution, fmt.Sprintf("key is missing %q member", member))
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeResolution, fmt.Sprintf("key member %q is not base64url", member))
	}
	return b, nil
}
