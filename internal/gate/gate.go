// Package gate verifies signed tokens against keys resolved from the
// claimed signer's DID document. The gate is stateless per call: any
// replica can re-verify the same token because no key material is held
// locally.
package gate

import (
	"context"
	"errors"
	"log/slog"

	"github.com/golang-jwt/jwt/v5"

	"tracevault/internal/identity"
	domain "tracevault/pkg/domain"
	pkgerrors "tracevault/pkg/domain-errors"
)

var (
	// ErrMalformedToken is returned when the envelope or its payload
	// cannot be decoded. Rejected before any external call is made.
	ErrMalformedToken = pkgerrors.New(pkgerrors.CodeMalformedToken, "input token is invalid")
)

// retrievalClaims is the payload of a retrieval token: {"value": "<key>"}.
type retrievalClaims struct {
	Value string `json:"value"`
	jwt.RegisteredClaims
}

// auditClaims is the payload of an audit-query token: {"did": "<owner>"}.
type auditClaims struct {
	DID string `json:"did"`
	jwt.RegisteredClaims
}

// DecodeRetrievalPayload extracts the credential key from a token without
// verifying its signature. Verification happens later, against the key of
// the audience recorded for that credential; decoding first is safe
// because nothing is released before the gate passes.
func DecodeRetrievalPayload(token string) (domain.CredentialKey, error) {
	var claims retrievalClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return domain.CredentialKey{}, ErrMalformedToken
	}
	key, err := domain.ParseCredentialKey(claims.Value)
	if err != nil {
		return domain.CredentialKey{}, ErrMalformedToken
	}
	return key, nil
}

// DecodeAuditPayload extracts the claimed owner DID from an audit-query
// token without verifying its signature.
func DecodeAuditPayload(token string) (domain.DID, error) {
	var claims auditClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return "", ErrMalformedToken
	}
	did, err := domain.ParseDID(claims.DID)
	if err != nil {
		return "", ErrMalformedToken
	}
	return did, nil
}

// Gate resolves a claimed identity's public key and verifies signed
// tokens against it.
type Gate struct {
	resolver identity.Resolver
	logger   *slog.Logger
}

// Option configures the Gate.
type Option func(*Gate)

// WithLogger sets a logger for verification diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gate) {
		g.logger = logger
	}
}

// New creates a signature gate backed by the given resolver.
func New(resolver identity.Resolver, opts ...Option) *Gate {
	g := &Gate{resolver: resolver}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Verify checks token's signature against the first verification key of
// claimed's resolved DID document.
//
// The result is (false, nil) for a syntactically valid but
// cryptographically failing signature; errors are reserved for
// resolution failures and structurally broken envelopes.
func (g *Gate) Verify(ctx context.Context, token string, claimed domain.DID) (bool, error) {
	doc, err := g.resolver.Resolve(ctx, claimed)
	if err != nil {
		return false, err
	}
	jwk, err := doc.FirstKey()
	if err != nil {
		return false, err
	}
	pub, err := jwk.PublicKey()
	if err != nil {
		return false, err
	}
	alg, err := jwk.SigningAlgorithm()
	if err != nil {
		return false, err
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{alg}),
		// Token payloads carry no registered claims; expiry belongs to the
		// calling layer's token issuance policy, not the gate.
		jwt.WithoutClaimsValidation(),
	)
	_, err = parser.Parse(token, func(t *jwt.Token) (any, error) {
		return pub, nil
	})
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, jwt.ErrTokenMalformed):
		return false, ErrMalformedToken
	default:
		// Signature mismatch, wrong algorithm, truncated signature: all are
		// a failed verification, not a gate malfunction.
		if g.logger != nil {
			g.logger.DebugContext(ctx, "token verification failed",
				"claimed", claimed.String(),
				"error", err,
			)
		}
		return false, nil
	}
}
