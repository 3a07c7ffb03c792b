package service

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracevault/internal/audit"
	"tracevault/internal/blob"
	"tracevault/internal/credential/models"
	"tracevault/internal/credential/store"
	"tracevault/internal/platform/metrics"
	domain "tracevault/pkg/domain"
	pkgerrors "tracevault/pkg/domain-errors"
)

const (
	ownerDID    = domain.DID("did:example:owner1")
	audienceDID = domain.DID("did:example:aud1")
	cvType      = "jobApplicationCredential"
)

// stubVerifier answers a canned verdict and records what it was asked.
type stubVerifier struct {
	ok      bool
	err     error
	claimed domain.DID
}

func (v *stubVerifier) Verify(_ context.Context, _ string, claimed domain.DID) (bool, error) {
	v.claimed = claimed
	return v.ok, v.err
}

// signedToken builds a well-formed envelope around the given payload. The
// stub verifier decides the verdict, so the signing key is irrelevant.
func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

type fixture struct {
	svc      *Service
	records  *store.InMemoryStore
	blobs    *blob.MemoryStore
	auditLog *audit.InMemoryStore
	verifier *stubVerifier
	metrics  *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		records:  store.NewInMemoryStore(),
		blobs:    blob.NewMemoryStore(),
		auditLog: audit.NewInMemoryStore(),
		verifier: &stubVerifier{ok: true},
		metrics:  metrics.NewWithRegisterer(prometheus.NewRegistry()),
	}
	f.svc = NewService(f.records, f.blobs, f.verifier,
		WithAuditor(audit.NewPublisher(f.auditLog)),
		WithMetrics(f.metrics),
	)
	return f
}

func (f *fixture) issue(t *testing.T, body []byte) domain.CredentialKey {
	t.Helper()
	key, err := f.svc.Issue(context.Background(), models.IssueCommand{
		Body:           body,
		Owner:          ownerDID,
		Audience:       audienceDID,
		CredentialType: cvType,
	})
	require.NoError(t, err)
	return key
}

func retrievalToken(t *testing.T, key domain.CredentialKey) string {
	return signedToken(t, jwt.MapClaims{"value": key.String()})
}

func TestService_IssueThenRetrieve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	body := []byte(`{"credentialSubject":{"name":"Alice"}}`)

	key := f.issue(t, body)

	result, err := f.svc.Retrieve(ctx, retrievalToken(t, key), "firefox-desktop")
	require.NoError(t, err)
	assert.Equal(t, body, result.Body)
	assert.Equal(t, cvType, result.CredentialType)

	// The gate was asked about the recorded audience, not the caller's claim.
	assert.Equal(t, audienceDID, f.verifier.claimed)

	events, err := f.auditLog.ListByOwner(ctx, ownerDID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audienceDID, events[0].Operator)
	assert.Equal(t, key.String(), events[0].TargetKey)
	assert.Equal(t, cvType, events[0].CredentialType)
	assert.Equal(t, "firefox-desktop", events[0].ClientPlatform)
	assert.False(t, events[0].CreatedAt.IsZero())

	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CredentialsIssued))
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.CredentialsRetrieved))
}

func TestService_RetrieveRepeatedReadsAppendEvents(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.issue(t, []byte("body"))
	token := retrievalToken(t, key)

	const reads = 4
	for i := 0; i < reads; i++ {
		result, err := f.svc.Retrieve(ctx, token, "")
		require.NoError(t, err)
		assert.Equal(t, []byte("body"), result.Body)
	}

	events, err := f.auditLog.ListByOwner(ctx, ownerDID)
	require.NoError(t, err)
	assert.Len(t, events, reads)
}

func TestService_RetrieveRejectedByGate(t *testing.T) {
	f := newFixture(t)
	f.verifier.ok = false
	ctx := context.Background()
	key := f.issue(t, []byte("secret"))

	_, err := f.svc.Retrieve(ctx, retrievalToken(t, key), "")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))

	// No bytes released means no access event.
	events, listErr := f.auditLog.ListByOwner(ctx, ownerDID)
	require.NoError(t, listErr)
	assert.Empty(t, events)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.AuthFailures))
}

func TestService_RetrieveResolutionFailurePropagates(t *testing.T) {
	f := newFixture(t)
	f.verifier.err = pkgerrors.New(pkgerrors.CodeResolution, "identity could not be resolved")
	ctx := context.Background()
	key := f.issue(t, []byte("secret"))

	_, err := f.svc.Retrieve(ctx, retrievalToken(t, key), "")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeResolution))
}

func TestService_RetrieveUnknownKey(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Retrieve(context.Background(), retrievalToken(t, domain.NewCredentialKey()), "")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestService_RetrieveMalformedToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Retrieve(context.Background(), "not-a-token", "")
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeMalformedToken))
}

func TestService_AccessLog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	key := f.issue(t, []byte("body"))

	_, err := f.svc.Retrieve(ctx, retrievalToken(t, key), "chrome-mobile")
	require.NoError(t, err)

	events, err := f.svc.AccessLog(ctx, signedToken(t, jwt.MapClaims{"did": ownerDID.String()}))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, key.String(), events[0].TargetKey)

	// Ownership is proven against the DID named in the payload.
	assert.Equal(t, ownerDID, f.verifier.claimed)
}

func TestService_AccessLogRejectedByGate(t *testing.T) {
	f := newFixture(t)
	f.verifier.ok = false

	_, err := f.svc.AccessLog(context.Background(), signedToken(t, jwt.MapClaims{"did": ownerDID.String()}))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized))
}

func TestService_AccessLogEmptyForQuietOwner(t *testing.T) {
	f := newFixture(t)

	events, err := f.svc.AccessLog(context.Background(), signedToken(t, jwt.MapClaims{"did": "did:example:quiet"}))
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestService_IssueDistinctKeys(t *testing.T) {
	f := newFixture(t)

	first := f.issue(t, []byte("same body"))
	second := f.issue(t, []byte("same body"))
	assert.NotEqual(t, first, second, "identical bodies still get distinct keys")

	// Content addressing dedupes the stored bytes underneath.
	assert.Equal(t, 1, f.blobs.Len())
}
