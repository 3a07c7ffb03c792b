package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "tracevault/pkg/domain-errors"
)

// TestParseDID_Invariants validates the parsing invariant:
// "DIDs must carry a method and a method-specific id".
func TestParseDID_Invariants(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseDID("")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("rejects missing scheme", func(t *testing.T) {
		_, err := ParseDID("ion:EiDS1uonEtvzBgHM7XNsTQYtgrQaB3BajhxCv5_nY1HVqA")
		require.Error(t, err)
	})

	t.Run("rejects missing method-specific id", func(t *testing.T) {
		_, err := ParseDID("did:ion:")
		require.Error(t, err)
	})

	t.Run("rejects empty method", func(t *testing.T) {
		_, err := ParseDID("did::abc")
		require.Error(t, err)
	})

	t.Run("accepts well-formed DID", func(t *testing.T) {
		did, err := ParseDID("did:example:owner1")
		require.NoError(t, err)
		assert.Equal(t, DID("did:example:owner1"), did)
		assert.Equal(t, "example", did.Method())
	})

	t.Run("suffix may itself contain colons", func(t *testing.T) {
		did, err := ParseDID("did:web:example.com:user:alice")
		require.NoError(t, err)
		assert.Equal(t, "web", did.Method())
	})
}

func TestParseCredentialKey(t *testing.T) {
	t.Run("rejects empty string", func(t *testing.T) {
		_, err := ParseCredentialKey("")
		require.Error(t, err)
	})

	t.Run("rejects invalid format", func(t *testing.T) {
		_, err := ParseCredentialKey("not-a-uuid")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	t.Run("accepts valid UUID", func(t *testing.T) {
		raw := uuid.New()
		key, err := ParseCredentialKey(raw.String())
		require.NoError(t, err)
		assert.Equal(t, CredentialKey(raw), key)
	})

	t.Run("fresh keys are distinct and non-nil", func(t *testing.T) {
		a, b := NewCredentialKey(), NewCredentialKey()
		assert.False(t, a.IsNil())
		assert.NotEqual(t, a, b)
	})
}
