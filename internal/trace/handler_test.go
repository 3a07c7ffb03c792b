package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracevault/internal/platform/logger"
	domain "tracevault/pkg/domain"
	pkgerrors "tracevault/pkg/domain-errors"
)

type allowVerifier struct {
	ok bool
}

func (v allowVerifier) Verify(_ context.Context, _ string, _ domain.DID) (bool, error) {
	return v.ok, nil
}

func newTestServer(t *testing.T, verdict bool) (*Tracer, *chi.Mux) {
	t.Helper()
	tracer, _, _ := newTestTracer()
	router := chi.NewRouter()
	NewHandler(tracer, allowVerifier{ok: verdict}, logger.New(), nil).Register(router)
	return tracer, router
}

func auditToken(t *testing.T, did domain.DID) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"did": did.String()}).
		SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func TestHandleAppend(t *testing.T) {
	t.Run("valid append returns a receipt", func(t *testing.T) {
		tracer, router := newTestServer(t, true)

		body := `{"owner":"did:example:owner1","operator":"did:example:aud1","targetKey":"key-1","cvType":"jobApplicationCredential"}`
		req := httptest.NewRequest(http.MethodPost, "/access-log", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp struct {
			Receipt Receipt `json:"receipt"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "did:example:owner1", resp.Receipt.Name)
		assert.NotEmpty(t, resp.Receipt.ContentID)

		// The receipt's content id is the live head.
		head, err := tracer.Head(context.Background(), chainOwner)
		require.NoError(t, err)
		assert.Equal(t, resp.Receipt.ContentID, head.ContentID)
	})

	t.Run("missing fields are all reported", func(t *testing.T) {
		_, router := newTestServer(t, true)

		req := httptest.NewRequest(http.MethodPost, "/access-log", bytes.NewBufferString(`{}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		var envelope struct {
			Error struct {
				Name    string   `json:"name"`
				Details []string `json:"details"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
		assert.Equal(t, string(pkgerrors.CodeValidation), envelope.Error.Name)
		assert.Len(t, envelope.Error.Details, 4)
	})

	t.Run("non-DID owner is rejected", func(t *testing.T) {
		_, router := newTestServer(t, true)

		body := `{"owner":"owner1","operator":"did:example:aud1","targetKey":"k","cvType":"x"}`
		req := httptest.NewRequest(http.MethodPost, "/access-log", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleChain(t *testing.T) {
	t.Run("owner reads back the full chain", func(t *testing.T) {
		tracer, router := newTestServer(t, true)
		ctx := context.Background()
		_, err := tracer.Append(ctx, chainOwner, entry("key-1"))
		require.NoError(t, err)
		_, err = tracer.Append(ctx, chainOwner, entry("key-2"))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/access-log/"+auditToken(t, chainOwner)+"/chain", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Chain []ChainLink `json:"chain"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Chain, 2)
		assert.Len(t, resp.Chain[0].Batch.Entries, 2)
	})

	t.Run("unknown owner gets an empty chain", func(t *testing.T) {
		_, router := newTestServer(t, true)

		req := httptest.NewRequest(http.MethodGet, "/access-log/"+auditToken(t, "did:example:nobody")+"/chain", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"chain":[]}`, rec.Body.String())
	})

	t.Run("failed verification maps to 401", func(t *testing.T) {
		_, router := newTestServer(t, false)

		req := httptest.NewRequest(http.MethodGet, "/access-log/"+auditToken(t, chainOwner)+"/chain", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("garbage token maps to 400", func(t *testing.T) {
		_, router := newTestServer(t, true)

		req := httptest.NewRequest(http.MethodGet, "/access-log/garbage/chain", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
