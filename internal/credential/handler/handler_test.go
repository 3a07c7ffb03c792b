package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"tracevault/internal/audit"
	"tracevault/internal/credential/handler/mocks"
	"tracevault/internal/credential/models"
	"tracevault/internal/platform/logger"
	domain "tracevault/pkg/domain"
	pkgerrors "tracevault/pkg/domain-errors"
)

func newTestHandler(t *testing.T) (*mocks.MockService, *chi.Mux) {
	t.Helper()
	ctrl := gomock.NewController(t)
	service := mocks.NewMockService(ctrl)

	router := chi.NewRouter()
	New(service, logger.New(), nil).Register(router)
	return service, router
}

func errorName(t *testing.T, body *bytes.Buffer) string {
	t.Helper()
	var envelope struct {
		Error struct {
			Name string `json:"name"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body.Bytes(), &envelope))
	return envelope.Error.Name
}

func TestHandleIssue(t *testing.T) {
	key := domain.NewCredentialKey()

	t.Run("valid request returns the new key", func(t *testing.T) {
		service, router := newTestHandler(t)
		service.EXPECT().
			Issue(gomock.Any(), models.IssueCommand{
				Body:           []byte(`{"name":"Alice"}`),
				Owner:          domain.DID("did:example:owner1"),
				Audience:       domain.DID("did:example:aud1"),
				CredentialType: "jobApplicationCredential",
			}).
			Return(key, nil)

		body := `{"vc":{"name":"Alice"},"owner":"did:example:owner1","aud":"did:example:aud1","cvType":"jobApplicationCredential"}`
		req := httptest.NewRequest(http.MethodPost, "/verifiable-credentials", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusCreated, rec.Code)
		var resp struct {
			Key string `json:"key"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, key.String(), resp.Key)
	})

	t.Run("missing fields are all reported", func(t *testing.T) {
		_, router := newTestHandler(t)

		req := httptest.NewRequest(http.MethodPost, "/verifiable-credentials", bytes.NewBufferString(`{}`))
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
		_, router := newTestHandler(t)

		body := `{"vc":{},"owner":"owner1","aud":"did:example:aud1","cvType":"x"}`
		req := httptest.NewRequest(http.MethodPost, "/verifiable-credentials", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed JSON body", func(t *testing.T) {
		_, router := newTestHandler(t)

		req := httptest.NewRequest(http.MethodPost, "/verifiable-credentials", bytes.NewBufferString(`{`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHandleRetrieve(t *testing.T) {
	t.Run("released body is returned verbatim", func(t *testing.T) {
		service, router := newTestHandler(t)
		service.EXPECT().
			Retrieve(gomock.Any(), "tok123", "firefox-desktop").
			Return(models.RetrieveResult{Body: []byte(`{"name":"Alice"}`)}, nil)

		req := httptest.NewRequest(http.MethodGet, "/verifiable-credentials/tok123", nil)
		req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"data":{"name":"Alice"}}`, rec.Body.String())
	})

	t.Run("gate rejection maps to 401", func(t *testing.T) {
		service, router := newTestHandler(t)
		service.EXPECT().
			Retrieve(gomock.Any(), "tok123", gomock.Any()).
			Return(models.RetrieveResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "signature verification failed"))

		req := httptest.NewRequest(http.MethodGet, "/verifiable-credentials/tok123", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, string(pkgerrors.CodeUnauthorized), errorName(t, rec.Body))
	})

	t.Run("malformed token maps to 400", func(t *testing.T) {
		service, router := newTestHandler(t)
		service.EXPECT().
			Retrieve(gomock.Any(), "garbage", gomock.Any()).
			Return(models.RetrieveResult{}, pkgerrors.New(pkgerrors.CodeMalformedToken, "input token is invalid"))

		req := httptest.NewRequest(http.MethodGet, "/verifiable-credentials/garbage", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, string(pkgerrors.CodeMalformedToken), errorName(t, rec.Body))
	})

	t.Run("resolution timeout maps to 504", func(t *testing.T) {
		service, router := newTestHandler(t)
		service.EXPECT().
			Retrieve(gomock.Any(), "tok123", gomock.Any()).
			Return(models.RetrieveResult{}, pkgerrors.New(pkgerrors.CodeResolutionTimeout, "identity resolution timed out"))

		req := httptest.NewRequest(http.MethodGet, "/verifiable-credentials/tok123", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusGatewayTimeout, rec.Code)
	})
}

func TestHandleAccessLog(t *testing.T) {
	t.Run("events are returned as a list", func(t *testing.T) {
		service, router := newTestHandler(t)
		service.EXPECT().
			AccessLog(gomock.Any(), "tok123").
			Return([]audit.Event{
				{Operator: domain.DID("did:example:aud1"), TargetKey: "key-1", CredentialType: "jobApplicationCredential"},
			}, nil)

		req := httptest.NewRequest(http.MethodGet, "/access-log/tok123", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		var resp struct {
			Events []audit.Event `json:"events"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Events, 1)
		assert.Equal(t, "key-1", resp.Events[0].TargetKey)
	})

	t.Run("no events yields an empty list, not null", func(t *testing.T) {
		service, router := newTestHandler(t)
		service.EXPECT().
			AccessLog(gomock.Any(), "tok123").
			Return(nil, nil)

		req := httptest.NewRequest(http.MethodGet, "/access-log/tok123", nil)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"events":[]}`, rec.Body.String())
	})
}
