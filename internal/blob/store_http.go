package blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	pkgerrors "tracevault/pkg/domain-errors"
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPStore talks to an IPFS-compatible HTTP API (kubo RPC v0): add for
// writes, cat for reads. The node's own replication and routing are its
// business; this adapter only moves bytes.
type HTTPStore struct {
	baseURL string
	client  HTTPDoer
	timeout time.Duration
}

// HTTPStoreConfig configures the HTTP blob adapter.
type HTTPStoreConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient HTTPDoer
}

// NewHTTPStore creates a blob store backed by an IPFS HTTP API endpoint.
func NewHTTPStore(cfg HTTPStoreConfig) *HTTPStore {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPStore{
		baseURL: cfg.BaseURL,
		client:  client,
		timeout: cfg.Timeout,
	}
}

type addResponse struct {
	Hash string `json:"Hash"`
}

// Put uploads data via /api/v0/add and returns the node-assigned content id.
func (s *HTTPStore) Put(ctx context.Context, data []byte) (ContentID, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "blob")
	if err != nil {
		return "", pkgerrors.Wrap(err, pkgerrors.CodeInternal, "build upload body")
	}
	if _, err := part.Write(data); err != nil {
		return "", pkgerrors.Wrap(err, pkgerrors.CodeInternal, "build upload body")
	}
	if err := mw.Close(); err != nil {
		return "", pkgerrors.Wrap(err, pkgerrors.CodeInternal, "build upload body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/v0/add", &body)
	if err != nil {
		return "", pkgerrors.Wrap(err, pkgerrors.CodeInternal, "build blob request")
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := s.client.Do(req)
	if err != nil {
		return "", wrapTimeout(coalesce(ctx.Err(), err), "blob store add failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", pkgerrors.New(pkgerrors.CodeStorage, fmt.Sprintf("blob store add returned status %d", resp.StatusCode))
	}

	var parsed addResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", pkgerrors.Wrap(err, pkgerrors.CodeStorage, "decode blob store response")
	}
	if parsed.Hash == "" {
		return "", pkgerrors.New(pkgerrors.CodeStorage, "blob store returned no content id")
	}
	return ContentID(parsed.Hash), nil
}

// Get downloads the content at id via /api/v0/cat.
func (s *HTTPStore) Get(ctx context.Context, id ContentID) ([]byte, error) {
	ctx, cancel := s.withDeadline(ctx)
	defer cancel()

	endpoint := s.baseURL + "/api/v0/cat?arg=" + url.QueryEscape(id.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "build blob request")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, wrapTimeout(coalesce(ctx.Err(), err), "blob store cat failed")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, wrapTimeout(coalesce(ctx.Err(), err), "read blob body")
		}
		return data, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusInternalServerError:
		// kubo reports unknown ids as a 500 with an error body; treat both
		// shapes as missing content.
		return nil, ErrNotFound
	default:
		return nil, pkgerrors.New(pkgerrors.CodeStorage, fmt.Sprintf("blob store cat returned status %d", resp.StatusCode))
	}
}

// withDeadline bounds a call with the adapter timeout unless the caller
// already set a tighter one.
func (s *HTTPStore) withDeadline(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.timeout)
}

func coalesce(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

var _ Store = (*HTTPStore)(nil)
