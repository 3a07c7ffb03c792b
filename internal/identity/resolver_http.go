package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	domain "tracevault/pkg/domain"
	pkgerrors "tracevault/pkg/domain-errors"
)

// HTTPDoer is the minimal interface needed from an HTTP client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPResolver resolves DIDs against a universal-resolver style endpoint:
// GET {base}/1.0/identifiers/{did} returning {"didDocument": {...}}.
type HTTPResolver struct {
	baseURL string
	client  HTTPDoer
	timeout time.Duration
}

// HTTPResolverConfig configures the resolver client.
type HTTPResolverConfig struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient HTTPDoer
}

// NewHTTPResolver creates a resolver backed by an HTTP resolution service.
func NewHTTPResolver(cfg HTTPResolverConfig) *HTTPResolver {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &HTTPResolver{
		baseURL: cfg.BaseURL,
		client:  client,
		timeout: cfg.Timeout,
	}
}

type resolutionResult struct {
	DIDDocument *Document `json:"didDocument"`
}

// Resolve fetches and decodes the DID document for did.
func (r *HTTPResolver) Resolve(ctx context.Context, did domain.DID) (*Document, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	endpoint := r.baseURL + "/1.0/identifiers/" + url.PathEscape(did.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "build resolution request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, pkgerrors.Wrap(err, pkgerrors.CodeResolutionTimeout, "identity resolution timed out")
		}
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeResolution, "resolution service unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fallthrough to decode
	case resp.StatusCode == http.StatusNotFound:
		return nil, pkgerrors.New(pkgerrors.CodeResolution, fmt.Sprintf("unknown identifier %s", did))
	default:
		return nil, pkgerrors.New(pkgerrors.CodeResolution, fmt.Sprintf("resolution service returned status %d", resp.StatusCode))
	}

	var result resolutionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, pkgerrors.Wrap(err, pkgerrors.CodeResolution, "decode resolution result")
	}
	if result.DIDDocument == nil {
		return nil, pkgerrors.New(pkgerrors.CodeResolution, fmt.Sprintf("no document for identifier %s", did))
	}
	return result.DIDDocument, nil
}

var _ Resolver = (*HTTPResolver)(nil)
