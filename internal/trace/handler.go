package trace

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"tracevault/internal/audit"
	"tracevault/internal/gate"
	"tracevault/internal/platform/metrics"
	"tracevault/internal/platform/middleware"
	domain "tracevault/pkg/domain"
	pkgerrors "tracevault/pkg/domain-errors"
	"tracevault/pkg/platform/httputil"
)

// Verifier checks a signed token against the claimed signer's published key.
type Verifier interface {
	Verify(ctx context.Context, token string, claimed domain.DID) (bool, error)
}

// Handler serves the chained-log endpoints: append and chain read-back.
type Handler struct {
	tracer  *Tracer
	gate    Verifier
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewHandler(tracer *Tracer, verifier Verifier, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		tracer:  tracer,
		gate:    verifier,
		logger:  logger,
		metrics: metrics,
	}
}

// Register registers the chained-log routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/access-log", h.handleAppend)
	r.Get("/access-log/{token}/chain", h.handleChain)
}

// AppendRequest is one access event to chain under the owner's pointer.
type AppendRequest struct {
	Owner     string `json:"owner"`
	Operator  string `json:"operator"`
	TargetKey string `json:"targetKey"`
	CVType    string `json:"cvType"`
}

// Normalize sanitizes inputs before validation.
func (r *AppendRequest) Normalize() {
	if r == nil {
		return
	}
	r.Owner = strings.TrimSpace(r.Owner)
	r.Operator = strings.TrimSpace(r.Operator)
	r.TargetKey = strings.TrimSpace(r.TargetKey)
	r.CVType = strings.TrimSpace(r.CVType)
}

// Validate checks that the request is well-formed.
func (r *AppendRequest) Validate() error {
	if r == nil {
		return pkgerrors.New(pkgerrors.CodeBadRequest, "request is required")
	}
	var details []string
	if r.Owner == "" {
		details = append(details, "owner is required")
	} else if _, err := domain.ParseDID(r.Owner); err != nil {
		details = append(details, "owner must be a DID")
	}
	if r.Operator == "" {
		details = append(details, "operator is required")
	} else if _, err := domain.ParseDID(r.Operator); err != nil {
		details = append(details, "operator must be a DID")
	}
	if r.TargetKey == "" {
		details = append(details, "targetKey is required")
	}
	if r.CVType == "" {
		details = append(details, "cvType is required")
	}
	if len(details) > 0 {
		return pkgerrors.NewWithDetails(pkgerrors.CodeValidation, "invalid append request", details)
	}
	return nil
}

type appendResponse struct {
	Receipt Receipt `json:"receipt"`
}

type chainResponse struct {
	Chain []ChainLink `json:"chain"`
}

func (h *Handler) handleAppend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observeLatency("chain_append", time.Now())

	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[AppendRequest](w, r, h.logger)
	if !ok {
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		h.logger.WarnContext(ctx, "invalid append request",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	owner, err := domain.ParseDID(req.Owner)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	operator, err := domain.ParseDID(req.Operator)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	receipt, err := h.tracer.Append(ctx, owner, audit.Event{
		Operator:       operator,
		TargetKey:      req.TargetKey,
		CredentialType: req.CVType,
		RequestID:      requestID,
	})
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to chain access event",
			"request_id", requestID,
			"owner", owner.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, appendResponse{Receipt: receipt})
}

func (h *Handler) handleChain(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observeLatency("chain_read", time.Now())

	requestID := middleware.GetRequestID(ctx)
	token := chi.URLParam(r, "token")

	owner, err := gate.DecodeAuditPayload(token)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	ok, err := h.gate.Verify(ctx, token, owner)
	if err != nil {
		h.logger.ErrorContext(ctx, "chain read verification errored",
			"request_id", requestID,
			"owner", owner.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if !ok {
		httputil.WriteError(w, pkgerrors.New(pkgerrors.CodeUnauthorized, "signature verification failed"))
		return
	}

	links, err := h.tracer.Chain(ctx, owner)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to walk chain",
			"request_id", requestID,
			"owner", owner.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	if links == nil {
		links = []ChainLink{}
	}

	httputil.WriteJSON(w, http.StatusOK, chainResponse{Chain: links})
}

func (h *Handler) observeLatency(endpoint string, start time.Time) {
	if h.metrics != nil {
		h.metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}
