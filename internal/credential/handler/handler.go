package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tracevault/internal/audit"
	"tracevault/internal/credential/models"
	"tracevault/internal/device"
	"tracevault/internal/platform/metrics"
	"tracevault/internal/platform/middleware"
	domain "tracevault/pkg/domain"
	pkgerrors "tracevault/pkg/domain-errors"
	"tracevault/pkg/platform/httputil"
)

//go:generate mockgen -source=handler.go -destination=mocks/service.go -package=mocks

// Service defines the credential operations the transport exposes.
type Service interface {
	Issue(ctx context.Context, cmd models.IssueCommand) (domain.CredentialKey, error)
	Retrieve(ctx context.Context, token, clientPlatform string) (models.RetrieveResult, error)
	AccessLog(ctx context.Context, token string) ([]audit.Event, error)
}

// Handler serves the credential endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
	metrics *metrics.Metrics
}

// New creates a credential Handler.
func New(service Service, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		metrics: metrics,
	}
}

// Register registers the credential routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/verifiable-credentials", h.handleIssue)
	r.Get("/verifiable-credentials/{token}", h.handleRetrieve)
	r.Get("/access-log/{token}", h.handleAccessLog)
}

type issueResponse struct {
	Key string `json:"key"`
}

type retrieveResponse struct {
	Data json.RawMessage `json:"data"`
}

type accessLogResponse struct {
	Events []audit.Event `json:"events"`
}

func (h *Handler) handleIssue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observeLatency("issue", time.Now())

	requestID := middleware.GetRequestID(ctx)

	req, ok := httputil.DecodeJSON[IssueRequest](w, r, h.logger)
	if !ok {
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		h.logger.WarnContext(ctx, "invalid issue request",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	cmd, err := req.ToCommand()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	key, err := h.service.Issue(ctx, cmd)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to issue credential",
			"request_id", requestID,
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, issueResponse{Key: key.String()})
}

func (h *Handler) handleRetrieve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observeLatency("retrieve", time.Now())

	requestID := middleware.GetRequestID(ctx)
	token := chi.URLParam(r, "token")

	result, err := h.service.Retrieve(ctx, token, device.Platform(r.UserAgent()))
	if err != nil {
		h.logRejection(ctx, "credential retrieval failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, retrieveResponse{Data: json.RawMessage(result.Body)})
}

func (h *Handler) handleAccessLog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observeLatency("access_log", time.Now())

	requestID := middleware.GetRequestID(ctx)
	token := chi.URLParam(r, "token")

	events, err := h.service.AccessLog(ctx, token)
	if err != nil {
		h.logRejection(ctx, "access log query failed", requestID, err)
		httputil.WriteError(w, err)
		return
	}
	if events == nil {
		events = []audit.Event{}
	}

	httputil.WriteJSON(w, http.StatusOK, accessLogResponse{Events: events})
}

// logRejection picks the log level by blame: client-side failures are
// expected traffic, server-side ones page somebody.
func (h *Handler) logRejection(ctx context.Context, msg, requestID string, err error) {
	attrs := []any{"request_id", requestID, "error", err}
	switch {
	case pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized),
		pkgerrors.HasCode(err, pkgerrors.CodeMalformedToken),
		pkgerrors.HasCode(err, pkgerrors.CodeNotFound):
		h.logger.WarnContext(ctx, msg, attrs...)
	default:
		h.logger.ErrorContext(ctx, msg, attrs...)
	}
}

func (h *Handler) observeLatency(endpoint string, start time.Time) {
	if h.metrics != nil {
		h.metrics.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}
