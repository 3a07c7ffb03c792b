package service

import (
	"context"
	"errors"
	"log/slog"

	"tracevault/internal/audit"
	"tracevault/internal/blob"
	"tracevault/internal/credential/models"
	"tracevault/internal/credential/store"
	"tracevault/internal/gate"
	"tracevault/internal/platform/metrics"
	"tracevault/internal/platform/middleware"
	"tracevault/internal/platform/tracing"
	domain "tracevault/pkg/domain"
	pkgerrors "tracevault/pkg/domain-errors"
)

// keyAttempts bounds retries on a fresh-key collision. Keys are random
// UUIDs, so the loop exists only to turn a cosmic-ray collision into a
// second draw instead of a user-visible failure.
const keyAttempts = 3

// Verifier checks a signed token against the claimed signer's published key.
type Verifier interface {
	Verify(ctx context.Context, token string, claimed domain.DID) (bool, error)
}

// Auditor records access events and serves the per-owner access log.
type Auditor interface {
	Emit(ctx context.Context, event audit.Event) error
	List(ctx context.Context, owner domain.DID) ([]audit.Event, error)
}

// Service implements credential issuance, gated retrieval, and the
// owner-facing access log.
type Service struct {
	records store.Store
	blobs   blob.Store
	gate    Verifier
	auditor Auditor
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracing.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditor(auditor Auditor) Option {
	return func(s *Service) {
		s.auditor = auditor
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer tracing.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func NewService(records store.Store, blobs blob.Store, verifier Verifier, opts ...Option) *Service {
	svc := &Service{
		records: records,
		blobs:   blobs,
		gate:    verifier,
	}
	for _, opt := range opts {
		opt(svc)
	}
	if svc.logger == nil {
		svc.logger = slog.Default()
	}
	if svc.tracer == nil {
		svc.tracer = tracing.NewNoop()
	}
	return svc
}

// Issue stores the credential body and binds it to a fresh opaque key.
// The body goes into the blob store first; a metadata row that points at
// a missing blob would break retrieval, the reverse merely orphans bytes.
func (s *Service) Issue(ctx context.Context, cmd models.IssueCommand) (key domain.CredentialKey, err error) {
	ctx, span := s.tracer.Start(ctx, "credential.issue",
		tracing.String("owner", cmd.Owner.String()),
		tracing.String("cv_type", cmd.CredentialType),
	)
	defer func() { span.End(err) }()

	cid, err := s.blobs.Put(ctx, cmd.Body)
	if err != nil {
		return domain.CredentialKey{}, err
	}

	record := models.Record{
		ContentID:      cid,
		Owner:          cmd.Owner,
		Audience:       cmd.Audience,
		CredentialType: cmd.CredentialType,
	}
	for attempt := 0; attempt < keyAttempts; attempt++ {
		record.Key = domain.NewCredentialKey()
		err = s.records.Put(ctx, record)
		if err == nil {
			s.logger.InfoContext(ctx, "credential issued",
				"key", record.Key.String(),
				"owner", cmd.Owner.String(),
				"cv_type", cmd.CredentialType,
				"cid", string(cid),
			)
			s.incrementIssued()
			return record.Key, nil
		}
		if !errors.Is(err, store.ErrDuplicateKey) {
			return domain.CredentialKey{}, err
		}
	}
	return domain.CredentialKey{}, pkgerrors.Wrap(err, pkgerrors.CodeInternal, "could not allocate a fresh credential key")
}

// Retrieve releases a credential body to a caller who proves, by
// signature, that they hold the audience identity recorded at issuance.
//
// Verification failures of any flavor (bad signature, wrong signer,
// unresolvable audience) collapse into a single unauthorized answer so
// the response does not leak which check failed.
func (s *Service) Retrieve(ctx context.Context, token, clientPlatform string) (result models.RetrieveResult, err error) {
	ctx, span := s.tracer.Start(ctx, "credential.retrieve")
	defer func() { span.End(err) }()

	key, err := gate.DecodeRetrievalPayload(token)
	if err != nil {
		return models.RetrieveResult{}, err
	}
	span.SetAttributes(tracing.String("key", key.String()))

	record, err := s.records.Get(ctx, key)
	if err != nil {
		return models.RetrieveResult{}, err
	}

	ok, err := s.gate.Verify(ctx, token, record.Audience)
	if err != nil {
		return models.RetrieveResult{}, err
	}
	if !ok {
		s.logger.WarnContext(ctx, "retrieval rejected by signature gate",
			"key", key.String(),
			"audience", record.Audience.String(),
		)
		s.incrementAuthFailure()
		return models.RetrieveResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "signature verification failed")
	}

	body, err := s.blobs.Get(ctx, record.ContentID)
	if err != nil {
		return models.RetrieveResult{}, err
	}

	s.recordAccess(ctx, record, clientPlatform)
	s.incrementRetrieved()
	return models.RetrieveResult{
		Body:           body,
		CredentialType: record.CredentialType,
	}, nil
}

// AccessLog returns the owner's access events, newest first. The caller
// proves ownership by signing the query token with the owner's key.
func (s *Service) AccessLog(ctx context.Context, token string) (events []audit.Event, err error) {
	ctx, span := s.tracer.Start(ctx, "credential.access_log")
	defer func() { span.End(err) }()

	owner, err := gate.DecodeAuditPayload(token)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(tracing.String("owner", owner.String()))

	ok, err := s.gate.Verify(ctx, token, owner)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.incrementAuthFailure()
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "signature verification failed")
	}

	if s.auditor == nil {
		return []audit.Event{}, nil
	}
	return s.auditor.List(ctx, owner)
}

// recordAccess emits the access event for a successful retrieval. Best
// effort relative to the release: the bytes are already out, so a failed
// append is reported through the publisher's own failure path instead of
// surfacing to the caller.
func (s *Service) recordAccess(ctx context.Context, record models.Record, clientPlatform string) {
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Emit(ctx, audit.Event{
		Owner:          record.Owner,
		Operator:       record.Audience,
		TargetKey:      record.Key.String(),
		CredentialType: record.CredentialType,
		ClientPlatform: clientPlatform,
		RequestID:      middleware.GetRequestID(ctx),
	})
}

func (s *Service) incrementIssued() {
	if s.metrics != nil {
		s.metrics.CredentialsIssued.Inc()
	}
}

func (s *Service) incrementRetrieved() {
	if s.metrics != nil {
		s.metrics.CredentialsRetrieved.Inc()
	}
}

func (s *Service) incrementAuthFailure() {
	if s.metrics != nil {
		s.metrics.AuthFailures.Inc()
	}
}
