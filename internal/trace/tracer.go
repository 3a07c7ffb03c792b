package trace

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tracevault/internal/audit"
	"tracevault/internal/blob"
	"tracevault/internal/platform/metrics"
	"tracevault/internal/platform/tracing"
	domain "tracevault/pkg/domain"
	pkgerrors "tracevault/pkg/domain-errors"
)

const (
	defaultMaxAttempts = 5
	defaultBackoffBase = 10 * time.Millisecond
)

// ChainLink pairs a batch with the content id it was stored under,
// produced when walking a chain head-first.
type ChainLink struct {
	ContentID blob.ContentID `json:"cid"`
	Batch     Batch          `json:"batch"`
}

// Tracer appends access events to per-owner chained logs.
//
// An append is a read-modify-write on the owner's pointer. Two writers
// racing the same pointer would each publish a batch that omits the
// other's entry, so the publish is conditional on the pointer still
// holding the content id the writer read; the loser re-reads and
// retries with backoff.
type Tracer struct {
	blobs       blob.Store
	names       NameLayer
	logger      *slog.Logger
	metrics     *metrics.Metrics
	tracer      tracing.Tracer
	maxAttempts int
	backoffBase time.Duration
	sleep       func(context.Context, time.Duration) error
}

type Option func(*Tracer)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracer) {
		t.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tracer) {
		t.metrics = m
	}
}

func WithTracer(tracer tracing.Tracer) Option {
	return func(t *Tracer) {
		t.tracer = tracer
	}
}

// WithMaxAttempts bounds the conflict-retry loop of Append.
func WithMaxAttempts(n int) Option {
	return func(t *Tracer) {
		if n > 0 {
			t.maxAttempts = n
		}
	}
}

// WithBackoffBase sets the first retry delay; later retries double it.
func WithBackoffBase(d time.Duration) Option {
	return func(t *Tracer) {
		if d > 0 {
			t.backoffBase = d
		}
	}
}

func NewTracer(blobs blob.Store, names NameLayer, opts ...Option) *Tracer {
	t := &Tracer{
		blobs:       blobs,
		names:       names,
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
		sleep:       sleepCtx,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	if t.tracer == nil {
		t.tracer = tracing.NewNoop()
	}
	return t
}

// Append records entry on owner's chain and moves the owner's pointer to
// the new head. Safe for concurrent use: a lost compare-and-publish race
// never drops an entry, it re-reads and appends on top of the winner.
func (t *Tracer) Append(ctx context.Context, owner domain.DID, entry audit.Event) (receipt Receipt, err error) {
	ctx, span := t.tracer.Start(ctx, "trace.append",
		tracing.String("owner", owner.String()),
	)
	defer func() { span.End(err) }()

	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.Owner = owner
	name := owner.String()

	var lastErr error
	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		if attempt > 0 {
			t.incrementConflicts()
			if err := t.sleep(ctx, t.backoffBase<<(attempt-1)); err != nil {
				return Receipt{}, err
			}
		}

		head, batch, err := t.loadHead(ctx, name)
		if err != nil {
			return Receipt{}, err
		}

		next := Batch{
			Entries:  append(batch.Entries, entry),
			Previous: head,
		}
		data, err := EncodeBatch(next)
		if err != nil {
			return Receipt{}, err
		}
		cid, err := t.blobs.Put(ctx, data)
		if err != nil {
			return Receipt{}, err
		}

		err = t.names.CompareAndPublish(ctx, name, head, cid)
		if err == nil {
			t.incrementPublishes()
			t.logger.InfoContext(ctx, "access event chained",
				"owner", name,
				"cid", string(cid),
				"entries", len(next.Entries),
				"attempt", attempt+1,
			)
			return Receipt{Name: name, ContentID: cid}, nil
		}
		if !errors.Is(err, ErrPointerConflict) {
			return Receipt{}, err
		}
		lastErr = err
		t.logger.DebugContext(ctx, "pointer moved during append, retrying",
			"owner", name,
			"attempt", attempt+1,
		)
	}
	return Receipt{}, pkgerrors.Wrap(lastErr, pkgerrors.CodeConflict,
		fmt.Sprintf("append lost the pointer race %d times", t.maxAttempts))
}

// Head returns the owner's current chain head, or ErrNoPointer when the
// owner has never chained an event.
func (t *Tracer) Head(ctx context.Context, owner domain.DID) (ChainLink, error) {
	cid, err := t.names.Resolve(ctx, owner.String())
	if err != nil {
		return ChainLink{}, err
	}
	batch, err := t.fetchBatch(ctx, cid)
	if err != nil {
		return ChainLink{}, err
	}
	return ChainLink{ContentID: cid, Batch: batch}, nil
}

// Chain walks the owner's chain from head to genesis. An unknown owner
// yields an empty chain; a pointer that dereferences to an unreadable
// batch is chain corruption.
func (t *Tracer) Chain(ctx context.Context, owner domain.DID) (links []ChainLink, err error) {
	ctx, span := t.tracer.Start(ctx, "trace.chain",
		tracing.String("owner", owner.String()),
	)
	defer func() { span.End(err) }()

	cid, err := t.names.Resolve(ctx, owner.String())
	if errors.Is(err, ErrNoPointer) {
		return []ChainLink{}, nil
	}
	if err != nil {
		return nil, err
	}

	seen := make(map[blob.ContentID]struct{})
	for cid != "" {
		if _, dup := seen[cid]; dup {
			return nil, pkgerrors.New(pkgerrors.CodeChainCorruption, "chain contains a cycle")
		}
		seen[cid] = struct{}{}

		batch, err := t.fetchBatch(ctx, cid)
		if err != nil {
			return nil, err
		}
		links = append(links, ChainLink{ContentID: cid, Batch: batch})
		cid = batch.Previous
	}
	return links, nil
}

// Rebuild replays the owner's chain head into an audit store. The
// queryable index is a cache of the chain, so a wiped or diverged index
// can always be regenerated from the published head. Returns the number
// of entries written.
func (t *Tracer) Rebuild(ctx context.Context, owner domain.DID, store audit.Store) (int, error) {
	head, err := t.Head(ctx, owner)
	if errors.Is(err, ErrNoPointer) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	for _, entry := range head.Batch.Entries {
		entry.Owner = owner
		if err := store.Append(ctx, entry); err != nil {
			return 0, err
		}
	}
	return len(head.Batch.Entries), nil
}

// loadHead resolves the current pointer and fetches its batch. A missing
// pointer starts a fresh chain.
func (t *Tracer) loadHead(ctx context.Context, name string) (blob.ContentID, Batch, error) {
	head, err := t.names.Resolve(ctx, name)
	if errors.Is(err, ErrNoPointer) {
		return "", Batch{}, nil
	}
	if err != nil {
		return "", Batch{}, err
	}
	batch, err := t.fetchBatch(ctx, head)
	if err != nil {
		return "", Batch{}, err
	}
	return head, batch, nil
}

func (t *Tracer) fetchBatch(ctx context.Context, cid blob.ContentID) (Batch, error) {
	data, err := t.blobs.Get(ctx, cid)
	if err != nil {
		// A published pointer referencing missing content means the chain
		// itself is damaged, which is a different failure from a routine
		// blob miss.
		return Batch{}, pkgerrors.Recode(err, pkgerrors.CodeChainCorruption, "chain head unreadable")
	}
	return DecodeBatch(data)
}

func (t *Tracer) incrementPublishes() {
	if t.metrics != nil {
		t.metrics.ChainPublishes.Inc()
	}
}

func (t *Tracer) incrementConflicts() {
	if t.metrics != nil {
		t.metrics.ChainConflicts.Inc()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
