package trace

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracevault/internal/audit"
	"tracevault/internal/blob"
	"tracevault/internal/platform/tracing"
	domain "tracevault/pkg/domain"
	pkgerrors "tracevault/pkg/domain-errors"
)

const chainOwner = domain.DID("did:example:owner1")

func entry(key string) audit.Event {
	return audit.Event{
		Operator:       domain.DID("did:example:aud1"),
		TargetKey:      key,
		CredentialType: "jobApplicationCredential",
	}
}

func newTestTracer(opts ...Option) (*Tracer, *blob.MemoryStore, *MemoryNameLayer) {
	blobs := blob.NewMemoryStore()
	names := NewMemoryNameLayer()
	opts = append([]Option{WithBackoffBase(time.Millisecond)}, opts...)
	return NewTracer(blobs, names, opts...), blobs, names
}

func TestTracer_AppendBuildsChain(t *testing.T) {
	tracer, _, names := newTestTracer()
	ctx := context.Background()

	first, err := tracer.Append(ctx, chainOwner, entry("key-1"))
	require.NoError(t, err)
	second, err := tracer.Append(ctx, chainOwner, entry("key-2"))
	require.NoError(t, err)
	assert.NotEqual(t, first.ContentID, second.ContentID)

	// The pointer tracks the latest head.
	head, err := names.Resolve(ctx, chainOwner.String())
	require.NoError(t, err)
	assert.Equal(t, second.ContentID, head)

	links, err := tracer.Chain(ctx, chainOwner)
	require.NoError(t, err)
	require.Len(t, links, 2)

	// Head first, genesis last; each link points at its predecessor.
	assert.Equal(t, second.ContentID, links[0].ContentID)
	assert.Equal(t, first.ContentID, links[0].Batch.Previous)
	assert.Equal(t, first.ContentID, links[1].ContentID)
	assert.Empty(t, links[1].Batch.Previous)

	// The head accumulates every entry in append order.
	require.Len(t, links[0].Batch.Entries, 2)
	assert.Equal(t, "key-1", links[0].Batch.Entries[0].TargetKey)
	assert.Equal(t, "key-2", links[0].Batch.Entries[1].TargetKey)
}

func TestTracer_ChainForUnknownOwnerIsEmpty(t *testing.T) {
	tracer, _, _ := newTestTracer()

	links, err := tracer.Chain(context.Background(), domain.DID("did:example:nobody"))
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestTracer_ConcurrentAppendsLoseNothing(t *testing.T) {
	tracer, _, _ := newTestTracer(WithMaxAttempts(100))
	ctx := context.Background()

	const writers = 8
	const appendsPerWriter = 5

	var wg sync.WaitGroup
	errs := make(chan error, writers*appendsPerWriter)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < appendsPerWriter; i++ {
				if _, err := tracer.Append(ctx, chainOwner, entry(fmt.Sprintf("w%d-%d", w, i))); err != nil {
					errs <- err
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("append failed under contention: %v", err)
	}

	head, err := tracer.Head(ctx, chainOwner)
	require.NoError(t, err)
	require.Len(t, head.Batch.Entries, writers*appendsPerWriter,
		"a lost compare-and-publish race must never drop an entry")

	seen := make(map[string]struct{})
	for _, e := range head.Batch.Entries {
		seen[e.TargetKey] = struct{}{}
	}
	assert.Len(t, seen, writers*appendsPerWriter)
}

// alwaysConflict rejects every publish so the retry loop runs dry.
type alwaysConflict struct {
	NameLayer
	attempts int
}

func (l *alwaysConflict) CompareAndPublish(context.Context, string, blob.ContentID, blob.ContentID) error {
	l.attempts++
	return ErrPointerConflict
}

func TestTracer_AppendGivesUpAfterMaxAttempts(t *testing.T) {
	names := &alwaysConflict{NameLayer: NewMemoryNameLayer()}
	tracer := NewTracer(blob.NewMemoryStore(), names,
		WithMaxAttempts(3),
		WithBackoffBase(time.Millisecond),
	)

	_, err := tracer.Append(context.Background(), chainOwner, entry("key-1"))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))
	assert.Equal(t, 3, names.attempts)
}

func TestTracer_DanglingPointerIsChainCorruption(t *testing.T) {
	tracer, _, names := newTestTracer()
	ctx := context.Background()

	require.NoError(t, names.CompareAndPublish(ctx, chainOwner.String(), "", blob.ContentID("b3:missing")))

	_, err := tracer.Chain(ctx, chainOwner)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeChainCorruption))

	_, err = tracer.Append(ctx, chainOwner, entry("key-1"))
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeChainCorruption))
}

func TestTracer_UndecodableHeadIsChainCorruption(t *testing.T) {
	tracer, blobs, names := newTestTracer()
	ctx := context.Background()

	cid, err := blobs.Put(ctx, []byte("not json"))
	require.NoError(t, err)
	require.NoError(t, names.CompareAndPublish(ctx, chainOwner.String(), "", cid))

	_, err = tracer.Chain(ctx, chainOwner)
	require.Error(t, err)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeChainCorruption))
}

func TestTracer_RebuildReplaysHeadIntoStore(t *testing.T) {
	tracer, _, _ := newTestTracer()
	ctx := context.Background()

	for i := 1; i <= 3; i++ {
		_, err := tracer.Append(ctx, chainOwner, entry(fmt.Sprintf("key-%d", i)))
		require.NoError(t, err)
	}

	index := audit.NewInMemoryStore()
	n, err := tracer.Rebuild(ctx, chainOwner, index)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	events, err := index.ListByOwner(ctx, chainOwner)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for _, e := range events {
		assert.Equal(t, chainOwner, e.Owner)
	}
}

func TestTracer_RebuildUnknownOwnerIsNoop(t *testing.T) {
	tracer, _, _ := newTestTracer()

	n, err := tracer.Rebuild(context.Background(), domain.DID("did:example:nobody"), audit.NewInMemoryStore())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestEncodeBatch_IsCanonical(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	batch := Batch{
		Entries: []audit.Event{{
			Operator:       domain.DID("did:example:aud1"),
			TargetKey:      "key-1",
			CredentialType: "jobApplicationCredential",
			CreatedAt:      at,
		}},
		Previous: blob.ContentID("b3:prev"),
	}

	first, err := EncodeBatch(batch)
	require.NoError(t, err)
	second, err := EncodeBatch(batch)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	decoded, err := DecodeBatch(first)
	require.NoError(t, err)
	assert.Equal(t, batch.Previous, decoded.Previous)
	require.Len(t, decoded.Entries, 1)
	assert.Equal(t, "key-1", decoded.Entries[0].TargetKey)
	assert.True(t, decoded.Entries[0].CreatedAt.Equal(at))
}

// recordingTracer captures span names so tests can assert which
// operations open spans.
type recordingTracer struct {
	mu    sync.Mutex
	spans []string
	ended int
}

func (r *recordingTracer) Start(ctx context.Context, name string, _ ...tracing.Attribute) (context.Context, tracing.Span) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.spans = append(r.spans, name)
	return ctx, &recordingSpan{tracer: r}
}

type recordingSpan struct {
	tracer *recordingTracer
	err    error
}

func (s *recordingSpan) End(err error) {
	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.err = err
	s.tracer.ended++
}

func (s *recordingSpan) SetAttributes(_ ...tracing.Attribute)      {}
func (s *recordingSpan) AddEvent(_ string, _ ...tracing.Attribute) {}

func TestTracer_AppendAndChainOpenSpans(t *testing.T) {
	recorder := &recordingTracer{}
	tracer, _, _ := newTestTracer(WithTracer(recorder))
	ctx := context.Background()

	_, err := tracer.Append(ctx, chainOwner, entry("key-1"))
	require.NoError(t, err)
	_, err = tracer.Chain(ctx, chainOwner)
	require.NoError(t, err)

	assert.Equal(t, []string{"trace.append", "trace.chain"}, recorder.spans)
	assert.Equal(t, 2, recorder.ended, "every span must be ended")
}
