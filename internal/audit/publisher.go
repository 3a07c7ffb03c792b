package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	domain "tracevault/pkg/domain"
)

// Publisher captures access events. Appends are best-effort relative to
// the retrieval that produced them: a failed append must never claw back
// bytes already released, but it must be surfaced to an operator, so
// failures are logged and counted rather than returned to the caller's
// hot path.
type Publisher struct {
	store     Store
	events    chan Event
	wg        sync.WaitGroup
	logger    *slog.Logger
	onFailure func()
	async     bool
}

// PublisherOption configures the Publisher.
type PublisherOption func(*Publisher)

// WithAsyncBuffer enables async processing with the specified buffer size.
// Events are queued and persisted in a background goroutine.
func WithAsyncBuffer(size int) PublisherOption {
	return func(p *Publisher) {
		if size > 0 {
			p.events = make(chan Event, size)
			p.async = true
		}
	}
}

// WithPublisherLogger sets a logger for error reporting.
func WithPublisherLogger(logger *slog.Logger) PublisherOption {
	return func(p *Publisher) {
		p.logger = logger
	}
}

// WithFailureHook registers a callback fired whenever an event cannot be
// persisted or is dropped, typically wired to a metrics counter.
func WithFailureHook(hook func()) PublisherOption {
	return func(p *Publisher) {
		p.onFailure = hook
	}
}

func NewPublisher(store Store, opts ...PublisherOption) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.async {
		p.wg.Add(1)
		go p.processEvents()
	}
	return p
}

// processEvents runs in a goroutine and persists events from the channel.
func (p *Publisher) processEvents() {
	defer p.wg.Done()
	for event := range p.events {
		if err := p.store.Append(context.Background(), event); err != nil {
			p.reportFailure(event, err)
		}
	}
}

// Close shuts down the async publisher and waits for pending events to drain.
func (p *Publisher) Close() {
	if p.async && p.events != nil {
		close(p.events)
		p.wg.Wait()
	}
}

// Emit records an access event. In async mode the send is non-blocking: a
// full buffer drops the event (and reports the drop) rather than stalling
// a retrieval that has already succeeded.
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	if p.async {
		select {
		case p.events <- event:
			return nil
		default:
			p.reportFailure(event, errBufferFull)
			return nil
		}
	}
	if err := p.store.Append(ctx, event); err != nil {
		p.reportFailure(event, err)
		return err
	}
	return nil
}

// List returns the owner's events, newest first.
func (p *Publisher) List(ctx context.Context, owner domain.DID) ([]Event, error) {
	return p.store.ListByOwner(ctx, owner)
}

func (p *Publisher) reportFailure(event Event, err error) {
	if p.onFailure != nil {
		p.onFailure()
	}
	if p.logger != nil {
		p.logger.Error("failed to persist access event",
			"error", err,
			"owner", event.Owner.String(),
			"target_key", event.TargetKey,
		)
	}
}

type bufferFullError struct{}

func (bufferFullError) Error() string { return "audit buffer full, event dropped" }

var errBufferFull = bufferFullError{}
