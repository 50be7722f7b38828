// Package publisher emits audit events to a store and, optionally, to external
// sinks. Emission is synchronous by default; WithAsyncBuffer moves persistence to
// a background goroutine that is drained on Close.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	id "cliquey/pkg/domain"
	audit "cliquey/pkg/platform/audit"
	"cliquey/pkg/platform/circuit"
)

// ErrBufferFull is returned in async mode when the buffer cannot accept an event.
var ErrBufferFull = errors.New("audit buffer full")

type Publisher struct {
	store       audit.Store
	sinks       []guardedSink
	breakerOpts []circuit.Option
	logger      *slog.Logger

	buffer chan audit.Event
	wg     sync.WaitGroup
	once   sync.Once
}

// guardedSink pairs a sink with the breaker that stops calls to it while it
// keeps failing.
type guardedSink struct {
	sink    audit.Sink
	breaker *circuit.Breaker
}

type Option func(*Publisher)

// WithAsyncBuffer enables asynchronous persistence with a buffer of size n.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		if n > 0 {
			p.buffer = make(chan audit.Event, n)
		}
	}
}

// WithSink adds an external sink that receives every stored event.
func WithSink(sink audit.Sink) Option {
	return func(p *Publisher) {
		if sink != nil {
			p.sinks = append(p.sinks, guardedSink{sink: sink})
		}
	}
}

// WithSinkBreaker configures the circuit breaker placed in front of each sink.
func WithSinkBreaker(opts ...circuit.Option) Option {
	return func(p *Publisher) {
		p.breakerOpts = append(p.breakerOpts, opts...)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(p)
	}
	for i := range p.sinks {
		p.sinks[i].breaker = circuit.New(fmt.Sprintf("audit-sink-%d", i), p.breakerOpts...)
	}
	if p.buffer != nil {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

// Emit records an event. A zero timestamp is set to now.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	if p.buffer == nil {
		return p.persist(ctx, event)
	}

	select {
	case p.buffer <- event:
		return nil
	default:
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return ErrBufferFull
}

func (p *Publisher) List(ctx context.Context, userID id.UserID) ([]audit.Event, error) {
	return p.store.ListByUser(ctx, userID)
}

// Close drains pending events in async mode. It is safe to call more than once.
func (p *Publisher) Close() {
	p.once.Do(func() {
		if p.buffer != nil {
			close(p.buffer)
			p.wg.Wait()
		}
	})
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for event := range p.buffer {
		if err := p.persist(context.Background(), event); err != nil {
			p.logger.Error("failed to persist audit event",
				"action", event.Action,
				"error", err,
			)
		}
	}
}

func (p *Publisher) persist(ctx context.Context, event audit.Event) error {
	if err := p.store.Append(ctx, event); err != nil {
		return err
	}
	for _, gs := range p.sinks {
		p.deliver(ctx, gs, event)
	}
	return nil
}

// deliver publishes to one sink. The event is already stored, so sink delivery
// is best effort and skipped entirely while the sink's circuit is open.
func (p *Publisher) deliver(ctx context.Context, gs guardedSink, event audit.Event) {
	if !gs.breaker.Allow() {
		return
	}
	if err := gs.sink.Publish(ctx, event); err != nil {
		p.logger.WarnContext(ctx, "audit sink publish failed",
			"sink", gs.breaker.Name(),
			"action", event.Action,
			"error", err,
		)
		if _, change := gs.breaker.RecordFailure(); change.Opened {
			p.logger.WarnContext(ctx, "audit sink circuit opened", "sink", gs.breaker.Name())
		}
		return
	}
	if _, change := gs.breaker.RecordSuccess(); change.Closed {
		p.logger.InfoContext(ctx, "audit sink circuit closed", "sink", gs.breaker.Name())
	}
}
