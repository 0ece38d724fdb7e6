// Package publisher emits audit events to a store and fans them out to sinks.
//
// In sync mode Emit blocks until the store write returns. With WithAsyncBuffer
// events are queued and persisted by a background worker; Close drains the queue.
package publisher

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	id "loankyc/pkg/domain"
	audit "loankyc/pkg/platform/audit"
	"loankyc/pkg/platform/audit/worker"
)

// ErrBufferFull is returned by Emit when the async buffer has no room.
var ErrBufferFull = errors.New("audit buffer full")

type Publisher struct {
	store  audit.Store
	sinks  []audit.Sink
	logger *slog.Logger

	bufferSize int
	inbox      chan audit.Event
	done       chan struct{}

	mu     sync.RWMutex
	closed bool
}

type Option func(*Publisher)

// WithAsyncBuffer switches the publisher to async mode with a buffer of n events.
func WithAsyncBuffer(n int) Option {
	return func(p *Publisher) {
		p.bufferSize = n
	}
}

// WithSinks adds destinations that receive every event after it is stored.
// Sink failures are logged and never fail Emit.
func WithSinks(sinks ...audit.Sink) Option {
	return func(p *Publisher) {
		p.sinks = append(p.sinks, sinks...)
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufferSize > 0 {
		p.inbox = make(chan audit.Event, p.bufferSize)
		p.done = make(chan struct{})
		w := worker.NewWorker(fanout{p}, p.inbox, p.logger)
		go func() {
			defer close(p.done)
			w.Run(context.Background())
		}()
	}
	return p
}

// Emit records an event. The timestamp and category are filled in when unset.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}

	if p.inbox == nil {
		return fanout{p}.Append(ctx, event)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errors.New("audit publisher closed")
	}
	select {
	case p.inbox <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"action", event.Action,
			"application_id", event.ApplicationID.String(),
		)
		return ErrBufferFull
	}
}

// List returns the stored events of one application.
func (p *Publisher) List(ctx context.Context, applicationID id.ApplicationID) ([]audit.Event, error) {
	return p.store.ListByApplication(ctx, applicationID)
}

// Close stops accepting events and waits for buffered events to be persisted.
func (p *Publisher) Close() {
	if p.inbox == nil {
		return
	}
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.inbox)
	p.mu.Unlock()
	<-p.done
}

// fanout writes to the store first and then to every sink.
type fanout struct {
	p *Publisher
}

func (f fanout) Append(ctx context.Context, event audit.Event) error {
	if err := f.p.store.Append(ctx, event); err != nil {
		return err
	}
	for _, sink := range f.p.sinks {
		if err := sink.Publish(ctx, event); err != nil {
			f.p.logger.ErrorContext(ctx, "failed to publish audit event to sink",
				"action", event.Action,
				"application_id", event.ApplicationID.String(),
				"error", err,
			)
		}
	}
	return nil
}
