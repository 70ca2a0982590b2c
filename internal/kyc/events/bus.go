// Package events fans committed lifecycle changes out to subscribers.
//
// Publish never blocks the caller. Each subscriber owns a bounded buffer; when
// it is full the event is dropped for that subscriber, logged and counted.
package events

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"kycflow/internal/kyc/metrics"
	"kycflow/internal/kyc/models"
)

const defaultBuffer = 256

// Subscriber consumes lifecycle events on its own goroutine.
type Subscriber interface {
	Name() string
	Handle(ctx context.Context, event models.LifecycleEvent) error
}

type subscription struct {
	sub   Subscriber
	inbox chan models.LifecycleEvent
}

type Bus struct {
	mu      sync.RWMutex
	subs    []*subscription
	buffer  int
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Bus)

func WithBuffer(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.buffer = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(b *Bus) { b.logger = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bus) { b.metrics = m }
}

func NewBus(opts ...Option) *Bus {
	b := &Bus{buffer: defaultBuffer, logger: slog.Default()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers s. Call before Run.
func (b *Bus) Subscribe(s Subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, &subscription{sub: s, inbox: make(chan models.LifecycleEvent, b.buffer)})
}

// Publish offers event to every subscriber without waiting.
func (b *Bus) Publish(ctx context.Context, event models.LifecycleEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, s := range b.subs {
		select {
		case s.inbox <- event:
		default:
			b.metrics.IncrementDropped(s.sub.Name())
			b.logger.WarnContext(ctx, "lifecycle event dropped",
				"subscriber", s.sub.Name(),
				"application_id", event.ApplicationID.String(),
				"to", string(event.To),
			)
		}
	}
}

// Run drives every subscriber until ctx is done, then hands each one the
// events still buffered.
func (b *Bus) Run(ctx context.Context) error {
	b.mu.RLock()
	subs := append([]*subscription(nil), b.subs...)
	b.mu.RUnlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range subs {
		g.Go(func() error {
			b.consume(gctx, s)
			return nil
		})
	}
	return g.Wait()
}

func (b *Bus) consume(ctx context.Context, s *subscription) {
	for {
		select {
		case <-ctx.Done():
			b.drain(context.WithoutCancel(ctx), s)
			return
		case event := <-s.inbox:
			b.deliver(ctx, s, event)
		}
	}
}

func (b *Bus) drain(ctx context.Context, s *subscription) {
	for {
		select {
		case event := <-s.inbox:
			b.deliver(ctx, s, event)
		default:
			return
		}
	}
}

func (b *Bus) deliver(ctx context.Context, s *subscription, event models.LifecycleEvent) {
	if err := s.sub.Handle(ctx, event); err != nil {
		b.logger.ErrorContext(ctx, "lifecycle subscriber failed",
			"subscriber", s.sub.Name(),
			"application_id", event.ApplicationID.String(),
			"error", err,
		)
	}
}
