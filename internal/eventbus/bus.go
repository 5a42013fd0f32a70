package eventbus

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lameck50/backend-kami/internal/events"
	"github.com/lameck50/backend-kami/internal/metrics"
	"github.com/lameck50/backend-kami/internal/session"
)

const (
	defaultSinkQueueSize = 256
	sinkTimeout          = 10 * time.Second
)

// Sink receives every published event off the publishing path, for example
// to mirror events into redis or to turn alerts into push notifications.
type Sink interface {
	Name() string
	Handle(ctx context.Context, evt events.Event) error
}

type Option func(*Bus)

func WithSink(s Sink) Option {
	return func(b *Bus) {
		b.sinks = append(b.sinks, s)
	}
}

func WithSinkQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// Bus fans events out to live sessions and sinks. Delivery is best effort:
// a full session buffer or sink queue drops the event for that target only.
type Bus struct {
	registry  *session.Registry
	sinks     []Sink
	queueSize int

	mu      sync.RWMutex
	queue   chan events.Event
	running bool
	wg      sync.WaitGroup
}

func New(registry *session.Registry, opts ...Option) *Bus {
	b := &Bus{
		registry:  registry,
		queueSize: defaultSinkQueueSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Publish delivers evt and returns the number of sessions that accepted it.
//
// Broadcast events go to every registered session regardless of role or zone
// ownership. That is the current product behavior and is kept on purpose.
// Direct events go to the recipient's session only and are dropped when the
// recipient is offline.
func (b *Bus) Publish(evt events.Event) int {
	delivered := 0

	if evt.IsDirect() {
		if s, ok := b.registry.Lookup(evt.Recipient); ok {
			if b.deliver(s, evt) {
				delivered++
			}
		} else {
			slog.Debug("Recipient offline, dropping event", "recipient", evt.Recipient, "event", evt.Type)
		}
	} else {
		for _, s := range b.registry.Snapshot() {
			if b.deliver(s, evt) {
				delivered++
			}
		}
	}

	b.enqueueForSinks(evt)
	return delivered
}

func (b *Bus) deliver(s *session.Session, evt events.Event) bool {
	if s.Send(evt) {
		metrics.ObserveDelivery("session", metrics.ResultDelivered)
		return true
	}
	slog.Debug("Session buffer full or closed, dropping event", "session_id", s.ID, "event", evt.Type)
	metrics.ObserveDelivery("session", metrics.ResultDropped)
	return false
}

func (b *Bus) enqueueForSinks(evt events.Event) {
	if len(b.sinks) == 0 {
		return
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.running {
		return
	}

	select {
	case b.queue <- evt:
	default:
		slog.Warn("Sink queue full, dropping event", "event", evt.Type)
		metrics.ObserveDelivery("sink", metrics.ResultDropped)
	}
}

// Start launches the sink worker. It is a no-op without sinks.
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running || len(b.sinks) == 0 {
		return
	}
	b.queue = make(chan events.Event, b.queueSize)
	b.running = true

	b.wg.Add(1)
	go b.drain(ctx, b.queue)
}

// Stop waits for queued events to reach the sinks.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	close(b.queue)
	b.mu.Unlock()

	b.wg.Wait()
}

func (b *Bus) drain(ctx context.Context, queue <-chan events.Event) {
	defer b.wg.Done()

	for evt := range queue {
		for _, sink := range b.sinks {
			sinkCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sinkTimeout)
			if err := sink.Handle(sinkCtx, evt); err != nil {
				slog.Error("Sink failed to handle event", "sink", sink.Name(), "event", evt.Type, "error", err)
				metrics.ObserveDelivery("sink", metrics.ResultDropped)
			} else {
				metrics.ObserveDelivery("sink", metrics.ResultDelivered)
			}
			cancel()
		}
	}
}
