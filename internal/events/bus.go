package events

import (
	"context"
	"log/slog"
	"sync"
)

// Handler is implemented by components that consume domain events.
type Handler interface {
	// HandleEvent processes one event. Errors are logged by the bus and do
	// not stop delivery to other handlers or of later events.
	HandleEvent(ctx context.Context, event Event) error
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, event Event) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Bus is an in-process event bus with a single dispatcher goroutine.
//
// Publish enqueues; the dispatcher delivers each event to every registered
// handler, one event at a time. Because there is exactly one dispatcher,
// handlers observe events in publish order. This ordering is a contract:
// the search index lifecycle depends on Added/Updated/Deleted for the same
// entity arriving in the order they were published.
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler

	queue  chan Event
	done   chan struct{}
	closed bool
	logger *slog.Logger
}

// DefaultBusBuffer is the default capacity of the publish queue.
const DefaultBusBuffer = 256

// NewBus creates a Bus and starts its dispatcher goroutine.
func NewBus(buffer int, logger *slog.Logger) *Bus {
	if buffer <= 0 {
		buffer = DefaultBusBuffer
	}

	b := &Bus{
		queue:  make(chan Event, buffer),
		done:   make(chan struct{}),
		logger: logger.With("component", "event_bus"),
	}
	go b.dispatch()
	return b
}

// Subscribe registers a handler for all subsequent events.
func (b *Bus) Subscribe(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, handler)
	b.logger.Debug("registered event handler", "handler_count", len(b.handlers))
}

// Publish enqueues an event for delivery. It blocks if the queue is full,
// which is the backpressure mechanism: publishers (scan loops) slow down
// rather than events being dropped or reordered.
func (b *Bus) Publish(event Event) {
	// The read lock is held across the send so Close cannot close the
	// queue between the closed check and the send. The dispatcher keeps
	// draining while we hold it, so this cannot deadlock.
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.logger.Warn("event published after bus close, dropping", "event_type", event.EventType())
		return
	}
	b.queue <- event
}

// Close stops the bus after delivering every event already published.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	b.mu.Unlock()

	close(b.queue)
	<-b.done
}

func (b *Bus) dispatch() {
	defer close(b.done)

	ctx := context.Background()
	for event := range b.queue {
		b.mu.RLock()
		handlers := make([]Handler, len(b.handlers))
		copy(handlers, b.handlers)
		b.mu.RUnlock()

		for _, handler := range handlers {
			if err := handler.HandleEvent(ctx, event); err != nil {
				b.logger.Error("event handler failed",
					"event_type", event.EventType(),
					"error", err)
			}
		}
	}
}
