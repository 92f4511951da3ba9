package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/felixgeelhaar/playground/internal/domain"
)

// Publisher sends domain events to an external sink
type Publisher interface {
	Publish(ctx context.Context, event domain.Event) error
	Close() error
}

// AMQPPublisher publishes events to a RabbitMQ queue
type AMQPPublisher struct {
	conn *Connection
}

// NewAMQPPublisher creates a publisher over an open connection
func NewAMQPPublisher(conn *Connection) *AMQPPublisher {
	return &AMQPPublisher{conn: conn}
}

// Publish sends event as a JSON message
func (p *AMQPPublisher) Publish(ctx context.Context, event domain.Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event.EventType(), err)
	}

	err = p.conn.publish(ctx, amqp.Publishing{
		MessageId: event.EventID().String(),
		Type:      event.EventType(),
		Timestamp: event.OccurredAt(),
		Body:      body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", event.EventType(), err)
	}

	slog.Debug("published event", "event_id", event.EventID(), "type", event.EventType(), "queue", p.conn.Queue())
	return nil
}

// Close closes the underlying connection
func (p *AMQPPublisher) Close() error {
	return p.conn.Close()
}

// Noop discards events
type Noop struct{}

func (Noop) Publish(context.Context, domain.Event) error { return nil }
func (Noop) Close() error                                { return nil }

// Recorder keeps published events in memory
type Recorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *Recorder) Publish(_ context.Context, event domain.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of the recorded events
func (r *Recorder) Events() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}

// forwardBuffer is how many events may wait for a slow broker before new
// ones are dropped.
const forwardBuffer = 256

// Forwarder publishes dispatched events on its own goroutine, so a slow or
// unreachable broker never holds up the request that produced the event.
type Forwarder struct {
	pub     Publisher
	timeout time.Duration
	queue   chan domain.Event
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

// Forward subscribes pub to every event on the dispatcher and starts the
// publishing goroutine. Publish failures are logged and never reach the
// caller of Dispatch. Close drains the queue.
func Forward(d *domain.EventDispatcher, pub Publisher, timeout time.Duration) *Forwarder {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	f := &Forwarder{
		pub:     pub,
		timeout: timeout,
		queue:   make(chan domain.Event, forwardBuffer),
		done:    make(chan struct{}),
	}
	go f.run()
	d.SubscribeAll(f.enqueue)
	return f
}

func (f *Forwarder) enqueue(event domain.Event) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.closed {
		slog.Warn("event dropped after shutdown", "type", event.EventType(), "event_id", event.EventID())
		return
	}
	select {
	case f.queue <- event:
	default:
		slog.Warn("event queue full, dropping event", "type", event.EventType(), "event_id", event.EventID())
	}
}

func (f *Forwarder) run() {
	defer close(f.done)
	for event := range f.queue {
		ctx, cancel := context.WithTimeout(context.Background(), f.timeout)
		if err := f.pub.Publish(ctx, event); err != nil {
			slog.Warn("event publish failed", "type", event.EventType(), "event_id", event.EventID(), "error", err)
		}
		cancel()
	}
}

// Close stops accepting events and waits until the queued ones have been
// handed to the publisher, or until ctx is done.
func (f *Forwarder) Close(ctx context.Context) error {
	f.mu.Lock()
	if !f.closed {
		f.closed = true
		close(f.queue)
	}
	f.mu.Unlock()

	select {
	case <-f.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain events: %w", ctx.Err())
	}
}
