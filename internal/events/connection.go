// Package events publishes level progress events to RabbitMQ.
package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue is the queue events are published to
const DefaultQueue = "playground.events"

// messageTTL bounds how long unconsumed events stay on the queue.
const messageTTL = 24 * time.Hour

// Connection is a RabbitMQ channel bound to one durable queue. When the
// broker drops the connection it is re-established in the background.
type Connection struct {
	url   string
	queue string

	ctx    context.Context
	cancel context.CancelFunc
	redial retry.Retry[struct{}]

	mu   sync.RWMutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial connects to rawURL and declares queue, or DefaultQueue when empty.
func Dial(rawURL, queue string) (*Connection, error) {
	if queue == "" {
		queue = DefaultQueue
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Connection{
		url:    rawURL,
		queue:  queue,
		ctx:    ctx,
		cancel: cancel,
		redial: retry.New[struct{}](retry.Config{
			MaxAttempts:   10,
			InitialDelay:  time.Second,
			MaxDelay:      30 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable: func(err error) bool {
				return !errors.Is(err, context.Canceled)
			},
		}),
	}

	if err := c.establish(); err != nil {
		cancel()
		return nil, err
	}
	slog.Info("connected to RabbitMQ", "url", redactURL(rawURL), "queue", queue)
	return c, nil
}

// establish opens a connection and channel, declares the queue and swaps
// them in. It starts a watcher for the new connection.
func (c *Connection) establish() error {
	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial %s: %w", redactURL(c.url), err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}
	if err := declareQueue(ch, c.queue); err != nil {
		conn.Close()
		return err
	}

	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		conn.Close()
		return c.ctx.Err()
	}
	c.conn, c.ch = conn, ch
	c.mu.Unlock()

	go c.watch(conn.NotifyClose(make(chan *amqp.Error, 1)))
	return nil
}

func declareQueue(ch *amqp.Channel, name string) error {
	_, err := ch.QueueDeclare(name,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-message-ttl": int32(messageTTL / time.Millisecond)},
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", name, err)
	}
	return nil
}

// watch blocks until the connection closes. A graceful close ends the
// watcher; a broker error triggers a redial with backoff.
func (c *Connection) watch(closed <-chan *amqp.Error) {
	var cause *amqp.Error
	select {
	case <-c.ctx.Done():
		return
	case cause = <-closed:
	}
	if cause == nil {
		return
	}

	slog.Warn("RabbitMQ connection lost", "error", cause, "queue", c.queue)
	attempt := 0
	_, err := c.redial.Do(c.ctx, func(ctx context.Context) (struct{}, error) {
		attempt++
		return struct{}{}, c.establish()
	})
	switch {
	case err == nil:
		slog.Info("reconnected to RabbitMQ", "attempts", attempt)
	case c.ctx.Err() == nil:
		slog.Error("giving up on RabbitMQ", "attempts", attempt, "error", err)
	}
}

// Queue returns the name of the declared queue
func (c *Connection) Queue() string {
	return c.queue
}

// Channel returns the current channel, which changes after a reconnect.
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.ch
}

// IsConnected reports whether the underlying connection is open
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// Close stops reconnecting and closes the connection.
func (c *Connection) Close() error {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}

// publish sends body as a persistent JSON message on the queue.
func (c *Connection) publish(ctx context.Context, msg amqp.Publishing) error {
	ch := c.Channel()
	if ch == nil || ch.IsClosed() {
		return errors.New("channel not open")
	}
	msg.ContentType = "application/json"
	msg.DeliveryMode = amqp.Persistent
	return ch.PublishWithContext(ctx, "", c.queue, false, false, msg)
}

// redactURL hides credentials in an AMQP URL for logging
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "amqp://..."
	}
	return u.Redacted()
}
