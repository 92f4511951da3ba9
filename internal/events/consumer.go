package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Envelope is the decoded form of a published event
type Envelope struct {
	ID              uuid.UUID `json:"id"`
	Type            string    `json:"type"`
	OccurredAt      time.Time `json:"occurred_at"`
	Level           int       `json:"level"`
	ExerciseID      int       `json:"exercise_id,omitempty"`
	CompletedLevels []int     `json:"completed_levels,omitempty"`
	TotalProgress   int       `json:"total_progress,omitempty"`
}

// Handler processes one consumed event
type Handler func(ctx context.Context, env Envelope) error

// Consume feeds events from the connection's queue to h until ctx is done
// or the broker cancels the subscription.
func Consume(ctx context.Context, conn *Connection, tag string, h Handler) error {
	ch := conn.Channel()
	if ch == nil {
		return errors.New("consume: channel not open")
	}
	if err := ch.Qos(8, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}

	deliveries, err := ch.Consume(conn.Queue(), tag,
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", conn.Queue(), err)
	}

	for {
		select {
		case <-ctx.Done():
			if tag != "" {
				_ = ch.Cancel(tag, false)
			}
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			if err := dispatch(ctx, d, h); err != nil {
				slog.Warn("acknowledge event", "message_id", d.MessageId, "error", err)
			}
		}
	}
}

// dispatch settles one delivery. Undecodable messages are dropped; a
// handler failure is requeued once and then dropped.
func dispatch(ctx context.Context, d amqp.Delivery, h Handler) error {
	var env Envelope
	if err := json.Unmarshal(d.Body, &env); err != nil || env.Type == "" {
		slog.Warn("dropping malformed event", "message_id", d.MessageId, "error", err)
		return d.Reject(false)
	}

	if err := h(ctx, env); err != nil {
		slog.Warn("event handler failed",
			"event_id", env.ID,
			"type", env.Type,
			"redelivered", d.Redelivered,
			"error", err)
		return d.Nack(false, !d.Redelivered)
	}
	return d.Ack(false)
}
