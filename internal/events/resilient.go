package events

import (
	"context"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"

	"github.com/felixgeelhaar/playground/internal/domain"
)

// ResilientConfig holds the circuit breaker settings for a publisher
type ResilientConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the circuit (default: 3)
	FailureThreshold int
	// OpenTimeout is how long the circuit stays open before probing again (default: 30s)
	OpenTimeout time.Duration
}

// ResilientPublisher stops calling a failing broker until it recovers
type ResilientPublisher struct {
	next    Publisher
	breaker circuitbreaker.CircuitBreaker[struct{}]
}

// NewResilientPublisher wraps next with a circuit breaker
func NewResilientPublisher(next Publisher, cfg ResilientConfig) *ResilientPublisher {
	threshold := cfg.FailureThreshold
	if threshold <= 0 {
		threshold = 3
	}
	timeout := cfg.OpenTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &ResilientPublisher{
		next: next,
		breaker: circuitbreaker.New[struct{}](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    time.Minute,
			Timeout:     timeout,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return int(counts.ConsecutiveFailures) >= threshold
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				slog.Warn("event publisher circuit state change",
					"from", from.String(),
					"to", to.String())
			},
		}),
	}
}

// Publish forwards event unless the circuit is open
func (p *ResilientPublisher) Publish(ctx context.Context, event domain.Event) error {
	_, err := p.breaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, p.next.Publish(ctx, event)
	})
	return err
}

// Close closes the wrapped publisher
func (p *ResilientPublisher) Close() error {
	return p.next.Close()
}
