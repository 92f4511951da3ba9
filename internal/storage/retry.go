package storage

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
)

// RetryConfig controls write retries for database-backed stores
type RetryConfig struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryConfig returns the retry policy used for sqlite and postgres
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
	}
}

// retryingKV retries Put and Delete on transient backend errors
type retryingKV struct {
	KV
	retrier retry.Retry[struct{}]
}

// WithRetry wraps a backend so that writes are retried with exponential backoff
func WithRetry(kv KV, cfg RetryConfig) KV {
	if cfg.MaxAttempts <= 1 {
		return kv
	}
	return &retryingKV{
		KV: kv,
		retrier: retry.New[struct{}](retry.Config{
			MaxAttempts:   cfg.MaxAttempts,
			InitialDelay:  cfg.InitialDelay,
			MaxDelay:      cfg.MaxDelay,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   isRetryable,
		}),
	}
}

func (r *retryingKV) Put(ctx context.Context, key string, value []byte) error {
	_, err := r.retrier.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.KV.Put(ctx, key, value)
	})
	if err != nil {
		slog.Debug("storage write gave up", "key", key, "error", err)
	}
	return err
}

func (r *retryingKV) Delete(ctx context.Context, key string) error {
	_, err := r.retrier.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, r.KV.Delete(ctx, key)
	})
	return err
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}
