// Package storage persists playground progress as JSON blobs under named keys.
//
// Backends implement KV; the Adapter layers JSON encoding on top and treats
// missing or malformed data as absent so callers can fall back to defaults.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
)

// ErrNotFound is returned by a KV when a key does not exist
var ErrNotFound = errors.New("not found")

// KV is a raw key/value backend
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context) ([]string, error)
	Close() error
}

// Adapter reads and writes JSON values through a KV backend
type Adapter struct {
	kv     KV
	logger *slog.Logger
}

// NewAdapter creates an adapter over the given backend
func NewAdapter(kv KV) *Adapter {
	return &Adapter{kv: kv, logger: slog.Default()}
}

// Load decodes the value stored under key into dst.
// It reports false when the key is absent, unreadable or not valid JSON.
func (a *Adapter) Load(ctx context.Context, key string, dst any) bool {
	data, err := a.kv.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			a.logger.Warn("storage read failed, using defaults", "key", key, "error", err)
		}
		return false
	}

	if err := json.Unmarshal(data, dst); err != nil {
		a.logger.Warn("malformed stored value, using defaults", "key", key, "error", err)
		return false
	}
	return true
}

// Save encodes v as JSON and writes it under key
func (a *Adapter) Save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := a.kv.Put(ctx, key, data); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (a *Adapter) Delete(ctx context.Context, key string) error {
	if err := a.kv.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Keys lists every stored key
func (a *Adapter) Keys(ctx context.Context) ([]string, error) {
	return a.kv.Keys(ctx)
}

// Close releases the backend
func (a *Adapter) Close() error {
	return a.kv.Close()
}
