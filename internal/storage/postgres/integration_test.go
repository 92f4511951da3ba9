//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/felixgeelhaar/playground/internal/domain"
	"github.com/felixgeelhaar/playground/internal/storage"
	"github.com/felixgeelhaar/playground/internal/storage/postgres"
)

// setupPostgres starts a PostgreSQL container and returns its DSN
func setupPostgres(t *testing.T) (string, func()) {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("playground"),
		tcpostgres.WithUsername("playground"),
		tcpostgres.WithPassword("playground"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		testcontainers.TerminateContainer(container)
		t.Fatalf("failed to get connection string: %v", err)
	}

	cleanup := func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}
	return dsn, cleanup
}

func TestIntegration_KVStore_RoundTrip(t *testing.T) {
	dsn, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	kv, err := postgres.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer kv.Close()

	adapter := storage.NewAdapter(kv)
	want := domain.LevelProgress{
		LevelNumber: 4,
		Exercises:   []domain.ExerciseRecord{{ID: 1, Name: "Deploy", Completed: true}},
		Metrics:     map[string]any{"instances": 3},
	}
	if err := adapter.Save(ctx, domain.ProgressKey(4), want); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	var got domain.LevelProgress
	if !adapter.Load(ctx, domain.ProgressKey(4), &got) {
		t.Fatal("Load() = false; want true")
	}
	if got.LevelNumber != 4 || !got.Exercises[0].Completed || got.Metrics["instances"] != 3 {
		t.Errorf("Load() = %+v", got)
	}

	keys, err := kv.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	if len(keys) != 1 || keys[0] != "level4Progress" {
		t.Errorf("Keys() = %v", keys)
	}
}

func TestIntegration_KVStore_NotFound(t *testing.T) {
	dsn, cleanup := setupPostgres(t)
	defer cleanup()

	ctx := context.Background()
	kv, err := postgres.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer kv.Close()

	if _, err := kv.Get(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Get() error = %v; want ErrNotFound", err)
	}
	if err := kv.Delete(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Delete() error = %v; want ErrNotFound", err)
	}
	if err := kv.Put(ctx, "bad", []byte("{nope")); err == nil {
		t.Error("Put() with invalid JSON should fail")
	}
}
