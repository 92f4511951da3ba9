package daemon

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/playground/internal/config"
	"github.com/felixgeelhaar/playground/internal/storage"
	"github.com/felixgeelhaar/playground/internal/storage/local"
	"github.com/felixgeelhaar/playground/internal/storage/postgres"
	"github.com/felixgeelhaar/playground/internal/storage/sqlite"
)

// OpenStorage opens the progress backend selected by cfg.Storage.Driver.
// Relative locations resolve against dir.
func OpenStorage(ctx context.Context, cfg *config.LocalConfig, dir string) (storage.KV, error) {
	var (
		kv  storage.KV
		err error
	)

	switch cfg.Storage.Driver {
	case config.DriverMemory:
		kv = storage.NewMemoryKV()

	case config.DriverSQLite:
		var db *sqlite.KVStore
		db, err = sqlite.OpenKV(cfg.StoragePath(dir))
		if err == nil {
			kv = storage.WithRetry(db, storage.DefaultRetryConfig())
		}

	case config.DriverPostgres:
		var pg *postgres.KVStore
		pg, err = postgres.Open(ctx, cfg.Storage.DSN)
		if err == nil {
			kv = storage.WithRetry(pg, storage.DefaultRetryConfig())
		}

	case config.DriverJSON, "":
		kv, err = local.NewStore(cfg.StoragePath(dir))

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Driver, err)
	}

	slog.Info("storage opened", "driver", cfg.Storage.Driver)
	return kv, nil
}
