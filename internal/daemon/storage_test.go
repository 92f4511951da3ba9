package daemon

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/felixgeelhaar/playground/internal/config"
	"github.com/felixgeelhaar/playground/internal/storage"
)

func TestOpenStorage(t *testing.T) {
	tests := []struct {
		driver string
	}{
		{config.DriverMemory},
		{config.DriverJSON},
		{config.DriverSQLite},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			cfg := config.DefaultLocalConfig()
			cfg.Storage.Driver = tt.driver

			kv, err := OpenStorage(ctx, cfg, dir)
			if err != nil {
				t.Fatalf("OpenStorage() error = %v", err)
			}
			defer kv.Close()

			a := storage.NewAdapter(kv)
			if err := a.Save(ctx, "completedLevels", []int{1, 3}); err != nil {
				t.Fatalf("Save() error = %v", err)
			}
			var got []int
			if !a.Load(ctx, "completedLevels", &got) || len(got) != 2 {
				t.Errorf("Load() = %v", got)
			}
		})
	}
}

func TestOpenStorage_SQLitePath(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultLocalConfig()
	cfg.Storage.Driver = config.DriverSQLite
	cfg.Storage.Path = filepath.Join(dir, "custom.db")

	kv, err := OpenStorage(context.Background(), cfg, dir)
	if err != nil {
		t.Fatalf("OpenStorage() error = %v", err)
	}
	kv.Close()

	if matches, _ := filepath.Glob(filepath.Join(dir, "custom.db*")); len(matches) == 0 {
		t.Error("expected database at custom path")
	}
}

func TestOpenStorage_UnknownDriver(t *testing.T) {
	cfg := config.DefaultLocalConfig()
	cfg.Storage.Driver = "etcd"

	if _, err := OpenStorage(context.Background(), cfg, t.TempDir()); err == nil {
		t.Error("OpenStorage() with unknown driver should fail")
	}
}
