package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixgeelhaar/playground/internal/config"
	"github.com/felixgeelhaar/playground/internal/controller"
	"github.com/felixgeelhaar/playground/internal/daemon"
	"github.com/felixgeelhaar/playground/internal/domain"
	"github.com/felixgeelhaar/playground/internal/level"
	mcpserver "github.com/felixgeelhaar/playground/internal/mcp"
	"github.com/felixgeelhaar/playground/internal/renderer"
	"github.com/felixgeelhaar/playground/internal/storage"
)

// cmdMCP serves the playground tools over stdio. It runs in-process against
// the configured storage, so progress is shared with the daemon.
func cmdMCP() error {
	// stdout carries the protocol
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))

	dir, err := config.EnsurePlaygroundDir()
	if err != nil {
		return fmt.Errorf("ensure playground dir: %w", err)
	}
	cfg, err := config.LoadLocalConfigFrom(dir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv, err := daemon.OpenStorage(ctx, cfg, dir)
	if err != nil {
		return err
	}
	store := storage.NewAdapter(kv)
	defer store.Close()

	catalog := level.NewCatalog(cfg.LevelsPath(dir))
	if err := catalog.Load(); err != nil {
		return fmt.Errorf("load levels: %w", err)
	}

	manager := controller.NewManager(ctx, catalog, store, domain.NewEventDispatcher(), controller.ManagerConfig{
		EnforceUnlock: cfg.Levels.EnforceUnlock,
		Renderer:      []renderer.Option{renderer.WithDelay(cfg.Renderer.MinDelay(), cfg.Renderer.MaxDelay())},
	})
	if err := manager.StartAutosave(cfg.Autosave.Interval()); err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := manager.Close(flushCtx); err != nil {
			slog.Warn("flush progress failed", "error", err)
		}
	}()

	mcpSrv := mcpserver.NewServer(mcpserver.Config{
		Manager: manager,
		Version: Version,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	return mcpSrv.ServeStdio(ctx)
}
