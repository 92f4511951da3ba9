// Command playgroundd serves level progress over HTTP for the playground CLI.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/felixgeelhaar/playground/internal/config"
	"github.com/felixgeelhaar/playground/internal/daemon"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	pidFileName = "playgroundd.pid"
	logFileName = "playgroundd.log"

	shutdownTimeout = 30 * time.Second
)

func main() {
	ephemeral := flag.Bool("ephemeral", false, "keep progress in memory only")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *ephemeral); err != nil {
		slog.Error("playgroundd exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, ephemeral bool) error {
	dir, err := config.EnsurePlaygroundDir()
	if err != nil {
		return fmt.Errorf("ensure playground dir: %w", err)
	}

	cfg, err := config.LoadLocalConfigFrom(dir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if ephemeral {
		cfg.Storage.Driver = config.DriverMemory
	}

	logFile, err := openLogFile(dir)
	if err != nil {
		return err
	}
	defer logFile.Close()
	slog.SetDefault(newLogger(logFile, os.Stderr, parseLogLevel(cfg.Daemon.LogLevel)))

	pidPath := filepath.Join(dir, pidFileName)
	if err := os.WriteFile(pidPath, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	daemon.Version = Version
	srv, err := daemon.NewServer(ctx, daemon.ServerConfig{Config: cfg, DataDir: dir})
	if err != nil {
		return fmt.Errorf("create server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		shutdown(srv)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
		slog.Info("shutting down", "cause", context.Cause(ctx))
	}

	if err := shutdown(srv); err != nil {
		return err
	}
	slog.Info("daemon stopped")
	return nil
}

func shutdown(srv *daemon.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
