package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/felixgeelhaar/playground/internal/config"
	"github.com/felixgeelhaar/playground/internal/level"
)

// cmdInit prepares ~/.playground for first-time use
func cmdInit() error {
	fmt.Println("Playground - First-Time Setup")
	fmt.Println("=============================")
	fmt.Println()

	fmt.Print("Creating ~/.playground directory structure... ")
	dir, err := config.EnsurePlaygroundDir()
	if err != nil {
		return fmt.Errorf("create directories: %w", err)
	}
	fmt.Println("✓")

	configPath := filepath.Join(dir, "config.yaml")
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		fmt.Print("Creating default configuration... ")
		if err := config.SaveLocalConfigTo(dir, config.DefaultLocalConfig()); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		fmt.Println("✓")
	} else {
		fmt.Println("Configuration already exists ✓")
	}

	cfg, err := config.LoadLocalConfigFrom(dir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Print("Loading levels... ")
	catalog := level.NewCatalog(cfg.LevelsPath(dir))
	if err := catalog.Load(); err != nil {
		fmt.Println("✗")
		return fmt.Errorf("load levels: %w", err)
	}
	stats := catalog.Stats()
	fmt.Printf("✓ (%d levels, %d exercises)\n", stats.LevelCount, stats.ExerciseCount)

	fmt.Println()
	fmt.Println("Setup Complete!")
	fmt.Println("===============")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. playground start      # Start the daemon")
	fmt.Println("  2. playground levels     # See available levels")
	fmt.Println("  3. playground level 1    # Open the first level")
	fmt.Println()
	fmt.Printf("Custom levels can be added as YAML files in %s\n", cfg.LevelsPath(dir))

	return nil
}

// cmdConfig shows the effective configuration
func cmdConfig() error {
	dir, err := config.PlaygroundDir()
	if err != nil {
		return err
	}
	cfg, err := config.LoadLocalConfigFrom(dir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fmt.Println("Playground Configuration")

	fmt.Println("Daemon:")
	fmt.Printf("  bind: %s:%d\n", cfg.Daemon.Bind, cfg.Daemon.Port)
	fmt.Printf("  log_level: %s\n", cfg.Daemon.LogLevel)

	fmt.Println("\nStorage:")
	fmt.Printf("  driver: %s\n", cfg.Storage.Driver)
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		fmt.Printf("  dsn: %s\n", setOrNot(cfg.Storage.DSN))
	case config.DriverJSON, config.DriverSQLite:
		fmt.Printf("  path: %s\n", cfg.StoragePath(dir))
	}

	fmt.Println("\nLevels:")
	fmt.Printf("  path: %s\n", cfg.LevelsPath(dir))
	fmt.Printf("  enforce_unlock: %t\n", cfg.Levels.EnforceUnlock)

	fmt.Println("\nRuns:")
	fmt.Printf("  delay: %s - %s\n", cfg.Renderer.MinDelay(), cfg.Renderer.MaxDelay())
	fmt.Printf("  rate limit: %d/s (burst %d)\n", cfg.RateLimit.RunsPerSecond, cfg.RateLimit.Burst)
	fmt.Printf("  autosave: every %s\n", cfg.Autosave.Interval())

	fmt.Println("\nEvents:")
	fmt.Printf("  amqp_url: %s\n", setOrNot(cfg.Events.AMQPURL))
	fmt.Printf("  queue: %s\n", cfg.Events.Queue)

	fmt.Printf("\nConfig path: %s\n", filepath.Join(dir, "config.yaml"))
	return nil
}

func setOrNot(secret string) string {
	if secret == "" {
		return "(not set)"
	}
	return "✓ (set)"
}
