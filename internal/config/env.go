package config

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment overrides
const (
	EnvPort          = "PLAYGROUND_PORT"
	EnvBind          = "PLAYGROUND_BIND"
	EnvLogLevel      = "PLAYGROUND_LOG_LEVEL"
	EnvStorageDriver = "PLAYGROUND_STORAGE_DRIVER"
	EnvStoragePath   = "PLAYGROUND_STORAGE_PATH"
	EnvStorageDSN    = "PLAYGROUND_STORAGE_DSN"
	EnvLevelsPath    = "PLAYGROUND_LEVELS_PATH"
	EnvEnforceUnlock = "PLAYGROUND_ENFORCE_UNLOCK"
	EnvAMQPURL       = "PLAYGROUND_AMQP_URL"
)

// loadDotEnv loads the files that exist. Variables already set win.
func loadDotEnv(paths ...string) {
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			slog.Warn("failed to load env file", "path", p, "error", err)
		}
	}
}

func applyEnv(cfg *LocalConfig) {
	cfg.Daemon.Port = getEnvInt(EnvPort, cfg.Daemon.Port)
	cfg.Daemon.Bind = getEnv(EnvBind, cfg.Daemon.Bind)
	cfg.Daemon.LogLevel = getEnv(EnvLogLevel, cfg.Daemon.LogLevel)
	cfg.Storage.Driver = getEnv(EnvStorageDriver, cfg.Storage.Driver)
	cfg.Storage.Path = getEnv(EnvStoragePath, cfg.Storage.Path)
	cfg.Storage.DSN = getEnv(EnvStorageDSN, cfg.Storage.DSN)
	cfg.Levels.Path = getEnv(EnvLevelsPath, cfg.Levels.Path)
	cfg.Levels.EnforceUnlock = getEnvBool(EnvEnforceUnlock, cfg.Levels.EnforceUnlock)
	cfg.Events.AMQPURL = getEnv(EnvAMQPURL, cfg.Events.AMQPURL)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
