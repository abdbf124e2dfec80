package main

import (
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskcore/internal/config"
	"github.com/phrazzld/taskcore/internal/platform/logger"
	"github.com/phrazzld/taskcore/internal/redact"
)

// loadAppConfig loads the configuration from environment variables or the
// optional config file.
func loadAppConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// setupAppLogger installs the default logger and records the loaded
// configuration. Connection URLs are redacted.
func setupAppLogger(cfg *config.Config) (*slog.Logger, error) {
	l, err := logger.Setup(logger.Config{Level: cfg.Server.LogLevel})
	if err != nil {
		return nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"connector", cfg.Connector.Driver,
		"namespace", cfg.Worker.Namespace,
		"queues", cfg.Worker.Queues,
		"concurrency", cfg.Worker.Concurrency)

	switch cfg.Connector.Driver {
	case "redis":
		l.Debug("Redis configuration", "url", redact.String(cfg.Connector.RedisURL))
	case "postgres":
		l.Debug("Database configuration", "url", redact.String(cfg.Connector.DatabaseURL))
	}
	if cfg.Kafka.Enabled() {
		l.Debug("Kafka configuration", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}

	return l, nil
}
