package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskcore/internal/config"
	"github.com/phrazzld/taskcore/internal/platform/memory"
	"github.com/phrazzld/taskcore/internal/platform/postgres"
	"github.com/phrazzld/taskcore/internal/platform/redis"
	"github.com/phrazzld/taskcore/internal/redact"
	"github.com/phrazzld/taskcore/internal/task"
)

// setupConnector builds the task connector selected by cfg. The returned
// closer releases the backend connection.
func setupConnector(ctx context.Context, cfg config.ConnectorConfig, logger *slog.Logger) (task.Connector, func(), error) {
	switch cfg.Driver {
	case "memory":
		logger.Info("Using in-memory connector; tasks are lost on restart")
		return memory.NewConnector(logger), func() {}, nil

	case "redis":
		client, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", redact.String(cfg.RedisURL), err)
		}
		logger.Info("Redis connection established", "result_ttl", cfg.ResultTTL)

		closer := func() {
			if err := client.Close(); err != nil {
				logger.Error("Error closing redis connection", "error", err)
			}
		}
		return redis.NewConnector(client, logger, redis.WithResultTTL(cfg.ResultTTL)), closer, nil

	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database at %s: %w", redact.String(cfg.DatabaseURL), err)
		}
		if err := postgres.Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		logger.Info("Database connection established")

		return postgres.NewConnector(pool, logger), pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported connector driver %q", cfg.Driver)
	}
}
