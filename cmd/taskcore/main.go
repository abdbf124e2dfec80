// Package main implements the entry point for the taskcore server, which
// exposes task queues over HTTP and runs a worker consuming them.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Printf("taskcore: %v", err)
		os.Exit(1)
	}
}

// run loads configuration, builds the application and serves until ctx is
// cancelled.
func run(ctx context.Context) error {
	cfg, err := loadAppConfig()
	if err != nil {
		return err
	}

	l, err := setupAppLogger(cfg)
	if err != nil {
		return err
	}

	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return app.Run(ctx)
}
