package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskcore/internal/config"
	"github.com/phrazzld/taskcore/internal/events"
	"github.com/phrazzld/taskcore/internal/metrics"
	"github.com/phrazzld/taskcore/internal/platform/kafka"
	"github.com/phrazzld/taskcore/internal/task"
	"github.com/phrazzld/taskcore/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// application holds the shared dependencies so they can be torn down in
// order on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger

	connector      task.Connector
	closeConnector func()
	namespace      *task.TaskNamespace

	registry *prometheus.Registry
	emitter  *events.InMemoryEventEmitter
	closers  []func()

	worker *worker.Worker
}

// newApplication wires the connector, task queues, event publishing,
// metrics and the worker. Nothing is started yet.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	app := &application{
		config:         cfg,
		logger:         logger,
		closeConnector: func() {},
	}

	connector, closer, err := setupConnector(ctx, cfg.Connector, logger)
	if err != nil {
		return nil, err
	}
	app.connector = connector
	app.closeConnector = closer

	app.namespace = task.NewTaskNamespace(cfg.Worker.Namespace, connector, logger)
	queues := make([]*task.TaskQueue, 0, len(cfg.Worker.Queues))
	for _, name := range cfg.Worker.Queues {
		q, err := app.namespace.Queue(name)
		if err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to create task queue %q: %w", name, err)
		}
		if err := registerBuiltinTasks(q); err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to register tasks on queue %q: %w", name, err)
		}
		queues = append(queues, q)
	}

	app.emitter = events.NewInMemoryEventEmitter(logger)
	if cfg.Kafka.Enabled() {
		client, err := kafka.NewClient(cfg.Kafka.Brokers)
		if err != nil {
			app.cleanup()
			return nil, fmt.Errorf("failed to create kafka client: %w", err)
		}
		app.closers = append(app.closers, client.Close)
		app.emitter.Subscribe(kafka.NewPublisher(client, cfg.Kafka.Topic, logger))
		logger.Info("Kafka event publishing enabled", "topic", cfg.Kafka.Topic)
	}

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	app.worker = worker.New(queues, task.DefaultRunner{}, worker.Config{
		Concurrency:  cfg.Worker.Concurrency,
		PollInterval: cfg.Worker.PollInterval,
	}, logger,
		worker.WithEmitter(app.emitter),
		worker.WithMetrics(metrics.NewPromMetrics(app.registry)),
	)

	logger.Info("Application initialized successfully",
		"namespace", app.namespace.Name(),
		"queues", cfg.Worker.Queues)
	return app, nil
}

// Run starts the worker and serves HTTP until ctx is cancelled.
func (app *application) Run(ctx context.Context) error {
	if err := app.worker.Start(); err != nil {
		app.cleanup()
		return fmt.Errorf("failed to start worker: %w", err)
	}

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup stops the worker before releasing the backends it uses.
func (app *application) cleanup() {
	if app.worker != nil {
		app.worker.Stop()
	}
	for i := len(app.closers) - 1; i >= 0; i-- {
		app.closers[i]()
	}
	app.closeConnector()

	app.logger.Info("Application shutdown completed")
}
