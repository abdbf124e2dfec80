package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskcore/internal/events"
	"github.com/phrazzld/taskcore/internal/metrics"
	"github.com/phrazzld/taskcore/internal/platform/logger"
	"github.com/phrazzld/taskcore/internal/task"
)

// ErrAlreadyStarted is returned by Start on a running worker.
var ErrAlreadyStarted = errors.New("worker already started")

// ErrNoQueues is returned by Start when the worker has nothing to consume.
var ErrNoQueues = errors.New("worker has no queues")

// Config holds configuration for the worker
type Config struct {
	// Concurrency determines how many tasks are processed at the same time.
	// If zero or negative, defaults to 1
	Concurrency int

	// PollInterval is how long an idle slot waits before pulling again
	PollInterval time.Duration
}

// DefaultConfig returns a Config with reasonable defaults
func DefaultConfig() Config {
	return Config{
		Concurrency:  2,
		PollInterval: task.DefaultPollInterval,
	}
}

// Option customises a Worker.
type Option func(*Worker)

// WithEmitter sends task.started and task.finalized events to emitter.
func WithEmitter(emitter events.EventEmitter) Option {
	return func(w *Worker) {
		w.emitter = emitter
	}
}

// WithMetrics records worker activity in m.
func WithMetrics(m metrics.Metrics) Option {
	return func(w *Worker) {
		w.metrics = m
	}
}

// WithErrorHandler is called for every task whose execution failed.
func WithErrorHandler(handler func(t *task.QueuedTask, err error)) Option {
	return func(w *Worker) {
		w.errHandler = handler
	}
}

// Worker pulls tasks from a fixed set of queues and executes them.
type Worker struct {
	id         string
	queues     []*task.TaskQueue
	runner     task.Runner
	config     Config
	emitter    events.EventEmitter
	metrics    metrics.Metrics
	errHandler func(t *task.QueuedTask, err error)
	logger     *slog.Logger

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New creates a Worker. runner drives async executables; nil selects
// task.DefaultRunner.
func New(queues []*task.TaskQueue, runner task.Runner, config Config, l *slog.Logger, opts ...Option) *Worker {
	if runner == nil {
		runner = task.DefaultRunner{}
	}
	if config.Concurrency <= 0 {
		l.Warn("invalid concurrency specified, using default",
			"specified_count", config.Concurrency,
			"default_count", 1)
		config.Concurrency = 1
	}
	if config.PollInterval <= 0 {
		config.PollInterval = task.DefaultPollInterval
	}

	id := uuid.NewString()
	w := &Worker{
		id:      id,
		queues:  queues,
		runner:  runner,
		config:  config,
		emitter: events.NopEmitter{},
		metrics: metrics.Noop{},
		logger:  l.With("component", "worker", "worker_id", id),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ID returns the worker's unique id.
func (w *Worker) ID() string {
	return w.id
}

// Start launches the processing slots. It returns immediately.
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.started {
		return ErrAlreadyStarted
	}
	if len(w.queues) == 0 {
		return ErrNoQueues
	}

	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.started = true

	for slot := 0; slot < w.config.Concurrency; slot++ {
		w.wg.Add(1)
		go w.loop(ctx, slot)
	}

	w.logger.Info("worker started",
		"concurrency", w.config.Concurrency,
		"queues", len(w.queues))
	return nil
}

// Stop cancels all slots and waits for in-flight tasks to be stored.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		return
	}
	w.started = false
	cancel := w.cancel
	w.mu.Unlock()

	cancel()
	w.wg.Wait()
	w.logger.Info("worker stopped")
}

// loop visits the queues round-robin, starting at a different queue per
// slot, and sleeps one poll interval when a full pass found nothing.
func (w *Worker) loop(ctx context.Context, slot int) {
	defer w.wg.Done()

	w.logger.Debug("starting slot", "slot", slot)
	next := slot % len(w.queues)

	for {
		if ctx.Err() != nil {
			w.logger.Debug("stopping slot", "slot", slot)
			return
		}

		busy := false
		for i := 0; i < len(w.queues); i++ {
			q := w.queues[(next+i)%len(w.queues)]
			processed, err := w.ProcessOne(ctx, q)
			if err != nil && ctx.Err() == nil {
				w.logger.Error("failed to process queue",
					"namespace", q.Namespace(),
					"queue", q.Name(),
					"slot", slot,
					"error", err)
			}
			busy = busy || processed
		}
		next = (next + 1) % len(w.queues)

		if !busy {
			select {
			case <-ctx.Done():
			case <-time.After(w.config.PollInterval):
			}
		}
	}
}

// ProcessOne pulls at most one task from q and runs it to finalization:
// pull, start, update, execute, finalize, update. processed reports whether
// a task was pulled. Task failures are not errors; they are stored as the
// task's result.
func (w *Worker) ProcessOne(ctx context.Context, q *task.TaskQueue) (processed bool, err error) {
	pulled, err := q.Pull(ctx)
	if err != nil {
		w.metrics.ConnectorError(q.Namespace(), q.Name(), "pull")
		return false, err
	}
	if pulled == nil {
		return false, nil
	}
	w.metrics.TaskPulled(q.Namespace(), q.Name())

	taskLogger := w.logger.With(pulled.LogAttrs()...)

	// Results must be stored even when the worker is stopping.
	storeCtx := context.WithoutCancel(ctx)

	started := pulled.Start()
	if err := q.Update(storeCtx, started); err != nil {
		w.metrics.ConnectorError(q.Namespace(), q.Name(), "update")
		return true, fmt.Errorf("failed to mark task started: %w", err)
	}
	w.emit(ctx, events.TypeTaskStarted, started, taskLogger)

	taskLogger.Info("processing task")
	finalized := started.Execute(logger.WithLogger(ctx, taskLogger), w.runner).Finalize()

	result := finalized.ExecutionResult()
	failed := result != nil && result.Err != nil
	if failed {
		taskLogger.Error("task execution failed", "error", result.Err)
		if w.errHandler != nil {
			w.errHandler(finalized, result.Err)
		}
	} else {
		taskLogger.Info("task completed successfully")
	}

	if err := q.Update(storeCtx, finalized); err != nil {
		w.metrics.ConnectorError(q.Namespace(), q.Name(), "update")
		if errors.Is(err, task.ErrTaskDoesNotExistAnymore) {
			taskLogger.Warn("task removed before its result could be stored")
		}
		return true, fmt.Errorf("failed to store task result: %w", err)
	}

	w.metrics.TaskFinalized(
		q.Namespace(), q.Name(), finalized.TaskExecutable().Name(),
		failed, finalized.FinalizedAt().Sub(*finalized.StartedAt()),
	)
	w.emit(storeCtx, events.TypeTaskFinalized, finalized, taskLogger)
	return true, nil
}

// emit never fails the task; handler errors are logged.
func (w *Worker) emit(ctx context.Context, eventType string, t *task.QueuedTask, l *slog.Logger) {
	event, err := events.NewTaskEvent(eventType, t.Serializable())
	if err == nil {
		err = w.emitter.EmitEvent(ctx, event)
	}
	if err != nil {
		l.Warn("failed to emit task event", "event_type", eventType, "error", err)
	}
}
