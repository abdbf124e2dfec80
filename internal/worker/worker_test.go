package worker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/phrazzld/taskcore/internal/events"
	"github.com/phrazzld/taskcore/internal/platform/logger"
	"github.com/phrazzld/taskcore/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// recordingMetrics captures observations for assertions.
type recordingMetrics struct {
	mu              sync.Mutex
	pulled          int
	succeeded       int
	failed          int
	connectorErrors []string
}

func (m *recordingMetrics) TaskPulled(namespace, queue string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pulled++
}

func (m *recordingMetrics) TaskFinalized(namespace, queue, taskName string, failed bool, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if failed {
		m.failed++
	} else {
		m.succeeded++
	}
}

func (m *recordingMetrics) ConnectorError(namespace, queue, op string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectorErrors = append(m.connectorErrors, op)
}

// recordingHandler collects emitted event types.
type recordingHandler struct {
	mu    sync.Mutex
	types []string
}

func (h *recordingHandler) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.types = append(h.types, event.Type)
	return nil
}

func (h *recordingHandler) Types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.types...)
}

type fixture struct {
	connector *task.MockConnector
	queue     *task.TaskQueue
	metrics   *recordingMetrics
	handler   *recordingHandler
	emitter   *events.InMemoryEventEmitter
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	connector := task.NewMockConnector()
	namespace := task.NewTaskNamespace("test", connector, testLogger())
	queue, err := namespace.Queue("default")
	require.NoError(t, err)

	_, err = queue.RegisterSync("double", func(ctx context.Context, ec task.ExecutionContext) (any, error) {
		var n int
		if err := ec.Arg(0, &n); err != nil {
			return nil, err
		}
		return n * 2, nil
	})
	require.NoError(t, err)

	handler := &recordingHandler{}
	emitter := events.NewInMemoryEventEmitter(testLogger())
	emitter.Subscribe(handler)

	return &fixture{
		connector: connector,
		queue:     queue,
		metrics:   &recordingMetrics{},
		handler:   handler,
		emitter:   emitter,
	}
}

func (f *fixture) enqueue(t *testing.T, name string, args ...any) *task.QueuedTask {
	t.Helper()

	ec, err := task.NewExecutionContext(args, nil)
	require.NoError(t, err)
	queued, err := f.queue.NewTask(name, ec)
	require.NoError(t, err)
	require.NoError(t, f.queue.Queue(context.Background(), queued))
	return queued
}

func (f *fixture) worker(opts ...Option) *Worker {
	opts = append([]Option{WithEmitter(f.emitter), WithMetrics(f.metrics)}, opts...)
	return New([]*task.TaskQueue{f.queue}, nil, DefaultConfig(), testLogger(), opts...)
}

func TestWorker_ProcessOne(t *testing.T) {
	t.Parallel()

	t.Run("empty queue", func(t *testing.T) {
		f := newFixture(t)

		processed, err := f.worker().ProcessOne(context.Background(), f.queue)

		assert.NoError(t, err)
		assert.False(t, processed)
		assert.Zero(t, f.metrics.pulled)
	})

	t.Run("success is stored", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		queued := f.enqueue(t, "double", 21)

		processed, err := f.worker().ProcessOne(ctx, f.queue)
		require.NoError(t, err)
		assert.True(t, processed)

		stored, err := f.queue.Find(ctx, queued.ID())
		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, task.StateFinalized, stored.State())

		finished, err := task.NewFinishedTask(stored)
		require.NoError(t, err)
		success, ok := finished.Result().(task.Success)
		require.True(t, ok)
		var got int
		require.NoError(t, success.Decode(&got))
		assert.Equal(t, 42, got)

		assert.Equal(t, 1, f.metrics.pulled)
		assert.Equal(t, 1, f.metrics.succeeded)
		assert.Equal(t, []string{events.TypeTaskStarted, events.TypeTaskFinalized}, f.handler.Types())
	})

	t.Run("failure is stored and reported", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		boom := errors.New("boom")
		_, err := f.queue.RegisterSync("explode", func(ctx context.Context, ec task.ExecutionContext) (any, error) {
			return nil, boom
		})
		require.NoError(t, err)
		queued := f.enqueue(t, "explode")

		var handled error
		w := f.worker(WithErrorHandler(func(t *task.QueuedTask, err error) {
			handled = err
		}))

		processed, err := w.ProcessOne(ctx, f.queue)
		require.NoError(t, err, "task failures are not worker errors")
		assert.True(t, processed)
		assert.Same(t, boom, handled)

		stored, err := f.queue.Find(ctx, queued.ID())
		require.NoError(t, err)
		finished, err := task.NewFinishedTask(stored)
		require.NoError(t, err)
		failure, ok := finished.Result().(task.Failure)
		require.True(t, ok)

		var captured *task.CapturedError
		require.ErrorAs(t, failure.Err, &captured)
		assert.Equal(t, "boom", captured.Message)
		assert.Equal(t, 1, f.metrics.failed)
	})

	t.Run("pull error", func(t *testing.T) {
		f := newFixture(t)
		backendErr := errors.New("backend down")
		f.connector.PullFn = func(ctx context.Context, namespace, queue string) (*task.SerializableTask, error) {
			return nil, backendErr
		}

		processed, err := f.worker().ProcessOne(context.Background(), f.queue)

		assert.ErrorIs(t, err, backendErr)
		assert.False(t, processed)
		assert.Equal(t, []string{"pull"}, f.metrics.connectorErrors)
	})

	t.Run("task deleted while running", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(t)
		var deleteOnce sync.Once
		_, err := f.queue.RegisterSync("evicted", func(ctx context.Context, ec task.ExecutionContext) (any, error) {
			return nil, nil
		})
		require.NoError(t, err)
		queued := f.enqueue(t, "evicted")

		defaultUpdate := f.connector.UpdateFn
		f.connector.UpdateFn = func(ctx context.Context, namespace, queue string, s task.SerializableTask) error {
			if s.IsFinalized() {
				deleteOnce.Do(func() { f.connector.Delete(namespace, queue, queued.ID()) })
			}
			return defaultUpdate(ctx, namespace, queue, s)
		}

		processed, err := f.worker().ProcessOne(ctx, f.queue)

		assert.True(t, processed)
		assert.ErrorIs(t, err, task.ErrTaskDoesNotExistAnymore)
		assert.Equal(t, []string{"update"}, f.metrics.connectorErrors)
		assert.Equal(t, []string{events.TypeTaskStarted}, f.handler.Types())
	})
}

func TestWorker_TaskLoggerInContext(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	_, err := f.queue.RegisterSync("chatty", func(ctx context.Context, ec task.ExecutionContext) (any, error) {
		logger.FromContext(ctx).Info("hello from task")
		return nil, nil
	})
	require.NoError(t, err)
	queued := f.enqueue(t, "chatty")

	l, buf := logger.NewTestLogger()
	w := New([]*task.TaskQueue{f.queue}, nil, DefaultConfig(), l)

	_, err = w.ProcessOne(ctx, f.queue)
	require.NoError(t, err)

	entries, err := buf.EntriesWithMessage("hello from task")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, queued.ID().String(), entries[0]["task_id"])
	assert.Equal(t, "chatty", entries[0]["task_name"])
	assert.Equal(t, w.ID(), entries[0]["worker_id"])
}

func TestWorker_StartStop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)

	queued := make([]*task.QueuedTask, 0, 5)
	for i := 0; i < 5; i++ {
		queued = append(queued, f.enqueue(t, "double", i))
	}

	cfg := DefaultConfig()
	cfg.Concurrency = 3
	cfg.PollInterval = 5 * time.Millisecond
	w := New([]*task.TaskQueue{f.queue}, nil, cfg, testLogger(), WithMetrics(f.metrics))

	require.NoError(t, w.Start())
	assert.ErrorIs(t, w.Start(), ErrAlreadyStarted)

	waitCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for i, q := range queued {
		finished, err := q.WaitFor(waitCtx, 5*time.Millisecond)
		require.NoError(t, err)

		success, ok := finished.Result().(task.Success)
		require.True(t, ok)
		var got int
		require.NoError(t, success.Decode(&got))
		assert.Equal(t, i*2, got)
	}

	w.Stop()
	w.Stop()
	assert.Equal(t, 5, f.metrics.succeeded)
}

func TestWorker_StartWithoutQueues(t *testing.T) {
	w := New(nil, nil, DefaultConfig(), testLogger())

	assert.ErrorIs(t, w.Start(), ErrNoQueues)
}

func TestNew_AppliesDefaults(t *testing.T) {
	w := New(nil, nil, Config{}, testLogger())

	assert.Equal(t, 1, w.config.Concurrency)
	assert.Equal(t, task.DefaultPollInterval, w.config.PollInterval)
	assert.IsType(t, task.DefaultRunner{}, w.runner)
	assert.NotEmpty(t, w.ID())
}
