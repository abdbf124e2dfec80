package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

// newTestQueue returns the "default" queue of a fresh "test" namespace.
func newTestQueue(t *testing.T, connector Connector) *TaskQueue {
	t.Helper()

	namespace := NewTaskNamespace("test", connector, setupTestLogger())
	queue, err := namespace.Queue("default")
	require.NoError(t, err)
	return queue
}

func echo(ctx context.Context, ec ExecutionContext) (any, error) {
	var s string
	if err := ec.Arg(0, &s); err != nil {
		return nil, err
	}
	return s, nil
}

func mustExecutionContext(t *testing.T, args ...any) ExecutionContext {
	t.Helper()

	ec, err := NewExecutionContext(args, nil)
	require.NoError(t, err)
	return ec
}

func TestTaskQueue_Register(t *testing.T) {
	t.Parallel()

	queue := newTestQueue(t, NewMockConnector())

	first, err := queue.RegisterSync("first", echo)
	require.NoError(t, err)
	second, err := queue.RegisterAsync("second", func(ctx context.Context, ec ExecutionContext) *Promise[any] {
		return Resolved[any](nil)
	})
	require.NoError(t, err)

	t.Run("distinct names resolve", func(t *testing.T) {
		got, err := queue.TaskExecutable("first")
		require.NoError(t, err)
		assert.Same(t, first, got)

		got, err = queue.TaskExecutable("second")
		require.NoError(t, err)
		assert.Same(t, second, got)

		assert.Equal(t, []string{"first", "second"}, queue.TaskNames())
	})

	t.Run("duplicate name", func(t *testing.T) {
		_, err := queue.RegisterSync("first", echo)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDuplicateTaskName)

		var queueErr *QueueError
		require.ErrorAs(t, err, &queueErr)
		assert.Equal(t, "test", queueErr.Namespace)
		assert.Equal(t, "default", queueErr.Queue)
		assert.Equal(t, "first", queueErr.TaskName)

		_, err = queue.RegisterAsync("second", func(ctx context.Context, ec ExecutionContext) *Promise[any] {
			return Resolved[any](nil)
		})
		assert.ErrorIs(t, err, ErrDuplicateTaskName)
	})

	t.Run("nil callable", func(t *testing.T) {
		_, err := queue.RegisterSync("nil-sync", nil)
		assert.ErrorIs(t, err, ErrNilTaskFunc)

		_, err = queue.RegisterAsync("nil-async", nil)
		assert.ErrorIs(t, err, ErrNilTaskFunc)

		assert.Equal(t, []string{"first", "second"}, queue.TaskNames())
	})

	t.Run("unknown name", func(t *testing.T) {
		_, err := queue.TaskExecutable("missing")
		assert.ErrorIs(t, err, ErrUnknownTaskName)

		_, err = queue.NewTask("missing", ExecutionContext{})
		assert.ErrorIs(t, err, ErrUnknownTaskName)
	})
}

func TestTaskQueue_QueueFindPullUpdate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	connector := NewMockConnector()
	queue := newTestQueue(t, connector)
	_, err := queue.RegisterSync("echo", echo)
	require.NoError(t, err)

	queued, err := queue.NewTask("echo", mustExecutionContext(t, "hi"))
	require.NoError(t, err)
	require.NoError(t, queue.Queue(ctx, queued))

	found, err := queue.Find(ctx, queued.ID())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, queued.Serializable(), found.Serializable())
	assert.Equal(t, "echo", found.TaskExecutable().Name())
	assert.Same(t, queue, found.TaskQueue())

	pulled, err := queue.Pull(ctx)
	require.NoError(t, err)
	require.NotNil(t, pulled)
	assert.Equal(t, queued.ID(), pulled.ID())

	empty, err := queue.Pull(ctx)
	require.NoError(t, err)
	assert.Nil(t, empty, "a task must be pulled only once")

	finalized := pulled.Start().Execute(ctx, nil).Finalize()
	require.NoError(t, queue.Update(ctx, finalized))

	refreshed, err := queue.Find(ctx, queued.ID())
	require.NoError(t, err)
	assert.Equal(t, StateFinalized, refreshed.State())
	assert.Equal(t, finalized.Serializable(), refreshed.Serializable())
}

func TestTaskQueue_FindUnknownID(t *testing.T) {
	t.Parallel()

	queue := newTestQueue(t, NewMockConnector())

	found, err := queue.Find(context.Background(), ulid.Make())
	assert.NoError(t, err)
	assert.Nil(t, found)

	found, err = queue.FindAsync(context.Background(), ulid.Make()).Await(context.Background())
	assert.NoError(t, err)
	assert.Nil(t, found)
}

func TestTaskQueue_FindUnregisteredTaskName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	connector := NewMockConnector()
	queue := newTestQueue(t, connector)

	id := ulid.Make()
	require.NoError(t, connector.Queue(ctx, SerializableTask{
		ID:            id,
		Namespace:     "test",
		TaskQueueName: "default",
		TaskName:      "retired",
		QueuedAt:      now(),
	}))

	_, err := queue.Find(ctx, id)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownTaskName)

	var queueErr *QueueError
	require.ErrorAs(t, err, &queueErr)
	assert.Equal(t, "retired", queueErr.TaskName)
	assert.Equal(t, id, queueErr.TaskID)

	_, err = queue.Pull(ctx)
	assert.ErrorIs(t, err, ErrUnknownTaskName)
}

func TestTaskQueue_FinalizedWithoutStartIsRejected(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	connector := NewMockConnector()
	queue := newTestQueue(t, connector)
	_, err := queue.RegisterSync("echo", echo)
	require.NoError(t, err)

	id := ulid.Make()
	finalizedAt := now()
	require.NoError(t, connector.Queue(ctx, SerializableTask{
		ID:            id,
		Namespace:     "test",
		TaskQueueName: "default",
		TaskName:      "echo",
		QueuedAt:      finalizedAt.Add(-time.Second),
		FinalizedAt:   &finalizedAt,
	}))

	found, err := queue.Find(ctx, id)
	require.ErrorIs(t, err, ErrInvalidTaskRecord)
	assert.Nil(t, found)

	var queueErr *QueueError
	require.ErrorAs(t, err, &queueErr)
	assert.Equal(t, id, queueErr.TaskID)
	assert.Equal(t, "echo", queueErr.TaskName)

	_, err = queue.Pull(ctx)
	assert.ErrorIs(t, err, ErrInvalidTaskRecord)
}

func TestTaskQueue_ForeignTask(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	namespace := NewTaskNamespace("test", NewMockConnector(), setupTestLogger())
	first, err := namespace.Queue("first")
	require.NoError(t, err)
	second, err := namespace.Queue("second")
	require.NoError(t, err)

	exe, err := first.RegisterSync("echo", echo)
	require.NoError(t, err)
	foreign := exe.NewTask(mustExecutionContext(t, "hi"))

	assert.ErrorIs(t, second.Queue(ctx, foreign), ErrTaskQueueMismatch)
	assert.ErrorIs(t, second.Update(ctx, foreign), ErrTaskQueueMismatch)

	_, err = second.QueueAsync(ctx, foreign).Await(ctx)
	assert.ErrorIs(t, err, ErrTaskQueueMismatch)
}

func TestTaskQueue_ConnectorErrorsPropagate(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backendErr := errors.New("backend unavailable")

	connector := NewMockConnector()
	connector.QueueFn = func(ctx context.Context, t SerializableTask) error {
		return backendErr
	}
	connector.FindFn = func(ctx context.Context, namespace, queue string, id ulid.ULID) (*SerializableTask, error) {
		return nil, backendErr
	}
	connector.PullFn = func(ctx context.Context, namespace, queue string) (*SerializableTask, error) {
		return nil, backendErr
	}

	queue := newTestQueue(t, connector)
	exe, err := queue.RegisterSync("echo", echo)
	require.NoError(t, err)
	queued := exe.NewTask(ExecutionContext{})

	err = queue.Queue(ctx, queued)
	assert.ErrorIs(t, err, backendErr)
	assert.Contains(t, err.Error(), "failed to queue task")

	_, err = queue.Find(ctx, queued.ID())
	assert.ErrorIs(t, err, backendErr)

	_, err = queue.Pull(ctx)
	assert.ErrorIs(t, err, backendErr)

	err = queue.Update(ctx, queued)
	assert.ErrorIs(t, err, ErrTaskDoesNotExistAnymore)
}

func TestTaskQueue_Async(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	queue := newTestQueue(t, NewMockConnector())
	exe, err := queue.RegisterSync("echo", echo)
	require.NoError(t, err)

	queued := exe.NewTask(mustExecutionContext(t, "async"))
	_, err = queue.QueueAsync(ctx, queued).Await(ctx)
	require.NoError(t, err)

	found, err := queue.FindAsync(ctx, queued.ID()).Await(ctx)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, queued.Serializable(), found.Serializable())
}
