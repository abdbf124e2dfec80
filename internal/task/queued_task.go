package task

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// DefaultPollInterval is the interval WaitFor and AwaitFor use when they
// are given a non-positive one.
const DefaultPollInterval = 100 * time.Millisecond

// State is the lifecycle position of a task, derived from its timestamps
// and execution result.
type State int

// Task lifecycle states.
const (
	StateQueued State = iota
	StateStarted
	StateExecuted
	StateFinalized
)

// String returns the state name used in logs and API responses.
func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateStarted:
		return "started"
	case StateExecuted:
		return "executed"
	case StateFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// QueuedTask is an in-flight task bound to a TaskQueue and one of its
// executables. It is immutable: every transition returns a new value and
// leaves the receiver untouched, so a QueuedTask can be shared between
// goroutines without locking.
type QueuedTask struct {
	meta  Metadata
	queue *TaskQueue
	exe   *TaskExecutable

	serializableOnce sync.Once
	serializable     SerializableTask

	logAttrsOnce sync.Once
	logAttrs     []any
}

func newQueuedTask(queue *TaskQueue, exe *TaskExecutable, meta Metadata) *QueuedTask {
	return &QueuedTask{meta: meta, queue: queue, exe: exe}
}

// ID returns the task id.
func (t *QueuedTask) ID() ulid.ULID {
	return t.meta.ID
}

// TaskQueue returns the queue the task is bound to.
func (t *QueuedTask) TaskQueue() *TaskQueue {
	return t.queue
}

// TaskExecutable returns the executable the task runs.
func (t *QueuedTask) TaskExecutable() *TaskExecutable {
	return t.exe
}

// ExecutionContext returns the arguments the task was queued with.
func (t *QueuedTask) ExecutionContext() ExecutionContext {
	return t.meta.ExecutionContext
}

// ExecutionResult returns the execution outcome, or nil before execution.
func (t *QueuedTask) ExecutionResult() *ExecutionResult {
	if t.meta.ExecutionResult == nil {
		return nil
	}
	r := *t.meta.ExecutionResult
	return &r
}

// QueuedAt returns when the task was created.
func (t *QueuedTask) QueuedAt() time.Time {
	return t.meta.QueuedAt
}

// StartedAt returns when the task was started, or nil.
func (t *QueuedTask) StartedAt() *time.Time {
	return copyTime(t.meta.StartedAt)
}

// FinalizedAt returns when the task was finalized, or nil.
func (t *QueuedTask) FinalizedAt() *time.Time {
	return copyTime(t.meta.FinalizedAt)
}

// Metadata returns a copy of the task state.
func (t *QueuedTask) Metadata() Metadata {
	m := t.meta
	m.ExecutionResult = t.ExecutionResult()
	m.StartedAt = copyTime(m.StartedAt)
	m.FinalizedAt = copyTime(m.FinalizedAt)
	return m
}

// State derives the lifecycle state from the task's fields.
func (t *QueuedTask) State() State {
	switch {
	case t.meta.FinalizedAt != nil:
		return StateFinalized
	case t.meta.StartedAt == nil:
		return StateQueued
	case t.meta.ExecutionResult != nil:
		return StateExecuted
	default:
		return StateStarted
	}
}

// Serializable returns the wire form of the task. It is computed once per
// value.
func (t *QueuedTask) Serializable() SerializableTask {
	t.serializableOnce.Do(func() {
		m := t.Metadata()
		t.serializable = SerializableTask{
			ID:               m.ID,
			Namespace:        t.queue.namespace,
			TaskQueueName:    t.queue.name,
			TaskName:         t.exe.name,
			ExecutionContext: m.ExecutionContext,
			ExecutionResult:  m.ExecutionResult,
			QueuedAt:         m.QueuedAt,
			StartedAt:        m.StartedAt,
			FinalizedAt:      m.FinalizedAt,
		}
	})
	return t.serializable
}

// LogAttrs returns the slog key-value pairs identifying the task, for use
// with logger.With. It is computed once per value; callers must not modify
// the returned slice.
func (t *QueuedTask) LogAttrs() []any {
	t.logAttrsOnce.Do(func() {
		t.logAttrs = []any{
			"task_id", t.meta.ID.String(),
			"namespace", t.queue.namespace,
			"queue", t.queue.name,
			"task_name", t.exe.name,
		}
	})
	return t.logAttrs
}

func (t *QueuedTask) with(change func(m *Metadata)) *QueuedTask {
	m := t.Metadata()
	change(&m)
	return newQueuedTask(t.queue, t.exe, m)
}

// Start returns a copy of the task with started_at set to now.
func (t *QueuedTask) Start() *QueuedTask {
	return t.with(func(m *Metadata) {
		m.StartedAt = timePtr(now())
	})
}

// Execute runs the bound executable with the task's arguments and returns a
// copy carrying the execution result. Failures of the callable are captured
// in the result; Execute itself cannot fail.
func (t *QueuedTask) Execute(ctx context.Context, runner Runner) *QueuedTask {
	result := t.exe.Execute(ctx, runner, t.meta.ExecutionContext)
	return t.with(func(m *Metadata) {
		m.ExecutionResult = &result
	})
}

// ExecuteAsync is the cooperative variant of Execute.
func (t *QueuedTask) ExecuteAsync(ctx context.Context, runner Runner) *Promise[*QueuedTask] {
	return Go(func() (*QueuedTask, error) {
		return t.Execute(ctx, runner), nil
	})
}

// Finalize returns a copy of the task with finalized_at set to now. A task
// that was never started gets the same started_at, so a finalized task
// always has both timestamps.
func (t *QueuedTask) Finalize() *QueuedTask {
	return t.with(func(m *Metadata) {
		ts := now()
		if m.StartedAt == nil {
			m.StartedAt = timePtr(ts)
		}
		m.FinalizedAt = timePtr(ts)
	})
}

// Reset returns a copy of the task back in the queued state. The previous
// execution result is kept. Queue the returned task again to retry it.
func (t *QueuedTask) Reset() *QueuedTask {
	return t.with(func(m *Metadata) {
		m.StartedAt = nil
		m.FinalizedAt = nil
	})
}

// Refresh fetches the latest state of the task from the connector. It
// fails with ErrTaskDoesNotExistAnymore if the connector no longer has it.
func (t *QueuedTask) Refresh(ctx context.Context) (*QueuedTask, error) {
	found, err := t.queue.Find(ctx, t.meta.ID)
	return t.refreshed(found, err)
}

// RefreshAsync is the cooperative variant of Refresh.
func (t *QueuedTask) RefreshAsync(ctx context.Context) *Promise[*QueuedTask] {
	return Go(func() (*QueuedTask, error) {
		found, err := t.queue.FindAsync(ctx, t.meta.ID).Await(ctx)
		return t.refreshed(found, err)
	})
}

func (t *QueuedTask) refreshed(found *QueuedTask, err error) (*QueuedTask, error) {
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, t.queue.newError(ErrTaskDoesNotExistAnymore, t.exe.name, t.meta.ID)
	}
	return found, nil
}

// WaitFor polls the connector every interval until the task is finalized
// and returns it as a FinishedTask. There is no timeout; the loop only ends
// early when ctx is done or a refresh fails.
func (t *QueuedTask) WaitFor(ctx context.Context, interval time.Duration) (*FinishedTask, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	cursor := t
	for cursor.meta.FinalizedAt == nil {
		if err := sleep(ctx, interval); err != nil {
			return nil, err
		}
		next, err := cursor.Refresh(ctx)
		if err != nil {
			return nil, err
		}
		cursor = next
	}
	return NewFinishedTask(cursor)
}

// AwaitFor is the cooperative variant of WaitFor. Each poll goes through
// RefreshAsync.
func (t *QueuedTask) AwaitFor(ctx context.Context, interval time.Duration) *Promise[*FinishedTask] {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return Go(func() (*FinishedTask, error) {
		cursor := t
		for cursor.meta.FinalizedAt == nil {
			if err := sleep(ctx, interval); err != nil {
				return nil, err
			}
			next, err := cursor.RefreshAsync(ctx).Await(ctx)
			if err != nil {
				return nil, err
			}
			cursor = next
		}
		return NewFinishedTask(cursor)
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
