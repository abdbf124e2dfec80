package task

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/oklog/ulid/v2"
)

// TaskQueue is a registry of named executables bound to one Connector. It
// keeps no queued tasks of its own; the connector is the source of truth.
type TaskQueue struct {
	name      string
	namespace string
	connector Connector
	logger    *slog.Logger

	mu          sync.RWMutex
	executables map[string]*TaskExecutable
}

func newTaskQueue(namespace, name string, connector Connector, logger *slog.Logger) *TaskQueue {
	return &TaskQueue{
		name:        name,
		namespace:   namespace,
		connector:   connector,
		logger:      logger.With("queue", name),
		executables: make(map[string]*TaskExecutable),
	}
}

// Name returns the queue name.
func (q *TaskQueue) Name() string {
	return q.name
}

// Namespace returns the name of the namespace the queue belongs to.
func (q *TaskQueue) Namespace() string {
	return q.namespace
}

// RegisterSync registers a blocking callable under name.
// Returns ErrDuplicateTaskName if name is taken on this queue.
func (q *TaskQueue) RegisterSync(name string, fn SyncFunc) (*TaskExecutable, error) {
	if fn == nil {
		return nil, q.newError(ErrNilTaskFunc, name, ulid.ULID{})
	}
	return q.register(&TaskExecutable{name: name, kind: KindSync, queue: q, sync: fn})
}

// RegisterAsync registers a cooperative callable under name.
// Returns ErrDuplicateTaskName if name is taken on this queue.
func (q *TaskQueue) RegisterAsync(name string, fn AsyncFunc) (*TaskExecutable, error) {
	if fn == nil {
		return nil, q.newError(ErrNilTaskFunc, name, ulid.ULID{})
	}
	return q.register(&TaskExecutable{name: name, kind: KindAsync, queue: q, async: fn})
}

func (q *TaskQueue) register(exe *TaskExecutable) (*TaskExecutable, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, exists := q.executables[exe.name]; exists {
		return nil, q.newError(ErrDuplicateTaskName, exe.name, ulid.ULID{})
	}
	q.executables[exe.name] = exe

	q.logger.Debug("task executable registered",
		"task_name", exe.name,
		"kind", exe.kind.String())
	return exe, nil
}

// TaskExecutable returns the executable registered under name.
// Returns ErrUnknownTaskName if there is none.
func (q *TaskQueue) TaskExecutable(name string) (*TaskExecutable, error) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	exe, ok := q.executables[name]
	if !ok {
		return nil, q.newError(ErrUnknownTaskName, name, ulid.ULID{})
	}
	return exe, nil
}

// TaskNames returns the registered executable names in sorted order.
func (q *TaskQueue) TaskNames() []string {
	q.mu.RLock()
	defer q.mu.RUnlock()

	names := make([]string, 0, len(q.executables))
	for name := range q.executables {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewTask builds a queued task for the executable registered under name.
func (q *TaskQueue) NewTask(name string, ec ExecutionContext) (*QueuedTask, error) {
	exe, err := q.TaskExecutable(name)
	if err != nil {
		return nil, err
	}
	return exe.NewTask(ec), nil
}

// Queue hands the task to the connector.
func (q *TaskQueue) Queue(ctx context.Context, t *QueuedTask) error {
	if err := q.checkOwnership(t); err != nil {
		return err
	}
	if err := q.connector.Queue(ctx, t.Serializable()); err != nil {
		return fmt.Errorf("failed to queue task %s: %w", t.ID(), err)
	}
	q.logger.Debug("task queued", t.LogAttrs()...)
	return nil
}

// QueueAsync is the cooperative variant of Queue.
func (q *TaskQueue) QueueAsync(ctx context.Context, t *QueuedTask) *Promise[struct{}] {
	if err := q.checkOwnership(t); err != nil {
		return Rejected[struct{}](err)
	}
	return q.connector.QueueAsync(ctx, t.Serializable())
}

// Find fetches a task by id. It returns nil without error if the connector
// does not have it.
func (q *TaskQueue) Find(ctx context.Context, id ulid.ULID) (*QueuedTask, error) {
	s, err := q.connector.Find(ctx, q.namespace, q.name, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find task %s: %w", id, err)
	}
	if s == nil {
		return nil, nil
	}
	return q.rehydrate(*s)
}

// FindAsync is the cooperative variant of Find.
func (q *TaskQueue) FindAsync(ctx context.Context, id ulid.ULID) *Promise[*QueuedTask] {
	pending := q.connector.FindAsync(ctx, q.namespace, q.name, id)
	return Go(func() (*QueuedTask, error) {
		s, err := pending.Await(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to find task %s: %w", id, err)
		}
		if s == nil {
			return nil, nil
		}
		return q.rehydrate(*s)
	})
}

// Pull takes one pending task from the connector. It returns nil without
// error if nothing is pending.
func (q *TaskQueue) Pull(ctx context.Context) (*QueuedTask, error) {
	s, err := q.connector.Pull(ctx, q.namespace, q.name)
	if err != nil {
		return nil, fmt.Errorf("failed to pull task: %w", err)
	}
	if s == nil {
		return nil, nil
	}
	t, err := q.rehydrate(*s)
	if err != nil {
		return nil, err
	}
	q.logger.Debug("task pulled", t.LogAttrs()...)
	return t, nil
}

// Update persists the task's current state to the connector.
func (q *TaskQueue) Update(ctx context.Context, t *QueuedTask) error {
	if err := q.checkOwnership(t); err != nil {
		return err
	}
	if err := q.connector.Update(ctx, q.namespace, q.name, t.Serializable()); err != nil {
		return fmt.Errorf("failed to update task %s: %w", t.ID(), err)
	}
	q.logger.Debug("task updated", append([]any{"state", t.State().String()}, t.LogAttrs()...)...)
	return nil
}

// rehydrate binds a wire task to this queue and its registered executable.
func (q *TaskQueue) rehydrate(s SerializableTask) (*QueuedTask, error) {
	exe, err := q.TaskExecutable(s.TaskName)
	if err != nil {
		return nil, q.newError(ErrUnknownTaskName, s.TaskName, s.ID)
	}
	if s.FinalizedAt != nil && s.StartedAt == nil {
		return nil, q.newError(ErrInvalidTaskRecord, s.TaskName, s.ID)
	}
	return newQueuedTask(q, exe, s.Metadata()), nil
}

func (q *TaskQueue) checkOwnership(t *QueuedTask) error {
	if t.queue != q {
		return q.newError(ErrTaskQueueMismatch, t.exe.name, t.meta.ID)
	}
	return nil
}

func (q *TaskQueue) newError(sentinel error, taskName string, id ulid.ULID) *QueueError {
	return &QueueError{
		Err:       sentinel,
		Namespace: q.namespace,
		Queue:     q.name,
		TaskName:  taskName,
		TaskID:    id,
	}
}
