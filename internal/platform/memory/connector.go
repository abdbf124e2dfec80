package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/oklog/ulid/v2"
	"github.com/phrazzld/taskcore/internal/task"
)

type queueKey struct {
	namespace string
	queue     string
}

// Connector implements task.Connector on top of in-process maps. Pending
// tasks are handed out in the order they were queued, but callers should
// not rely on that.
type Connector struct {
	mu      sync.Mutex
	tasks   map[queueKey]map[ulid.ULID][]byte
	pending map[queueKey][]ulid.ULID
	logger  *slog.Logger
}

// NewConnector creates an empty in-memory connector.
func NewConnector(logger *slog.Logger) *Connector {
	return &Connector{
		tasks:   make(map[queueKey]map[ulid.ULID][]byte),
		pending: make(map[queueKey][]ulid.ULID),
		logger:  logger.With("component", "memory_connector"),
	}
}

// Queue implements task.Connector. Re-queueing a stored id overwrites its
// state and makes it pullable again.
func (c *Connector) Queue(ctx context.Context, t task.SerializableTask) error {
	data, err := t.Marshal()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := queueKey{namespace: t.Namespace, queue: t.TaskQueueName}
	stored, ok := c.tasks[key]
	if !ok {
		stored = make(map[ulid.ULID][]byte)
		c.tasks[key] = stored
	}
	stored[t.ID] = data

	c.removePending(key, t.ID)
	c.pending[key] = append(c.pending[key], t.ID)

	c.logger.Debug("task stored",
		"task_id", t.ID.String(),
		"namespace", t.Namespace,
		"queue", t.TaskQueueName,
		"pending", len(c.pending[key]))
	return nil
}

// QueueAsync implements task.Connector.
func (c *Connector) QueueAsync(ctx context.Context, t task.SerializableTask) *task.Promise[struct{}] {
	return task.QueueAsyncFunc(func() error { return c.Queue(ctx, t) })
}

// Find implements task.Connector.
func (c *Connector) Find(ctx context.Context, namespace, queue string, id ulid.ULID) (*task.SerializableTask, error) {
	c.mu.Lock()
	data, ok := c.tasks[queueKey{namespace: namespace, queue: queue}][id]
	c.mu.Unlock()

	if !ok {
		return nil, nil
	}
	return decode(data)
}

// FindAsync implements task.Connector.
func (c *Connector) FindAsync(
	ctx context.Context,
	namespace, queue string,
	id ulid.ULID,
) *task.Promise[*task.SerializableTask] {
	return task.FindAsyncFunc(func() (*task.SerializableTask, error) {
		return c.Find(ctx, namespace, queue, id)
	})
}

// Pull implements task.Connector. Ids whose task was deleted while pending
// are skipped.
func (c *Connector) Pull(ctx context.Context, namespace, queue string) (*task.SerializableTask, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := queueKey{namespace: namespace, queue: queue}
	for len(c.pending[key]) > 0 {
		id := c.pending[key][0]
		c.pending[key] = c.pending[key][1:]

		data, ok := c.tasks[key][id]
		if !ok {
			continue
		}
		return decode(data)
	}
	return nil, nil
}

// Update implements task.Connector.
func (c *Connector) Update(ctx context.Context, namespace, queue string, t task.SerializableTask) error {
	data, err := t.Marshal()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	stored := c.tasks[queueKey{namespace: namespace, queue: queue}]
	if _, ok := stored[t.ID]; !ok {
		return fmt.Errorf("update task %s: %w", t.ID, task.ErrTaskDoesNotExistAnymore)
	}
	stored[t.ID] = data
	return nil
}

// Delete evicts a task. It reports whether the task was stored.
func (c *Connector) Delete(namespace, queue string, id ulid.ULID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := queueKey{namespace: namespace, queue: queue}
	if _, ok := c.tasks[key][id]; !ok {
		return false
	}
	delete(c.tasks[key], id)
	c.removePending(key, id)
	return true
}

// Len returns the number of stored tasks of a queue, pending or not.
func (c *Connector) Len(namespace, queue string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tasks[queueKey{namespace: namespace, queue: queue}])
}

func (c *Connector) removePending(key queueKey, id ulid.ULID) {
	ids := c.pending[key]
	for i, pendingID := range ids {
		if pendingID == id {
			c.pending[key] = append(ids[:i:i], ids[i+1:]...)
			return
		}
	}
}

func decode(data []byte) (*task.SerializableTask, error) {
	s, err := task.UnmarshalSerializableTask(data)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
