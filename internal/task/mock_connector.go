package task

import (
	"context"
	"sync"

	"github.com/oklog/ulid/v2"
)

// MockConnector implements the Connector interface for testing. Tasks are
// stored in their marshalled form so every call crosses the wire format.
// Each operation can be replaced through its Fn field.
type MockConnector struct {
	mutex   sync.Mutex
	tasks   map[string][]byte
	pending map[string][]ulid.ULID

	QueueFn  func(ctx context.Context, t SerializableTask) error
	FindFn   func(ctx context.Context, namespace, queue string, id ulid.ULID) (*SerializableTask, error)
	PullFn   func(ctx context.Context, namespace, queue string) (*SerializableTask, error)
	UpdateFn func(ctx context.Context, namespace, queue string, t SerializableTask) error
}

// NewMockConnector creates a MockConnector with default implementations.
func NewMockConnector() *MockConnector {
	c := &MockConnector{
		tasks:   make(map[string][]byte),
		pending: make(map[string][]ulid.ULID),
	}

	c.QueueFn = func(ctx context.Context, t SerializableTask) error {
		data, err := t.Marshal()
		if err != nil {
			return err
		}

		c.mutex.Lock()
		defer c.mutex.Unlock()

		c.tasks[mockTaskKey(t.Namespace, t.TaskQueueName, t.ID)] = data
		queueKey := mockQueueKey(t.Namespace, t.TaskQueueName)
		c.pending[queueKey] = append(c.pending[queueKey], t.ID)
		return nil
	}

	c.FindFn = func(ctx context.Context, namespace, queue string, id ulid.ULID) (*SerializableTask, error) {
		c.mutex.Lock()
		data, ok := c.tasks[mockTaskKey(namespace, queue, id)]
		c.mutex.Unlock()

		if !ok {
			return nil, nil
		}
		s, err := UnmarshalSerializableTask(data)
		if err != nil {
			return nil, err
		}
		return &s, nil
	}

	c.PullFn = func(ctx context.Context, namespace, queue string) (*SerializableTask, error) {
		c.mutex.Lock()
		queueKey := mockQueueKey(namespace, queue)
		ids := c.pending[queueKey]
		if len(ids) == 0 {
			c.mutex.Unlock()
			return nil, nil
		}
		id := ids[0]
		c.pending[queueKey] = ids[1:]
		c.mutex.Unlock()

		return c.FindFn(ctx, namespace, queue, id)
	}

	c.UpdateFn = func(ctx context.Context, namespace, queue string, t SerializableTask) error {
		data, err := t.Marshal()
		if err != nil {
			return err
		}

		c.mutex.Lock()
		defer c.mutex.Unlock()

		key := mockTaskKey(namespace, queue, t.ID)
		if _, ok := c.tasks[key]; !ok {
			return ErrTaskDoesNotExistAnymore
		}
		c.tasks[key] = data
		return nil
	}

	return c
}

// Queue implements Connector.
func (c *MockConnector) Queue(ctx context.Context, t SerializableTask) error {
	return c.QueueFn(ctx, t)
}

// QueueAsync implements Connector.
func (c *MockConnector) QueueAsync(ctx context.Context, t SerializableTask) *Promise[struct{}] {
	return QueueAsyncFunc(func() error { return c.QueueFn(ctx, t) })
}

// Find implements Connector.
func (c *MockConnector) Find(ctx context.Context, namespace, queue string, id ulid.ULID) (*SerializableTask, error) {
	return c.FindFn(ctx, namespace, queue, id)
}

// FindAsync implements Connector.
func (c *MockConnector) FindAsync(
	ctx context.Context,
	namespace, queue string,
	id ulid.ULID,
) *Promise[*SerializableTask] {
	return FindAsyncFunc(func() (*SerializableTask, error) { return c.FindFn(ctx, namespace, queue, id) })
}

// Pull implements Connector.
func (c *MockConnector) Pull(ctx context.Context, namespace, queue string) (*SerializableTask, error) {
	return c.PullFn(ctx, namespace, queue)
}

// Update implements Connector.
func (c *MockConnector) Update(ctx context.Context, namespace, queue string, t SerializableTask) error {
	return c.UpdateFn(ctx, namespace, queue, t)
}

// Delete drops a stored task, simulating eviction by the backend.
func (c *MockConnector) Delete(namespace, queue string, id ulid.ULID) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.tasks, mockTaskKey(namespace, queue, id))
}

func mockQueueKey(namespace, queue string) string {
	return namespace + "/" + queue
}

func mockTaskKey(namespace, queue string, id ulid.ULID) string {
	return namespace + "/" + queue + "/" + id.String()
}
