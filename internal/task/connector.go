package task

import (
	"context"

	"github.com/oklog/ulid/v2"
)

// Connector is the storage and transport backend a TaskQueue is bound to.
// It is the source of truth for queued tasks.
//
// Implementations must be safe for concurrent use. Two concurrent Pull
// calls must never return the same task id; ordering between tasks is up to
// the implementation.
type Connector interface {
	// Queue stores t and makes it available to Pull. Queueing an id that is
	// already stored overwrites its state and makes it pullable again.
	Queue(ctx context.Context, t SerializableTask) error

	// QueueAsync is the cooperative variant of Queue.
	QueueAsync(ctx context.Context, t SerializableTask) *Promise[struct{}]

	// Find returns the stored state of a task, or nil if it is absent.
	Find(ctx context.Context, namespace, queue string, id ulid.ULID) (*SerializableTask, error)

	// FindAsync is the cooperative variant of Find.
	FindAsync(ctx context.Context, namespace, queue string, id ulid.ULID) *Promise[*SerializableTask]

	// Pull hands out one pending task, or nil if there is none.
	Pull(ctx context.Context, namespace, queue string) (*SerializableTask, error)

	// Update persists the current state of a stored task.
	Update(ctx context.Context, namespace, queue string, t SerializableTask) error
}

// QueueAsyncFunc runs queue on its own goroutine. Connectors whose client is
// safe for concurrent use implement QueueAsync with it.
func QueueAsyncFunc(queue func() error) *Promise[struct{}] {
	return Go(func() (struct{}, error) {
		return struct{}{}, queue()
	})
}

// FindAsyncFunc runs find on its own goroutine. Connectors whose client is
// safe for concurrent use implement FindAsync with it.
func FindAsyncFunc(find func() (*SerializableTask, error)) *Promise[*SerializableTask] {
	return Go(find)
}
