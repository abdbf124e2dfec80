package task

import (
	"log/slog"
	"sort"
	"sync"
)

// TaskNamespace groups task queues that share one Connector. Queue names
// are unique within a namespace.
type TaskNamespace struct {
	name      string
	connector Connector
	logger    *slog.Logger

	mu     sync.RWMutex
	queues map[string]*TaskQueue
}

// NewTaskNamespace creates an empty namespace backed by connector.
func NewTaskNamespace(name string, connector Connector, logger *slog.Logger) *TaskNamespace {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskNamespace{
		name:      name,
		connector: connector,
		logger:    logger.With("component", "task_namespace", "namespace", name),
		queues:    make(map[string]*TaskQueue),
	}
}

// Name returns the namespace name.
func (n *TaskNamespace) Name() string {
	return n.name
}

// Connector returns the connector shared by the namespace's queues.
func (n *TaskNamespace) Connector() Connector {
	return n.connector
}

// Queue creates a task queue called name in this namespace.
// Returns ErrDuplicateTaskQueueName if name is already used.
func (n *TaskNamespace) Queue(name string) (*TaskQueue, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.queues[name]; exists {
		return nil, &QueueError{
			Err:       ErrDuplicateTaskQueueName,
			Namespace: n.name,
			Queue:     name,
		}
	}
	q := newTaskQueue(n.name, name, n.connector, n.logger)
	n.queues[name] = q

	n.logger.Debug("task queue registered", "queue", name)
	return q, nil
}

// TaskQueue returns the queue called name, if any.
func (n *TaskNamespace) TaskQueue(name string) (*TaskQueue, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	q, ok := n.queues[name]
	return q, ok
}

// TaskQueues returns all queues of the namespace ordered by name.
func (n *TaskNamespace) TaskQueues() []*TaskQueue {
	n.mu.RLock()
	defer n.mu.RUnlock()

	queues := make([]*TaskQueue, 0, len(n.queues))
	for _, q := range n.queues {
		queues = append(queues, q)
	}
	sort.Slice(queues, func(i, j int) bool {
		return queues[i].name < queues[j].name
	})
	return queues
}
