package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/taskcore/internal/task"
)

// Task lifecycle event types.
const (
	TypeTaskQueued    = "task.queued"
	TypeTaskStarted   = "task.started"
	TypeTaskFinalized = "task.finalized"
)

// TaskEvent describes a lifecycle transition of a queued task.
type TaskEvent struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// Type is one of the Type* constants
	Type string `json:"type"`

	Namespace string `json:"namespace"`
	Queue     string `json:"queue"`
	TaskName  string `json:"task_name"`
	TaskID    string `json:"task_id"`

	// Failed is set on finalized events whose execution failed
	Failed bool `json:"failed,omitempty"`

	// Task is the serialized task as it was when the event was created
	Task json.RawMessage `json:"task"`

	OccurredAt time.Time `json:"occurred_at"`
}

// NewTaskEvent creates an event of the given type for t.
func NewTaskEvent(eventType string, t task.SerializableTask) (*TaskEvent, error) {
	payload, err := t.Marshal()
	if err != nil {
		return nil, fmt.Errorf("failed to build %s event: %w", eventType, err)
	}

	return &TaskEvent{
		ID:         uuid.New(),
		Type:       eventType,
		Namespace:  t.Namespace,
		Queue:      t.TaskQueueName,
		TaskName:   t.TaskName,
		TaskID:     t.ID.String(),
		Failed:     t.ExecutionResult != nil && t.ExecutionResult.Err != nil,
		Task:       payload,
		OccurredAt: time.Now().UTC(),
	}, nil
}

// LogAttrs returns the event's identifying fields as slog key/value pairs,
// using the same task keys as task.QueuedTask.LogAttrs.
func (e *TaskEvent) LogAttrs() []any {
	return []any{
		"event_id", e.ID.String(),
		"event_type", e.Type,
		"task_id", e.TaskID,
		"namespace", e.Namespace,
		"queue", e.Queue,
		"task_name", e.TaskName,
	}
}

// DecodeTask decodes the embedded task snapshot.
func (e *TaskEvent) DecodeTask() (task.SerializableTask, error) {
	return task.UnmarshalSerializableTask(e.Task)
}

// EventHandler defines an interface for components that can handle events.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	HandleEvent(ctx context.Context, event *TaskEvent) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, event *TaskEvent) error

// HandleEvent implements EventHandler.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *TaskEvent) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows the worker to publish events without knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	EmitEvent(ctx context.Context, event *TaskEvent) error
}

// NopEmitter drops every event.
type NopEmitter struct{}

// EmitEvent implements EventEmitter.
func (NopEmitter) EmitEvent(context.Context, *TaskEvent) error { return nil }
