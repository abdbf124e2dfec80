package task

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// SerializableTask is the wire form of a task exchanged with a Connector.
type SerializableTask struct {
	ID               ulid.ULID        `json:"id"`
	Namespace        string           `json:"namespace"`
	TaskQueueName    string           `json:"task_queue_name"`
	TaskName         string           `json:"task_name"`
	ExecutionContext ExecutionContext `json:"execution_context"`
	ExecutionResult  *ExecutionResult `json:"execution_result"`
	QueuedAt         time.Time        `json:"queued_at"`
	StartedAt        *time.Time       `json:"started_at"`
	FinalizedAt      *time.Time       `json:"finalized_at"`
}

// Marshal encodes the task as JSON.
func (s SerializableTask) Marshal() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize task %s: %w", s.ID, err)
	}
	return data, nil
}

// UnmarshalSerializableTask decodes a task produced by Marshal.
func UnmarshalSerializableTask(data []byte) (SerializableTask, error) {
	var s SerializableTask
	if err := json.Unmarshal(data, &s); err != nil {
		return SerializableTask{}, fmt.Errorf("failed to deserialize task: %w", err)
	}
	return s, nil
}

// Metadata returns the task state without its queue binding.
func (s SerializableTask) Metadata() Metadata {
	return Metadata{
		ID:               s.ID,
		ExecutionContext: s.ExecutionContext,
		ExecutionResult:  s.ExecutionResult,
		QueuedAt:         s.QueuedAt,
		StartedAt:        s.StartedAt,
		FinalizedAt:      s.FinalizedAt,
	}
}

// IsFinalized reports whether the task has reached its terminal state.
func (s SerializableTask) IsFinalized() bool {
	return s.FinalizedAt != nil
}
