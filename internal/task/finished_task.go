package task

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/oklog/ulid/v2"
)

// Result is the outcome of a finished task: either Success or Failure.
type Result interface {
	isResult()
}

// Success is the result of a task whose callable returned normally.
type Success struct {
	Value json.RawMessage
}

func (Success) isResult() {}

// Decode unmarshals the returned value into dst.
func (s Success) Decode(dst any) error {
	if len(s.Value) == 0 {
		return nil
	}
	if err := json.Unmarshal(s.Value, dst); err != nil {
		return fmt.Errorf("failed to decode task result: %w", err)
	}
	return nil
}

// Failure is the result of a task whose callable returned an error or
// panicked.
type Failure struct {
	Err error
}

func (Failure) isResult() {}

// FinishedTask is a read-only view of a finalized task.
type FinishedTask struct {
	task *QueuedTask
}

// NewFinishedTask wraps a finalized task. It fails with ErrTaskNotFinalized
// if t has no finalized_at timestamp.
func NewFinishedTask(t *QueuedTask) (*FinishedTask, error) {
	if t.meta.FinalizedAt == nil {
		return nil, t.queue.newError(ErrTaskNotFinalized, t.exe.name, t.meta.ID)
	}
	return &FinishedTask{task: t}, nil
}

// Task returns the underlying finalized task.
func (f *FinishedTask) Task() *QueuedTask {
	return f.task
}

// ID returns the task id.
func (f *FinishedTask) ID() ulid.ULID {
	return f.task.meta.ID
}

// QueuedAt returns when the task was created.
func (f *FinishedTask) QueuedAt() time.Time {
	return f.task.meta.QueuedAt
}

// StartedAt returns when the task was started.
func (f *FinishedTask) StartedAt() time.Time {
	return *f.task.meta.StartedAt
}

// FinalizedAt returns when the task was finalized.
func (f *FinishedTask) FinalizedAt() time.Time {
	return *f.task.meta.FinalizedAt
}

// Result derives Success or Failure from the execution result. A task that
// was finalized without being executed is a Success with no value.
func (f *FinishedTask) Result() Result {
	r := f.task.meta.ExecutionResult
	if r == nil {
		return Success{}
	}
	if r.Err != nil {
		return Failure{Err: r.Err}
	}
	return Success{Value: r.Value}
}
