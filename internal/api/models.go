package api

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/phrazzld/taskcore/internal/task"
)

// EnqueueTaskRequest is the body of POST /api/queues/{queue}/tasks.
// Arguments are passed through to the executable untouched.
type EnqueueTaskRequest struct {
	TaskName string                     `json:"task_name" validate:"required,max=200"`
	Args     []json.RawMessage          `json:"args"`
	Kwargs   map[string]json.RawMessage `json:"kwargs"`
}

// EnqueueTaskResponse is returned with 202 Accepted.
type EnqueueTaskResponse struct {
	ID       string    `json:"id"`
	State    string    `json:"state"`
	QueuedAt time.Time `json:"queued_at"`
}

// ResultResponse is the outcome of a finalized task. Exactly one of Value
// and Error is set.
type ResultResponse struct {
	Value json.RawMessage     `json:"value,omitempty"`
	Error *task.CapturedError `json:"error,omitempty"`
}

// TaskResponse describes a stored task.
type TaskResponse struct {
	ID          string                     `json:"id"`
	Namespace   string                     `json:"namespace"`
	Queue       string                     `json:"queue"`
	TaskName    string                     `json:"task_name"`
	State       string                     `json:"state"`
	Args        []json.RawMessage          `json:"args"`
	Kwargs      map[string]json.RawMessage `json:"kwargs"`
	QueuedAt    time.Time                  `json:"queued_at"`
	StartedAt   *time.Time                 `json:"started_at"`
	FinalizedAt *time.Time                 `json:"finalized_at"`
	Result      *ResultResponse            `json:"result,omitempty"`
}

// QueueResponse lists a queue and the task names registered on it.
type QueueResponse struct {
	Namespace string   `json:"namespace"`
	Name      string   `json:"name"`
	TaskNames []string `json:"task_names"`
}

func taskToResponse(t *task.QueuedTask) TaskResponse {
	ec := t.ExecutionContext()
	if ec.Args == nil {
		ec.Args = []json.RawMessage{}
	}
	if ec.Kwargs == nil {
		ec.Kwargs = map[string]json.RawMessage{}
	}
	resp := TaskResponse{
		ID:          t.ID().String(),
		Namespace:   t.TaskQueue().Namespace(),
		Queue:       t.TaskQueue().Name(),
		TaskName:    t.TaskExecutable().Name(),
		State:       t.State().String(),
		Args:        ec.Args,
		Kwargs:      ec.Kwargs,
		QueuedAt:    t.QueuedAt(),
		StartedAt:   t.StartedAt(),
		FinalizedAt: t.FinalizedAt(),
	}

	finished, err := task.NewFinishedTask(t)
	if err != nil {
		return resp
	}
	switch result := finished.Result().(type) {
	case task.Success:
		resp.Result = &ResultResponse{Value: result.Value}
	case task.Failure:
		captured, ok := result.Err.(*task.CapturedError)
		if !ok {
			captured = &task.CapturedError{Type: fmt.Sprintf("%T", result.Err), Message: result.Err.Error()}
		}
		resp.Result = &ResultResponse{Error: captured}
	}
	return resp
}
