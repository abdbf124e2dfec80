package task

import (
	"errors"
	"fmt"
	"strings"

	"github.com/oklog/ulid/v2"
)

// Errors surfaced by the queue machinery. Task body failures are never
// reported through these; they end up in the task's ExecutionResult.
var (
	// ErrDuplicateTaskName is returned when an executable name is already
	// registered on the queue.
	ErrDuplicateTaskName = errors.New("task name already registered")

	// ErrDuplicateTaskQueueName is returned when a queue name is already
	// used in the namespace.
	ErrDuplicateTaskQueueName = errors.New("task queue name already registered")

	// ErrUnknownTaskName is returned when a task name cannot be resolved to
	// a registered executable.
	ErrUnknownTaskName = errors.New("unknown task name")

	// ErrTaskDoesNotExistAnymore is returned when the connector no longer
	// holds a task that was previously queued.
	ErrTaskDoesNotExistAnymore = errors.New("task does not exist anymore")

	// ErrTaskQueueMismatch is returned when a task is handed to a queue it
	// is not bound to.
	ErrTaskQueueMismatch = errors.New("task belongs to a different task queue")

	// ErrTaskNotFinalized is returned when building a FinishedTask from a
	// task that has no finalized_at timestamp.
	ErrTaskNotFinalized = errors.New("task is not finalized")

	// ErrRunnerRequired is captured as a task failure when an async
	// executable is executed without a Runner.
	ErrRunnerRequired = errors.New("async task executable requires a runner")

	// ErrNilTaskFunc is returned when registering an executable without a callable.
	ErrNilTaskFunc = errors.New("task callable is nil")

	// ErrNoPromise is captured as a task failure when an async callable
	// returns a nil Promise.
	ErrNoPromise = errors.New("async task returned no promise")

	// ErrInvalidTaskRecord is returned when a stored task breaks the
	// lifecycle invariants, e.g. finalized without having been started.
	ErrInvalidTaskRecord = errors.New("invalid task record")
)

// QueueError carries the diagnostic context of a queue machinery failure.
// Err is always one of the package sentinels, so callers can use errors.Is.
type QueueError struct {
	Err       error
	Namespace string
	Queue     string
	TaskName  string
	TaskID    ulid.ULID
}

// Error implements the error interface.
func (e *QueueError) Error() string {
	var b strings.Builder
	b.WriteString(e.Err.Error())
	fmt.Fprintf(&b, ": namespace=%q queue=%q", e.Namespace, e.Queue)
	if e.TaskName != "" {
		fmt.Fprintf(&b, " task_name=%q", e.TaskName)
	}
	if e.TaskID != (ulid.ULID{}) {
		fmt.Fprintf(&b, " task_id=%s", e.TaskID)
	}
	return b.String()
}

// Unwrap returns the sentinel error to support errors.Is.
func (e *QueueError) Unwrap() error {
	return e.Err
}

// CapturedError is a task failure that crossed the wire. Only the dynamic
// type name and message of the original error survive serialization.
type CapturedError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *CapturedError) Error() string {
	return e.Message
}

// captureError projects err onto its wire form.
func captureError(err error) *CapturedError {
	if captured, ok := err.(*CapturedError); ok {
		return captured
	}
	return &CapturedError{
		Type:    fmt.Sprintf("%T", err),
		Message: err.Error(),
	}
}

// PanicError records a panic raised by a task callable.
type PanicError struct {
	Value any
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("task panicked: %v", e.Value)
}
