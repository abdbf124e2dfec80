package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/phrazzld/taskcore/internal/task"
)

// Request errors raised by the handlers themselves.
var (
	ErrUnknownQueue  = errors.New("unknown queue")
	ErrInvalidTaskID = errors.New("invalid task id")
	ErrTaskNotFound  = errors.New("task not found")
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, ErrUnknownQueue),
		errors.Is(err, ErrTaskNotFound),
		errors.Is(err, task.ErrTaskDoesNotExistAnymore):
		return http.StatusNotFound

	case errors.Is(err, ErrInvalidTaskID),
		errors.Is(err, task.ErrUnknownTaskName):
		return http.StatusBadRequest

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type.
func GetSafeErrorMessage(err error) string {
	switch {
	case err == nil:
		return "An unexpected error occurred"
	case errors.Is(err, ErrUnknownQueue):
		return "Queue not found"
	case errors.Is(err, ErrTaskNotFound),
		errors.Is(err, task.ErrTaskDoesNotExistAnymore):
		return "Task not found"
	case errors.Is(err, ErrInvalidTaskID):
		return "Invalid task id"
	case errors.Is(err, task.ErrUnknownTaskName):
		return "Unknown task name"
	case errors.Is(err, context.DeadlineExceeded):
		return "Task backend timed out"
	default:
		return "An unexpected error occurred"
	}
}
