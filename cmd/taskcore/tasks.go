package main

import (
	"context"
	"fmt"
	"time"

	"github.com/phrazzld/taskcore/internal/platform/logger"
	"github.com/phrazzld/taskcore/internal/task"
)

// Built-in task names registered on every configured queue.
const (
	TaskEcho  = "echo"
	TaskSleep = "sleep"
)

// maxSleep bounds the duration accepted by the sleep task.
const maxSleep = 5 * time.Minute

// registerBuiltinTasks registers the built-in executables on q.
func registerBuiltinTasks(q *task.TaskQueue) error {
	if _, err := q.RegisterSync(TaskEcho, echoTask); err != nil {
		return err
	}
	if _, err := q.RegisterAsync(TaskSleep, sleepTask); err != nil {
		return err
	}
	return nil
}

// echoTask returns its arguments unchanged.
func echoTask(ctx context.Context, ec task.ExecutionContext) (any, error) {
	return map[string]any{
		"args":   ec.Args,
		"kwargs": ec.Kwargs,
	}, nil
}

// sleepTask waits for the duration given as its first argument, e.g. "2s".
// It returns immediately with a promise that settles when the timer fires.
func sleepTask(ctx context.Context, ec task.ExecutionContext) *task.Promise[any] {
	var raw string
	if err := ec.Arg(0, &raw); err != nil {
		return task.Rejected[any](err)
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return task.Rejected[any](fmt.Errorf("invalid sleep duration: %w", err))
	}
	if d < 0 || d > maxSleep {
		return task.Rejected[any](fmt.Errorf("sleep duration %s out of range [0, %s]", d, maxSleep))
	}

	logger.FromContext(ctx).Debug("sleeping", "duration", d)

	return task.Go(func() (any, error) {
		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return d.String(), nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}
