package task

import (
	"context"
	"fmt"

	"github.com/oklog/ulid/v2"
)

// Kind tells how a TaskExecutable runs its callable.
type Kind int

const (
	// KindSync executables block the calling goroutine.
	KindSync Kind = iota
	// KindAsync executables return a Promise and are driven by a Runner.
	KindAsync
)

// String returns the kind name used in logs.
func (k Kind) String() string {
	switch k {
	case KindSync:
		return "sync"
	case KindAsync:
		return "async"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// SyncFunc is a blocking task callable.
type SyncFunc func(ctx context.Context, ec ExecutionContext) (any, error)

// AsyncFunc is a cooperative task callable. It must return promptly and
// report its outcome through the returned Promise.
type AsyncFunc func(ctx context.Context, ec ExecutionContext) *Promise[any]

// Runner drives an AsyncFunc to completion. It lets blocking callers execute
// cooperative callables without knowing how they are scheduled.
type Runner interface {
	Run(ctx context.Context, fn AsyncFunc, ec ExecutionContext) (any, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, fn AsyncFunc, ec ExecutionContext) (any, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, fn AsyncFunc, ec ExecutionContext) (any, error) {
	return f(ctx, fn, ec)
}

// DefaultRunner starts the callable and waits for its Promise.
type DefaultRunner struct{}

// Run implements Runner.
func (DefaultRunner) Run(ctx context.Context, fn AsyncFunc, ec ExecutionContext) (any, error) {
	p := fn(ctx, ec)
	if p == nil {
		return nil, ErrNoPromise
	}
	return p.Await(ctx)
}

// TaskExecutable is a named callable registered on exactly one TaskQueue.
type TaskExecutable struct {
	name  string
	kind  Kind
	queue *TaskQueue
	sync  SyncFunc
	async AsyncFunc
}

// Name returns the name the executable is registered under.
func (e *TaskExecutable) Name() string {
	return e.name
}

// Kind reports whether the executable is sync or async.
func (e *TaskExecutable) Kind() Kind {
	return e.kind
}

// TaskQueue returns the queue the executable is registered on.
func (e *TaskExecutable) TaskQueue() *TaskQueue {
	return e.queue
}

// Execute runs the callable with ec and captures its outcome. It never
// panics and never returns the callable's error directly: failures are
// reported as a failed ExecutionResult. The runner is only used by async
// executables.
func (e *TaskExecutable) Execute(ctx context.Context, runner Runner, ec ExecutionContext) (result ExecutionResult) {
	defer func() {
		if r := recover(); r != nil {
			result = Failed(&PanicError{Value: r})
		}
	}()

	var (
		value any
		err   error
	)
	switch e.kind {
	case KindAsync:
		if runner == nil {
			return Failed(ErrRunnerRequired)
		}
		value, err = runner.Run(ctx, e.async, ec)
	default:
		value, err = e.sync(ctx, ec)
	}
	if err != nil {
		return Failed(err)
	}
	return Succeeded(value)
}

// NewTask builds a freshly queued task for this executable. The task is
// not handed to the connector until TaskQueue.Queue is called.
func (e *TaskExecutable) NewTask(ec ExecutionContext) *QueuedTask {
	return newQueuedTask(e.queue, e, Metadata{
		ID:               ulid.Make(),
		ExecutionContext: ec,
		QueuedAt:         now(),
	})
}
