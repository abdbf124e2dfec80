// Package task is the core of the background task queue. It defines how a
// unit of work is registered, queued, pulled by a worker, executed
// (blocking or cooperatively) and finalized.
//
// A TaskNamespace groups TaskQueues that share one Connector, the pluggable
// backend that stores queued tasks. Each TaskQueue is a registry of named
// TaskExecutables. A QueuedTask is an immutable value bound to a queue and
// one of its executables; Start, Execute and Finalize return new values
// rather than changing the receiver. Callers wait for completion with
// WaitFor or AwaitFor, which poll the connector and yield a FinishedTask
// whose Result is either Success or Failure.
//
// Failures of task callables never surface as errors of the queue
// machinery. They are captured in the task's ExecutionResult.
package task
