// Package worker consumes task queues: it pulls pending tasks, executes
// them and stores their results, with a configurable number of concurrent
// slots sharing one set of queues.
package worker
