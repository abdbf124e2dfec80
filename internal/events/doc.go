// Package events carries task lifecycle notifications from the worker to
// interested handlers.
//
// The primary components are:
// - TaskEvent: a queued, started or finalized transition of one task
// - EventHandler: interface for components that can handle events
// - EventEmitter: interface for components that can emit events
// - InMemoryEventEmitter: routes events in process to the handlers
//   subscribed to their type
package events
