package events

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
)

// subscription routes events of the listed types to handler. An empty
// type list matches every event.
type subscription struct {
	handler    EventHandler
	eventTypes []string
}

func (s subscription) matches(eventType string) bool {
	return len(s.eventTypes) == 0 || slices.Contains(s.eventTypes, eventType)
}

// InMemoryEventEmitter dispatches task events in process, synchronously
// and in subscription order, to the handlers subscribed to their type.
type InMemoryEventEmitter struct {
	mu     sync.RWMutex
	subs   []subscription
	logger *slog.Logger
}

// NewInMemoryEventEmitter creates an emitter with no subscriptions.
func NewInMemoryEventEmitter(logger *slog.Logger) *InMemoryEventEmitter {
	return &InMemoryEventEmitter{
		logger: logger.With("component", "event_emitter"),
	}
}

// Subscribe routes events of the given types to handler, or every event
// when no type is given.
func (e *InMemoryEventEmitter) Subscribe(handler EventHandler, eventTypes ...string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.subs = append(e.subs, subscription{
		handler:    handler,
		eventTypes: slices.Clone(eventTypes),
	})
	e.logger.Debug("event handler subscribed",
		"event_types", eventTypes,
		"subscriptions", len(e.subs))
}

// HandlerCount returns how many handlers receive events of eventType.
func (e *InMemoryEventEmitter) HandlerCount(eventType string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := 0
	for _, s := range e.subs {
		if s.matches(eventType) {
			n++
		}
	}
	return n
}

// EmitEvent hands event to every matching handler. A failing handler does
// not stop the others; all handler errors are returned joined.
func (e *InMemoryEventEmitter) EmitEvent(ctx context.Context, event *TaskEvent) error {
	e.mu.RLock()
	var handlers []EventHandler
	for _, s := range e.subs {
		if s.matches(event.Type) {
			handlers = append(handlers, s.handler)
		}
	}
	e.mu.RUnlock()

	log := e.logger.With(event.LogAttrs()...)
	if len(handlers) == 0 {
		log.Debug("no subscribers for event")
		return nil
	}
	log.Debug("dispatching event", "handlers", len(handlers))

	var errs []error
	for _, h := range handlers {
		if err := h.HandleEvent(ctx, event); err != nil {
			log.Error("event handler failed", "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
