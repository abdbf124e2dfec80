package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInMemoryEventEmitter(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	newEvent := func(t *testing.T, eventType string) *TaskEvent {
		event, err := NewTaskEvent(eventType, sampleTask(t))
		require.NoError(t, err)
		return event
	}

	t.Run("no subscribers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)

		assert.NoError(t, emitter.EmitEvent(context.Background(), newEvent(t, TypeTaskStarted)))
		assert.Zero(t, emitter.HandlerCount(TypeTaskStarted))
	})

	t.Run("routes by event type", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		all := &MockEventHandler{}
		finalizedOnly := &MockEventHandler{}
		emitter.Subscribe(all)
		emitter.Subscribe(finalizedOnly, TypeTaskFinalized)

		assert.Equal(t, 1, emitter.HandlerCount(TypeTaskQueued))
		assert.Equal(t, 2, emitter.HandlerCount(TypeTaskFinalized))

		for _, eventType := range []string{TypeTaskQueued, TypeTaskStarted, TypeTaskFinalized} {
			require.NoError(t, emitter.EmitEvent(context.Background(), newEvent(t, eventType)))
		}

		assert.Equal(t, 3, all.HandledCount)
		assert.Equal(t, 1, finalizedOnly.HandledCount)
		assert.Equal(t, TypeTaskFinalized, finalizedOnly.LastEvent.Type)
	})

	t.Run("multiple types on one subscription", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		handler := &MockEventHandler{}
		emitter.Subscribe(handler, TypeTaskQueued, TypeTaskStarted)

		require.NoError(t, emitter.EmitEvent(context.Background(), newEvent(t, TypeTaskStarted)))
		require.NoError(t, emitter.EmitEvent(context.Background(), newEvent(t, TypeTaskFinalized)))

		assert.Equal(t, 1, handler.HandledCount)
	})

	t.Run("failing handlers do not stop delivery", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		first := errors.New("first handler error")
		second := errors.New("second handler error")
		successHandler := &MockEventHandler{}
		emitter.Subscribe(&MockEventHandler{HandlerError: first})
		emitter.Subscribe(successHandler)
		emitter.Subscribe(EventHandlerFunc(func(ctx context.Context, event *TaskEvent) error {
			return second
		}))

		err := emitter.EmitEvent(context.Background(), newEvent(t, TypeTaskStarted))
		assert.ErrorIs(t, err, first)
		assert.ErrorIs(t, err, second)
		assert.Equal(t, 1, successHandler.HandledCount)
	})

	t.Run("nop emitter", func(t *testing.T) {
		assert.NoError(t, NopEmitter{}.EmitEvent(context.Background(), newEvent(t, TypeTaskQueued)))
	})
}

func TestTaskEvent_LogAttrs(t *testing.T) {
	event, err := NewTaskEvent(TypeTaskQueued, sampleTask(t))
	require.NoError(t, err)

	attrs := event.LogAttrs()
	require.Len(t, attrs, 12)
	assert.Equal(t, []any{"event_id", event.ID.String()}, attrs[:2])
	assert.Contains(t, attrs, event.TaskID)
	assert.Contains(t, attrs, "task_name")
}
