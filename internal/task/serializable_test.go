package task

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializableTask_RoundTrip(t *testing.T) {
	t.Parallel()

	queuedAt := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	startedAt := queuedAt.Add(time.Second)
	finalizedAt := startedAt.Add(time.Second)

	ec, err := NewExecutionContext(
		[]any{1, "two", map[string]any{"three": 3.5}, nil},
		map[string]any{"flag": true, "list": []int{1, 2}},
	)
	require.NoError(t, err)

	success := Succeeded(map[string]int{"answer": 42})
	nilValue := Succeeded(nil)
	failure := Failed(&CapturedError{Type: "*errors.errorString", Message: "boom"})

	testCases := []struct {
		name string
		task SerializableTask
	}{
		{
			name: "freshly queued",
			task: SerializableTask{
				ID:            ulid.Make(),
				Namespace:     "ns",
				TaskQueueName: "q",
				TaskName:      "t",
				QueuedAt:      queuedAt,
			},
		},
		{
			name: "started with arguments",
			task: SerializableTask{
				ID:               ulid.Make(),
				Namespace:        "ns",
				TaskQueueName:    "q",
				TaskName:         "t",
				ExecutionContext: ec,
				QueuedAt:         queuedAt,
				StartedAt:        &startedAt,
			},
		},
		{
			name: "finalized success",
			task: SerializableTask{
				ID:               ulid.Make(),
				Namespace:        "ns",
				TaskQueueName:    "q",
				TaskName:         "t",
				ExecutionContext: ec,
				ExecutionResult:  &success,
				QueuedAt:         queuedAt,
				StartedAt:        &startedAt,
				FinalizedAt:      &finalizedAt,
			},
		},
		{
			name: "finalized success without value",
			task: SerializableTask{
				ID:              ulid.Make(),
				ExecutionResult: &nilValue,
				QueuedAt:        queuedAt,
				StartedAt:       &startedAt,
				FinalizedAt:     &finalizedAt,
			},
		},
		{
			name: "finalized failure",
			task: SerializableTask{
				ID:              ulid.Make(),
				Namespace:       "ns",
				TaskQueueName:   "q",
				TaskName:        "t",
				ExecutionResult: &failure,
				QueuedAt:        queuedAt,
				StartedAt:       &startedAt,
				FinalizedAt:     &finalizedAt,
			},
		},
		{
			name: "reset after execution",
			task: SerializableTask{
				ID:              ulid.Make(),
				ExecutionResult: &success,
				QueuedAt:        queuedAt,
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := tc.task.Marshal()
			require.NoError(t, err)

			decoded, err := UnmarshalSerializableTask(data)
			require.NoError(t, err)
			assert.Equal(t, tc.task, decoded)
		})
	}
}

func TestSerializableTask_WireFormat(t *testing.T) {
	t.Parallel()

	id := ulid.MustParse("01HQZ3J5X4Y6Z7A8B9C0D1E2F3")
	queuedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	failure := Failed(&CapturedError{Type: "*errors.errorString", Message: "boom"})

	data, err := SerializableTask{
		ID:               id,
		Namespace:        "ns",
		TaskQueueName:    "q",
		TaskName:         "t",
		ExecutionContext: ExecutionContext{Args: []json.RawMessage{json.RawMessage(`1`)}},
		ExecutionResult:  &failure,
		QueuedAt:         queuedAt,
	}.Marshal()
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"id": "01HQZ3J5X4Y6Z7A8B9C0D1E2F3",
		"namespace": "ns",
		"task_queue_name": "q",
		"task_name": "t",
		"execution_context": {"args": [1], "kwargs": {}},
		"execution_result": {"value": null, "exc": {"type": "*errors.errorString", "message": "boom"}},
		"queued_at": "2024-03-01T12:00:00Z",
		"started_at": null,
		"finalized_at": null
	}`, string(data))
}

func TestSerializableTask_WireFormatWithoutArguments(t *testing.T) {
	queue := newTestQueue(t, NewMockConnector())
	_, err := queue.RegisterSync("noop", func(ctx context.Context, ec ExecutionContext) (any, error) {
		return nil, nil
	})
	require.NoError(t, err)

	queued, err := queue.NewTask("noop", ExecutionContext{})
	require.NoError(t, err)

	data, err := queued.Serializable().Marshal()
	require.NoError(t, err)

	var wire map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &wire))
	assert.JSONEq(t, `{"args": [], "kwargs": {}}`, string(wire["execution_context"]))
}

func TestUnmarshalSerializableTask_Invalid(t *testing.T) {
	_, err := UnmarshalSerializableTask([]byte(`{"id": "not-a-ulid"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to deserialize task")
}

func TestQueuedTask_SerializableRoundTrip(t *testing.T) {
	t.Parallel()

	queue := newTestQueue(t, NewMockConnector())
	_, err := queue.RegisterSync("echo", echo)
	require.NoError(t, err)

	queued, err := queue.NewTask("echo", mustExecutionContext(t, "payload"))
	require.NoError(t, err)

	for _, task := range []*QueuedTask{
		queued,
		queued.Start(),
		queued.Start().Execute(context.Background(), nil),
		queued.Start().Execute(context.Background(), nil).Finalize(),
		queued.Start().Execute(context.Background(), nil).Finalize().Reset(),
	} {
		data, err := task.Serializable().Marshal()
		require.NoError(t, err)

		decoded, err := UnmarshalSerializableTask(data)
		require.NoError(t, err)

		rehydrated, err := queue.rehydrate(decoded)
		require.NoError(t, err)
		assert.Equal(t, task.Metadata(), rehydrated.Metadata(), "state %s", task.State())
	}
}
