package task

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskNamespace_Queue(t *testing.T) {
	t.Parallel()

	connector := NewMockConnector()
	namespace := NewTaskNamespace("billing", connector, setupTestLogger())

	invoices, err := namespace.Queue("invoices")
	require.NoError(t, err)
	assert.Equal(t, "invoices", invoices.Name())
	assert.Equal(t, "billing", invoices.Namespace())
	assert.Same(t, connector, invoices.connector, "queues share the namespace connector")

	t.Run("duplicate queue name", func(t *testing.T) {
		_, err := namespace.Queue("invoices")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDuplicateTaskQueueName)

		var queueErr *QueueError
		require.ErrorAs(t, err, &queueErr)
		assert.Equal(t, "billing", queueErr.Namespace)
		assert.Equal(t, "invoices", queueErr.Queue)
	})

	t.Run("lookup", func(t *testing.T) {
		refunds, err := namespace.Queue("refunds")
		require.NoError(t, err)

		got, ok := namespace.TaskQueue("invoices")
		require.True(t, ok)
		assert.Same(t, invoices, got)

		_, ok = namespace.TaskQueue("missing")
		assert.False(t, ok)

		assert.Equal(t, []*TaskQueue{invoices, refunds}, namespace.TaskQueues())
	})

	t.Run("same queue name in another namespace", func(t *testing.T) {
		other := NewTaskNamespace("shipping", connector, setupTestLogger())
		_, err := other.Queue("invoices")
		assert.NoError(t, err)
	})
}

func TestNewTaskNamespace_NilLogger(t *testing.T) {
	namespace := NewTaskNamespace("default", NewMockConnector(), nil)

	_, err := namespace.Queue("default")
	assert.NoError(t, err)
	assert.Equal(t, "default", namespace.Name())
	assert.NotNil(t, namespace.Connector())
}
