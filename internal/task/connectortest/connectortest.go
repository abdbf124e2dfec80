// Package connectortest provides a behavioural test suite shared by every
// task.Connector implementation.
package connectortest

import (
	"context"
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/phrazzld/taskcore/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a connector whose namespace is isolated from other runs.
// Implementations backed by shared infrastructure should register cleanup
// with t.Cleanup.
type Factory func(t *testing.T) (connector task.Connector, namespace string)

// Run exercises the connector protocol against the connector built by newConnector.
func Run(t *testing.T, newConnector Factory) {
	t.Helper()

	t.Run("find unknown id returns nil", func(t *testing.T) {
		c, ns := newConnector(t)

		found, err := c.Find(context.Background(), ns, "q", ulid.Make())
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("pull empty queue returns nil", func(t *testing.T) {
		c, ns := newConnector(t)

		pulled, err := c.Pull(context.Background(), ns, "empty")
		require.NoError(t, err)
		assert.Nil(t, pulled)
	})

	t.Run("queue then find round trips", func(t *testing.T) {
		ctx := context.Background()
		c, ns := newConnector(t)
		s := Sample(t, ns, "q")

		require.NoError(t, c.Queue(ctx, s))

		found, err := c.Find(ctx, ns, "q", s.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, s, *found)

		found, err = c.FindAsync(ctx, ns, "q", s.ID).Await(ctx)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, s, *found)
	})

	t.Run("queues are isolated", func(t *testing.T) {
		ctx := context.Background()
		c, ns := newConnector(t)
		s := Sample(t, ns, "left")

		require.NoError(t, c.Queue(ctx, s))

		found, err := c.Find(ctx, ns, "right", s.ID)
		require.NoError(t, err)
		assert.Nil(t, found)

		pulled, err := c.Pull(ctx, ns, "right")
		require.NoError(t, err)
		assert.Nil(t, pulled)
	})

	t.Run("each queued task is pulled exactly once", func(t *testing.T) {
		ctx := context.Background()
		c, ns := newConnector(t)

		want := map[ulid.ULID]bool{}
		for i := 0; i < 3; i++ {
			s := Sample(t, ns, "q")
			_, err := c.QueueAsync(ctx, s).Await(ctx)
			require.NoError(t, err)
			want[s.ID] = true
		}

		got := map[ulid.ULID]bool{}
		for i := 0; i < 3; i++ {
			pulled, err := c.Pull(ctx, ns, "q")
			require.NoError(t, err)
			require.NotNil(t, pulled)
			assert.False(t, got[pulled.ID], "task %s pulled twice", pulled.ID)
			got[pulled.ID] = true
		}
		assert.Equal(t, want, got)

		pulled, err := c.Pull(ctx, ns, "q")
		require.NoError(t, err)
		assert.Nil(t, pulled)
	})

	t.Run("update overwrites state", func(t *testing.T) {
		ctx := context.Background()
		c, ns := newConnector(t)
		s := Sample(t, ns, "q")
		require.NoError(t, c.Queue(ctx, s))

		pulled, err := c.Pull(ctx, ns, "q")
		require.NoError(t, err)
		require.NotNil(t, pulled)

		startedAt := s.QueuedAt.Add(time.Second)
		finalizedAt := startedAt.Add(time.Second)
		result := task.Succeeded("done")
		updated := *pulled
		updated.StartedAt = &startedAt
		updated.FinalizedAt = &finalizedAt
		updated.ExecutionResult = &result

		require.NoError(t, c.Update(ctx, ns, "q", updated))

		found, err := c.Find(ctx, ns, "q", s.ID)
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, updated, *found)
		assert.True(t, found.IsFinalized())

		again, err := c.Pull(ctx, ns, "q")
		require.NoError(t, err)
		assert.Nil(t, again, "update must not make a task pullable")
	})

	t.Run("update of unknown task fails", func(t *testing.T) {
		c, ns := newConnector(t)

		err := c.Update(context.Background(), ns, "q", Sample(t, ns, "q"))
		assert.ErrorIs(t, err, task.ErrTaskDoesNotExistAnymore)
	})

	t.Run("requeue makes a task pullable again", func(t *testing.T) {
		ctx := context.Background()
		c, ns := newConnector(t)
		s := Sample(t, ns, "q")
		require.NoError(t, c.Queue(ctx, s))

		pulled, err := c.Pull(ctx, ns, "q")
		require.NoError(t, err)
		require.NotNil(t, pulled)

		require.NoError(t, c.Queue(ctx, *pulled))

		again, err := c.Pull(ctx, ns, "q")
		require.NoError(t, err)
		require.NotNil(t, again)
		assert.Equal(t, s.ID, again.ID)
	})
}

// Sample builds a freshly queued task for the given queue.
func Sample(t *testing.T, namespace, queue string) task.SerializableTask {
	t.Helper()

	ec, err := task.NewExecutionContext([]any{"payload", 7}, map[string]any{"retry": false})
	require.NoError(t, err)

	return task.SerializableTask{
		ID:               ulid.Make(),
		Namespace:        namespace,
		TaskQueueName:    queue,
		TaskName:         "sample",
		ExecutionContext: ec,
		QueuedAt:         time.Now().UTC().Truncate(time.Microsecond),
	}
}
