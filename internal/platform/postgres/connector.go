package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/phrazzld/taskcore/internal/task"
)

// DBTX is the subset of pgxpool.Pool used by the connector. pgx.Tx
// satisfies it too.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connector implements task.Connector against the tasks table.
type Connector struct {
	db     DBTX
	logger *slog.Logger
}

// NewConnector creates a Connector on top of db.
func NewConnector(db DBTX, logger *slog.Logger) *Connector {
	return &Connector{
		db:     db,
		logger: logger.With("component", "postgres_connector"),
	}
}

// Connect creates a pool for databaseURL and pings it.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// Queue implements task.Connector. An existing row is overwritten and
// becomes pullable again.
func (c *Connector) Queue(ctx context.Context, t task.SerializableTask) error {
	data, err := t.Marshal()
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO tasks (namespace, queue_name, id, task_name, payload, queued_at, started_at, finalized_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (namespace, queue_name, id) DO UPDATE
		SET task_name = EXCLUDED.task_name,
			payload = EXCLUDED.payload,
			queued_at = EXCLUDED.queued_at,
			started_at = EXCLUDED.started_at,
			finalized_at = EXCLUDED.finalized_at,
			enqueued_at = clock_timestamp(),
			pulled_at = NULL
	`
	_, err = c.db.Exec(ctx, q,
		t.Namespace,
		t.TaskQueueName,
		t.ID.String(),
		t.TaskName,
		string(data),
		t.QueuedAt,
		t.StartedAt,
		t.FinalizedAt,
	)
	if err != nil {
		c.logger.Error("failed to queue task",
			"task_id", t.ID.String(),
			"namespace", t.Namespace,
			"queue", t.TaskQueueName,
			"error", err)
		return fmt.Errorf("insert task %s: %w", t.ID, MapError(err))
	}
	return nil
}

// QueueAsync implements task.Connector.
func (c *Connector) QueueAsync(ctx context.Context, t task.SerializableTask) *task.Promise[struct{}] {
	return task.QueueAsyncFunc(func() error { return c.Queue(ctx, t) })
}

// Find implements task.Connector.
func (c *Connector) Find(ctx context.Context, namespace, queue string, id ulid.ULID) (*task.SerializableTask, error) {
	const q = `
		SELECT payload
		FROM tasks
		WHERE namespace = $1 AND queue_name = $2 AND id = $3
	`
	var data []byte
	err := c.db.QueryRow(ctx, q, namespace, queue, id.String()).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select task %s: %w", id, MapError(err))
	}
	return decode(data)
}

// FindAsync implements task.Connector.
func (c *Connector) FindAsync(
	ctx context.Context,
	namespace, queue string,
	id ulid.ULID,
) *task.Promise[*task.SerializableTask] {
	return task.FindAsyncFunc(func() (*task.SerializableTask, error) {
		return c.Find(ctx, namespace, queue, id)
	})
}

// Pull implements task.Connector. The oldest unclaimed row is claimed in a
// single statement; rows locked by a concurrent pull are skipped.
func (c *Connector) Pull(ctx context.Context, namespace, queue string) (*task.SerializableTask, error) {
	const q = `
		UPDATE tasks
		SET pulled_at = clock_timestamp()
		WHERE (namespace, queue_name, id) = (
			SELECT namespace, queue_name, id
			FROM tasks
			WHERE namespace = $1 AND queue_name = $2 AND pulled_at IS NULL
			ORDER BY enqueued_at, id
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING payload
	`
	var data []byte
	err := c.db.QueryRow(ctx, q, namespace, queue).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", MapError(err))
	}
	return decode(data)
}

// Update implements task.Connector. It does not change whether the task is
// pullable.
func (c *Connector) Update(ctx context.Context, namespace, queue string, t task.SerializableTask) error {
	data, err := t.Marshal()
	if err != nil {
		return err
	}

	const q = `
		UPDATE tasks
		SET payload = $4, started_at = $5, finalized_at = $6
		WHERE namespace = $1 AND queue_name = $2 AND id = $3
	`
	tag, err := c.db.Exec(ctx, q,
		namespace,
		queue,
		t.ID.String(),
		string(data),
		t.StartedAt,
		t.FinalizedAt,
	)
	if err != nil {
		return fmt.Errorf("update task %s: %w", t.ID, MapError(err))
	}
	return checkRowsAffected(tag, t.ID.String())
}

// Delete removes a task row.
func (c *Connector) Delete(ctx context.Context, namespace, queue string, id ulid.ULID) error {
	const q = `DELETE FROM tasks WHERE namespace = $1 AND queue_name = $2 AND id = $3`
	if _, err := c.db.Exec(ctx, q, namespace, queue, id.String()); err != nil {
		return fmt.Errorf("delete task %s: %w", id, MapError(err))
	}
	return nil
}

func decode(data []byte) (*task.SerializableTask, error) {
	s, err := task.UnmarshalSerializableTask(data)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
