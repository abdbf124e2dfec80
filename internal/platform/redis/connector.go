package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/phrazzld/taskcore/internal/task"
	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "taskcore"

// TaskKey returns the key that holds a serialized task.
func TaskKey(namespace, queue string, id ulid.ULID) string {
	return keyPrefix + ":" + namespace + ":" + queue + ":task:" + id.String()
}

// ReadyKey returns the key of the list of pending task ids of a queue.
func ReadyKey(namespace, queue string) string {
	return keyPrefix + ":" + namespace + ":" + queue + ":ready"
}

// Option configures a Connector.
type Option func(*Connector)

// WithResultTTL expires finalized tasks after ttl. Zero keeps them forever.
func WithResultTTL(ttl time.Duration) Option {
	return func(c *Connector) {
		c.resultTTL = ttl
	}
}

// Connector implements task.Connector using a Redis client.
type Connector struct {
	rdb       goredis.UniversalClient
	resultTTL time.Duration
	logger    *slog.Logger
}

// NewConnector wraps an existing client.
func NewConnector(rdb goredis.UniversalClient, logger *slog.Logger, opts ...Option) *Connector {
	c := &Connector{
		rdb:    rdb,
		logger: logger.With("component", "redis_connector"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect parses a redis:// URL, creates a client and verifies it with PING.
func Connect(ctx context.Context, url string) (*goredis.Client, error) {
	opt, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	rdb := goredis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

// Queue implements task.Connector. The task body is written and its id is
// appended to the ready list in one MULTI/EXEC. Any earlier pending entry
// for the same id is removed first so a re-queued task is pulled once.
func (c *Connector) Queue(ctx context.Context, t task.SerializableTask) error {
	data, err := t.Marshal()
	if err != nil {
		return err
	}

	ready := ReadyKey(t.Namespace, t.TaskQueueName)
	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, TaskKey(t.Namespace, t.TaskQueueName, t.ID), data, c.ttlFor(t))
	pipe.LRem(ctx, ready, 0, t.ID.String())
	pipe.RPush(ctx, ready, t.ID.String())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis queue %s: %w", t.ID, err)
	}
	return nil
}

// QueueAsync implements task.Connector.
func (c *Connector) QueueAsync(ctx context.Context, t task.SerializableTask) *task.Promise[struct{}] {
	return task.QueueAsyncFunc(func() error { return c.Queue(ctx, t) })
}

// Find implements task.Connector.
func (c *Connector) Find(ctx context.Context, namespace, queue string, id ulid.ULID) (*task.SerializableTask, error) {
	data, err := c.rdb.Get(ctx, TaskKey(namespace, queue, id)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis find %s: %w", id, err)
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

// Pull implements task.Connector. Ids whose body has expired or been
// deleted are dropped.
func (c *Connector) Pull(ctx context.Context, namespace, queue string) (*task.SerializableTask, error) {
	ready := ReadyKey(namespace, queue)
	for {
		raw, err := c.rdb.LPop(ctx, ready).Result()
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("redis pull: %w", err)
		}

		id, err := ulid.ParseStrict(raw)
		if err != nil {
			c.logger.Warn("dropping malformed id from ready list",
				"key", ready,
				"value", raw,
				"error", err)
			continue
		}

		found, err := c.Find(ctx, namespace, queue, id)
		if err != nil {
			return nil, err
		}
		if found == nil {
			c.logger.Debug("pending task no longer stored", "task_id", raw, "key", ready)
			continue
		}
		return found, nil
	}
}

// Update implements task.Connector. It only overwrites an existing key.
func (c *Connector) Update(ctx context.Context, namespace, queue string, t task.SerializableTask) error {
	data, err := t.Marshal()
	if err != nil {
		return err
	}

	ok, err := c.rdb.SetXX(ctx, TaskKey(namespace, queue, t.ID), data, c.ttlFor(t)).Result()
	if err != nil {
		return fmt.Errorf("redis update %s: %w", t.ID, err)
	}
	if !ok {
		return fmt.Errorf("redis update %s: %w", t.ID, task.ErrTaskDoesNotExistAnymore)
	}
	return nil
}

// Delete removes a task body. Its pending entry, if any, is skipped on pull.
func (c *Connector) Delete(ctx context.Context, namespace, queue string, id ulid.ULID) error {
	if err := c.rdb.Del(ctx, TaskKey(namespace, queue, id)).Err(); err != nil {
		return fmt.Errorf("redis delete %s: %w", id, err)
	}
	return nil
}

// Pending returns the number of ids waiting in the ready list.
func (c *Connector) Pending(ctx context.Context, namespace, queue string) (int64, error) {
	return c.rdb.LLen(ctx, ReadyKey(namespace, queue)).Result()
}

func (c *Connector) ttlFor(t task.SerializableTask) time.Duration {
	if t.IsFinalized() {
		return c.resultTTL
	}
	return 0
}

func decode(data []byte) (*task.SerializableTask, error) {
	s, err := task.UnmarshalSerializableTask(data)
	if err != nil {
		return nil, err
	}
	return &s, nil
}
