// Package kafka publishes task lifecycle events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/phrazzld/taskcore/internal/events"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Record header keys.
const (
	HeaderEventID   = "event-id"
	HeaderEventType = "event-type"
	HeaderNamespace = "namespace"
	HeaderQueue     = "queue"
	HeaderTaskName  = "task-name"
)

// Producer defines the interface for producing messages to Kafka
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Publisher implements events.EventHandler by producing one record per event.
type Publisher struct {
	client Producer
	topic  string
	logger *slog.Logger
}

// NewPublisher creates a Publisher writing to topic.
func NewPublisher(client Producer, topic string, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		topic:  topic,
		logger: logger.With("component", "kafka_publisher", "topic", topic),
	}
}

// NewClient creates a franz-go client for brokers.
func NewClient(brokers []string) (*kgo.Client, error) {
	client, err := kgo.NewClient(kgo.SeedBrokers(brokers...))
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka client: %w", err)
	}
	return client, nil
}

// HandleEvent implements events.EventHandler.
func (p *Publisher) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	record, err := p.eventToRecord(event)
	if err != nil {
		return err
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("publish %s event for task %s: %w", event.Type, event.TaskID, err)
	}
	p.logger.Debug("event published",
		"event_id", event.ID,
		"event_type", event.Type,
		"task_id", event.TaskID)
	return nil
}

// eventToRecord keys records by task id so every event of one task lands
// on the same partition.
func (p *Publisher) eventToRecord(event *events.TaskEvent) (*kgo.Record, error) {
	value, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("encode %s event: %w", event.Type, err)
	}

	return &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.TaskID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: HeaderEventID, Value: []byte(event.ID.String())},
			{Key: HeaderEventType, Value: []byte(event.Type)},
			{Key: HeaderNamespace, Value: []byte(event.Namespace)},
			{Key: HeaderQueue, Value: []byte(event.Queue)},
			{Key: HeaderTaskName, Value: []byte(event.TaskName)},
		},
	}, nil
}
