package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/gcbaptista/go-search-core/internal/logger"
	"github.com/gcbaptista/go-search-core/model"
)

// KafkaSink publishes search events as JSON messages keyed by index name.
type KafkaSink struct {
	writer  *kafka.Writer
	brokers []string
	logger  *slog.Logger
}

// NewKafkaSink creates a sink writing to topic on the given brokers.
func NewKafkaSink(brokers []string, topic string) (*KafkaSink, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka sink needs at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka sink needs a topic")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    defaultBatchSize,
		BatchTimeout: 10 * time.Millisecond,
		MaxAttempts:  3,
		RequiredAcks: kafka.RequireAll,
	}
	return &KafkaSink{
		writer:  w,
		brokers: brokers,
		logger:  logger.WithComponent("analytics-kafka").With("topic", topic),
	}, nil
}

// Name identifies the sink in logs and health checks.
func (k *KafkaSink) Name() string { return "kafka" }

// eventMessages encodes events as Kafka messages.
func eventMessages(events []model.SearchEvent) ([]kafka.Message, error) {
	messages := make([]kafka.Message, 0, len(events))
	for _, event := range events {
		value, err := json.Marshal(event)
		if err != nil {
			return nil, fmt.Errorf("marshaling search event: %w", err)
		}
		messages = append(messages, kafka.Message{
			Key:   []byte(event.IndexName),
			Value: value,
			Time:  event.Timestamp,
		})
	}
	return messages, nil
}

// Write publishes a batch of events in one call.
func (k *KafkaSink) Write(ctx context.Context, events []model.SearchEvent) error {
	messages, err := eventMessages(events)
	if err != nil {
		return err
	}
	if err := k.writer.WriteMessages(ctx, messages...); err != nil {
		return fmt.Errorf("publishing batch to kafka: %w", err)
	}
	k.logger.Debug("Batch published", "count", len(messages))
	return nil
}

// Ping dials the first broker.
func (k *KafkaSink) Ping(ctx context.Context) error {
	conn, err := kafka.DialContext(ctx, "tcp", k.brokers[0])
	if err != nil {
		return fmt.Errorf("dialing kafka broker %s: %w", k.brokers[0], err)
	}
	return conn.Close()
}

// Close flushes pending writes and closes the underlying Kafka writer.
func (k *KafkaSink) Close() error {
	return k.writer.Close()
}
