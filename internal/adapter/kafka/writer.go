package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/couchcryptid/polar-layers/internal/domain"
)

// Writer publishes layer-ready events to a Kafka topic.
// It implements pipeline.Publisher.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the notification topic.
func NewWriter(brokers []string, topic string, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes one event keyed by dataset, so updates to the same layer
// stay ordered within a partition.
func (w *Writer) Publish(ctx context.Context, event domain.LayerEvent) error {
	msg, err := serializeToMessage(event)
	if err != nil {
		return err
	}
	if err := w.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s: %w", event.Dataset, err)
	}
	w.logger.Debug("layer event published", "dataset", event.Dataset, "run_id", event.RunID)
	return nil
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals a LayerEvent into a Kafka message.
func serializeToMessage(event domain.LayerEvent) (kafkago.Message, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize layer event: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(event.Dataset),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "run_id", Value: []byte(event.RunID)},
			{Key: "built_at", Value: []byte(event.BuiltAt.Format(time.RFC3339))},
		},
	}, nil
}

// DeserializeMessage is the inverse of serializeToMessage, for consumers.
func DeserializeMessage(msg kafkago.Message) (domain.LayerEvent, error) {
	var event domain.LayerEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return domain.LayerEvent{}, fmt.Errorf("deserialize layer event: %w", err)
	}
	return event, nil
}
