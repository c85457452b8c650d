package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Rajdeep-017/suraksha-net/internal/config"
	"github.com/Rajdeep-017/suraksha-net/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
)

// Writer produces alert batches to a Kafka topic.
// It implements pipeline.AlertSink.
type Writer struct {
	writer *kafkago.Writer
	logger *slog.Logger
}

// NewWriter creates a Kafka producer for the configured alert topic.
func NewWriter(cfg *config.Config, logger *slog.Logger) *Writer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaAlertTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Writer{writer: w, logger: logger}
}

// Publish writes one alert batch keyed by session id, so a session's
// batches stay ordered within a partition.
func (w *Writer) Publish(ctx context.Context, batch domain.AlertBatch) error {
	msg, err := serializeToMessage(batch)
	if err != nil {
		return err
	}
	return w.writer.WriteMessages(ctx, msg)
}

func (w *Writer) Close() error {
	return w.writer.Close()
}

// serializeToMessage marshals an AlertBatch into a Kafka message.
func serializeToMessage(batch domain.AlertBatch) (kafkago.Message, error) {
	data, err := json.Marshal(batch)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize alert batch: %w", err)
	}
	return kafkago.Message{
		Key:   []byte(batch.SessionID),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "closest_tier", Value: []byte(batch.ClosestTier)},
			{Key: "published_at", Value: []byte(batch.PublishedAt.Format(time.RFC3339))},
		},
	}, nil
}
