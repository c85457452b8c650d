package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Rajdeep-017/suraksha-net/internal/config"
	"github.com/Rajdeep-017/suraksha-net/internal/domain"
	"github.com/Rajdeep-017/suraksha-net/internal/position"
	kafkago "github.com/segmentio/kafka-go"
)

// Reader consumes driver position samples from a Kafka topic.
// It implements position.Provider.
type Reader struct {
	cfg    kafkago.ReaderConfig
	driver string
	logger *slog.Logger
}

// NewReader creates a position provider for the configured topic. When
// driverKey is set only messages keyed by it are delivered.
func NewReader(cfg *config.Config, driverKey string, logger *slog.Logger) *Reader {
	return &Reader{
		cfg: kafkago.ReaderConfig{
			Brokers:  cfg.KafkaBrokers,
			GroupID:  cfg.KafkaGroupID,
			Topic:    cfg.KafkaPositionTopic,
			MinBytes: 1,
			MaxBytes: 1 << 20,
		},
		driver: driverKey,
		logger: logger,
	}
}

// Watch opens a consumer for the lifetime of ctx. Each subscription gets its
// own consumer so releasing one never affects the next.
func (r *Reader) Watch(ctx context.Context, _ position.Options, emit func(domain.PositionSample)) error {
	reader := kafkago.NewReader(r.cfg)
	defer func() {
		if err := reader.Close(); err != nil {
			r.logger.Warn("close position reader", "error", err)
		}
	}()

	r.logger.Info("position reader started", "topic", r.cfg.Topic, "group_id", r.cfg.GroupID)
	for {
		msg, err := reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("fetch position message: %w", err)
		}

		if r.driver == "" || string(msg.Key) == r.driver {
			sample, err := mapMessageToSample(msg)
			if err != nil {
				r.logger.Warn("skipping malformed position message",
					"error", err,
					"partition", msg.Partition,
					"offset", msg.Offset,
				)
			} else {
				emit(sample)
			}
		}

		if err := reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			r.logger.Warn("commit offset failed", "error", err,
				"partition", msg.Partition, "offset", msg.Offset)
		}
	}
}

// mapMessageToSample decodes a position message, falling back to the broker
// timestamp when the payload carries none.
func mapMessageToSample(msg kafkago.Message) (domain.PositionSample, error) {
	var sample domain.PositionSample
	if err := json.Unmarshal(msg.Value, &sample); err != nil {
		return domain.PositionSample{}, fmt.Errorf("decode position sample: %w", err)
	}
	if !sample.Valid() {
		return domain.PositionSample{}, errors.New("position sample has invalid coordinates")
	}
	if sample.Timestamp.IsZero() {
		sample.Timestamp = msg.Time
	}
	return sample, nil
}
