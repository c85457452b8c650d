// Package redis fans alert batches out over Redis pub/sub.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Rajdeep-017/suraksha-net/internal/config"
	"github.com/Rajdeep-017/suraksha-net/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Publisher publishes alert batches to a per-session channel.
// It implements pipeline.AlertSink.
type Publisher struct {
	client *redis.Client
	logger *slog.Logger
}

// NewPublisher connects to Redis and verifies the connection.
func NewPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Publisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Publisher{client: client, logger: logger}, nil
}

// Publish sends the batch to the session's alert channel.
func (p *Publisher) Publish(ctx context.Context, batch domain.AlertBatch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("serialize alert batch: %w", err)
	}
	receivers, err := p.client.Publish(ctx, Channel(batch.SessionID), payload).Result()
	if err != nil {
		return fmt.Errorf("publish alert batch: %w", err)
	}
	p.logger.Debug("alert batch published", "channel", Channel(batch.SessionID), "receivers", receivers)
	return nil
}

// CheckReadiness pings Redis.
func (p *Publisher) CheckReadiness(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func (p *Publisher) Close() error {
	return p.client.Close()
}

// Channel names the pub/sub channel carrying a session's alerts.
func Channel(sessionID string) string {
	return fmt.Sprintf("suraksha:session:%s:alerts", sessionID)
}
