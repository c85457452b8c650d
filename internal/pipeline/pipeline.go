// Package pipeline publishes a tracking session's visible alerts to a
// downstream sink whenever the alerted set changes.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Rajdeep-017/suraksha-net/internal/domain"
	"github.com/Rajdeep-017/suraksha-net/internal/observability"
	"github.com/Rajdeep-017/suraksha-net/internal/tracking"
	"github.com/couchcryptid/storm-data-shared/retry"
)

// Updates streams session read models. *tracking.Session implements it.
type Updates interface {
	Subscribe() (<-chan tracking.ReadModel, func())
}

// AlertSink delivers alert batches downstream.
type AlertSink interface {
	Publish(ctx context.Context, batch domain.AlertBatch) error
}

// Pipeline forwards alert batches from a session to a sink.
type Pipeline struct {
	source  Updates
	sink    AlertSink
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool

	lastFingerprint string
	published       bool
}

// New creates a Pipeline reading from source and writing to sink.
func New(source Updates, sink AlertSink, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		source:  source,
		sink:    sink,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once the pipeline has published at least one batch.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no alert batch published yet")
	}
	return nil
}

// Run publishes until the context is cancelled or the session closes.
func (p *Pipeline) Run(ctx context.Context) error {
	updates, cancel := p.source.Subscribe()
	defer cancel()

	p.logger.Info("alert publisher started")
	p.metrics.PublisherRunning.Set(1)
	defer p.metrics.PublisherRunning.Set(0)

	// Exponential backoff: start at 200ms, double each retry, cap at 5s.
	backoff := 200 * time.Millisecond
	maxBackoff := 5 * time.Second

	var pending *tracking.ReadModel
	for {
		if pending == nil {
			select {
			case <-ctx.Done():
				p.logger.Info("alert publisher stopping", "reason", ctx.Err())
				return nil
			case rm, ok := <-updates:
				if !ok {
					p.logger.Info("alert publisher stopping", "reason", "session closed")
					return nil
				}
				pending = &rm
			}
		}

		if err := p.publish(ctx, *pending); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error("publish alert batch failed", "error", err)
			p.metrics.AlertPublishErrors.Inc()
			if !p.backoffOrStop(ctx, &backoff, maxBackoff) {
				return nil
			}
			// A newer read model supersedes the failed batch.
			select {
			case rm, ok := <-updates:
				if !ok {
					return nil
				}
				pending = &rm
			default:
			}
			continue
		}
		pending = nil
		backoff = 200 * time.Millisecond
	}
}

// publish sends the batch for rm unless it carries the same alerted set as
// the last published one.
func (p *Pipeline) publish(ctx context.Context, rm tracking.ReadModel) error {
	if rm.Position == nil {
		return nil
	}
	batch := domain.NewAlertBatch(rm.SessionID, *rm.Position, rm.Alerts)
	fp := batch.Fingerprint()
	if p.published && fp == p.lastFingerprint {
		return nil
	}

	if err := p.sink.Publish(ctx, batch); err != nil {
		return err
	}

	p.published = true
	p.lastFingerprint = fp
	p.metrics.AlertBatchesPublished.Inc()
	p.ready.Store(true)
	p.logger.Debug("alert batch published", "alerts", len(batch.Alerts), "closest_tier", batch.ClosestTier)
	return nil
}

// backoffOrStop sleeps with the current backoff and advances it. Returns
// false if the pipeline should stop.
func (p *Pipeline) backoffOrStop(ctx context.Context, backoff *time.Duration, maxBackoff time.Duration) bool {
	if !retry.SleepWithContext(ctx, *backoff) {
		return false
	}
	*backoff = retry.NextBackoff(*backoff, maxBackoff)
	return true
}

// NopSink discards batches. It is used when no alert sink is configured.
type NopSink struct{}

func (NopSink) Publish(context.Context, domain.AlertBatch) error { return nil }
