// Package position turns a platform location provider into an ordered,
// cancellable stream of position samples.
package position

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Rajdeep-017/suraksha-net/internal/domain"
	"github.com/Rajdeep-017/suraksha-net/internal/observability"
	"github.com/jonboulle/clockwork"
)

// DefaultQueueSize bounds the samples buffered between provider and consumer.
const DefaultQueueSize = 16

// Options configures one subscription.
type Options struct {
	// MaximumAge discards fixes older than this when they are consumed. Zero accepts any age.
	MaximumAge time.Duration
	// Timeout fails the stream when no fix is accepted within this window. Zero disables it.
	Timeout time.Duration
	// HighAccuracy asks the provider for precise fixes at higher power cost.
	HighAccuracy bool
}

// DefaultOptions mirrors the settings used for in-vehicle tracking.
func DefaultOptions() Options {
	return Options{MaximumAge: 5 * time.Second, Timeout: 10 * time.Second, HighAccuracy: true}
}

// Provider is a platform location service. Watch pushes fixes through emit
// until ctx is cancelled, then returns nil. Returning nil before ctx is done
// means the provider has no more fixes. Any other error ends the stream.
type Provider interface {
	Watch(ctx context.Context, opts Options, emit func(domain.PositionSample)) error
}

// Stream starts subscriptions against a Provider.
type Stream struct {
	provider  Provider
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	queueSize int
}

// NewStream creates a Stream reading from p. A queueSize <= 0 uses DefaultQueueSize.
func NewStream(p Provider, logger *slog.Logger, metrics *observability.Metrics, queueSize int) *Stream {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	return &Stream{
		provider:  p,
		clock:     clockwork.NewRealClock(),
		logger:    logger,
		metrics:   metrics,
		queueSize: queueSize,
	}
}

// WithClock replaces the time source used for sample ages and the fix timeout.
func (s *Stream) WithClock(c clockwork.Clock) *Stream {
	s.clock = c
	return s
}

type event struct {
	sample domain.PositionSample
	err    error
	end    bool
}

// Subscription is the handle returned by Start. Releasing it stops the
// provider and guarantees no callback starts afterwards.
type Subscription struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu         sync.Mutex // held while a callback runs
	released   atomic.Bool
	inCallback atomic.Bool
}

// Release stops the subscription. It is safe to call more than once and from
// inside a callback. When called from another goroutine it waits for a
// callback that has not yet started to be ruled out.
func (sub *Subscription) Release() {
	if !sub.released.CompareAndSwap(false, true) {
		return
	}
	sub.cancel()
	if !sub.inCallback.Load() {
		sub.mu.Lock()
		sub.mu.Unlock() //nolint:staticcheck // barrier against a callback about to start
	}
}

// Done is closed once the subscription has stopped delivering, whether it
// was released, failed, or the provider ran out of fixes.
func (sub *Subscription) Done() <-chan struct{} {
	return sub.done
}

// Released reports whether no further callbacks can be delivered.
func (sub *Subscription) Released() bool {
	return sub.released.Load()
}

func (sub *Subscription) deliver(fn func()) bool {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.released.Load() {
		return false
	}
	sub.inCallback.Store(true)
	defer sub.inCallback.Store(false)
	fn()
	return true
}

// Start subscribes to the provider. onSample receives accepted fixes in
// arrival order; onError receives at most one terminal *domain.PositionError,
// after which the subscription releases itself.
func (s *Stream) Start(onSample func(domain.PositionSample), onError func(error), opts Options) (*Subscription, error) {
	if onSample == nil || onError == nil {
		return nil, errors.New("position stream requires sample and error callbacks")
	}

	ctx, cancel := context.WithCancel(context.Background())
	sub := &Subscription{cancel: cancel, done: make(chan struct{})}
	queue := make(chan event, s.queueSize)

	push := func(ev event) {
		for {
			select {
			case queue <- ev:
				return
			default:
			}
			select {
			case <-queue:
				s.metrics.SamplesDropped.Inc()
			default:
			}
		}
	}

	emit := func(sample domain.PositionSample) {
		if ctx.Err() != nil {
			return
		}
		s.metrics.SamplesReceived.Inc()
		push(event{sample: sample})
	}

	go func() {
		err := s.provider.Watch(ctx, opts, emit)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			push(event{err: asPositionError(err)})
			return
		}
		push(event{end: true})
	}()

	go s.consume(ctx, sub, queue, onSample, onError, opts)

	s.logger.Info("position stream started",
		"max_age", opts.MaximumAge,
		"timeout", opts.Timeout,
		"high_accuracy", opts.HighAccuracy,
	)
	return sub, nil
}

func (s *Stream) consume(ctx context.Context, sub *Subscription, queue <-chan event, onSample func(domain.PositionSample), onError func(error), opts Options) {
	defer close(sub.done)
	defer sub.cancel()

	var timeout <-chan time.Time
	var timer clockwork.Timer
	if opts.Timeout > 0 {
		timer = s.clock.NewTimer(opts.Timeout)
		defer timer.Stop()
		timeout = timer.Chan()
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-timeout:
			s.fail(sub, onError, domain.NewPositionError(domain.Timeout,
				fmt.Sprintf("no position fix within %s", opts.Timeout), nil))
			return

		case ev := <-queue:
			switch {
			case ev.end:
				s.logger.Info("position provider exhausted")
				sub.released.Store(true)
				return
			case ev.err != nil:
				s.fail(sub, onError, ev.err)
				return
			}

			if !s.accept(ev.sample, opts) {
				continue
			}
			if !sub.deliver(func() { onSample(ev.sample) }) {
				return
			}
			if timer != nil {
				timer.Reset(opts.Timeout)
			}
		}
	}
}

func (s *Stream) accept(sample domain.PositionSample, opts Options) bool {
	if !sample.Valid() {
		s.logger.Warn("discarding position sample with invalid coordinates",
			"lat", sample.Lat, "lng", sample.Lng)
		return false
	}
	if opts.MaximumAge > 0 && !sample.Timestamp.IsZero() {
		if age := s.clock.Since(sample.Timestamp); age > opts.MaximumAge {
			s.metrics.SamplesStale.Inc()
			s.logger.Debug("discarding stale position sample", "age", age)
			return false
		}
	}
	return true
}

func (s *Stream) fail(sub *Subscription, onError func(error), err error) {
	var pe *domain.PositionError
	if errors.As(err, &pe) {
		s.metrics.PositionErrors.WithLabelValues(pe.Code.String()).Inc()
	}
	s.logger.Warn("position stream failed", "error", err)
	sub.deliver(func() { onError(err) })
	sub.released.Store(true)
}

// asPositionError passes PositionErrors through and classifies anything else
// as the position being unavailable.
func asPositionError(err error) error {
	var pe *domain.PositionError
	if errors.As(err, &pe) {
		return err
	}
	return domain.NewPositionError(domain.PositionUnavailable, "location provider failed", err)
}
