package position

import (
	"context"
	"time"

	"github.com/Rajdeep-017/suraksha-net/internal/domain"
	"github.com/jonboulle/clockwork"
)

// Replay plays back a recorded track, one fix per Interval.
type Replay struct {
	samples  []domain.PositionSample
	interval time.Duration
	clock    clockwork.Clock
	restamp  bool
}

// NewReplay creates a provider over samples. When restamp is true each fix is
// stamped with the replay time so recorded tracks pass the maximum-age check.
func NewReplay(samples []domain.PositionSample, interval time.Duration, restamp bool) *Replay {
	return &Replay{
		samples:  samples,
		interval: interval,
		clock:    clockwork.NewRealClock(),
		restamp:  restamp,
	}
}

// WithClock sets the clock used for pacing and restamping.
func (r *Replay) WithClock(c clockwork.Clock) *Replay {
	r.clock = c
	return r
}

// Watch emits the recorded fixes and returns nil once the track is exhausted.
func (r *Replay) Watch(ctx context.Context, _ Options, emit func(domain.PositionSample)) error {
	for i, sample := range r.samples {
		if i > 0 && r.interval > 0 {
			select {
			case <-ctx.Done():
				return nil
			case <-r.clock.After(r.interval):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
		if r.restamp {
			sample.Timestamp = r.clock.Now().UTC()
		}
		emit(sample)
	}
	return nil
}
