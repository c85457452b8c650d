package position

import (
	"context"
	"errors"
	"sync"

	"github.com/Rajdeep-017/suraksha-net/internal/domain"
)

// ErrNotWatching is returned by Push when no subscription is active.
var ErrNotWatching = errors.New("no active position subscription")

// Push is a provider fed by an external client, such as a phone posting its
// fixes over HTTP. The most recent Watch call receives published fixes.
type Push struct {
	mu      sync.Mutex
	current *pushWatch
}

type pushWatch struct {
	emit func(domain.PositionSample)
	fail chan error
}

// NewPush creates an idle Push provider.
func NewPush() *Push {
	return &Push{}
}

// Watch registers emit as the receiver of published fixes until ctx is
// cancelled or the client reports a failure.
func (p *Push) Watch(ctx context.Context, _ Options, emit func(domain.PositionSample)) error {
	w := &pushWatch{emit: emit, fail: make(chan error, 1)}

	p.mu.Lock()
	p.current = w
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		if p.current == w {
			p.current = nil
		}
		p.mu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-w.fail:
		return err
	}
}

// Publish forwards a client fix to the active subscription.
func (p *Push) Publish(sample domain.PositionSample) error {
	p.mu.Lock()
	w := p.current
	p.mu.Unlock()
	if w == nil {
		return ErrNotWatching
	}
	w.emit(sample)
	return nil
}

// Fail reports a client-side location failure, ending the active subscription.
func (p *Push) Fail(err error) error {
	p.mu.Lock()
	w := p.current
	p.mu.Unlock()
	if w == nil {
		return ErrNotWatching
	}
	select {
	case w.fail <- err:
	default:
	}
	return nil
}

// Watching reports whether a subscription is currently registered.
func (p *Push) Watching() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current != nil
}
