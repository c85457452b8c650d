package position_test

import (
	"testing"
	"time"

	"github.com/Rajdeep-017/suraksha-net/internal/domain"
	"github.com/Rajdeep-017/suraksha-net/internal/position"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPush_PublishWithoutSubscription(t *testing.T) {
	p := position.NewPush()
	require.ErrorIs(t, p.Publish(sampleAt(1)), position.ErrNotWatching)
	require.ErrorIs(t, p.Fail(domain.ErrPermissionDenied), position.ErrNotWatching)
	assert.False(t, p.Watching())
}

func TestPush_ForwardsToStream(t *testing.T) {
	p := position.NewPush()
	s, _ := newStream(p, 8)
	rec := &recorder{}

	sub, err := s.Start(rec.onSample, rec.onError, noLimits())
	require.NoError(t, err)
	defer sub.Release()

	require.Eventually(t, p.Watching, time.Second, time.Millisecond)
	require.NoError(t, p.Publish(sampleAt(1)))
	require.NoError(t, p.Publish(sampleAt(2)))

	require.Eventually(t, func() bool { return len(rec.lats()) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []float64{1, 2}, rec.lats())

	sub.Release()
	require.Eventually(t, func() bool { return !p.Watching() }, time.Second, time.Millisecond)
}

func TestPush_FailEndsSubscription(t *testing.T) {
	p := position.NewPush()
	s, _ := newStream(p, 8)
	rec := &recorder{}

	sub, err := s.Start(rec.onSample, rec.onError, noLimits())
	require.NoError(t, err)
	require.Eventually(t, p.Watching, time.Second, time.Millisecond)

	require.NoError(t, p.Fail(domain.ErrPermissionDenied))
	waitDone(t, sub)

	errs := rec.errors()
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], domain.ErrPermissionDenied)
}
