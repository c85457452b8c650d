package tracking_test

import (
	"io"
	"log/slog"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Rajdeep-017/suraksha-net/internal/domain"
	"github.com/Rajdeep-017/suraksha-net/internal/observability"
	"github.com/Rajdeep-017/suraksha-net/internal/position"
	"github.com/Rajdeep-017/suraksha-net/internal/tracking"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	discard    = slog.New(slog.NewTextHandler(io.Discard, nil))
	kmPerDeg   = domain.EarthRadiusKm * math.Pi / 180
	start      = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	waitFor    = 2 * time.Second
	pollEvery  = time.Millisecond
	punePoint  = [2]float64{18.5204, 73.8567}
	farAwayLat = 19.5
)

func newSession(t *testing.T, settings tracking.Settings) (*tracking.Session, *position.Push, *observability.Metrics) {
	t.Helper()
	m := observability.NewMetricsForTesting()
	push := position.NewPush()
	stream := position.NewStream(push, discard, m, 16)
	s := tracking.New(stream, settings, discard, m)
	t.Cleanup(s.Close)
	return s, push, m
}

func startTracking(t *testing.T, s *tracking.Session, push *position.Push) {
	t.Helper()
	require.NoError(t, s.Enable())
	require.Eventually(t, push.Watching, waitFor, pollEvery)
}

func fix(lat float64, at time.Duration) domain.PositionSample {
	return domain.PositionSample{Lat: lat, Lng: punePoint[1], AccuracyMeters: 5, Timestamp: start.Add(at)}
}

func moveTo(t *testing.T, s *tracking.Session, push *position.Push, sample domain.PositionSample) {
	t.Helper()
	require.NoError(t, push.Publish(sample))
	require.Eventually(t, func() bool {
		p, ok := s.Position()
		return ok && p.Lat == sample.Lat && p.Timestamp.Equal(sample.Timestamp)
	}, waitFor, pollEvery)
}

func hazardAt(id string, kmNorth float64) domain.HazardPoint {
	return domain.HazardPoint{ID: id, Lat: punePoint[0] + kmNorth/kmPerDeg, Lng: punePoint[1]}
}

func alertIDs(alerts []domain.ProximityAlert) []string {
	ids := make([]string, len(alerts))
	for i, a := range alerts {
		ids[i] = a.HazardID
	}
	return ids
}

func routes(risks ...string) []domain.RouteOption {
	out := make([]domain.RouteOption, len(risks))
	for i, r := range risks {
		out[i] = domain.RouteOption{Name: "route-" + r, RiskPercentageLabel: r}
	}
	return out
}

// --- tests ---

func TestSession_AlertsFollowPosition(t *testing.T) {
	s, push, m := newSession(t, tracking.Settings{RadiusKm: 0.5})
	s.SetHazards([]domain.HazardPoint{
		hazardAt("far", 0.6),
		hazardAt("warn", 0.4),
		hazardAt("near", 0.1),
		hazardAt("mid", 0.2),
	})
	assert.Empty(t, s.Alerts())

	startTracking(t, s, push)
	moveTo(t, s, push, fix(punePoint[0], 0))

	alerts := s.Alerts()
	assert.Equal(t, []string{"near", "mid", "warn"}, alertIDs(alerts))
	assert.Equal(t, domain.TierImmediate, alerts[0].Tier)
	assert.Equal(t, domain.TierUrgent, alerts[1].Tier)
	assert.Equal(t, domain.TierWarning, alerts[2].Tier)
	assert.InDelta(t, 3, testutil.ToFloat64(m.ActiveAlerts), 0)

	km, ok := s.DistanceFromUser(alerts[0].Hazard.Lat, alerts[0].Hazard.Lng)
	require.True(t, ok)
	assert.InDelta(t, 0.1, km, 1e-6)

	moveTo(t, s, push, fix(farAwayLat, time.Second))
	assert.Empty(t, s.Alerts())
}

func TestSession_DistanceFromUserWithoutFix(t *testing.T) {
	s, _, _ := newSession(t, tracking.Settings{})
	_, ok := s.DistanceFromUser(punePoint[0], punePoint[1])
	assert.False(t, ok)
}

func TestSession_DiscardsOutOfOrderSamples(t *testing.T) {
	s, push, m := newSession(t, tracking.Settings{})
	startTracking(t, s, push)

	newer := fix(punePoint[0], 10*time.Second)
	moveTo(t, s, push, newer)

	require.NoError(t, push.Publish(fix(farAwayLat, 5*time.Second)))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.SamplesOutOfOrder) == 1
	}, waitFor, pollEvery)

	p, ok := s.Position()
	require.True(t, ok)
	assert.InDelta(t, newer.Lat, p.Lat, 0)
}

func TestSession_StickyDismissal(t *testing.T) {
	s, push, _ := newSession(t, tracking.Settings{Dismissal: domain.DismissSticky})
	s.SetHazards([]domain.HazardPoint{hazardAt("h1", 0.1), hazardAt("h2", 0.2)})
	startTracking(t, s, push)
	moveTo(t, s, push, fix(punePoint[0], 0))

	s.Dismiss("h1")
	assert.Equal(t, []string{"h2"}, alertIDs(s.Alerts()))

	moveTo(t, s, push, fix(farAwayLat, time.Second))
	moveTo(t, s, push, fix(punePoint[0], 2*time.Second))
	assert.Equal(t, []string{"h2"}, alertIDs(s.Alerts()))
	assert.Equal(t, []string{"h1"}, s.Snapshot().Dismissed)

	s.ClearDismissed()
	assert.Equal(t, []string{"h1", "h2"}, alertIDs(s.Alerts()))
}

func TestSession_ResetOnExitDismissal(t *testing.T) {
	s, push, _ := newSession(t, tracking.Settings{Dismissal: domain.DismissResetOnExit})
	s.SetHazards([]domain.HazardPoint{hazardAt("h1", 0.1), hazardAt("h2", 0.2)})
	startTracking(t, s, push)
	moveTo(t, s, push, fix(punePoint[0], 0))

	s.Dismiss("h1")
	assert.Equal(t, []string{"h2"}, alertIDs(s.Alerts()))

	moveTo(t, s, push, fix(farAwayLat, time.Second))
	assert.Empty(t, s.Snapshot().Dismissed)

	moveTo(t, s, push, fix(punePoint[0], 2*time.Second))
	assert.Equal(t, []string{"h1", "h2"}, alertIDs(s.Alerts()))
}

func TestSession_DismissVisible(t *testing.T) {
	s, push, _ := newSession(t, tracking.Settings{})
	s.SetHazards([]domain.HazardPoint{hazardAt("h1", 0.1), hazardAt("h2", 0.2)})
	startTracking(t, s, push)
	moveTo(t, s, push, fix(punePoint[0], 0))

	assert.Equal(t, []string{"h1", "h2"}, s.DismissVisible())
	assert.Empty(t, s.Alerts())
	assert.Empty(t, s.DismissVisible())
}

func TestSession_NewAnalysisResetsSelection(t *testing.T) {
	s, _, m := newSession(t, tracking.Settings{})
	assert.False(t, s.Selection().HasRoutes())

	s.ApplyAnalysis(domain.RouteAnalysis{Routes: routes("15%", "30%", "55%")})
	sel, err := s.SelectRoute(2)
	require.NoError(t, err)
	require.NotNil(t, sel.Warning)
	assert.Equal(t, "55%", sel.Warning.RiskPercentageLabel)
	assert.Equal(t, 2, s.Selection().SelectedIndex)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RouteWarnings), 0)

	s.ApplyAnalysis(domain.RouteAnalysis{
		Routes:  routes("10%", "60%"),
		Hazards: []domain.HazardPoint{hazardAt("h1", 0.1)},
	})
	assert.Equal(t, 0, s.Selection().SelectedIndex)
	assert.Nil(t, s.Warning())
	assert.Len(t, s.Selection().Routes, 2)
	assert.Len(t, s.Hazards(), 1)
}

func TestSession_SelectRouteOutOfRange(t *testing.T) {
	s, _, _ := newSession(t, tracking.Settings{})
	s.ApplyAnalysis(domain.RouteAnalysis{Routes: routes("15%", "55%")})
	_, err := s.SelectRoute(1)
	require.NoError(t, err)

	_, err = s.SelectRoute(5)
	require.ErrorIs(t, err, domain.ErrRouteIndexOutOfRange)
	assert.Equal(t, 1, s.Selection().SelectedIndex)
	assert.NotNil(t, s.Warning())
}

func TestSession_RankByRisk(t *testing.T) {
	s, _, _ := newSession(t, tracking.Settings{Rank: domain.RankByRisk})
	in := routes("40%", "10%")
	in[0].AverageRisk = 0.4
	in[1].AverageRisk = 0.1
	s.ApplyAnalysis(domain.RouteAnalysis{Routes: in})

	got := s.Selection().Routes
	require.Len(t, got, 2)
	assert.Equal(t, "route-10%", got[0].Name)
	assert.Equal(t, 0, got[0].Index)
}

func TestSession_PositionErrorStopsTracking(t *testing.T) {
	s, push, m := newSession(t, tracking.Settings{})
	startTracking(t, s, push)
	require.NoError(t, s.CheckReadiness(t.Context()))

	require.NoError(t, push.Fail(domain.ErrPermissionDenied))
	require.Eventually(t, func() bool { return !s.Tracking() }, waitFor, pollEvery)

	require.ErrorIs(t, s.Err(), domain.ErrPermissionDenied)
	assert.Equal(t, "permission_denied", s.Snapshot().ErrorCode)
	require.Error(t, s.CheckReadiness(t.Context()))
	assert.InDelta(t, 0, testutil.ToFloat64(m.TrackingActive), 0)

	startTracking(t, s, push)
	assert.NoError(t, s.Err())
	assert.True(t, s.Tracking())
}

func TestSession_DisableStopsUpdatesWhileSamplesRace(t *testing.T) {
	s, push, _ := newSession(t, tracking.Settings{})
	startTracking(t, s, push)
	moveTo(t, s, push, fix(punePoint[0], 0))

	var stop atomic.Bool
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 1; !stop.Load(); i++ {
			_ = push.Publish(fix(punePoint[0]+float64(i)*1e-5, time.Duration(i)*time.Millisecond))
		}
	}()

	time.Sleep(5 * time.Millisecond)
	s.Disable()
	version := s.Snapshot().Version
	pos, _ := s.Position()

	time.Sleep(30 * time.Millisecond)
	stop.Store(true)
	<-done

	assert.False(t, s.Tracking())
	assert.Equal(t, version, s.Snapshot().Version)
	after, _ := s.Position()
	assert.Equal(t, pos, after)
	require.Eventually(t, func() bool { return !push.Watching() }, waitFor, pollEvery)
}

func TestSession_ReplayExhaustionEndsTracking(t *testing.T) {
	m := observability.NewMetricsForTesting()
	replay := position.NewReplay([]domain.PositionSample{fix(punePoint[0], 0)}, 0, false)
	s := tracking.New(position.NewStream(replay, discard, m, 4), tracking.Settings{}, discard, m)
	t.Cleanup(s.Close)

	require.NoError(t, s.Enable())
	require.Eventually(t, func() bool { return !s.Tracking() }, waitFor, pollEvery)
	_, ok := s.Position()
	assert.True(t, ok)
	assert.NoError(t, s.Err())
}

func TestSession_Subscribe(t *testing.T) {
	s, _, _ := newSession(t, tracking.Settings{})
	updates, cancel := s.Subscribe()

	first := <-updates
	assert.Equal(t, s.ID(), first.SessionID)
	assert.Equal(t, 0, first.HazardCount)
	assert.Empty(t, first.Alerts)

	s.SetHazards([]domain.HazardPoint{hazardAt("h1", 0.1)})
	s.SetHazards([]domain.HazardPoint{hazardAt("h1", 0.1), hazardAt("h2", 0.2)})

	latest := <-updates
	assert.Equal(t, 2, latest.HazardCount)
	assert.Greater(t, latest.Version, first.Version)

	cancel()
	_, open := <-updates
	assert.False(t, open)
	cancel()
}

func TestSession_NonFiniteRadiusFallsBackToDefault(t *testing.T) {
	for _, radius := range []float64{math.NaN(), math.Inf(1)} {
		s, push, _ := newSession(t, tracking.Settings{RadiusKm: radius})
		assert.InDelta(t, domain.DefaultAlertRadiusKm, s.Settings().RadiusKm, 0)

		s.SetHazards([]domain.HazardPoint{hazardAt("on-top", 0)})
		startTracking(t, s, push)
		moveTo(t, s, push, fix(punePoint[0], 0))

		assert.Equal(t, []string{"on-top"}, alertIDs(s.Alerts()))
	}
}
