// Package tracking runs one driver's tracking session: it feeds position
// fixes and route analyses into the proximity and ranking logic and keeps the
// read model that presentation layers query.
package tracking

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/Rajdeep-017/suraksha-net/internal/domain"
	"github.com/Rajdeep-017/suraksha-net/internal/observability"
	"github.com/Rajdeep-017/suraksha-net/internal/position"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// PositionSource starts position subscriptions. *position.Stream satisfies it.
type PositionSource interface {
	Start(onSample func(domain.PositionSample), onError func(error), opts position.Options) (*position.Subscription, error)
}

// Session is the orchestrator for a single tracking session. All methods are
// safe for concurrent use.
type Session struct {
	id       string
	source   PositionSource
	settings Settings
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu         sync.Mutex
	sub        *position.Subscription
	generation uint64
	tracking   bool
	err        error

	position  domain.PositionSample
	hasFix    bool
	hazards   []domain.HazardPoint
	inRadius  []domain.ProximityAlert
	visible   []domain.ProximityAlert
	dismissed map[string]struct{}
	selection domain.SelectionState
	version   uint64

	subscribers map[int]chan ReadModel
	nextSubID   int
}

// New creates an idle session reading positions from source.
func New(source PositionSource, settings Settings, logger *slog.Logger, metrics *observability.Metrics) *Session {
	id := uuid.NewString()
	return &Session{
		id:          id,
		source:      source,
		settings:    settings.withDefaults(),
		clock:       clockwork.NewRealClock(),
		logger:      logger.With("session_id", id),
		metrics:     metrics,
		dismissed:   make(map[string]struct{}),
		subscribers: make(map[int]chan ReadModel),
	}
}

// WithClock sets the clock used to time alert computation.
func (s *Session) WithClock(c clockwork.Clock) *Session {
	s.clock = c
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Settings returns the effective session settings.
func (s *Session) Settings() Settings { return s.settings }

// Enable starts tracking. It is a no-op while tracking is already active and
// clears any previous position error.
func (s *Session) Enable() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tracking {
		return nil
	}

	s.generation++
	gen := s.generation
	sub, err := s.source.Start(
		func(sample domain.PositionSample) { s.applySample(gen, sample) },
		func(err error) { s.fail(gen, err) },
		s.settings.Position,
	)
	if err != nil {
		return err
	}

	s.sub = sub
	s.tracking = true
	s.err = nil
	s.metrics.TrackingActive.Set(1)
	s.logger.Info("tracking enabled")
	s.notifyLocked()

	go s.awaitEnd(gen, sub)
	return nil
}

// awaitEnd marks tracking inactive when the provider runs out of fixes.
func (s *Session) awaitEnd(gen uint64, sub *position.Subscription) {
	<-sub.Done()

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation {
		return
	}
	s.generation++
	s.tracking = false
	s.sub = nil
	s.metrics.TrackingActive.Set(0)
	s.logger.Info("position source exhausted")
	s.notifyLocked()
}

// Disable stops tracking and releases the position subscription before
// returning. A callback racing the disable is ignored.
func (s *Session) Disable() {
	s.mu.Lock()
	sub := s.sub
	wasTracking := s.tracking
	s.sub = nil
	s.tracking = false
	s.generation++
	if wasTracking {
		s.metrics.TrackingActive.Set(0)
		s.logger.Info("tracking disabled")
		s.notifyLocked()
	}
	s.mu.Unlock()

	if sub != nil {
		sub.Release()
	}
}

func (s *Session) applySample(gen uint64, sample domain.PositionSample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return
	}
	if s.hasFix && !sample.Timestamp.IsZero() && !s.position.Timestamp.IsZero() &&
		sample.Timestamp.Before(s.position.Timestamp) {
		s.metrics.SamplesOutOfOrder.Inc()
		s.logger.Debug("discarding out-of-order position sample",
			"sample_time", sample.Timestamp, "applied_time", s.position.Timestamp)
		return
	}

	s.position = sample
	s.hasFix = true
	s.recomputeLocked()
	s.notifyLocked()
}

func (s *Session) fail(gen uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if gen != s.generation {
		return
	}
	s.generation++
	s.err = err
	s.tracking = false
	s.sub = nil
	s.metrics.TrackingActive.Set(0)
	s.logger.Warn("tracking stopped by position error", "error", err)
	s.notifyLocked()
}

// recomputeLocked derives the visible alert set from the current fix,
// hazard snapshot and dismissals.
func (s *Session) recomputeLocked() {
	if !s.hasFix {
		s.inRadius = nil
		s.visible = nil
		s.metrics.ActiveAlerts.Set(0)
		return
	}

	start := s.clock.Now()
	all := domain.ComputeAlerts(s.position, s.hazards, s.settings.RadiusKm)
	s.metrics.AlertComputeDuration.Observe(s.clock.Since(start).Seconds())

	if s.settings.Dismissal == domain.DismissResetOnExit {
		for id := range s.dismissed {
			if !slices.ContainsFunc(all, func(a domain.ProximityAlert) bool { return a.HazardID == id }) {
				delete(s.dismissed, id)
			}
		}
	}

	previous := make(map[string]struct{}, len(s.visible))
	for _, a := range s.visible {
		previous[a.HazardID] = struct{}{}
	}

	visible := make([]domain.ProximityAlert, 0, len(all))
	for _, a := range all {
		if _, ok := s.dismissed[a.HazardID]; ok {
			continue
		}
		if _, ok := previous[a.HazardID]; !ok {
			s.metrics.AlertsRaised.WithLabelValues(string(a.Tier)).Inc()
		}
		visible = append(visible, a)
	}

	s.inRadius = all
	s.visible = visible
	s.metrics.ActiveAlerts.Set(float64(len(visible)))
}

// SetHazards replaces the hazard snapshot and recomputes alerts for the current fix.
func (s *Session) SetHazards(hazards []domain.HazardPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hazards = slices.Clone(hazards)
	s.recomputeLocked()
	s.notifyLocked()
}

// ApplyAnalysis installs a new route analysis. Routes are ranked with the
// session strategy, the selection resets to the recommended route, and the
// analysis hazards replace the current snapshot.
func (s *Session) ApplyAnalysis(analysis domain.RouteAnalysis) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selection = domain.NewSelectionState(domain.Rank(analysis.Routes, s.settings.Rank))
	s.hazards = slices.Clone(analysis.Hazards)
	s.recomputeLocked()
	s.metrics.RouteAnalyses.Inc()
	s.logger.Info("route analysis applied",
		"routes", len(s.selection.Routes), "hazards", len(s.hazards))
	s.notifyLocked()
}

// SelectRoute selects the route at index. Out-of-range indexes return
// domain.ErrRouteIndexOutOfRange and leave the selection unchanged.
func (s *Session) SelectRoute(index int) (domain.Selection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.selection.Select(index)
	if err != nil {
		return domain.Selection{}, err
	}
	s.selection = next
	s.metrics.RouteSelections.Inc()
	if next.Warning != nil {
		s.metrics.RouteWarnings.Inc()
		s.logger.Info("high-risk route selected",
			"route", next.Warning.RouteName, "risk", next.Warning.RiskPercentageLabel)
	}
	s.notifyLocked()
	return domain.Selection{SelectedIndex: next.SelectedIndex, Warning: next.Warning}, nil
}

// Dismiss suppresses alerts for the given hazard ids.
func (s *Session) Dismiss(ids ...string) {
	if len(ids) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range ids {
		s.dismissed[id] = struct{}{}
	}
	s.recomputeLocked()
	s.notifyLocked()
}

// DismissVisible dismisses every currently visible alert and returns their ids.
func (s *Session) DismissVisible() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.visible))
	for _, a := range s.visible {
		s.dismissed[a.HazardID] = struct{}{}
		ids = append(ids, a.HazardID)
	}
	if len(ids) > 0 {
		s.recomputeLocked()
		s.notifyLocked()
	}
	return ids
}

// ClearDismissed forgets all dismissals.
func (s *Session) ClearDismissed() {
	s.mu.Lock()
	defer s.mu.Unlock()

	clear(s.dismissed)
	s.recomputeLocked()
	s.notifyLocked()
}

// Alerts returns the visible alerts, nearest first.
func (s *Session) Alerts() []domain.ProximityAlert {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.visible)
}

// DistanceFromUser returns the distance in km from the current fix to a
// point. It reports false until a fix has been applied.
func (s *Session) DistanceFromUser(lat, lng float64) (float64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasFix {
		return 0, false
	}
	return domain.DistanceFromPosition(s.position, lat, lng), true
}

// Selection returns the route selection state.
func (s *Session) Selection() domain.SelectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection
}

// Warning returns the high-risk warning for the selected route, if any.
func (s *Session) Warning() *domain.RouteWarning {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selection.Warning
}

// Position returns the last applied fix.
func (s *Session) Position() (domain.PositionSample, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position, s.hasFix
}

// Hazards returns the current hazard snapshot.
func (s *Session) Hazards() []domain.HazardPoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.hazards)
}

// Tracking reports whether a position subscription is active.
func (s *Session) Tracking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracking
}

// Err returns the position error that stopped tracking, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// CheckReadiness returns nil while tracking is active.
func (s *Session) CheckReadiness(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tracking {
		return nil
	}
	if s.err != nil {
		return s.err
	}
	return errors.New("tracking is not active")
}

// Close stops tracking and closes all read-model subscriptions.
func (s *Session) Close() {
	s.Disable()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
}
