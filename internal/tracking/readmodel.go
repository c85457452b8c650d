package tracking

import (
	"errors"
	"maps"
	"slices"

	"github.com/Rajdeep-017/suraksha-net/internal/domain"
)

// ReadModel is a point-in-time copy of everything a presentation layer renders.
type ReadModel struct {
	SessionID     string                  `json:"session_id"`
	Version       uint64                  `json:"version"`
	Tracking      bool                    `json:"tracking"`
	Error         string                  `json:"error,omitempty"`
	ErrorCode     string                  `json:"error_code,omitempty"`
	Position      *domain.PositionSample  `json:"position,omitempty"`
	SpeedKmh      *int                    `json:"speed_kmh,omitempty"`
	Alerts        []domain.ProximityAlert `json:"alerts"`
	Dismissed     []string                `json:"dismissed"`
	HazardCount   int                     `json:"hazard_count"`
	Routes        []domain.RouteOption    `json:"routes"`
	SelectedIndex int                     `json:"selected_index"`
	Warning       *domain.RouteWarning    `json:"warning,omitempty"`
}

// Snapshot returns the current read model.
func (s *Session) Snapshot() ReadModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Session) snapshotLocked() ReadModel {
	rm := ReadModel{
		SessionID:     s.id,
		Version:       s.version,
		Tracking:      s.tracking,
		Alerts:        slices.Clone(s.visible),
		Dismissed:     slices.Sorted(maps.Keys(s.dismissed)),
		HazardCount:   len(s.hazards),
		Routes:        s.selection.Routes,
		SelectedIndex: s.selection.SelectedIndex,
		Warning:       s.selection.Warning,
	}
	if rm.Alerts == nil {
		rm.Alerts = []domain.ProximityAlert{}
	}
	if rm.Dismissed == nil {
		rm.Dismissed = []string{}
	}
	if rm.Routes == nil {
		rm.Routes = []domain.RouteOption{}
	}
	if s.hasFix {
		p := s.position
		rm.Position = &p
		if kmh, ok := p.SpeedKmh(); ok {
			rm.SpeedKmh = &kmh
		}
	}
	if s.err != nil {
		rm.Error = s.err.Error()
		var pe *domain.PositionError
		if errors.As(s.err, &pe) {
			rm.ErrorCode = pe.Code.String()
		}
	}
	return rm
}

// Subscribe returns a channel receiving a read model after every change,
// starting with the current one. Slow readers only see the latest model.
// Call cancel to unsubscribe.
func (s *Session) Subscribe() (<-chan ReadModel, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan ReadModel, 1)
	ch <- s.snapshotLocked()
	s.subscribers[id] = ch

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subscribers[id]; ok {
			close(c)
			delete(s.subscribers, id)
		}
	}
	return ch, cancel
}

func (s *Session) notifyLocked() {
	s.version++
	if len(s.subscribers) == 0 {
		return
	}
	rm := s.snapshotLocked()
	for _, ch := range s.subscribers {
		select {
		case <-ch:
		default:
		}
		ch <- rm
	}
}
