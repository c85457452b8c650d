package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Rajdeep-017/suraksha-net/internal/adapter/routeapi"
	"github.com/Rajdeep-017/suraksha-net/internal/domain"
	"github.com/Rajdeep-017/suraksha-net/internal/position"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const maxBodyBytes = 1 << 20

type positionRequest struct {
	Lat       *float64   `json:"lat" validate:"required_without=Error,omitempty,gte=-90,lte=90"`
	Lng       *float64   `json:"lng" validate:"required_without=Error,omitempty,gte=-180,lte=180"`
	Accuracy  float64    `json:"accuracy" validate:"gte=0"`
	Heading   *float64   `json:"heading" validate:"omitempty,gte=0,lt=360"`
	Speed     *float64   `json:"speed" validate:"omitempty,gte=0"`
	Timestamp *time.Time `json:"timestamp"`
	Error     string     `json:"error" validate:"omitempty,oneof=permission_denied position_unavailable timeout"`
}

type dismissRequest struct {
	IDs []string `json:"ids" validate:"dive,required"`
}

type selectRequest struct {
	Index *int `json:"index" validate:"required"`
}

func (s *Server) handleSession(w http.ResponseWriter, _ *http.Request) {
	sharedobs.WriteJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleStartTracking(w http.ResponseWriter, _ *http.Request) {
	if err := s.session.Enable(); err != nil {
		s.logger.Error("enable tracking failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleStopTracking(w http.ResponseWriter, _ *http.Request) {
	s.session.Disable()
	sharedobs.WriteJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handlePushPosition(w http.ResponseWriter, r *http.Request) {
	if s.positions == nil {
		writeError(w, http.StatusConflict, "position source does not accept pushed fixes")
		return
	}

	var req positionRequest
	if !s.decode(w, r, &req) {
		return
	}

	var err error
	if req.Error != "" {
		err = s.positions.Fail(positionErrorFor(req.Error))
	} else {
		sample := domain.PositionSample{
			Lat:            *req.Lat,
			Lng:            *req.Lng,
			AccuracyMeters: req.Accuracy,
			HeadingDegrees: req.Heading,
			SpeedMps:       req.Speed,
			Timestamp:      s.clock.Now().UTC(),
		}
		if req.Timestamp != nil {
			sample.Timestamp = *req.Timestamp
		}
		err = s.positions.Publish(sample)
	}

	if errors.Is(err, position.ErrNotWatching) {
		writeError(w, http.StatusConflict, "tracking is not active")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func positionErrorFor(code string) error {
	switch code {
	case "permission_denied":
		return domain.ErrPermissionDenied
	case "timeout":
		return domain.ErrTimeout
	default:
		return domain.ErrPositionUnavailable
	}
}

func (s *Server) handleAlerts(w http.ResponseWriter, _ *http.Request) {
	alerts := s.session.Alerts()
	if alerts == nil {
		alerts = []domain.ProximityAlert{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, alerts)
}

func (s *Server) handleAlertsGeoJSON(w http.ResponseWriter, _ *http.Request) {
	fc := geojson.NewFeatureCollection()
	for _, a := range s.session.Alerts() {
		f := geojson.NewFeature(orb.Point{a.Hazard.Lng, a.Hazard.Lat})
		f.ID = a.HazardID
		f.Properties["hazard_id"] = a.HazardID
		f.Properties["tier"] = string(a.Tier)
		f.Properties["distance_km"] = a.DistanceKm
		f.Properties["distance"] = a.Distance
		if a.Hazard.Description != "" {
			f.Properties["description"] = a.Hazard.Description
		}
		if a.Hazard.RiskScore != nil {
			f.Properties["risk_score"] = *a.Hazard.RiskScore
		}
		fc.Append(f)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	var req dismissRequest
	if !s.decodeOptional(w, r, &req) {
		return
	}

	ids := req.IDs
	if len(ids) == 0 {
		ids = s.session.DismissVisible()
	} else {
		s.session.Dismiss(ids...)
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string][]string{"dismissed": ids})
}

func (s *Server) handleClearDismissed(w http.ResponseWriter, _ *http.Request) {
	s.session.ClearDismissed()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDistance(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(r.URL.Query().Get("lng"), 64)
	if errLat != nil || errLng != nil || lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		writeError(w, http.StatusBadRequest, "lat and lng query parameters must be valid coordinates")
		return
	}

	km, ok := s.session.DistanceFromUser(lat, lng)
	if !ok {
		writeError(w, http.StatusConflict, "no position fix yet")
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, map[string]any{
		"distance_km": km,
		"distance":    domain.FormatDistance(km),
	})
}

func (s *Server) handleSetHazards(w http.ResponseWriter, r *http.Request) {
	var hazards []domain.HazardPoint
	if !s.decode(w, r, &hazards) {
		return
	}
	s.session.SetHazards(hazards)
	sharedobs.WriteJSON(w, http.StatusOK, map[string]int{"hazards": len(hazards)})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.navigator == nil {
		writeError(w, http.StatusServiceUnavailable, "route analysis is not configured")
		return
	}

	var q routeapi.Query
	if !s.decode(w, r, &q) {
		return
	}

	if _, err := s.navigator.Analyze(r.Context(), q); err != nil {
		if errors.Is(err, routeapi.ErrNoRoutes) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		s.logger.Error("route analysis failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.writeSelection(w)
}

func (s *Server) handleApplyRoutes(w http.ResponseWriter, r *http.Request) {
	var analysis domain.RouteAnalysis
	if !s.decode(w, r, &analysis) {
		return
	}
	s.session.ApplyAnalysis(analysis)
	s.writeSelection(w)
}

func (s *Server) handleRoutes(w http.ResponseWriter, _ *http.Request) {
	s.writeSelection(w)
}

func (s *Server) handleSelectRoute(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !s.decode(w, r, &req) {
		return
	}

	if _, err := s.session.SelectRoute(*req.Index); err != nil {
		if errors.Is(err, domain.ErrRouteIndexOutOfRange) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeSelection(w)
}

func (s *Server) writeSelection(w http.ResponseWriter) {
	sel := s.session.Selection()
	if sel.Routes == nil {
		sel.Routes = []domain.RouteOption{}
	}
	sharedobs.WriteJSON(w, http.StatusOK, sel)
}

// decode reads a JSON body into v and validates structs. It writes a 400
// response and returns false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	return s.decodeBody(w, r, v, false)
}

// decodeOptional is decode for endpoints where an empty body means defaults.
func (s *Server) decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	return s.decodeBody(w, r, v, true)
}

func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any, allowEmpty bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if allowEmpty && errors.Is(err, io.EOF) {
			return true
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON body: %v", err))
		return false
	}

	if err := s.validate.Struct(v); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			// v is not a struct, e.g. a hazard list.
			return true
		}
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, len(verrs))
	for i, fe := range verrs {
		msgs[i] = fmt.Sprintf("%s failed %q", strings.ToLower(fe.Field()), fe.Tag())
	}
	return "validation failed: " + strings.Join(msgs, ", ")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
