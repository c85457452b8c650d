// Package service coordinates route analysis requests with the hazard
// catalogue and the tracking session.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/Rajdeep-017/suraksha-net/internal/adapter/routeapi"
	"github.com/Rajdeep-017/suraksha-net/internal/domain"
	"github.com/Rajdeep-017/suraksha-net/internal/tracking"
)

// HotspotPaddingDeg widens a route's bounding box when looking up hotspots.
const HotspotPaddingDeg = 0.1

// HazardFinder looks up known hazards inside a bounding box.
type HazardFinder interface {
	NearRoute(ctx context.Context, bounds domain.Bounds, limit int) ([]domain.HazardPoint, error)
}

// Navigator requests route analyses and installs them in the session.
type Navigator struct {
	analyzer    routeapi.Analyzer
	hazards     HazardFinder
	session     *tracking.Session
	hazardLimit int
	logger      *slog.Logger
}

// NewNavigator creates a Navigator. hazards may be nil when no catalogue is configured.
func NewNavigator(analyzer routeapi.Analyzer, hazards HazardFinder, session *tracking.Session, hazardLimit int, logger *slog.Logger) *Navigator {
	return &Navigator{
		analyzer:    analyzer,
		hazards:     hazards,
		session:     session,
		hazardLimit: hazardLimit,
		logger:      logger,
	}
}

// Analyze fetches routes for q, fills in catalogue hazards when the analysis
// carries none, and applies the result to the session.
func (n *Navigator) Analyze(ctx context.Context, q routeapi.Query) (domain.RouteAnalysis, error) {
	analysis, err := n.analyzer.Analyze(ctx, q)
	if err != nil {
		return domain.RouteAnalysis{}, fmt.Errorf("analyze route: %w", err)
	}

	if len(analysis.Hazards) == 0 && n.hazards != nil {
		bounds, ok := domain.RouteBounds(analysis.Routes)
		if !ok {
			bounds = domain.Bounds{
				MinLat: math.Min(q.OriginLat, q.DestLat),
				MaxLat: math.Max(q.OriginLat, q.DestLat),
				MinLng: math.Min(q.OriginLng, q.DestLng),
				MaxLng: math.Max(q.OriginLng, q.DestLng),
			}
		}
		hazards, err := n.hazards.NearRoute(ctx, bounds.Pad(HotspotPaddingDeg), n.hazardLimit)
		if err != nil {
			n.logger.Warn("hotspot lookup failed, continuing without hazards", "error", err)
		} else {
			analysis.Hazards = hazards
		}
	}

	n.session.ApplyAnalysis(analysis)
	return analysis, nil
}
