// Package routeapi is the client for the route analysis service, which
// returns candidate routes with per-route risk already computed.
package routeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Rajdeep-017/suraksha-net/internal/domain"
	"github.com/Rajdeep-017/suraksha-net/internal/observability"
	"github.com/paulmach/orb"
	"github.com/sony/gobreaker/v2"
	"github.com/twpayne/go-polyline"
)

// ErrNoRoutes is returned when the service found no route between the points.
var ErrNoRoutes = errors.New("route analysis returned no routes")

// Query asks for routes between two points in a city.
type Query struct {
	OriginLat float64 `json:"origin_lat" validate:"gte=-90,lte=90"`
	OriginLng float64 `json:"origin_lon" validate:"gte=-180,lte=180"`
	DestLat   float64 `json:"dest_lat" validate:"gte=-90,lte=90"`
	DestLng   float64 `json:"dest_lon" validate:"gte=-180,lte=180"`
	City      string  `json:"city" validate:"required"`
}

func (q Query) cacheKey() string {
	return fmt.Sprintf("%.6f,%.6f>%.6f,%.6f|%s", q.OriginLat, q.OriginLng, q.DestLat, q.DestLng, q.City)
}

// Analyzer returns a route analysis for a query.
type Analyzer interface {
	Analyze(ctx context.Context, q Query) (domain.RouteAnalysis, error)
}

// Client implements Analyzer against the service's /navigate-safe endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a route analysis client for baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Client {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "route-analysis",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		breaker:    cb,
		metrics:    metrics,
		logger:     logger,
	}
}

// Analyze requests ranked routes for q. Routes come back in the service's
// order: the recommended path first, then the alternatives.
func (c *Client) Analyze(ctx context.Context, q Query) (domain.RouteAnalysis, error) {
	start := time.Now()
	analysis, err := c.analyze(ctx, q)
	c.metrics.AnalysisAPIDuration.Observe(time.Since(start).Seconds())

	switch {
	case errors.Is(err, ErrNoRoutes):
		c.metrics.AnalysisRequests.WithLabelValues("empty").Inc()
	case err != nil:
		c.metrics.AnalysisRequests.WithLabelValues("error").Inc()
	default:
		c.metrics.AnalysisRequests.WithLabelValues("success").Inc()
	}
	return analysis, err
}

func (c *Client) analyze(ctx context.Context, q Query) (domain.RouteAnalysis, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return domain.RouteAnalysis{}, fmt.Errorf("encode request: %w", err)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/navigate-safe", bytes.NewReader(body))
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		r, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if r.StatusCode >= 500 {
			msg, _ := io.ReadAll(io.LimitReader(r.Body, 512))
			r.Body.Close()
			return nil, fmt.Errorf("route API error: status %d: %s", r.StatusCode, msg)
		}
		return r, nil
	})
	if err != nil {
		return domain.RouteAnalysis{}, fmt.Errorf("route analysis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.RouteAnalysis{}, fmt.Errorf("route API error: status %d: %s", resp.StatusCode, msg)
	}

	var out navigateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.RouteAnalysis{}, fmt.Errorf("decode response: %w", err)
	}
	return c.toAnalysis(out)
}

func (c *Client) toAnalysis(out navigateResponse) (domain.RouteAnalysis, error) {
	if out.Recommended == nil {
		return domain.RouteAnalysis{}, ErrNoRoutes
	}

	dtos := append([]routeDTO{*out.Recommended}, out.Alternatives...)
	routes := make([]domain.RouteOption, len(dtos))
	for i, r := range dtos {
		routes[i] = domain.RouteOption{
			Index:               i,
			Name:                r.Name,
			Geometry:            c.decodeGeometry(r.Name, r.Polyline),
			Polyline:            r.Polyline,
			AverageRisk:         r.AverageRisk,
			RiskPercentageLabel: r.RiskPercentage,
			DistanceLabel:       r.Distance,
			DurationLabel:       r.Duration,
			Steps:               r.Steps,
		}
	}
	return domain.RouteAnalysis{Routes: routes, Hazards: out.AccidentPoints}, nil
}

// decodeGeometry turns an encoded polyline into [lng, lat] points. A bad
// polyline leaves the route without geometry rather than failing the analysis.
func (c *Client) decodeGeometry(name, encoded string) orb.LineString {
	if encoded == "" {
		return nil
	}
	coords, _, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		c.logger.Warn("route polyline could not be decoded", "route", name, "error", err)
		return nil
	}
	line := make(orb.LineString, len(coords))
	for i, latLng := range coords {
		line[i] = orb.Point{latLng[1], latLng[0]}
	}
	return line
}

// Route analysis service response types.

type navigateResponse struct {
	Recommended    *routeDTO            `json:"recommended_safe_path"`
	Alternatives   []routeDTO           `json:"alternatives"`
	AccidentPoints []domain.HazardPoint `json:"accident_points"`
}

type routeDTO struct {
	Name           string             `json:"name"`
	AverageRisk    float64            `json:"average_risk"`
	Distance       string             `json:"distance"`
	Duration       string             `json:"duration"`
	Polyline       string             `json:"polyline"`
	RiskPercentage string             `json:"risk_percentage"`
	Steps          []domain.RouteStep `json:"steps"`
}
