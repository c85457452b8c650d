package domain

import "github.com/paulmach/orb"

// RouteStep is one turn instruction along a route.
type RouteStep struct {
	Instruction string   `json:"instruction"`
	Distance    string   `json:"distance"`
	Type        string   `json:"type"`
	Modifier    string   `json:"modifier,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// RouteOption is one candidate route with the risk metrics computed by the
// route analysis service.
type RouteOption struct {
	Index               int            `json:"index"`
	Name                string         `json:"name"`
	Geometry            orb.LineString `json:"geometry,omitempty"` // [lng, lat] points
	Polyline            string         `json:"polyline,omitempty"`
	AverageRisk         float64        `json:"average_risk"`
	RiskPercentageLabel string         `json:"risk_percentage"`
	DistanceLabel       string         `json:"distance"`
	DurationLabel       string         `json:"duration"`
	Steps               []RouteStep    `json:"steps,omitempty"`
}

// RouteAnalysis is one response from the route analysis service: routes in
// upstream order (recommended first) and the hazards found along them.
type RouteAnalysis struct {
	Routes  []RouteOption `json:"routes"`
	Hazards []HazardPoint `json:"hazards,omitempty"`
}

// RouteBounds returns the bounding box of every route geometry.
func RouteBounds(routes []RouteOption) (Bounds, bool) {
	var (
		b     orb.Bound
		found bool
	)
	for _, r := range routes {
		if len(r.Geometry) == 0 {
			continue
		}
		if !found {
			b = r.Geometry.Bound()
			found = true
			continue
		}
		b = b.Union(r.Geometry.Bound())
	}
	if !found {
		return Bounds{}, false
	}
	return Bounds{
		MinLat: b.Min.Lat(),
		MaxLat: b.Max.Lat(),
		MinLng: b.Min.Lon(),
		MaxLng: b.Max.Lon(),
	}, true
}
