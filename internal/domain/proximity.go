package domain

import (
	"cmp"
	"math"
	"slices"
)

// Tier is an escalation bucket derived from the distance to a hazard.
type Tier string

const (
	TierImmediate Tier = "immediate"
	TierUrgent    Tier = "urgent"
	TierWarning   Tier = "warning"
)

// Tier thresholds in kilometers.
const (
	ImmediateRadiusKm = 0.15
	UrgentRadiusKm    = 0.30

	// DefaultAlertRadiusKm is the alert radius used when none is configured.
	DefaultAlertRadiusKm = 0.5
)

// TierFor buckets a distance into an escalation tier.
func TierFor(distanceKm float64) Tier {
	switch {
	case distanceKm < ImmediateRadiusKm:
		return TierImmediate
	case distanceKm < UrgentRadiusKm:
		return TierUrgent
	default:
		return TierWarning
	}
}

// ProximityAlert is a hazard inside the alert radius of the current position.
type ProximityAlert struct {
	HazardID   string      `json:"hazard_id"`
	DistanceKm float64     `json:"distance_km"`
	Distance   string      `json:"distance"`
	Tier       Tier        `json:"tier"`
	Hazard     HazardPoint `json:"hazard"`
}

// ComputeAlerts returns the hazards within radiusKm of position, nearest
// first. Hazards with unusable coordinates are skipped. An invalid position
// or radius yields no alerts.
func ComputeAlerts(position PositionSample, hazards []HazardPoint, radiusKm float64) []ProximityAlert {
	if !position.Valid() || math.IsNaN(radiusKm) || radiusKm < 0 {
		return nil
	}

	var alerts []ProximityAlert
	for _, h := range hazards {
		if !h.Valid() {
			continue
		}
		d := HaversineKm(position.Lat, position.Lng, h.Lat, h.Lng)
		if d > radiusKm {
			continue
		}
		alerts = append(alerts, ProximityAlert{
			HazardID:   h.Key(),
			DistanceKm: d,
			Distance:   FormatDistance(d),
			Tier:       TierFor(d),
			Hazard:     h,
		})
	}

	slices.SortFunc(alerts, func(a, b ProximityAlert) int {
		if c := cmp.Compare(a.DistanceKm, b.DistanceKm); c != 0 {
			return c
		}
		return cmp.Compare(a.HazardID, b.HazardID)
	})
	return alerts
}

// ClosestTier returns the tier of the nearest alert, if any.
func ClosestTier(alerts []ProximityAlert) (Tier, bool) {
	if len(alerts) == 0 {
		return "", false
	}
	return alerts[0].Tier, true
}
