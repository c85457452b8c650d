package domain

import (
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used for haversine distances.
const EarthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance in kilometers between two points.
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLng := (lng2 - lng1) * math.Pi / 180

	a := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLng/2)*math.Sin(deltaLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// DistanceFromPosition returns the distance in kilometers from the sample to a point.
func DistanceFromPosition(p PositionSample, lat, lng float64) float64 {
	return HaversineKm(p.Lat, p.Lng, lat, lng)
}

// FormatDistance renders a distance for display: "120 m" below one
// kilometer, "3.4 km" otherwise.
func FormatDistance(km float64) string {
	if km < 1 {
		return fmt.Sprintf("%d m", int(math.Round(km*1000)))
	}
	return fmt.Sprintf("%.1f km", km)
}

// Bounds is a latitude/longitude bounding box.
type Bounds struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Pad grows the box by deg degrees on every side.
func (b Bounds) Pad(deg float64) Bounds {
	return Bounds{
		MinLat: b.MinLat - deg,
		MaxLat: b.MaxLat + deg,
		MinLng: b.MinLng - deg,
		MaxLng: b.MaxLng + deg,
	}
}
