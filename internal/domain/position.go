package domain

import (
	"math"
	"time"
)

// PositionSample is one fix from the platform location service. It is
// superseded by the next sample and never persisted.
type PositionSample struct {
	Lat            float64   `json:"lat"`
	Lng            float64   `json:"lng"`
	AccuracyMeters float64   `json:"accuracy"`
	HeadingDegrees *float64  `json:"heading,omitempty"` // 0 = north
	SpeedMps       *float64  `json:"speed,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

// Valid reports whether the sample carries usable coordinates.
func (p PositionSample) Valid() bool {
	return validCoordinate(p.Lat, p.Lng)
}

// SpeedKmh converts the reported speed to km/h, rounded to the nearest integer.
func (p PositionSample) SpeedKmh() (int, bool) {
	if p.SpeedMps == nil {
		return 0, false
	}
	return int(math.Round(*p.SpeedMps * 3.6)), true
}

func validCoordinate(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
