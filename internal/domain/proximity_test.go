package domain

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	puneLat = 18.5204
	puneLng = 73.8567
)

var kmPerDegree = EarthRadiusKm * math.Pi / 180

func pune() PositionSample {
	return PositionSample{Lat: puneLat, Lng: puneLng, AccuracyMeters: 5, Timestamp: time.Now()}
}

// hazardNorth places a hazard due north of p at the given distance.
func hazardNorth(id string, p PositionSample, km float64) HazardPoint {
	return HazardPoint{ID: id, Lat: p.Lat + km/kmPerDegree, Lng: p.Lng}
}

func TestHaversineKm(t *testing.T) {
	t.Run("identity", func(t *testing.T) {
		p := pune()
		assert.InDelta(t, 0.0, DistanceFromPosition(p, p.Lat, p.Lng), 1e-12)
	})

	t.Run("pune fixture", func(t *testing.T) {
		d := DistanceFromPosition(pune(), 18.5204, 73.8657)
		assert.InEpsilon(t, 0.96, d, 0.05)
	})

	t.Run("symmetric", func(t *testing.T) {
		a := HaversineKm(18.5204, 73.8567, 18.5289, 73.8744)
		b := HaversineKm(18.5289, 73.8744, 18.5204, 73.8567)
		assert.InDelta(t, a, b, 1e-12)
	})
}

func TestTierFor(t *testing.T) {
	assert.Equal(t, TierImmediate, TierFor(0))
	assert.Equal(t, TierImmediate, TierFor(0.149))
	assert.Equal(t, TierUrgent, TierFor(0.15))
	assert.Equal(t, TierUrgent, TierFor(0.299))
	assert.Equal(t, TierWarning, TierFor(0.30))
	assert.Equal(t, TierWarning, TierFor(0.5))
}

func TestComputeAlerts_TierFixture(t *testing.T) {
	p := pune()
	hazards := []HazardPoint{
		hazardNorth("far", p, 0.60),
		hazardNorth("warning", p, 0.40),
		hazardNorth("immediate", p, 0.10),
		hazardNorth("urgent", p, 0.20),
	}

	alerts := ComputeAlerts(p, hazards, 0.5)
	require.Len(t, alerts, 3)

	assert.Equal(t, "immediate", alerts[0].HazardID)
	assert.Equal(t, TierImmediate, alerts[0].Tier)
	assert.Equal(t, "urgent", alerts[1].HazardID)
	assert.Equal(t, TierUrgent, alerts[1].Tier)
	assert.Equal(t, "warning", alerts[2].HazardID)
	assert.Equal(t, TierWarning, alerts[2].Tier)

	assert.InDelta(t, 0.10, alerts[0].DistanceKm, 1e-6)
	assert.Equal(t, "100 m", alerts[0].Distance)
	assert.Equal(t, hazards[2], alerts[0].Hazard)
}

func TestComputeAlerts_BoundaryInclusive(t *testing.T) {
	p := pune()
	h := HazardPoint{ID: "edge", Lat: 18.5231, Lng: 73.8590}
	r := HaversineKm(p.Lat, p.Lng, h.Lat, h.Lng)

	assert.Len(t, ComputeAlerts(p, []HazardPoint{h}, r), 1, "hazard exactly at the radius is included")
	assert.Empty(t, ComputeAlerts(p, []HazardPoint{h}, r-1e-9), "hazard just beyond the radius is excluded")
}

func TestComputeAlerts_SkipsMalformedHazards(t *testing.T) {
	p := pune()
	hazards := []HazardPoint{
		{ID: "nan-lat", Lat: math.NaN(), Lng: puneLng},
		{ID: "inf-lng", Lat: puneLat, Lng: math.Inf(1)},
		{ID: "out-of-range", Lat: 91, Lng: puneLng},
		hazardNorth("good", p, 0.05),
	}

	alerts := ComputeAlerts(p, hazards, 0.5)
	require.Len(t, alerts, 1)
	assert.Equal(t, "good", alerts[0].HazardID)
}

func TestComputeAlerts_TiesBrokenByID(t *testing.T) {
	p := pune()
	hazards := []HazardPoint{
		hazardNorth("c", p, 0.2),
		hazardNorth("a", p, 0.2),
		hazardNorth("b", p, 0.2),
	}

	alerts := ComputeAlerts(p, hazards, 0.5)
	require.Len(t, alerts, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{alerts[0].HazardID, alerts[1].HazardID, alerts[2].HazardID})
}

func TestComputeAlerts_FallbackID(t *testing.T) {
	p := pune()
	alerts := ComputeAlerts(p, []HazardPoint{{Lat: 18.5205, Lng: 73.8567}}, 0.5)
	require.Len(t, alerts, 1)
	assert.Equal(t, "18.5205-73.8567", alerts[0].HazardID)
}

func TestComputeAlerts_InvalidInputs(t *testing.T) {
	hazards := []HazardPoint{hazardNorth("h", pune(), 0.1)}

	assert.Empty(t, ComputeAlerts(PositionSample{Lat: math.NaN(), Lng: puneLng}, hazards, 0.5))
	assert.Empty(t, ComputeAlerts(pune(), hazards, -1))
	assert.Empty(t, ComputeAlerts(pune(), hazards, math.NaN()))
	assert.Empty(t, ComputeAlerts(pune(), nil, 0.5))
}

func TestComputeAlerts_Properties(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))

	for i := 0; i < 200; i++ {
		p := PositionSample{
			Lat: puneLat + (rng.Float64()-0.5)*0.05,
			Lng: puneLng + (rng.Float64()-0.5)*0.05,
		}
		radius := rng.Float64() * 2

		hazards := make([]HazardPoint, 50)
		for j := range hazards {
			hazards[j] = HazardPoint{
				Lat: puneLat + (rng.Float64()-0.5)*0.05,
				Lng: puneLng + (rng.Float64()-0.5)*0.05,
			}
		}

		alerts := ComputeAlerts(p, hazards, radius)
		for k, a := range alerts {
			require.LessOrEqual(t, a.DistanceKm, radius, "radius containment")
			require.GreaterOrEqual(t, a.DistanceKm, 0.0)
			if k > 0 {
				require.LessOrEqual(t, alerts[k-1].DistanceKm, a.DistanceKm, "ordering")
			}
		}
	}
}

func TestFormatDistance(t *testing.T) {
	assert.Equal(t, "120 m", FormatDistance(0.12))
	assert.Equal(t, "0 m", FormatDistance(0))
	assert.Equal(t, "1.0 km", FormatDistance(1))
	assert.Equal(t, "3.4 km", FormatDistance(3.4))
}

func BenchmarkComputeAlerts(b *testing.B) {
	rng := rand.New(rand.NewPCG(1, 2))
	hazards := make([]HazardPoint, 5000)
	for j := range hazards {
		hazards[j] = HazardPoint{
			Lat: puneLat + (rng.Float64()-0.5)*0.2,
			Lng: puneLng + (rng.Float64()-0.5)*0.2,
		}
	}
	p := pune()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ComputeAlerts(p, hazards, DefaultAlertRadiusKm)
	}
}
