package domain

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHazardPoint_UnmarshalJSON(t *testing.T) {
	t.Run("api spelling", func(t *testing.T) {
		var h HazardPoint
		require.NoError(t, json.Unmarshal([]byte(`{"id":"p1","lat":18.5289,"lng":73.8744,"description":"Heavy traffic collision zone","risk_score":8}`), &h))
		assert.Equal(t, "p1", h.ID)
		assert.Equal(t, 18.5289, h.Lat)
		assert.Equal(t, 73.8744, h.Lng)
		require.NotNil(t, h.RiskScore)
		assert.Equal(t, 8.0, *h.RiskScore)
		assert.True(t, h.Valid())
	})

	t.Run("dataset spelling with numeric id", func(t *testing.T) {
		var h HazardPoint
		require.NoError(t, json.Unmarshal([]byte(`{"id":42,"Latitude":18.53,"Longitude":73.835,"Risk_Score":17.5}`), &h))
		assert.Equal(t, "42", h.ID)
		assert.Equal(t, 18.53, h.Lat)
		require.NotNil(t, h.RiskScore)
		assert.Equal(t, 17.5, *h.RiskScore)
	})

	t.Run("missing coordinates decode as invalid", func(t *testing.T) {
		var hazards []HazardPoint
		require.NoError(t, json.Unmarshal([]byte(`[{"id":"a","lat":18.5},{"id":"b","lat":18.52,"lng":73.85}]`), &hazards))
		require.Len(t, hazards, 2)
		assert.True(t, math.IsNaN(hazards[0].Lng))
		assert.False(t, hazards[0].Valid())
		assert.True(t, hazards[1].Valid())
	})

	t.Run("not an object decodes as invalid", func(t *testing.T) {
		var h HazardPoint
		require.NoError(t, json.Unmarshal([]byte(`"nope"`), &h))
		assert.False(t, h.Valid())
	})

	t.Run("wrong-typed fields only invalidate their record", func(t *testing.T) {
		var hazards []HazardPoint
		require.NoError(t, json.Unmarshal([]byte(`[
			{"id":"bad","lat":"abc","lng":73.85},
			{"id":"str","lat":"18.52","lng":"73.85"},
			{"id":"obj","lat":{},"lng":1},
			{"id":{"x":1},"lat":18.5204,"lng":73.8567},
			{"id":"good","lat":18.5204,"lng":73.8567,"risk_score":"high"}
		]`), &hazards))
		require.Len(t, hazards, 5)

		assert.False(t, hazards[0].Valid())
		assert.True(t, hazards[1].Valid())
		assert.Equal(t, 18.52, hazards[1].Lat)
		assert.Equal(t, 73.85, hazards[1].Lng)
		assert.False(t, hazards[2].Valid())
		assert.Empty(t, hazards[3].ID)
		assert.Equal(t, "18.5204-73.8567", hazards[3].Key())
		assert.Equal(t, "good", hazards[4].ID)
		assert.Nil(t, hazards[4].RiskScore)

		alerts := ComputeAlerts(PositionSample{Lat: 18.5204, Lng: 73.8567}, hazards, 0.5)
		ids := make([]string, 0, len(alerts))
		for _, a := range alerts {
			ids = append(ids, a.HazardID)
		}
		assert.Contains(t, ids, "good")
		assert.NotContains(t, ids, "bad")
		assert.NotContains(t, ids, "obj")
	})
}

func TestHazardPoint_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(HazardPoint{ID: "x", Lat: math.NaN(), Lng: 73.8})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"x","lat":null,"lng":null}`, string(data))

	data, err = json.Marshal(HazardPoint{ID: "y", Lat: 18.5, Lng: 73.8})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"y","lat":18.5,"lng":73.8}`, string(data))
}

func TestPositionError(t *testing.T) {
	err := NewPositionError(Timeout, "gps fix timed out", errors.New("no satellites"))

	assert.ErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, "gps fix timed out: no satellites", err.Error())
	assert.Equal(t, "location permission denied", ErrPermissionDenied.Error())
	assert.Equal(t, "timeout", Timeout.String())
}

func TestPositionSample_SpeedKmh(t *testing.T) {
	_, ok := PositionSample{}.SpeedKmh()
	assert.False(t, ok)

	speed := 13.9
	kmh, ok := PositionSample{SpeedMps: &speed}.SpeedKmh()
	require.True(t, ok)
	assert.Equal(t, 50, kmh)
}

func TestNewAlertBatch(t *testing.T) {
	fakeClock := clockwork.NewFakeClockAt(time.Date(2026, time.March, 3, 8, 30, 0, 0, time.UTC))
	SetClock(fakeClock)
	t.Cleanup(func() { SetClock(nil) })

	p := pune()
	alerts := ComputeAlerts(p, []HazardPoint{hazardNorth("b", p, 0.2), hazardNorth("a", p, 0.1)}, 0.5)

	batch := NewAlertBatch("session-1", p, alerts)
	assert.Equal(t, "session-1", batch.SessionID)
	assert.Equal(t, TierImmediate, batch.ClosestTier)
	assert.Equal(t, fakeClock.Now(), batch.PublishedAt)
	assert.Equal(t, "a:immediate,b:urgent", batch.Fingerprint())

	empty := NewAlertBatch("session-1", p, nil)
	assert.Empty(t, empty.ClosestTier)
	assert.Empty(t, empty.Fingerprint())
}
