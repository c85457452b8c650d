package kafka

import (
	"testing"
	"time"

	"github.com/Rajdeep-017/suraksha-net/internal/domain"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapMessageToSample(t *testing.T) {
	brokerTime := time.Date(2026, 3, 1, 8, 0, 5, 0, time.UTC)

	t.Run("payload timestamp wins", func(t *testing.T) {
		msg := kafkago.Message{
			Key:   []byte("driver-7"),
			Value: []byte(`{"lat":18.5204,"lng":73.8567,"accuracy":4,"heading":90,"timestamp":"2026-03-01T08:00:00Z"}`),
			Time:  brokerTime,
		}
		sample, err := mapMessageToSample(msg)
		require.NoError(t, err)
		assert.InDelta(t, 18.5204, sample.Lat, 1e-9)
		require.NotNil(t, sample.HeadingDegrees)
		assert.InDelta(t, 90, *sample.HeadingDegrees, 0)
		assert.True(t, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC).Equal(sample.Timestamp))
	})

	t.Run("broker timestamp fallback", func(t *testing.T) {
		msg := kafkago.Message{Value: []byte(`{"lat":18.5,"lng":73.8}`), Time: brokerTime}
		sample, err := mapMessageToSample(msg)
		require.NoError(t, err)
		assert.Equal(t, brokerTime, sample.Timestamp)
	})

	t.Run("malformed json", func(t *testing.T) {
		_, err := mapMessageToSample(kafkago.Message{Value: []byte(`{"lat":`)})
		require.Error(t, err)
	})

	t.Run("invalid coordinates", func(t *testing.T) {
		_, err := mapMessageToSample(kafkago.Message{Value: []byte(`{"lat":95,"lng":73.8}`)})
		require.Error(t, err)
	})
}

func TestSerializeToMessage(t *testing.T) {
	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	batch := domain.AlertBatch{
		SessionID: "session-1",
		Position:  domain.PositionSample{Lat: 18.5204, Lng: 73.8567},
		Alerts: []domain.ProximityAlert{
			{HazardID: "h1", DistanceKm: 0.1, Distance: "100 m", Tier: domain.TierImmediate},
		},
		ClosestTier: domain.TierImmediate,
		PublishedAt: now,
	}

	msg, err := serializeToMessage(batch)
	require.NoError(t, err)

	assert.Equal(t, []byte("session-1"), msg.Key)
	assert.Contains(t, string(msg.Value), `"hazard_id":"h1"`)
	assert.Contains(t, string(msg.Value), `"closest_tier":"immediate"`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "closest_tier", msg.Headers[0].Key)
	assert.Equal(t, []byte("immediate"), msg.Headers[0].Value)
	assert.Equal(t, "published_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(now.Format(time.RFC3339)), msg.Headers[1].Value)
}
