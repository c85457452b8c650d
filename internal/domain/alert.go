package domain

import (
	"strings"
	"time"
)

// AlertBatch is the visible alert set of one tracking session at one tick,
// as published to downstream consumers.
type AlertBatch struct {
	SessionID   string           `json:"session_id"`
	Position    PositionSample   `json:"position"`
	Alerts      []ProximityAlert `json:"alerts"`
	ClosestTier Tier             `json:"closest_tier,omitempty"`
	PublishedAt time.Time        `json:"published_at"`
}

// NewAlertBatch stamps a batch with the current time.
func NewAlertBatch(sessionID string, position PositionSample, alerts []ProximityAlert) AlertBatch {
	tier, _ := ClosestTier(alerts)
	return AlertBatch{
		SessionID:   sessionID,
		Position:    position,
		Alerts:      alerts,
		ClosestTier: tier,
		PublishedAt: clock.Now().UTC(),
	}
}

// Fingerprint identifies the set of alerted hazards and their tiers, so
// consumers can skip batches that only moved distances.
func (b AlertBatch) Fingerprint() string {
	var sb strings.Builder
	for i, a := range b.Alerts {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(a.HazardID)
		sb.WriteByte(':')
		sb.WriteString(string(a.Tier))
	}
	return sb.String()
}
