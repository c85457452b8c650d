// Package postgres reads the accident hotspot catalogue.
package postgres

import (
	"context"
	"fmt"

	"github.com/Rajdeep-017/suraksha-net/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// HazardStore looks up known accident hotspots.
type HazardStore struct {
	db querier
}

// NewHazardStore creates a store over a connection pool.
func NewHazardStore(pool *pgxpool.Pool) *HazardStore {
	return &HazardStore{db: pool}
}

const nearRouteQuery = `
	SELECT id, latitude, longitude, COALESCE(description, ''), risk_score
	FROM accident_hotspots
	WHERE latitude BETWEEN $1 AND $2
	  AND longitude BETWEEN $3 AND $4
	ORDER BY risk_score DESC NULLS LAST, id
	LIMIT $5
`

// NearRoute returns up to limit hotspots inside bounds, riskiest first.
func (s *HazardStore) NearRoute(ctx context.Context, bounds domain.Bounds, limit int) ([]domain.HazardPoint, error) {
	rows, err := s.db.Query(ctx, nearRouteQuery, bounds.MinLat, bounds.MaxLat, bounds.MinLng, bounds.MaxLng, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: query hotspots: %w", err)
	}
	defer rows.Close()

	var hazards []domain.HazardPoint
	for rows.Next() {
		var h domain.HazardPoint
		if err := rows.Scan(&h.ID, &h.Lat, &h.Lng, &h.Description, &h.RiskScore); err != nil {
			return nil, fmt.Errorf("postgres: scan hotspot: %w", err)
		}
		hazards = append(hazards, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate hotspots: %w", err)
	}
	return hazards, nil
}
