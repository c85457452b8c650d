package tracking

import (
	"math"

	"github.com/Rajdeep-017/suraksha-net/internal/domain"
	"github.com/Rajdeep-017/suraksha-net/internal/position"
)

// Settings configures a Session.
type Settings struct {
	RadiusKm  float64
	Dismissal domain.DismissalPolicy
	Rank      domain.RankStrategy
	Position  position.Options
}

// withDefaults fills unset fields. A non-finite radius counts as unset.
func (s Settings) withDefaults() Settings {
	if s.RadiusKm <= 0 || math.IsNaN(s.RadiusKm) || math.IsInf(s.RadiusKm, 0) {
		s.RadiusKm = domain.DefaultAlertRadiusKm
	}
	if s.Dismissal == "" {
		s.Dismissal = domain.DismissSticky
	}
	if s.Rank == "" {
		s.Rank = domain.RankUpstream
	}
	return s
}
