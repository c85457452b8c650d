package domain

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"
)

// WarningRiskPercent is the risk percentage at or above which choosing a
// non-recommended route raises a warning.
const WarningRiskPercent = 40

// RankStrategy decides how Rank orders candidate routes.
type RankStrategy string

const (
	// RankUpstream keeps the order chosen by the route analysis service.
	RankUpstream RankStrategy = "upstream"
	// RankByRisk re-sorts routes by ascending average risk, keeping
	// upstream order between equal risks.
	RankByRisk RankStrategy = "risk"
)

// ParseRankStrategy validates a strategy name.
func ParseRankStrategy(s string) (RankStrategy, error) {
	switch RankStrategy(s) {
	case RankUpstream, RankByRisk:
		return RankStrategy(s), nil
	default:
		return "", fmt.Errorf("unknown rank strategy %q", s)
	}
}

// Rank returns a copy of routes ordered by strategy with Index renumbered
// to each route's position.
func Rank(routes []RouteOption, strategy RankStrategy) []RouteOption {
	ranked := slices.Clone(routes)
	if strategy == RankByRisk {
		slices.SortStableFunc(ranked, func(a, b RouteOption) int {
			return cmp.Compare(a.AverageRisk, b.AverageRisk)
		})
	}
	for i := range ranked {
		ranked[i].Index = i
	}
	return ranked
}

// RouteWarning is raised when the driver picks a riskier alternative.
type RouteWarning struct {
	RouteName           string `json:"route_name"`
	RiskPercentageLabel string `json:"risk_percentage"`
}

// Selection is the outcome of choosing a route.
type Selection struct {
	SelectedIndex int           `json:"selected_index"`
	Warning       *RouteWarning `json:"warning,omitempty"`
}

// Select chooses routes[index]. Out-of-range indexes are rejected with
// ErrRouteIndexOutOfRange rather than clamped.
func Select(routes []RouteOption, index int) (Selection, error) {
	if index < 0 || index >= len(routes) {
		return Selection{}, fmt.Errorf("%w: %d not in [0, %d)", ErrRouteIndexOutOfRange, index, len(routes))
	}

	sel := Selection{SelectedIndex: index}
	r := routes[index]
	if index > 0 {
		if pct, ok := ParseRiskPercent(r.RiskPercentageLabel); ok && pct >= WarningRiskPercent {
			sel.Warning = &RouteWarning{RouteName: r.Name, RiskPercentageLabel: r.RiskPercentageLabel}
		}
	}
	return sel, nil
}

// ParseRiskPercent reads the leading integer of a label such as "55%" or
// " 40 %". It reports false when the label has no leading digits.
func ParseRiskPercent(label string) (int, bool) {
	s := strings.TrimLeft(label, " \t\n\r")
	neg := false
	if s != "" && (s[0] == '+' || s[0] == '-') {
		neg = s[0] == '-'
		s = s[1:]
	}

	n, digits := 0, 0
	for _, c := range s {
		if c < '0' || c > '9' {
			break
		}
		if n > (math.MaxInt-9)/10 {
			break
		}
		n = n*10 + int(c-'0')
		digits++
	}
	if digits == 0 {
		return 0, false
	}
	if neg {
		n = -n
	}
	return n, true
}

// SelectionState is the route selection state machine. The zero value is
// the NoRoutes state.
type SelectionState struct {
	Routes        []RouteOption `json:"routes"`
	SelectedIndex int           `json:"selected_index"`
	Warning       *RouteWarning `json:"warning,omitempty"`
}

// NewSelectionState enters RoutesAvailable(0, no warning) for a fresh
// analysis, regardless of any earlier selection.
func NewSelectionState(routes []RouteOption) SelectionState {
	return SelectionState{Routes: routes}
}

// HasRoutes reports whether the state is RoutesAvailable.
func (s SelectionState) HasRoutes() bool {
	return len(s.Routes) > 0
}

// Selected returns the currently selected route.
func (s SelectionState) Selected() (RouteOption, bool) {
	if !s.HasRoutes() {
		return RouteOption{}, false
	}
	return s.Routes[s.SelectedIndex], true
}

// Select transitions to the route at index. On error the state is unchanged.
func (s SelectionState) Select(index int) (SelectionState, error) {
	sel, err := Select(s.Routes, index)
	if err != nil {
		return s, err
	}
	s.SelectedIndex = sel.SelectedIndex
	s.Warning = sel.Warning
	return s, nil
}
