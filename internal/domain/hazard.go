package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// HazardPoint is a location with a history of accidents. A hazard set is
// supplied per analyzed route and treated as an immutable snapshot.
type HazardPoint struct {
	ID          string   `json:"id,omitempty"`
	Lat         float64  `json:"lat"`
	Lng         float64  `json:"lng"`
	Description string   `json:"description,omitempty"`
	RiskScore   *float64 `json:"risk_score,omitempty"`
}

// Valid reports whether the hazard has usable coordinates.
func (h HazardPoint) Valid() bool {
	return validCoordinate(h.Lat, h.Lng)
}

// Key returns the hazard id, or "<lat>-<lng>" when the record has none.
func (h HazardPoint) Key() string {
	if h.ID != "" {
		return h.ID
	}
	return strconv.FormatFloat(h.Lat, 'f', -1, 64) + "-" + strconv.FormatFloat(h.Lng, 'f', -1, 64)
}

// hazardRecord accepts both the API spelling and the accident dataset
// spelling (Latitude, Longitude, Risk_Score) of a hazard. Fields are kept raw
// so one wrong-typed value only invalidates its own record.
type hazardRecord struct {
	ID          json.RawMessage `json:"id"`
	Lat         json.RawMessage `json:"lat"`
	Lng         json.RawMessage `json:"lng"`
	Latitude    json.RawMessage `json:"Latitude"`
	Longitude   json.RawMessage `json:"Longitude"`
	Description json.RawMessage `json:"description"`
	RiskScore   json.RawMessage `json:"risk_score"`
	DatasetRisk json.RawMessage `json:"Risk_Score"`
}

// UnmarshalJSON decodes a hazard leniently. Missing or undecodable
// coordinates become NaN so ComputeAlerts skips the record instead of the
// whole batch failing. Numeric strings are accepted.
func (h *HazardPoint) UnmarshalJSON(data []byte) error {
	var rec hazardRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		*h = HazardPoint{Lat: math.NaN(), Lng: math.NaN()}
		return nil
	}

	*h = HazardPoint{
		ID:          decodeID(rec.ID),
		Lat:         firstOrNaN(rec.Latitude, rec.Lat),
		Lng:         firstOrNaN(rec.Longitude, rec.Lng),
		Description: decodeString(rec.Description),
		RiskScore:   decodeRisk(rec.RiskScore),
	}
	if h.RiskScore == nil {
		h.RiskScore = decodeRisk(rec.DatasetRisk)
	}
	return nil
}

// MarshalJSON writes invalid coordinates as null; encoding/json rejects NaN.
func (h HazardPoint) MarshalJSON() ([]byte, error) {
	type out struct {
		ID          string   `json:"id,omitempty"`
		Lat         *float64 `json:"lat"`
		Lng         *float64 `json:"lng"`
		Description string   `json:"description,omitempty"`
		RiskScore   *float64 `json:"risk_score,omitempty"`
	}
	o := out{ID: h.ID, Description: h.Description, RiskScore: h.RiskScore}
	if h.Valid() {
		o.Lat, o.Lng = &h.Lat, &h.Lng
	}
	return json.Marshal(o)
}

// decodeID accepts string or numeric ids; dataset rows are often keyed by row number.
func decodeID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

// decodeNumber reads a JSON number or numeric string.
func decodeNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func decodeString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func decodeRisk(raw json.RawMessage) *float64 {
	f, ok := decodeNumber(raw)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

// firstOrNaN returns the first decodable coordinate.
func firstOrNaN(vals ...json.RawMessage) float64 {
	for _, v := range vals {
		if f, ok := decodeNumber(v); ok {
			return f
		}
	}
	return math.NaN()
}
