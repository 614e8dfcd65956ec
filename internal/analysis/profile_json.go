package analysis

import (
	"encoding/json"
	"fmt"
)

type numericStatsJSON struct {
	Type    ColumnType `json:"type"`
	Missing int        `json:"missing"`
	Count   int        `json:"count"`
	Mean    *float64   `json:"mean"`
	Std     *float64   `json:"std"`
	Min     *float64   `json:"min"`
	P25     *float64   `json:"p25"`
	Median  *float64   `json:"median"`
	P75     *float64   `json:"p75"`
	Max     *float64   `json:"max"`
	Unique  int        `json:"unique"`
	ZeroPct *float64   `json:"zero_pct"`
	Skew    *float64   `json:"skew"`
}

type datetimeStatsJSON struct {
	Type      ColumnType `json:"type"`
	Missing   int        `json:"missing"`
	Count     int        `json:"count"`
	ParseRate *float64   `json:"parse_rate"`
	Min       *string    `json:"min"`
	Max       *string    `json:"max"`
}

type frequencyStatsJSON struct {
	Type        ColumnType   `json:"type"`
	Missing     int          `json:"missing"`
	Count       int          `json:"count"`
	TopValues   []ValueCount `json:"top_values"`
	Unique      int          `json:"unique"`
	UniqueRatio *float64     `json:"unique_ratio"`
}

// MarshalJSON renders only the fields meaningful for the column's type.
// Datetime min/max are ISO strings; numeric min/max are numbers.
func (s ColumnStats) MarshalJSON() ([]byte, error) {
	switch s.Type {
	case TypeNumeric:
		return json.Marshal(numericStatsJSON{
			Type: s.Type, Missing: s.Missing, Count: s.Count,
			Mean: s.Mean, Std: s.Std, Min: s.Min, P25: s.P25, Median: s.Median, P75: s.P75, Max: s.Max,
			Unique: s.Unique, ZeroPct: s.ZeroPct, Skew: s.Skew,
		})
	case TypeDatetime:
		return json.Marshal(datetimeStatsJSON{
			Type: s.Type, Missing: s.Missing, Count: s.Count, ParseRate: s.ParseRate,
			Min: optString(s.MinTime), Max: optString(s.MaxTime),
		})
	default:
		top := s.TopValues
		if top == nil {
			top = []ValueCount{}
		}
		return json.Marshal(frequencyStatsJSON{
			Type: s.Type, Missing: s.Missing, Count: s.Count,
			TopValues: top, Unique: s.Unique, UniqueRatio: s.UniqueRatio,
		})
	}
}

// UnmarshalJSON accepts the shapes produced by MarshalJSON.
func (s *ColumnStats) UnmarshalJSON(b []byte) error {
	var head struct {
		Type ColumnType `json:"type"`
	}
	if err := json.Unmarshal(b, &head); err != nil {
		return fmt.Errorf("decode column stats: %w", err)
	}
	switch head.Type {
	case TypeNumeric:
		var w numericStatsJSON
		if err := json.Unmarshal(b, &w); err != nil {
			return fmt.Errorf("decode numeric stats: %w", err)
		}
		*s = ColumnStats{
			Type: w.Type, Missing: w.Missing, Count: w.Count,
			Mean: w.Mean, Std: w.Std, Min: w.Min, P25: w.P25, Median: w.Median, P75: w.P75, Max: w.Max,
			Unique: w.Unique, ZeroPct: w.ZeroPct, Skew: w.Skew,
		}
	case TypeDatetime:
		var w datetimeStatsJSON
		if err := json.Unmarshal(b, &w); err != nil {
			return fmt.Errorf("decode datetime stats: %w", err)
		}
		*s = ColumnStats{Type: w.Type, Missing: w.Missing, Count: w.Count, ParseRate: w.ParseRate}
		if w.Min != nil {
			s.MinTime = *w.Min
		}
		if w.Max != nil {
			s.MaxTime = *w.Max
		}
	default:
		var w frequencyStatsJSON
		if err := json.Unmarshal(b, &w); err != nil {
			return fmt.Errorf("decode frequency stats: %w", err)
		}
		*s = ColumnStats{
			Type: w.Type, Missing: w.Missing, Count: w.Count,
			TopValues: w.TopValues, Unique: w.Unique, UniqueRatio: w.UniqueRatio,
		}
	}
	return nil
}

func optString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
