package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/KaramelBytes/instadash-cli/internal/dataset"
)

// ExecutiveBrief compares the last two periods of the primary metric.
type ExecutiveBrief struct {
	Metric         string        `json:"metric"`
	DateColumn     string        `json:"date_column"`
	Grain          Grain         `json:"grain"`
	CurrentPeriod  string        `json:"current_period"`
	PreviousPeriod string        `json:"previous_period"`
	Current        float64       `json:"current"`
	Previous       float64       `json:"previous"`
	Delta          float64       `json:"delta"`
	PctChange      *float64      `json:"pct_change"`
	Driver         string        `json:"driver,omitempty"`
	Drivers        []DriverDelta `json:"drivers"`
	Bullets        []string      `json:"bullets"`
}

// DriverDelta is one category's contribution to a period-over-period change.
type DriverDelta struct {
	Value    string  `json:"value"`
	Current  float64 `json:"current"`
	Previous float64 `json:"previous"`
	Delta    float64 `json:"delta"`
}

const (
	briefDayMaxSpan      = 14
	briefWeekMaxSpan     = 120
	driverMaxUniqueRatio = 0.8
	driverMaxUnique      = 200
	maxBriefDrivers      = 8
)

// BriefGrain picks the brief's bucket size from the date span in days.
func BriefGrain(days int) Grain {
	switch {
	case days <= briefDayMaxSpan:
		return GrainDay
	case days <= briefWeekMaxSpan:
		return GrainWeek
	default:
		return GrainMonth
	}
}

// BuildExecutiveBrief returns nil when there is no metric, no datetime column
// or fewer than two buckets to compare.
func BuildExecutiveBrief(t *dataset.Table, types Types, p *Profile) *ExecutiveBrief {
	metric := PrimaryMetric(ColumnsOfType(t, types, TypeNumeric))
	dtCols := ColumnsOfType(t, types, TypeDatetime)
	if metric == "" || len(dtCols) == 0 {
		return nil
	}
	dt := dtCols[0]
	days, ok := SpanDays(p.Column(dt))
	if !ok {
		return nil
	}
	grain := BriefGrain(days)
	series := BucketSeries(t, dt, metric, grain, "sum")
	if len(series) < 2 {
		return nil
	}
	cur, prev := series[len(series)-1], series[len(series)-2]
	if !isFinite(cur.Value) || !isFinite(prev.Value) || !isFinite(cur.Value-prev.Value) {
		log.Debug().Str("metric", metric).Msg("bucket totals overflow; executive brief skipped")
		return nil
	}
	b := &ExecutiveBrief{
		Metric:         metric,
		DateColumn:     dt,
		Grain:          grain,
		CurrentPeriod:  dataset.FormatTime(cur.At),
		PreviousPeriod: dataset.FormatTime(prev.At),
		Current:        cur.Value,
		Previous:       prev.Value,
		Delta:          cur.Value - prev.Value,
		Drivers:        []DriverDelta{},
	}
	if prev.Value != 0 {
		b.PctChange = finite(b.Delta / math.Abs(prev.Value) * 100)
	}
	if driver := pickDriver(t, types, p); driver != "" {
		b.Driver = driver
		b.Drivers = AttributeDelta(t, dt, metric, driver, grain, cur.At, prev.At, maxBriefDrivers)
	}
	b.Bullets = briefBullets(b)
	return b
}

// pickDriver chooses the lowest-cardinality categorical column that is not
// id-like and has between 2 and 200 distinct values.
func pickDriver(t *dataset.Table, types Types, p *Profile) string {
	best, bestUnique := "", math.MaxInt
	for _, c := range ColumnsOfType(t, types, TypeCategorical) {
		if IsIDLike(c) {
			continue
		}
		st := p.Column(c)
		if st == nil || st.Unique < 2 || st.Unique > driverMaxUnique {
			continue
		}
		if st.UniqueRatio != nil && *st.UniqueRatio > driverMaxUniqueRatio {
			continue
		}
		if st.Unique < bestUnique {
			best, bestUnique = c, st.Unique
		}
	}
	return best
}

// AttributeDelta sums metric per value of dim inside the current and previous
// buckets and ranks values by absolute change.
func AttributeDelta(t *dataset.Table, dt, metric, dim string, g Grain, cur, prev time.Time, limit int) []DriverDelta {
	xc, ok1 := t.Column(dt)
	yc, ok2 := t.Column(metric)
	dc, ok3 := t.Column(dim)
	if !ok1 || !ok2 || !ok3 {
		return []DriverDelta{}
	}
	times, tok := xc.Times()
	vals, vok := yc.Floats()
	byValue := map[string]*DriverDelta{}
	for r := range times {
		if !tok[r] || !vok[r] || dc.Cells[r].Null {
			continue
		}
		start := BucketStart(times[r], g)
		if !start.Equal(cur) && !start.Equal(prev) {
			continue
		}
		key := dc.Cells[r].Raw
		d, ok := byValue[key]
		if !ok {
			d = &DriverDelta{Value: key}
			byValue[key] = d
		}
		if start.Equal(cur) {
			d.Current += vals[r]
		} else {
			d.Previous += vals[r]
		}
	}
	out := make([]DriverDelta, 0, len(byValue))
	for _, d := range byValue {
		d.Delta = d.Current - d.Previous
		if !isFinite(d.Current) || !isFinite(d.Previous) || !isFinite(d.Delta) {
			continue
		}
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].Delta), math.Abs(out[j].Delta)
		if ai != aj {
			return ai > aj
		}
		return out[i].Value < out[j].Value
	})
	return firstN(out, limit)
}

func briefBullets(b *ExecutiveBrief) []string {
	direction := "flat"
	switch {
	case b.Delta > 0:
		direction = "up"
	case b.Delta < 0:
		direction = "down"
	}
	first := fmt.Sprintf("%s was %s for the %s starting %s, %s %s vs the previous %s",
		Pretty(b.Metric), FormatG6(b.Current), b.Grain, dayOf(b.CurrentPeriod), direction, FormatG6(math.Abs(b.Delta)), b.Grain)
	if b.PctChange != nil {
		first += fmt.Sprintf(" (%+.1f%%)", *b.PctChange)
	}
	bullets := []string{first + "."}
	bullets = append(bullets, fmt.Sprintf("Previous %s (%s): %s.", b.Grain, dayOf(b.PreviousPeriod), FormatG6(b.Previous)))
	if len(b.Drivers) > 0 {
		d := b.Drivers[0]
		bullets = append(bullets, fmt.Sprintf("Largest change by %s: %s (%s).", Pretty(b.Driver), d.Value, signed(d.Delta)))
	}
	return bullets
}

func dayOf(iso string) string {
	day, _, _ := strings.Cut(iso, "T")
	return day
}

func signed(v float64) string {
	if v > 0 {
		return "+" + FormatG6(v)
	}
	return FormatG6(v)
}
