package analysis

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/KaramelBytes/instadash-cli/internal/dataset"
)

const (
	topValuesLimit   = 10
	skewMinCount     = 10
	highMissingShare = 0.3
	qualityListLimit = 25
)

// ValueCount is one entry of a frequency table.
type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// ColumnStats are the per-column statistics. Which fields are populated
// depends on Type; see MarshalJSON for the rendered shape per type.
type ColumnStats struct {
	Type    ColumnType
	Missing int
	Count   int

	Mean, Std, Min, P25, Median, P75, Max *float64
	ZeroPct, Skew                         *float64

	ParseRate        *float64
	MinTime, MaxTime string

	TopValues   []ValueCount
	UniqueRatio *float64

	Unique int
}

// Correlation is a strongly correlated pair of numeric columns.
type Correlation struct {
	A    string  `json:"a"`
	B    string  `json:"b"`
	Corr float64 `json:"corr"`
}

// Quality holds dataset-level quality flags.
type Quality struct {
	DuplicateRows      int      `json:"duplicate_rows"`
	ConstantColumns    []string `json:"constant_columns"`
	HighMissingColumns []string `json:"high_missing_columns"`
}

// Shape is the table size.
type Shape struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// Profile summarises a table.
type Profile struct {
	Shape              Shape                   `json:"shape"`
	MissingByCol       map[string]int          `json:"missing_by_col"`
	Columns            map[string]*ColumnStats `json:"columns"`
	StrongCorrelations []Correlation           `json:"strong_correlations"`
	Quality            Quality                 `json:"quality"`
}

// Column returns the stats for name, or nil.
func (p *Profile) Column(name string) *ColumnStats {
	if p == nil {
		return nil
	}
	return p.Columns[name]
}

// BuildProfile computes per-column statistics, strong correlations and quality flags.
func BuildProfile(t *dataset.Table, types Types, opt Options) *Profile {
	opt = opt.withDefaults()
	p := &Profile{
		Shape:              Shape{Rows: t.Len(), Cols: t.Width()},
		MissingByCol:       make(map[string]int, t.Width()),
		Columns:            make(map[string]*ColumnStats, t.Width()),
		StrongCorrelations: []Correlation{},
	}
	for _, name := range t.Columns() {
		c, _ := t.Column(name)
		st := &ColumnStats{Type: types[name], Missing: c.Missing()}
		switch st.Type {
		case TypeNumeric:
			numericStats(st, c, t.Len())
		case TypeDatetime:
			datetimeStats(st, c)
		default:
			frequencyStats(st, c)
		}
		p.MissingByCol[name] = st.Missing
		p.Columns[name] = st
	}
	p.StrongCorrelations = strongCorrelations(t, ColumnsOfType(t, types, TypeNumeric), opt)
	p.Quality = qualityFlags(t, types)
	return p
}

func numericStats(st *ColumnStats, c *dataset.Column, rows int) {
	vals := c.ValidFloats()
	st.Count = len(vals)
	st.Unique = distinctFloats(vals)
	if len(vals) == 0 {
		return
	}
	sorted := sortedCopy(vals)
	mean, std := popMeanStd(vals)
	st.Mean, st.Std = finite(mean), finite(std)
	st.Min, st.Max = finite(sorted[0]), finite(sorted[len(sorted)-1])
	st.P25 = finite(quantile(sorted, 0.25))
	st.Median = finite(quantile(sorted, 0.5))
	st.P75 = finite(quantile(sorted, 0.75))
	zeros := 0
	for _, v := range vals {
		if v == 0 {
			zeros++
		}
	}
	st.ZeroPct = finite(float64(zeros) / float64(rows))
	if len(vals) >= skewMinCount {
		skew := 0.0
		if std > 0 {
			skew = stat.Skew(vals, nil)
		}
		st.Skew = finite(skew)
	}
}

func datetimeStats(st *ColumnStats, c *dataset.Column) {
	times, ok := c.Times()
	var lo, hi time.Time
	for i, tm := range times {
		if !ok[i] {
			continue
		}
		if st.Count == 0 || tm.Before(lo) {
			lo = tm
		}
		if st.Count == 0 || tm.After(hi) {
			hi = tm
		}
		st.Count++
	}
	if st.Count > 0 {
		st.MinTime, st.MaxTime = dataset.FormatTime(lo), dataset.FormatTime(hi)
	}
	rate := 0.0
	if nonNull := c.NonNull(); nonNull > 0 {
		rate = float64(st.Count) / float64(nonNull)
	}
	st.ParseRate = finite(rate)
}

func frequencyStats(st *ColumnStats, c *dataset.Column) {
	vals := c.Values()
	st.Count = len(vals)
	st.TopValues = topValues(vals, topValuesLimit)
	st.Unique = c.Distinct()
	st.UniqueRatio = finite(float64(st.Unique) / float64(max(len(vals), 1)))
}

// topValues counts values and orders them by count, first occurrence breaking ties.
func topValues(vals []string, limit int) []ValueCount {
	counts := map[string]int{}
	var order []string
	for _, v := range vals {
		if _, ok := counts[v]; !ok {
			order = append(order, v)
		}
		counts[v]++
	}
	out := make([]ValueCount, 0, len(order))
	for _, v := range order {
		out = append(out, ValueCount{Value: v, Count: counts[v]})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func strongCorrelations(t *dataset.Table, numCols []string, opt Options) []Correlation {
	out := []Correlation{}
	if len(numCols) < 2 {
		return out
	}
	vals := make([][]float64, len(numCols))
	oks := make([][]bool, len(numCols))
	for i, name := range numCols {
		c, _ := t.Column(name)
		vals[i], oks[i] = c.Floats()
	}
	for i := 0; i < len(numCols); i++ {
		for j := i + 1; j < len(numCols); j++ {
			var x, y []float64
			for r := range vals[i] {
				if oks[i][r] && oks[j][r] {
					x = append(x, vals[i][r])
					y = append(y, vals[j][r])
				}
			}
			r := pearson(x, y)
			if math.IsNaN(r) || math.IsInf(r, 0) {
				continue
			}
			if math.Abs(r) >= opt.CorrThreshold {
				out = append(out, Correlation{A: numCols[i], B: numCols[j], Corr: r})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return math.Abs(out[i].Corr) > math.Abs(out[j].Corr) })
	if len(out) > opt.MaxCorrelations {
		out = out[:opt.MaxCorrelations]
	}
	return out
}

func qualityFlags(t *dataset.Table, types Types) Quality {
	q := Quality{DuplicateRows: t.DuplicateRows(), ConstantColumns: []string{}, HighMissingColumns: []string{}}
	rows := t.Len()
	for _, name := range t.Columns() {
		c, _ := t.Column(name)
		unique := c.Distinct()
		if types[name] == TypeNumeric {
			unique = distinctFloats(c.ValidFloats())
		}
		if unique <= 1 && len(q.ConstantColumns) < qualityListLimit {
			q.ConstantColumns = append(q.ConstantColumns, name)
		}
		if rows > 0 && float64(c.Missing())/float64(rows) >= highMissingShare && len(q.HighMissingColumns) < qualityListLimit {
			q.HighMissingColumns = append(q.HighMissingColumns, name)
		}
	}
	return q
}
