package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/instadash-cli/internal/dataset"
)

// ChartSpec is a declarative chart recommendation.
type ChartSpec struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	X         string `json:"x,omitempty"`
	Y         string `json:"y,omitempty"`
	A         string `json:"a,omitempty"`
	B         string `json:"b,omitempty"`
	Agg       string `json:"agg,omitempty"`
	TimeGrain Grain  `json:"time_grain,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Bins      int    `json:"bins,omitempty"`
	Title     string `json:"title"`
	Section   string `json:"section,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// Chart types.
const (
	ChartLine       = "line"
	ChartBar        = "bar"
	ChartHist       = "hist"
	ChartScatter    = "scatter"
	ChartTable      = "table"
	ChartTableCombo = "table_combo"
)

// Sections group suggestions in the dashboard.
const (
	SectionRecommended   = "Recommended"
	SectionTrends        = "Trends"
	SectionBreakdowns    = "Breakdowns"
	SectionDistributions = "Distributions"
	SectionRelationships = "Relationships"
)

const (
	candidateLimit    = 4
	dimMinUnique      = 2
	dimMaxUnique      = 60
	dimMaxUniqueRatio = 0.35
	dimTargetUnique   = 10
	metricMinCoverage = 0.4
	barLimit          = 12
	comboLimit        = 20
)

// SuggestCharts ranks chart recommendations for the table. profile may be nil.
func SuggestCharts(t *dataset.Table, types Types, profile *Profile, opt Options) []ChartSpec {
	opt = opt.withDefaults()
	if profile == nil {
		profile = BuildProfile(t, types, opt)
	}
	rows := profile.Shape.Rows
	numCols := ColumnsOfType(t, types, TypeNumeric)

	x := bestDatetime(ColumnsOfType(t, types, TypeDatetime), profile)
	dims := dimCandidates(ColumnsOfType(t, types, TypeCategorical), profile, rows, candidateLimit)
	metrics := metricCandidates(numCols, profile, rows, candidateLimit)

	var primary string
	if len(metrics) > 0 {
		primary = metrics[0]
	}
	var grain Grain
	if x != "" {
		grain, _ = InferGrain(profile.Column(x))
	}

	var out []ChartSpec
	if x != "" {
		out = append(out, ChartSpec{
			ID: "line:" + x + ":" + CountColumn, Type: ChartLine, X: x, Y: CountColumn, Agg: "count", TimeGrain: grain,
			Title: "Rows over time", Section: SectionRecommended,
			Reason: fmt.Sprintf("Shows activity over time using %s.", Pretty(x)),
		})
	}
	if x != "" && primary != "" {
		for _, y := range metrics[:min(3, len(metrics))] {
			agg := MetricAgg(y, profile.Column(y))
			out = append(out, ChartSpec{
				ID: "line:" + x + ":" + y, Type: ChartLine, X: x, Y: y, Agg: agg, TimeGrain: grain,
				Title:   fmt.Sprintf("%s over time (%s)", Pretty(y), agg),
				Section: SectionTrends,
				Reason:  fmt.Sprintf("%s(%s) grouped by %s (%s).", strings.ToUpper(agg), Pretty(y), Pretty(x), grain),
			})
		}
	}
	for _, c := range dims[:min(3, len(dims))] {
		out = append(out, ChartSpec{
			ID: "bar:" + c + ":" + CountColumn, Type: ChartBar, X: c, Y: CountColumn, Agg: "count", Limit: barLimit,
			Title: "Count by " + Pretty(c), Section: SectionBreakdowns,
			Reason: fmt.Sprintf("Most common %s values (top %d).", Pretty(c), barLimit),
		})
	}
	if primary != "" {
		agg := MetricAgg(primary, profile.Column(primary))
		for _, c := range dims[:min(2, len(dims))] {
			out = append(out, ChartSpec{
				ID: fmt.Sprintf("bar:%s:%s:%s", c, primary, agg), Type: ChartBar, X: c, Y: primary, Agg: agg, Limit: barLimit,
				Title:   fmt.Sprintf("%s %s by %s", titleCase(agg), Pretty(primary), Pretty(c)),
				Section: SectionBreakdowns,
				Reason:  fmt.Sprintf("%s(%s) grouped by %s (top %d).", strings.ToUpper(agg), Pretty(primary), Pretty(c), barLimit),
			})
		}
	}
	if len(dims) >= 2 {
		a, b := dims[0], dims[1]
		out = append(out, ChartSpec{
			ID: "table:combo:" + a + ":" + b, Type: ChartTableCombo, A: a, B: b, Limit: comboLimit,
			Title:   fmt.Sprintf("Top combinations: %s × %s", Pretty(a), Pretty(b)),
			Section: SectionRecommended,
			Reason:  "Quickly reveals the most frequent category pairs.",
		})
	}
	for _, y := range metrics[:min(3, len(metrics))] {
		out = append(out, ChartSpec{
			ID: "hist:" + y, Type: ChartHist, X: y, Bins: opt.HistBins,
			Title: "Distribution of " + Pretty(y), Section: SectionDistributions,
			Reason: fmt.Sprintf("Shows spread and outliers in %s.", Pretty(y)),
		})
	}
	for _, pair := range scatterPairs(numCols, profile, 2) {
		a, b := pair[0], pair[1]
		out = append(out, ChartSpec{
			ID: "scatter:" + a + ":" + b, Type: ChartScatter, X: a, Y: b,
			Title: fmt.Sprintf("%s vs %s", Pretty(b), Pretty(a)), Section: SectionRelationships,
			Reason: "Strongest correlation detected in numeric columns.",
		})
	}
	if x == "" && primary != "" && len(dims) > 0 {
		c := dims[0]
		agg := MetricAgg(primary, profile.Column(primary))
		out = append(out, ChartSpec{
			ID: fmt.Sprintf("bar:%s:%s:%s:top", c, primary, agg), Type: ChartBar, X: c, Y: primary, Agg: agg, Limit: barLimit,
			Title:   fmt.Sprintf("Top %s by %s %s", Pretty(c), agg, Pretty(primary)),
			Section: SectionRecommended,
			Reason:  "Best single view when there is no time column.",
		})
	}
	if len(out) == 0 {
		out = append(out, ChartSpec{ID: "table:preview", Type: ChartTable, Title: "Data preview"})
	}
	return dedupeSpecs(out, opt.MaxCharts)
}

func dedupeSpecs(specs []ChartSpec, limit int) []ChartSpec {
	seen := map[string]struct{}{}
	out := make([]ChartSpec, 0, len(specs))
	for _, s := range specs {
		if _, ok := seen[s.ID]; ok {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, s)
		if len(out) >= limit {
			break
		}
	}
	return out
}

type rankedName struct {
	name  string
	score float64
}

func topNames(rs []rankedName, limit int) []string {
	sort.SliceStable(rs, func(i, j int) bool { return rs[i].score > rs[j].score })
	out := make([]string, 0, limit)
	for i := 0; i < len(rs) && i < limit; i++ {
		out = append(out, rs[i].name)
	}
	return out
}

// dimCandidates keeps readable categorical columns (not id-like, 2-60 distinct
// values, unique ratio ≤ 0.35) ranked by closeness of cardinality to 10.
func dimCandidates(catCols []string, p *Profile, rows, limit int) []string {
	var rs []rankedName
	for _, c := range catCols {
		if IsIDLike(c) {
			continue
		}
		st := p.Column(c)
		if st == nil {
			continue
		}
		uniq := float64(st.Unique)
		ratio := uniq / math.Max(float64(rows), 1)
		if st.UniqueRatio != nil {
			ratio = *st.UniqueRatio
		}
		if uniq < dimMinUnique || uniq > dimMaxUnique || ratio > dimMaxUniqueRatio {
			continue
		}
		rs = append(rs, rankedName{c, -math.Abs(uniq - dimTargetUnique)})
	}
	return topNames(rs, limit)
}

// metricCandidates ranks numeric columns with coverage ≥ 0.4 by spread,
// boosted by business-like names. With no qualifying column it falls back to
// the plain spread ranking over all numeric columns.
func metricCandidates(numCols []string, p *Profile, rows, limit int) []string {
	var rs []rankedName
	for _, c := range numCols {
		score, coverage := numericScore(p.Column(c), rows)
		if coverage < metricMinCoverage {
			continue
		}
		rs = append(rs, rankedName{c, score * metricNameFactor(c)})
	}
	if len(rs) == 0 {
		return topNumeric(numCols, p, rows, limit)
	}
	return topNames(rs, limit)
}

func scatterPairs(numCols []string, p *Profile, limit int) [][2]string {
	var out [][2]string
	for _, c := range p.StrongCorrelations {
		if c.A != "" && c.B != "" {
			out = append(out, [2]string{c.A, c.B})
		}
		if len(out) >= limit {
			break
		}
	}
	if len(out) > 0 {
		return out
	}
	if len(numCols) >= 2 {
		return [][2]string{{numCols[0], numCols[1]}}
	}
	return nil
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
