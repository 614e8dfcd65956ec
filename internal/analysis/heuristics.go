package analysis

import (
	"regexp"
	"strings"
)

// Name heuristics are ordered pattern tables so new rules can be added
// without touching the ranking code.

var idLikeName = regexp.MustCompile(`(?i)(id|uuid|guid|email|phone|mobile|address|lat|lon|zip|postal)`)

// IsIDLike reports whether a column name looks like an identifier or contact field.
func IsIDLike(name string) bool { return idLikeName.MatchString(name) }

type nameWeight struct {
	pattern *regexp.Regexp
	factor  float64
}

// metricNameWeights multiply a metric candidate's score; every matching rule applies.
var metricNameWeights = []nameWeight{
	{regexp.MustCompile(`(?i)(revenue|sales|amount|total|price|cost|spend|profit|gmv|qty|quantity)`), 1.35},
	{regexp.MustCompile(`(?i)(index|rank|score)`), 1.05},
}

func metricNameFactor(name string) float64 {
	f := 1.0
	for _, w := range metricNameWeights {
		if w.pattern.MatchString(name) {
			f *= w.factor
		}
	}
	return f
}

type aggRule struct {
	pattern *regexp.Regexp
	agg     string
}

// chartAggRules choose sum or mean for a metric by name; first match wins.
var chartAggRules = []aggRule{
	{regexp.MustCompile(`(?i)(revenue|sales|amount|total|price|cost|spend|profit|qty|quantity|count)`), "sum"},
	{regexp.MustCompile(`(?i)(rate|ratio|percent|pct|avg|average|mean|age|score)`), "mean"},
}

// trendAggRules are used by question answering, which does not treat "count" as additive.
var trendAggRules = []aggRule{
	{regexp.MustCompile(`(?i)(revenue|sales|amount|total|price|cost|spend|profit|qty|quantity)`), "sum"},
	{regexp.MustCompile(`(?i)(rate|ratio|percent|pct|avg|average|mean|age|score)`), "mean"},
}

const skewSumThreshold = 2.0

// MetricAgg picks how a metric should be aggregated when grouped: name rules
// first, then |skew| > 2 suggests an additive amount, otherwise mean.
func MetricAgg(name string, st *ColumnStats) string {
	if agg, ok := matchAgg(chartAggRules, name); ok {
		return agg
	}
	if st != nil && st.Skew != nil && abs(*st.Skew) > skewSumThreshold {
		return "sum"
	}
	return "mean"
}

// TrendAgg guesses the aggregation for a metric requested in a question.
func TrendAgg(name string) string {
	if agg, ok := matchAgg(trendAggRules, name); ok {
		return agg
	}
	return "mean"
}

func matchAgg(rules []aggRule, name string) (string, bool) {
	for _, r := range rules {
		if r.pattern.MatchString(name) {
			return r.agg, true
		}
	}
	return "", false
}

// businessMetricPrefs is the preference order for a dataset's primary metric.
var businessMetricPrefs = []string{"revenue", "sales", "amount", "total", "price", "profit", "cost", "spend", "qty", "quantity"}

// PrimaryMetric returns the first numeric column whose name contains a
// business keyword, in preference order, else the first numeric column.
func PrimaryMetric(numCols []string) string {
	for _, p := range businessMetricPrefs {
		for _, c := range numCols {
			if strings.Contains(strings.ToLower(c), p) {
				return c
			}
		}
	}
	if len(numCols) > 0 {
		return numCols[0]
	}
	return ""
}

// Pretty renders a column name as a label.
func Pretty(s string) string { return strings.TrimSpace(strings.ReplaceAll(s, "_", " ")) }

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
