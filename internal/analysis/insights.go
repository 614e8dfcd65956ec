package analysis

import (
	"fmt"
	"sort"
	"strings"
)

// Insight is a short human-readable finding.
type Insight struct {
	Type string   `json:"type"`
	Text string   `json:"text"`
	Meta *Anomaly `json:"meta,omitempty"`
}

const (
	maxInsights         = 12
	insightMissingCols  = 5
	insightQualityNames = 8
)

// SummarizeInsights turns the profile, chart suggestions and anomalies into
// at most 12 insights.
func SummarizeInsights(p *Profile, specs []ChartSpec, anomalies []Anomaly) []Insight {
	out := []Insight{}
	if p == nil {
		return out
	}
	out = append(out, Insight{Type: "summary", Text: fmt.Sprintf("Loaded %s rows across %d columns.", Commas(p.Shape.Rows), p.Shape.Cols)})

	if top := topMissing(p.MissingByCol, insightMissingCols); len(top) > 0 {
		parts := make([]string, 0, len(top))
		for _, m := range top {
			parts = append(parts, fmt.Sprintf("%s (%s)", m.name, Commas(m.n)))
		}
		out = append(out, Insight{Type: "data_quality", Text: "Missing values detected. Top columns: " + strings.Join(parts, ", ")})
	}

	q := p.Quality
	if q.DuplicateRows > 0 {
		out = append(out, Insight{Type: "data_quality", Text: fmt.Sprintf("Found %s duplicate rows. Consider de-duplicating before reporting.", Commas(q.DuplicateRows))})
	}
	if len(q.ConstantColumns) > 0 {
		out = append(out, Insight{Type: "data_quality", Text: "Constant columns (no variation): " + strings.Join(firstN(q.ConstantColumns, insightQualityNames), ", ")})
	}
	if len(q.HighMissingColumns) > 0 {
		out = append(out, Insight{Type: "data_quality", Text: "High-missing columns (≥30% empty): " + strings.Join(firstN(q.HighMissingColumns, insightQualityNames), ", ")})
	}

	if len(p.StrongCorrelations) > 0 {
		c := p.StrongCorrelations[0]
		out = append(out, Insight{Type: "correlation", Text: fmt.Sprintf("Strong correlation detected: %s vs %s (corr=%.2f).", c.A, c.B, c.Corr)})
	}

	if in, ok := anomalyInsight(anomalies); ok {
		out = append(out, in)
	}

	if len(specs) > 0 {
		out = append(out, Insight{Type: "charts", Text: fmt.Sprintf("Generated %s tailored to this dataset.", chartSummary(specs))})
	}

	if len(out) > maxInsights {
		out = out[:maxInsights]
	}
	return out
}

func anomalyInsight(anomalies []Anomaly) (Insight, bool) {
	for i := range anomalies {
		if s := anomalies[i].Spike; s != nil {
			grain := ""
			if s.TimeGrain != "" {
				grain = fmt.Sprintf(" (%s)", s.TimeGrain)
			}
			return Insight{Type: "anomaly", Text: fmt.Sprintf("Anomaly spike in %s around %s%s.", s.YCol, s.X, grain), Meta: &anomalies[i]}, true
		}
	}
	for i := range anomalies {
		if o := anomalies[i].Outlier; o != nil {
			return Insight{Type: "anomaly", Text: fmt.Sprintf("Outliers detected in %s (outside IQR bounds).", o.Col), Meta: &anomalies[i]}, true
		}
	}
	return Insight{}, false
}

func chartSummary(specs []ChartSpec) string {
	counts := map[string]int{}
	for _, s := range specs {
		counts[s.Type]++
	}
	var parts []string
	for _, k := range []struct{ typ, label string }{
		{ChartLine, "trend charts"},
		{ChartBar, "breakdown charts"},
		{ChartHist, "distributions"},
		{ChartScatter, "relationships"},
	} {
		if n := counts[k.typ]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, k.label))
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%d charts", len(specs))
	}
	return strings.Join(parts, ", ")
}

type namedCount struct {
	name string
	n    int
}

// topMissing lists columns with missing cells, most missing first, ties by name.
func topMissing(missing map[string]int, limit int) []namedCount {
	var out []namedCount
	for name, n := range missing {
		if n > 0 {
			out = append(out, namedCount{name, n})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].n != out[j].n {
			return out[i].n > out[j].n
		}
		return out[i].name < out[j].name
	})
	return firstN(out, limit)
}

func firstN[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
