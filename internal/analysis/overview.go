package analysis

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/KaramelBytes/instadash-cli/internal/dataset"
)

// KPI is a headline figure for the dashboard.
type KPI struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

// Health scores overall data quality from 0 to 100.
type Health struct {
	Score         float64 `json:"score"`
	MissingPct    float64 `json:"missing_pct"`
	DuplicateRows int     `json:"duplicate_rows"`
}

// Overview is the compact dashboard summary of an analysed table.
type Overview struct {
	KPIs               []KPI             `json:"kpis"`
	Highlights         []Insight         `json:"highlights"`
	SuggestedQuestions []string          `json:"suggested_questions"`
	Columns            []string          `json:"columns"`
	Health             Health            `json:"health"`
	Privacy            Privacy           `json:"privacy"`
	ExecutiveBrief     *ExecutiveBrief   `json:"executive_brief"`
	DataDictionary     []DictionaryEntry `json:"data_dictionary"`
}

const (
	maxKPIs         = 8
	maxHighlights   = 6
	maxQuestions    = 8
	maxOverviewCols = 60
	missingRateNote = 0.05
)

// BuildOverview derives KPIs, highlights, suggested questions, health, the
// privacy scan, the executive brief and the data dictionary.
func BuildOverview(t *dataset.Table, types Types, p *Profile) Overview {
	if p == nil {
		p = BuildProfile(t, types, DefaultOptions())
	}
	rows, cols := p.Shape.Rows, p.Shape.Cols
	dup := p.Quality.DuplicateRows
	totalMissing := 0
	for _, n := range p.MissingByCol {
		totalMissing += n
	}
	missingRate := float64(totalMissing) / float64(max(rows*max(cols, 1), 1))

	dtCols := ColumnsOfType(t, types, TypeDatetime)
	numCols := ColumnsOfType(t, types, TypeNumeric)
	catCols := ColumnsOfType(t, types, TypeCategorical)
	primary := PrimaryMetric(numCols)

	kpis := []KPI{
		{Label: "Rows", Value: rows},
		{Label: "Columns", Value: cols},
		{Label: "Missing %", Value: round(missingRate*100, 2)},
		{Label: "Duplicates", Value: dup},
	}
	if len(dtCols) > 0 {
		if st := p.Column(dtCols[0]); st != nil && st.MinTime != "" && st.MaxTime != "" {
			kpis = append([]KPI{{Label: "Date range", Value: st.MinTime + " → " + st.MaxTime}}, kpis...)
		}
	}
	if primary != "" {
		c, _ := t.Column(primary)
		if vals := c.ValidFloats(); len(vals) > 0 {
			total := floats.Sum(vals)
			var head []KPI
			if avg := meanOf(vals, total); isFinite(avg) {
				head = append(head, KPI{Label: "Avg " + primary, Value: avg})
			}
			// sums past MaxFloat64 would not survive JSON encoding
			if isFinite(total) {
				head = append(head, KPI{Label: "Total " + primary, Value: total})
			}
			kpis = append(head, kpis...)
		}
	}

	var qs []string
	if primary != "" && len(catCols) > 0 {
		qs = append(qs, fmt.Sprintf("top 10 %s by %s", catCols[0], primary))
	}
	if primary != "" {
		qs = append(qs, "mean "+primary, "sum "+primary)
	}
	if len(dtCols) > 0 && primary != "" {
		qs = append(qs, fmt.Sprintf("trend of %s by month", primary))
	}
	if len(dtCols) > 0 {
		qs = append(qs, "rows over time")
	}
	if len(catCols) > 0 {
		qs = append(qs, "count by "+catCols[0])
	}

	highlights := []Insight{}
	if missingRate >= missingRateNote {
		highlights = append(highlights, Insight{Type: "data_quality", Text: fmt.Sprintf("%.1f%% of cells are missing.", missingRate*100)})
	}
	if dup > 0 {
		highlights = append(highlights, Insight{Type: "data_quality", Text: fmt.Sprintf("%s duplicate rows detected.", Commas(dup))})
	}
	if len(p.StrongCorrelations) > 0 {
		c := p.StrongCorrelations[0]
		highlights = append(highlights, Insight{Type: "correlation", Text: fmt.Sprintf("%s and %s correlate at %.2f.", c.A, c.B, c.Corr)})
	}

	return Overview{
		KPIs:               firstN(kpis, maxKPIs),
		Highlights:         firstN(highlights, maxHighlights),
		SuggestedQuestions: firstN(append([]string{}, qs...), maxQuestions),
		Columns:            firstN(t.Columns(), maxOverviewCols),
		Health:             ComputeHealth(p),
		Privacy:            ScanPII(t, DefaultPIIOptions()),
		ExecutiveBrief:     BuildExecutiveBrief(t, types, p),
		DataDictionary:     BuildDataDictionary(t, types, p),
	}
}

// ComputeHealth starts from 100 and subtracts capped penalties for missing
// cells, duplicate rows, constant columns and high-missing columns.
func ComputeHealth(p *Profile) Health {
	rows, cols := p.Shape.Rows, p.Shape.Cols
	totalMissing := 0
	for _, n := range p.MissingByCol {
		totalMissing += n
	}
	cells := max(rows*cols, 1)
	missingPct := float64(totalMissing) / float64(cells) * 100
	dupPct := float64(p.Quality.DuplicateRows) / float64(max(rows, 1)) * 100

	score := 100.0
	score -= math.Min(40, missingPct)
	score -= math.Min(30, dupPct)
	score -= math.Min(15, 5*float64(len(p.Quality.ConstantColumns)))
	score -= math.Min(15, 3*float64(len(p.Quality.HighMissingColumns)))
	score = math.Max(0, math.Min(100, score))

	return Health{Score: round(score, 1), MissingPct: round(missingPct, 2), DuplicateRows: p.Quality.DuplicateRows}
}
