package query

import (
	"encoding/json"

	"github.com/KaramelBytes/instadash-cli/internal/analysis"
	"github.com/KaramelBytes/instadash-cli/internal/retrieval"
)

const (
	maxContextColumns   = 60
	maxSummaryColumns   = 40
	maxContextTopValues = 6
	maxContextCorrs     = 8
	maxContextAnomalies = 12
	minSampleRows       = 3
	maxCellTokens       = 40
)

// ColumnSummary is the compact per-column view sent to the model.
type ColumnSummary struct {
	Type      analysis.ColumnType   `json:"type"`
	Missing   int                   `json:"missing"`
	Count     int                   `json:"count"`
	Mean      *float64              `json:"mean,omitempty"`
	Std       *float64              `json:"std,omitempty"`
	Min       any                   `json:"min,omitempty"`
	Max       any                   `json:"max,omitempty"`
	Unique    *int                  `json:"unique,omitempty"`
	ParseRate *float64              `json:"parse_rate,omitempty"`
	TopValues []analysis.ValueCount `json:"top_values,omitempty"`
}

// DatasetContext is everything the generative fallback may see: schema,
// profile summaries, correlations, anomalies, a small sample and the
// snippets retrieved for the question.
type DatasetContext struct {
	Shape              analysis.Shape           `json:"shape"`
	Columns            []string                 `json:"columns"`
	Types              analysis.Types           `json:"types"`
	ColumnSummary      map[string]ColumnSummary `json:"column_summary"`
	StrongCorrelations []analysis.Correlation   `json:"strong_correlations"`
	Anomalies          []analysis.Anomaly       `json:"anomalies"`
	SampleRows         []map[string]any         `json:"sample_rows"`
	Retrieved          []retrieval.Snippet      `json:"retrieved,omitempty"`
	SelectedColumns    []string                 `json:"selected_columns,omitempty"`
}

// BuildContext assembles the fallback context for question and trims it to
// the token budget, first by sampling fewer rows, then by keeping only the
// summaries of retrieved columns.
func BuildContext(s *Snapshot, question string, opt Options) *DatasetContext {
	opt = opt.withDefaults()
	p := s.profile()
	cols := s.Table.Columns()

	dc := &DatasetContext{
		Shape:              analysis.Shape{Rows: s.Table.Len(), Cols: s.Table.Width()},
		Columns:            capSlice(cols, maxContextColumns),
		Types:              s.types(),
		ColumnSummary:      map[string]ColumnSummary{},
		StrongCorrelations: []analysis.Correlation{},
		Anomalies:          []analysis.Anomaly{},
		SampleRows:         analysis.PreviewRows(s.Table, s.types(), opt.SampleRows),
	}
	for _, row := range dc.SampleRows {
		for k, v := range row {
			if str, ok := v.(string); ok {
				row[k] = clipCell(str, maxCellTokens)
			}
		}
	}
	for _, c := range capSlice(cols, maxSummaryColumns) {
		if st := p.Column(c); st != nil {
			dc.ColumnSummary[c] = summarize(st)
		}
	}
	if p != nil {
		dc.StrongCorrelations = append(dc.StrongCorrelations, capSlice(p.StrongCorrelations, maxContextCorrs)...)
	}
	dc.Anomalies = append(dc.Anomalies, capSlice(s.Analysis.Anomalies, maxContextAnomalies)...)

	res := BuildIndex(s, dc).Search(question, retrieval.DefaultTopK)
	dc.Retrieved = res.Snippets
	dc.SelectedColumns = res.SelectedColumns

	trimContext(dc, opt.ContextTokens)
	return dc
}

// BuildIndex indexes the context's column summaries, anomalies and correlations.
func BuildIndex(s *Snapshot, dc *DatasetContext) *retrieval.Index {
	docs := make([]retrieval.ColumnDoc, 0, len(dc.Columns))
	for _, c := range dc.Columns {
		doc := retrieval.ColumnDoc{Name: c}
		if sum, ok := dc.ColumnSummary[c]; ok {
			doc.Summary = compactJSON(sum)
			for _, tv := range sum.TopValues {
				doc.TopValues = append(doc.TopValues, tv.Value)
			}
		}
		docs = append(docs, doc)
	}
	var anomalies, corrs []string
	for _, a := range s.Analysis.Anomalies {
		anomalies = append(anomalies, compactJSON(a))
	}
	if p := s.profile(); p != nil {
		for _, c := range p.StrongCorrelations {
			corrs = append(corrs, compactJSON(c))
		}
	}
	return retrieval.Build(docs, anomalies, corrs)
}

func summarize(st *analysis.ColumnStats) ColumnSummary {
	out := ColumnSummary{Type: st.Type, Missing: st.Missing, Count: st.Count}
	switch st.Type {
	case analysis.TypeNumeric:
		out.Mean, out.Std = st.Mean, st.Std
		if st.Min != nil {
			out.Min = *st.Min
		}
		if st.Max != nil {
			out.Max = *st.Max
		}
		out.Unique = intp(st.Unique)
	case analysis.TypeDatetime:
		out.ParseRate = st.ParseRate
		if st.MinTime != "" {
			out.Min = st.MinTime
		}
		if st.MaxTime != "" {
			out.Max = st.MaxTime
		}
	default:
		out.Unique = intp(st.Unique)
		out.TopValues = capSlice(st.TopValues, maxContextTopValues)
	}
	return out
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func capSlice[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
