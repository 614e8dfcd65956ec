package query

import "github.com/KaramelBytes/instadash-cli/internal/analysis"

// Answer types.
const (
	TypeText  = "text"
	TypeTable = "table"
	TypeChart = "chart"
)

// Answer origins.
const (
	OriginComputed  = "computed"
	OriginGenerated = "generated"
	OriginHeuristic = "heuristic"
)

// Table is a tabular answer payload.
type Table struct {
	Columns []string         `json:"columns,omitempty"`
	Rows    []map[string]any `json:"rows"`
}

// Answer is the result of a question, a pivot or a spike explanation.
type Answer struct {
	Type      string          `json:"type"`
	Text      string          `json:"text"`
	Table     *Table          `json:"table,omitempty"`
	Chart     *analysis.Chart `json:"chart,omitempty"`
	Citations *Citations      `json:"citations,omitempty"`
	Origin    string          `json:"origin"`
}
