package query

import (
	"encoding/json"

	"github.com/KaramelBytes/instadash-cli/internal/analysis"
)

// Operation names recorded in a citation trail. Aggregations are recorded
// under their own name (sum, mean, min, max, count).
const (
	OpFilter     = "filter"
	OpTimeBucket = "time_bucket"
	OpGroupBy    = "groupby"
	OpSort       = "sort"
	OpLimit      = "limit"
	OpCount      = "count"
	OpCountRows  = "count_rows"
)

// rowsPseudoColumn names the aggregated column when a pivot counts rows.
const rowsPseudoColumn = "__rows__"

// Operation is one step of the computation that produced an answer.
type Operation struct {
	Op          string         `json:"op"`
	Col         string         `json:"col,omitempty"`
	By          []string       `json:"by,omitempty"`
	Metric      string         `json:"metric,omitempty"`
	Agg         string         `json:"agg,omitempty"`
	Order       string         `json:"order,omitempty"`
	N           int            `json:"n,omitempty"`
	Grain       analysis.Grain `json:"grain,omitempty"`
	Filters     map[string]any `json:"filters,omitempty"`
	SpikeBucket string         `json:"spike_bucket,omitempty"`
	PrevBucket  string         `json:"prev_bucket,omitempty"`
	Scope       string         `json:"scope,omitempty"`
}

func filterOp(filters map[string]any) Operation { return Operation{Op: OpFilter, Filters: filters} }

func timeBucketOp(col string, g analysis.Grain) Operation {
	return Operation{Op: OpTimeBucket, Col: col, Grain: g}
}

func groupByOp(keys ...string) Operation { return Operation{Op: OpGroupBy, By: keys} }

// aggOp records an aggregation of col; the op name is the aggregation itself.
func aggOp(agg, col string) Operation { return Operation{Op: agg, Col: col} }

func sortDescOp(by string) Operation { return Operation{Op: OpSort, By: []string{by}, Order: "desc"} }

func limitOp(n int) Operation { return Operation{Op: OpLimit, N: n} }

// MarshalJSON always writes n for limit steps, including a limit of 0.
func (o Operation) MarshalJSON() ([]byte, error) {
	type plain Operation
	out := struct {
		plain
		N *int `json:"n,omitempty"`
	}{plain: plain(o)}
	if o.Op == OpLimit || o.N != 0 {
		out.N = &o.N
	}
	return json.Marshal(out)
}

// Usage reports model token consumption for generated answers.
type Usage struct {
	PromptTokens     int      `json:"prompt_tokens"`
	CompletionTokens int      `json:"completion_tokens"`
	TotalTokens      int      `json:"total_tokens"`
	CostUSD          *float64 `json:"cost_usd,omitempty"`
}

// Citations describe how an answer was produced. Computed answers carry the
// exact operation trail; generated answers carry the model and usage.
type Citations struct {
	Computed          bool        `json:"computed"`
	Source            string      `json:"source,omitempty"`
	Question          string      `json:"question,omitempty"`
	AnomalyIndex      *int        `json:"anomaly_index,omitempty"`
	ColumnsUsed       []string    `json:"columns_used"`
	Operations        []Operation `json:"operations,omitempty"`
	RowsScanned       *int        `json:"rows_scanned,omitempty"`
	RowsReturned      *int        `json:"rows_returned,omitempty"`
	RowsInSpikeBucket *int        `json:"rows_in_spike_bucket,omitempty"`
	RowsInPrevBucket  *int        `json:"rows_in_prev_bucket,omitempty"`
	Model             string      `json:"model,omitempty"`
	PromptVersion     string      `json:"prompt_version,omitempty"`
	Usage             *Usage      `json:"usage,omitempty"`
	Retrieved         []string    `json:"retrieved,omitempty"`
}

func computed(question string, ops []Operation, cols []string, scanned, returned int) Citations {
	if cols == nil {
		cols = []string{}
	}
	return Citations{
		Computed:     true,
		Question:     question,
		ColumnsUsed:  cols,
		Operations:   ops,
		RowsScanned:  intp(scanned),
		RowsReturned: intp(returned),
	}
}

func intp(v int) *int { return &v }
