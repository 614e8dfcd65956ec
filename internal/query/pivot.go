package query

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/KaramelBytes/instadash-cli/internal/analysis"
	"github.com/KaramelBytes/instadash-cli/internal/apperr"
	"github.com/KaramelBytes/instadash-cli/internal/dataset"
)

const (
	minPivotTopN = 1
	maxPivotTopN = 50
	maxBarLabel  = 40
	bucketKey    = "_bucket"
)

// PivotRequest selects an explicit group-by/aggregate pipeline.
type PivotRequest struct {
	GroupBy []string `json:"group_by"`
	// Metric is empty to count rows.
	Metric    string         `json:"metric,omitempty"`
	Agg       string         `json:"agg" validate:"omitempty,oneof=sum mean count min max"`
	DateCol   string         `json:"date_col,omitempty"`
	TimeGrain analysis.Grain `json:"time_grain,omitempty" validate:"omitempty,oneof=day week month"`
	// TopN is clamped to [1, 50]; 0 uses the configured default.
	TopN      int            `json:"top_n,omitempty"`
	Filters   map[string]any `json:"filters,omitempty"`
	ChartType string         `json:"chart_type,omitempty" validate:"omitempty,oneof=bar line table"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field values, not column references.
func (r PivotRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return apperr.Inputf("invalid %s: %v (allowed: %s)", fe.Field(), fe.Value(), fe.Param())
		}
		return apperr.Wrap(apperr.KindInput, "invalid pivot request", err)
	}
	return nil
}

// RunPivot filters, optionally buckets by time, groups and aggregates.
// A pure time series (date bucket only) keeps chronological order and is
// not truncated; other pivots sort by value descending and keep top_n.
func RunPivot(s *Snapshot, req PivotRequest, opt Options) (*Answer, error) {
	opt = opt.withDefaults()
	if err := req.Validate(); err != nil {
		return nil, err
	}
	t := s.Table

	var groupBy []string
	for _, g := range req.GroupBy {
		if g != "" {
			groupBy = append(groupBy, g)
		}
	}
	if len(groupBy) == 0 && req.DateCol == "" {
		return nil, apperr.Input("Select at least one group_by or a date column")
	}
	for _, g := range groupBy {
		if !t.Has(g) {
			return nil, apperr.Inputf("Unknown group_by column: %s", g)
		}
	}
	if req.Metric != "" && !t.Has(req.Metric) {
		return nil, apperr.Inputf("Unknown metric column: %s", req.Metric)
	}
	if req.DateCol != "" && !t.Has(req.DateCol) {
		return nil, apperr.Inputf("Unknown date column: %s", req.DateCol)
	}

	agg := req.Agg
	if agg == "" {
		agg = "sum"
	}
	topN := req.TopN
	if topN == 0 {
		topN = opt.PivotTopN
	}
	topN = min(max(topN, minPivotTopN), maxPivotTopN)
	chartType := req.ChartType
	if chartType == "" {
		chartType = analysis.ChartBar
	}

	include := filterRows(t, req.Filters)

	var keyFns []analysis.KeyFunc
	var keys []string
	grain := req.TimeGrain
	if req.DateCol != "" {
		if grain == "" {
			grain = analysis.GrainMonth
		}
		dc, _ := t.Column(req.DateCol)
		times, ok := dc.Times()
		keyFns = append(keyFns, func(r int) (string, bool) {
			if !ok[r] {
				return "", false
			}
			return dataset.FormatTime(analysis.BucketStart(times[r], grain)), true
		})
		keys = append(keys, bucketKey)
	}
	for _, g := range groupBy {
		c, _ := t.Column(g)
		keyFns = append(keyFns, analysis.ColumnKey(c))
		keys = append(keys, g)
	}

	counting := req.Metric == "" || agg == "count"
	var value analysis.ValueFunc
	yLabel := "count"
	if !counting {
		c, _ := t.Column(req.Metric)
		value = analysis.ColumnValue(c)
		yLabel = fmt.Sprintf("%s(%s)", agg, req.Metric)
	}
	groups := analysis.FiniteGroups(analysis.GroupRows(t.Len(), include, keyFns, value, agg))

	timeSeries := req.DateCol != "" && len(keys) == 1
	if !timeSeries {
		analysis.SortGroupsDesc(groups)
		if len(groups) > topN {
			groups = groups[:topN]
		}
	}

	ops := []Operation{}
	if len(req.Filters) > 0 {
		ops = append(ops, filterOp(req.Filters))
	}
	if req.DateCol != "" {
		ops = append(ops, timeBucketOp(req.DateCol, grain))
	}
	ops = append(ops, groupByOp(keys...))
	if req.Metric != "" {
		ops = append(ops, aggOp(agg, req.Metric))
	} else {
		ops = append(ops, aggOp(OpCount, rowsPseudoColumn))
	}
	if !timeSeries {
		ops = append(ops, sortDescOp("y"), limitOp(topN))
	}
	cols := append([]string{}, keys...)
	if req.Metric != "" {
		cols = append(cols, req.Metric)
	}
	cite := computed("", ops, cols, t.Len(), len(groups))
	cite.Source = "pivot"

	rows := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		row := make(map[string]any, len(keys)+1)
		for i, k := range keys {
			row[k] = g.Keys[i]
		}
		row["y"] = g.Value
		rows = append(rows, row)
	}
	table := &Table{Columns: append(append([]string{}, keys...), "y"), Rows: rows}
	ans := &Answer{Table: table, Citations: &cite, Origin: OriginComputed}

	switch {
	case chartType == analysis.ChartTable:
		ans.Type = TypeTable
		ans.Text = fmt.Sprintf("Pivot result (%s).", yLabel)
	case timeSeries:
		data := make([]analysis.Point, 0, len(groups))
		for _, g := range groups {
			data = append(data, analysis.Point{X: truncate(g.Keys[0], 10), Y: g.Value})
		}
		ans.Type = TypeChart
		ans.Text = yLabel + " over time."
		ans.Chart = &analysis.Chart{Type: analysis.ChartLine, Title: yLabel + " over time", X: "x", Y: "y", Data: data, TimeGrain: grain, Agg: agg}
	default:
		xKey := keys[len(keys)-1]
		data := make([]analysis.Point, 0, len(groups))
		for _, g := range groups {
			data = append(data, analysis.Point{X: truncate(g.Keys[len(g.Keys)-1], maxBarLabel), Y: g.Value})
		}
		ans.Type = TypeChart
		ans.Text = fmt.Sprintf("%s by %s.", yLabel, xKey)
		ans.Chart = &analysis.Chart{Type: analysis.ChartBar, Title: fmt.Sprintf("%s by %s", yLabel, xKey), X: "x", Y: "y", Data: data, Agg: agg}
	}
	return ans, nil
}

// filterRows builds a row predicate from equality (scalar) and membership
// (list) filters. Filters on unknown columns are ignored.
func filterRows(t *dataset.Table, filters map[string]any) func(r int) bool {
	type pred struct {
		col   *dataset.Column
		wants []any
	}
	var preds []pred
	for name, v := range filters {
		c, ok := t.Column(name)
		if !ok {
			continue
		}
		switch vv := v.(type) {
		case []any:
			preds = append(preds, pred{col: c, wants: vv})
		case []string:
			ws := make([]any, len(vv))
			for i, s := range vv {
				ws[i] = s
			}
			preds = append(preds, pred{col: c, wants: ws})
		default:
			preds = append(preds, pred{col: c, wants: []any{v}})
		}
	}
	if len(preds) == 0 {
		return nil
	}
	return func(r int) bool {
		for _, p := range preds {
			if !cellMatchesAny(p.col, p.col.Cells[r], p.wants) {
				return false
			}
		}
		return true
	}
}

// cellMatchesAny compares raw text, and numerically when both sides are numbers.
func cellMatchesAny(c *dataset.Column, cell dataset.Cell, wants []any) bool {
	for _, w := range wants {
		if w == nil {
			if cell.Null {
				return true
			}
			continue
		}
		if cell.Null {
			continue
		}
		switch wv := w.(type) {
		case string:
			if cell.Raw == wv {
				return true
			}
		case float64, int, int64, float32:
			want, _ := strconv.ParseFloat(fmt.Sprint(wv), 64)
			if got, ok := c.Parse(cell.Raw); ok && got == want {
				return true
			}
		case bool:
			if got, ok := dataset.ParseBool(cell.Raw); ok && got == wv {
				return true
			}
		default:
			if cell.Raw == fmt.Sprint(wv) {
				return true
			}
		}
	}
	return false
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
