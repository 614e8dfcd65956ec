package query

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/KaramelBytes/instadash-cli/internal/analysis"
	"github.com/KaramelBytes/instadash-cli/internal/dataset"
)

var (
	topNPattern    = regexp.MustCompile(`\btop\s+(\d+)\s+(.+?)\s+by\s+(.+)$`)
	scalarPattern  = regexp.MustCompile(`\b(average|mean|sum|max|min)\b\s+(.+)$`)
	trendOfPattern = regexp.MustCompile(`(?:trend of|over time of)\s+(.+)$`)
	countPattern   = regexp.MustCompile(`^\s*count\s*$`)
	rowsPattern    = regexp.MustCompile(`\b(rows?|records?|count)\b`)
)

var trendTriggers = []string{"over time", "trend", "by month", "by week", "by day"}

// TryCompute answers common analytics questions deterministically. Patterns
// are tried in order: top-N, scalar aggregate, trend, row count. It returns
// nil when no pattern applies so the caller can fall back.
func TryCompute(s *Snapshot, question string) *Answer {
	q := strings.TrimSpace(question)
	ql := strings.ToLower(q)
	for _, try := range []func(*Snapshot, string, string) *Answer{topN, scalar, trend, rowCount} {
		if a := try(s, q, ql); a != nil {
			a.Origin = OriginComputed
			return a
		}
	}
	return nil
}

func topN(s *Snapshot, q, ql string) *Answer {
	m := topNPattern.FindStringSubmatch(ql)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	cols := s.Table.Columns()
	dim, ok1 := MatchColumn(m[2], cols)
	metric, ok2 := MatchColumn(m[3], cols)
	if !ok1 || !ok2 {
		return nil
	}
	const agg = "sum"
	groups := analysis.FiniteGroups(analysis.GroupBy(s.Table, []string{dim}, metric, agg))
	analysis.SortGroupsDesc(groups)
	if len(groups) > max(1, n) {
		groups = groups[:max(1, n)]
	}
	rows := make([]map[string]any, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, map[string]any{dim: g.Keys[0], metric: g.Value})
	}
	cite := computed(q, []Operation{
		{Op: OpGroupBy, By: []string{dim}, Metric: metric, Agg: agg},
		sortDescOp(metric),
		limitOp(n),
	}, []string{dim, metric}, s.Table.Len(), len(rows))
	return &Answer{
		Type:      TypeTable,
		Text:      fmt.Sprintf("Top %d %s by %s(%s).", n, dim, agg, metric),
		Table:     &Table{Columns: []string{dim, metric}, Rows: rows},
		Citations: &cite,
	}
}

func scalar(s *Snapshot, q, ql string) *Answer {
	m := scalarPattern.FindStringSubmatch(ql)
	if m == nil {
		return nil
	}
	col, ok := MatchColumn(m[2], s.Table.Columns())
	if !ok {
		return nil
	}
	op := m[1]
	if op == "average" {
		op = "mean"
	}
	c, _ := s.Table.Column(col)
	vals := c.ValidFloats()
	if len(vals) == 0 {
		return nil
	}
	val := analysis.Aggregate(vals, op)
	cite := computed(q, []Operation{aggOp(op, col)}, []string{col}, s.Table.Len(), 1)
	return &Answer{
		Type:      TypeText,
		Text:      fmt.Sprintf("%s(%s) = %s", strings.ToUpper(op), col, analysis.FormatG6(val)),
		Citations: &cite,
	}
}

func trend(s *Snapshot, q, ql string) *Answer {
	if !containsAny(ql, trendTriggers) {
		return nil
	}
	dts := s.columnsOfType(analysis.TypeDatetime)
	if len(dts) == 0 {
		return nil
	}
	dt := dts[0]
	nums := s.columnsOfType(analysis.TypeNumeric)
	metric := metricFromText(ql, nums)
	if metric == "" && !rowsPattern.MatchString(ql) {
		metric = analysis.PrimaryMetric(nums)
	}
	grain := pickGrain(ql, s.profile().Column(dt))

	y, agg := analysis.CountColumn, "count"
	if metric != "" {
		y, agg = metric, analysis.TrendAgg(metric)
	}
	series := analysis.BucketSeries(s.Table, dt, y, grain, agg)
	data := make([]analysis.Point, 0, len(series))
	for _, p := range series {
		if math.IsNaN(p.Value) || math.IsInf(p.Value, 0) {
			continue
		}
		data = append(data, analysis.Point{X: dataset.FormatTime(p.At), Y: p.Value})
	}
	title := "Rows"
	if metric != "" {
		title = metric
	}
	chart := &analysis.Chart{
		Type:      analysis.ChartLine,
		Title:     title + " over time",
		X:         dt,
		Y:         y,
		Data:      data,
		TimeGrain: grain,
		Agg:       agg,
	}

	if metric == "" {
		cite := computed(q, []Operation{timeBucketOp(dt, grain), {Op: OpCount}}, []string{dt}, s.Table.Len(), len(data))
		return &Answer{Type: TypeChart, Text: fmt.Sprintf("Trend of row count by %s.", grain), Chart: chart, Citations: &cite}
	}
	cite := computed(q, []Operation{timeBucketOp(dt, grain), aggOp(agg, metric)}, []string{dt, metric}, s.Table.Len(), len(data))
	return &Answer{
		Type:      TypeChart,
		Text:      fmt.Sprintf("%s(%s) over time by %s.", strings.ToUpper(agg), metric, grain),
		Chart:     chart,
		Citations: &cite,
	}
}

func rowCount(s *Snapshot, q, ql string) *Answer {
	if !strings.Contains(ql, "how many") && !countPattern.MatchString(ql) {
		return nil
	}
	cite := computed(q, []Operation{{Op: OpCountRows}}, nil, s.Table.Len(), 1)
	return &Answer{Type: TypeText, Text: "Row count = " + analysis.Commas(s.Table.Len()), Citations: &cite}
}

// metricFromText finds a numeric column named in the question, then tries
// "trend of <x>" through the column matcher.
func metricFromText(ql string, nums []string) string {
	for _, c := range nums {
		if cl := strings.ToLower(c); cl != "" && strings.Contains(ql, cl) {
			return c
		}
	}
	if m := trendOfPattern.FindStringSubmatch(ql); m != nil {
		if c, ok := MatchColumn(m[1], nums); ok {
			return c
		}
	}
	return ""
}

// pickGrain honours an explicit grain keyword, else derives one from the
// profiled span of the datetime column, else buckets by day.
func pickGrain(ql string, st *analysis.ColumnStats) analysis.Grain {
	switch {
	case strings.Contains(ql, "by month") || strings.Contains(ql, "monthly"):
		return analysis.GrainMonth
	case strings.Contains(ql, "by week") || strings.Contains(ql, "weekly"):
		return analysis.GrainWeek
	case strings.Contains(ql, "by day") || strings.Contains(ql, "daily"):
		return analysis.GrainDay
	}
	if g, ok := analysis.InferGrain(st); ok {
		return g
	}
	return analysis.GrainDay
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
