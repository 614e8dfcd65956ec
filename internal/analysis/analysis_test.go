package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/instadash-cli/internal/dataset"
)

func salesTable() *dataset.Table {
	return dataset.FromRecords([]string{"date", "customer", "revenue"}, [][]string{
		{"2024-01-01", "A", "10"},
		{"2024-01-01", "B", "5"},
		{"2024-02-01", "A", "20"},
		{"2024-02-01", "C", "2"},
		{"2024-03-01", "A", "40"},
	})
}

func TestInferTypes(t *testing.T) {
	tbl := dataset.FromRecords([]string{"date", "customer", "revenue", "active", "empty"}, [][]string{
		{"2024-01-01", "A", "10", "true", ""},
		{"2024-01-02", "B", "5.5", "FALSE", "NA"},
		{"2024-01-03", "A", "-3", "true", ""},
	})
	types := InferTypes(tbl)
	assert.Equal(t, Types{
		"date":     TypeDatetime,
		"customer": TypeCategorical,
		"revenue":  TypeNumeric,
		"active":   TypeBoolean,
		"empty":    TypeText,
	}, types)
	assert.Equal(t, types, InferTypes(tbl))
}

func TestInferTypesHighCardinalityIsText(t *testing.T) {
	var recs [][]string
	for i := 0; i < 40; i++ {
		recs = append(recs, []string{fmt.Sprintf("note %d", i)})
	}
	types := InferTypes(dataset.FromRecords([]string{"comment"}, recs))
	assert.Equal(t, TypeText, types["comment"])
}

func TestProfileShapeAndStats(t *testing.T) {
	tbl := salesTable()
	types := InferTypes(tbl)
	p := BuildProfile(tbl, types, DefaultOptions())

	assert.Equal(t, Shape{Rows: 5, Cols: 3}, p.Shape)
	rev := p.Column("revenue")
	require.NotNil(t, rev)
	assert.Equal(t, 5, rev.Count)
	assert.InDelta(t, 15.4, *rev.Mean, 1e-9)
	assert.InDelta(t, 10.0, *rev.Median, 1e-9)
	assert.Nil(t, rev.Skew, "skew needs at least 10 values")

	date := p.Column("date")
	require.NotNil(t, date)
	assert.Equal(t, "2024-01-01T00:00:00", date.MinTime)
	assert.Equal(t, "2024-03-01T00:00:00", date.MaxTime)
	assert.InDelta(t, 1.0, *date.ParseRate, 1e-9)

	cust := p.Column("customer")
	require.NotNil(t, cust)
	assert.Equal(t, []ValueCount{{"A", 3}, {"B", 1}, {"C", 1}}, cust.TopValues)
	assert.InDelta(t, 0.6, *cust.UniqueRatio, 1e-9)
}

func TestProfileIsIdempotentAndRoundTrips(t *testing.T) {
	tbl := salesTable()
	types := InferTypes(tbl)
	first, err := json.Marshal(BuildProfile(tbl, types, DefaultOptions()))
	require.NoError(t, err)
	second, err := json.Marshal(BuildProfile(tbl, types, DefaultOptions()))
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))

	var decoded Profile
	require.NoError(t, json.Unmarshal(first, &decoded))
	again, err := json.Marshal(&decoded)
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(again))
}

func TestProfileRendersTypeSpecificFields(t *testing.T) {
	tbl := salesTable()
	b, err := json.Marshal(BuildProfile(tbl, InferTypes(tbl), DefaultOptions()))
	require.NoError(t, err)
	var out struct {
		Columns map[string]map[string]any `json:"columns"`
	}
	require.NoError(t, json.Unmarshal(b, &out))
	assert.Contains(t, out.Columns["revenue"], "p25")
	assert.NotContains(t, out.Columns["revenue"], "top_values")
	assert.Equal(t, "2024-01-01T00:00:00", out.Columns["date"]["min"])
	assert.Contains(t, out.Columns["customer"], "top_values")
}

func TestStrongCorrelations(t *testing.T) {
	var recs [][]string
	for i := 1; i <= 20; i++ {
		noise := []int{5, 3, 8, 1, 9, 2, 7, 4, 6, 0}[i%10]
		recs = append(recs, []string{strconv.Itoa(i), strconv.Itoa(2*i + 1), strconv.Itoa(noise)})
	}
	tbl := dataset.FromRecords([]string{"x", "y", "z"}, recs)
	p := BuildProfile(tbl, InferTypes(tbl), DefaultOptions())

	require.NotEmpty(t, p.StrongCorrelations)
	assert.Equal(t, "x", p.StrongCorrelations[0].A)
	assert.Equal(t, "y", p.StrongCorrelations[0].B)
	assert.InDelta(t, 1.0, p.StrongCorrelations[0].Corr, 1e-9)
	assert.LessOrEqual(t, len(p.StrongCorrelations), 10)
	for i, c := range p.StrongCorrelations {
		assert.GreaterOrEqual(t, math.Abs(c.Corr), 0.6)
		if i > 0 {
			assert.GreaterOrEqual(t, math.Abs(p.StrongCorrelations[i-1].Corr), math.Abs(c.Corr))
		}
	}
}

func TestConstantColumnsSkipCorrelationAndFlagQuality(t *testing.T) {
	var recs [][]string
	for i := 0; i < 20; i++ {
		recs = append(recs, []string{"7", strconv.Itoa(i)})
	}
	tbl := dataset.FromRecords([]string{"flat", "n"}, recs)
	p := BuildProfile(tbl, InferTypes(tbl), DefaultOptions())
	assert.Empty(t, p.StrongCorrelations)
	assert.Equal(t, []string{"flat"}, p.Quality.ConstantColumns)
	assert.InDelta(t, 0.0, *p.Column("flat").Skew, 1e-12)
}

func TestDetectAnomaliesConstantColumnHasNoOutliers(t *testing.T) {
	var recs [][]string
	for i := 0; i < 60; i++ {
		recs = append(recs, []string{"5"})
	}
	tbl := dataset.FromRecords([]string{"v"}, recs)
	out := DetectAnomalies(tbl, InferTypes(tbl), nil, DefaultOptions())
	assert.Empty(t, out)
}

func TestDetectAnomaliesOutlier(t *testing.T) {
	var recs [][]string
	for i := 1; i <= 59; i++ {
		recs = append(recs, []string{strconv.Itoa(i)})
	}
	recs = append(recs, []string{"1000"})
	tbl := dataset.FromRecords([]string{"amount"}, recs)
	out := DetectAnomalies(tbl, InferTypes(tbl), nil, DefaultOptions())
	require.Len(t, out, 1)
	require.NotNil(t, out[0].Outlier)
	assert.Equal(t, AnomalyOutlier, out[0].Type)
	assert.Equal(t, 1000.0, out[0].Outlier.Value)
	assert.InDelta(t, 133.75, out[0].Outlier.Hi, 1e-9)
}

func spikeTable() *dataset.Table {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var recs [][]string
	for i := 0; i < 30; i++ {
		v := "10"
		if i == 19 {
			v = "500"
		}
		seg := "north"
		if i%2 == 1 {
			seg = "south"
		}
		recs = append(recs, []string{start.AddDate(0, 0, i).Format("2006-01-02"), seg, v})
	}
	return dataset.FromRecords([]string{"date", "region", "value"}, recs)
}

func TestDetectAnomaliesSpike(t *testing.T) {
	tbl := spikeTable()
	out := DetectAnomalies(tbl, InferTypes(tbl), nil, DefaultOptions())
	require.Len(t, out, 1)
	s := out[0].Spike
	require.NotNil(t, s)
	assert.Equal(t, "date", s.XCol)
	assert.Equal(t, "value", s.YCol)
	assert.Equal(t, "2024-01-20T00:00:00", s.X)
	assert.Equal(t, GrainDay, s.TimeGrain)
	assert.Greater(t, s.Score, 3.0)

	b, err := json.Marshal(out[0])
	require.NoError(t, err)
	assert.Contains(t, string(b), `"x_col":"date"`)
	assert.NotContains(t, string(b), `"col"`)
}

func TestDetectAnomaliesShortSeriesIsEmpty(t *testing.T) {
	tbl := salesTable()
	assert.Empty(t, DetectAnomalies(tbl, InferTypes(tbl), nil, DefaultOptions()))
}

func TestSuggestCharts(t *testing.T) {
	tbl := salesTable()
	types := InferTypes(tbl)
	specs := SuggestCharts(tbl, types, nil, DefaultOptions())

	var ids []string
	for _, s := range specs {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"line:date:__count__", "line:date:revenue", "hist:revenue"}, ids)
	assert.Equal(t, "Rows over time", specs[0].Title)
	assert.Equal(t, GrainWeek, specs[0].TimeGrain)
	assert.Equal(t, "revenue over time (sum)", specs[1].Title)
	assert.Equal(t, SectionTrends, specs[1].Section)
}

func TestSuggestChartsWithoutTimeColumn(t *testing.T) {
	var recs [][]string
	for i := 0; i < 40; i++ {
		recs = append(recs, []string{[]string{"red", "green", "blue", "black"}[i%4], strconv.Itoa(i * 3)})
	}
	tbl := dataset.FromRecords([]string{"color", "sales"}, recs)
	specs := SuggestCharts(tbl, InferTypes(tbl), nil, DefaultOptions())

	var ids []string
	for _, s := range specs {
		ids = append(ids, s.ID)
	}
	assert.Contains(t, ids, "bar:color:__count__")
	assert.Contains(t, ids, "bar:color:sales:sum")
	assert.Equal(t, "bar:color:sales:sum:top", ids[len(ids)-1])
	assert.Equal(t, "Top color by sum sales", specs[len(specs)-1].Title)
}

func TestSuggestChartsFallsBackToPreview(t *testing.T) {
	tbl := dataset.FromRecords([]string{"note"}, [][]string{{"hello"}, {"world"}})
	specs := SuggestCharts(tbl, InferTypes(tbl), nil, DefaultOptions())
	require.Len(t, specs, 1)
	assert.Equal(t, ChartTable, specs[0].Type)
}

func TestMaterializeBarCountSortsDescending(t *testing.T) {
	tbl := dataset.FromRecords([]string{"k"}, [][]string{{"B"}, {"A"}, {"A"}, {"B"}, {"A"}})
	c := MaterializeChart(tbl, ChartSpec{Type: ChartBar, X: "k", Y: CountColumn, Agg: "count"}, DefaultOptions())
	assert.Equal(t, []Point{{X: "A", Y: 3}, {X: "B", Y: 2}}, c.Data)
}

func TestMaterializeLineByMonth(t *testing.T) {
	c := MaterializeChart(salesTable(), ChartSpec{Type: ChartLine, X: "date", Y: "revenue", Agg: "sum", TimeGrain: GrainMonth}, DefaultOptions())
	assert.Equal(t, []Point{
		{X: "2024-01-01T00:00:00", Y: 15},
		{X: "2024-02-01T00:00:00", Y: 22},
		{X: "2024-03-01T00:00:00", Y: 40},
	}, c.Data)
}

func TestMaterializeComboAndUnknown(t *testing.T) {
	tbl := dataset.FromRecords([]string{"a", "b"}, [][]string{{"x", "1"}, {"x", "1"}, {"y", "2"}})
	c := MaterializeChart(tbl, ChartSpec{Type: ChartTableCombo, A: "a", B: "b"}, DefaultOptions())
	assert.Equal(t, ChartTable, c.Type)
	assert.Equal(t, []ComboRow{{A: "x", B: "1", Count: 2}, {A: "y", B: "2", Count: 1}}, c.Data)

	u := MaterializeChart(tbl, ChartSpec{Type: "pie", Title: "?"}, DefaultOptions())
	assert.Equal(t, "unknown", u.Type)
	require.NotNil(t, u.Raw)
	assert.Equal(t, "pie", u.Raw.Type)
}

func TestMaterializeScatterIsReproducible(t *testing.T) {
	var recs [][]string
	for i := 0; i < 100; i++ {
		recs = append(recs, []string{strconv.Itoa(i), strconv.Itoa(i * i)})
	}
	tbl := dataset.FromRecords([]string{"x", "y"}, recs)
	opt := DefaultOptions()
	opt.MaxPoints = 10
	spec := ChartSpec{Type: ChartScatter, X: "x", Y: "y"}
	a := MaterializeChart(tbl, spec, opt)
	b := MaterializeChart(tbl, spec, opt)
	assert.Len(t, a.Data, 10)
	assert.Equal(t, a.Data, b.Data)
}

func TestHistogram(t *testing.T) {
	bins := Histogram([]float64{1, 2, 3, 4}, 2)
	assert.Equal(t, []HistBin{{Bin: "(0.997, 2.5]", Count: 2}, {Bin: "(2.5, 4]", Count: 2}}, bins)
	assert.Empty(t, Histogram(nil, 5))

	same := Histogram([]float64{5, 5, 5}, 3)
	total := 0
	for _, b := range same {
		total += b.Count
	}
	assert.Equal(t, 3, total)
}

func TestDownsample(t *testing.T) {
	pts := make([]Point, 12)
	for i := range pts {
		pts[i] = Point{X: i, Y: float64(i)}
	}
	out := downsample(pts, 5)
	assert.LessOrEqual(t, len(out), 5)
	assert.Equal(t, 0, out[0].X)
	assert.Equal(t, 3, out[1].X)
}

func TestGrains(t *testing.T) {
	assert.Equal(t, GrainMonth, GrainForSpan(365))
	assert.Equal(t, GrainWeek, GrainForSpan(60))
	assert.Equal(t, GrainDay, GrainForSpan(59))

	wed := time.Date(2024, 1, 3, 15, 4, 5, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), BucketStart(wed, GrainWeek))
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), BucketStart(wed, GrainDay))
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), PreviousBucket(time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), GrainMonth))
	assert.Equal(t, time.Date(2023, 12, 25, 0, 0, 0, 0, time.UTC), PreviousBucket(wed, GrainWeek))
}

func TestMetricAgg(t *testing.T) {
	assert.Equal(t, "sum", MetricAgg("total_revenue", nil))
	assert.Equal(t, "mean", MetricAgg("conversion_rate", nil))
	skew := 3.5
	assert.Equal(t, "sum", MetricAgg("visits", &ColumnStats{Skew: &skew}))
	assert.Equal(t, "mean", MetricAgg("visits", nil))
	assert.Equal(t, "mean", TrendAgg("order_count"))
	assert.Equal(t, "sum", MetricAgg("order_count", nil))
}

func TestIsIDLike(t *testing.T) {
	for _, name := range []string{"customer_id", "UUID", "email", "zip_code", "latitude"} {
		assert.True(t, IsIDLike(name), name)
	}
	assert.False(t, IsIDLike("region"))
}

func TestPrimaryMetric(t *testing.T) {
	assert.Equal(t, "net_sales", PrimaryMetric([]string{"units", "net_sales"}))
	assert.Equal(t, "revenue_usd", PrimaryMetric([]string{"units", "net_sales", "revenue_usd"}))
	assert.Equal(t, "units", PrimaryMetric([]string{"units"}))
	assert.Equal(t, "", PrimaryMetric(nil))
}

func TestAnalyzeProducesPayload(t *testing.T) {
	a := Analyze(salesTable(), DefaultOptions())
	require.NotNil(t, a)
	assert.NotEmpty(t, a.RunID)
	assert.Len(t, a.Charts, len(a.ChartSpecs))
	assert.Len(t, a.Preview, 5)
	assert.Equal(t, 10.0, a.Preview[0]["revenue"])
	assert.Equal(t, "A", a.Preview[0]["customer"])

	b, err := json.Marshal(a)
	require.NoError(t, err)
	for _, key := range []string{"types", "profile", "chart_specs", "charts", "anomalies", "insights", "preview", "overview"} {
		assert.Contains(t, string(b), `"`+key+`"`)
	}
	var decoded Analysis
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, a.Types, decoded.Types)
	assert.Equal(t, a.Profile.Shape, decoded.Profile.Shape)
}

func TestPreviewRowsMissingIsEmptyString(t *testing.T) {
	tbl := dataset.FromRecords([]string{"n", "s"}, [][]string{{"1", ""}, {"", "x"}})
	rows := PreviewRows(tbl, InferTypes(tbl), 10)
	assert.Equal(t, []map[string]any{{"n": 1.0, "s": ""}, {"n": "", "s": "x"}}, rows)
}

func TestAnalyzeExtremeValuesStayEncodable(t *testing.T) {
	tbl := dataset.FromRecords([]string{"date", "customer", "revenue", "empty", "flat"}, [][]string{
		{"2024-01-01", "B", "5", "", "7"},
		{"2024-01-02", "A", "1e308", "", "7"},
		{"2024-01-02", "A", "1e308", "", "7"},
	})
	a := Analyze(tbl, DefaultOptions())

	b, err := json.Marshal(a)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "Inf")

	labels := map[string]any{}
	for _, k := range a.Overview.KPIs {
		labels[k.Label] = k.Value
	}
	assert.NotContains(t, labels, "Total revenue")
	require.Contains(t, labels, "Avg revenue")
	assert.InDelta(t, 2e308/3, labels["Avg revenue"], 1e295)
	assert.Nil(t, a.Overview.ExecutiveBrief)

	rev := a.Profile.Column("revenue")
	require.NotNil(t, rev)
	assert.Nil(t, rev.Mean)
	assert.Nil(t, rev.Std)

	for _, c := range a.Charts {
		if pts, ok := c.Data.([]Point); ok {
			for _, p := range pts {
				assert.False(t, math.IsInf(p.Y, 0) || math.IsNaN(p.Y), "chart %q point %v", c.Title, p)
			}
		}
	}
	for _, an := range a.Anomalies {
		if an.Spike != nil {
			assert.False(t, math.IsInf(an.Spike.Y, 0))
		}
	}
}

func TestOverflowingGroupsAreDropped(t *testing.T) {
	tbl := dataset.FromRecords([]string{"customer", "revenue"}, [][]string{
		{"A", "1e308"}, {"A", "1e308"}, {"B", "5"},
	})
	groups := FiniteGroups(GroupBy(tbl, []string{"customer"}, "revenue", "sum"))
	require.Len(t, groups, 1)
	assert.Equal(t, "B", groups[0].Keys[0])

	bar := MaterializeChart(tbl, ChartSpec{Type: ChartBar, X: "customer", Y: "revenue", Agg: "sum"}, DefaultOptions())
	assert.Equal(t, []Point{{X: "B", Y: 5.0}}, bar.Data)
}

func TestHistogramWideRangeHasFiniteEdges(t *testing.T) {
	bins := Histogram([]float64{-1e308, 0, 1e308}, 4)
	require.Len(t, bins, 4)
	total := 0
	for _, b := range bins {
		assert.NotContains(t, b.Bin, "Inf")
		assert.NotContains(t, b.Bin, "NaN")
		total += b.Count
	}
	assert.Equal(t, 3, total)
}
