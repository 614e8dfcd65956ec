package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/instadash-cli/internal/analysis"
	"github.com/KaramelBytes/instadash-cli/internal/apperr"
	"github.com/KaramelBytes/instadash-cli/internal/dataset"
)

func spikeSnapshot(spike analysis.Spike) *Snapshot {
	t := dataset.FromRecords([]string{"date", "region", "sales"}, [][]string{
		{"2024-01-19", "north", "10"},
		{"2024-01-19", "south", "5"},
		{"2024-01-20", "north", "400"},
		{"2024-01-20", "south", "100"},
		{"2024-01-21", "north", "10"},
	})
	a := &analysis.Analysis{Anomalies: []analysis.Anomaly{
		{Type: analysis.AnomalyOutlier, Outlier: &analysis.Outlier{Col: "sales", Value: 400}},
		{Type: analysis.AnomalySpike, Spike: &spike},
	}}
	return NewSnapshot(t, a)
}

func defaultSpike() analysis.Spike {
	return analysis.Spike{XCol: "date", YCol: "sales", X: "2024-01-20T00:00:00", Y: 500, Score: 3.2, TimeGrain: analysis.GrainDay}
}

func TestExplainSpike(t *testing.T) {
	a, err := ExplainSpike(spikeSnapshot(defaultSpike()), 1)
	require.NoError(t, err)

	assert.Equal(t, TypeTable, a.Type)
	assert.Equal(t, "Spike explanation for sales: 500 vs 15 (Δ 485) at 2024-01-20 (day). Biggest contributors by region are shown below.", a.Text)

	require.NotNil(t, a.Chart)
	assert.Equal(t, "Spike period vs previous (day)", a.Chart.Title)
	assert.Equal(t, []analysis.Point{{X: "prev 2024-01-19", Y: 15}, {X: "spike 2024-01-20", Y: 500}}, a.Chart.Data)

	require.NotNil(t, a.Table)
	assert.Equal(t, []map[string]any{
		{"category": "north", "spike_sum": 400.0, "prev_sum": 10.0, "delta": 390.0},
		{"category": "south", "spike_sum": 100.0, "prev_sum": 5.0, "delta": 95.0},
	}, a.Table.Rows)

	c := a.Citations
	assert.Equal(t, "explain spike", c.Question)
	assert.Equal(t, 1, *c.AnomalyIndex)
	assert.Equal(t, []string{"date", "sales", "region"}, c.ColumnsUsed)
	assert.Equal(t, 2, *c.RowsInSpikeBucket)
	assert.Equal(t, 2, *c.RowsInPrevBucket)
	assert.Equal(t, 5, *c.RowsScanned)
	require.Len(t, c.Operations, 3)
	assert.Equal(t, "2024-01-20T00:00:00", c.Operations[0].SpikeBucket)
	assert.Equal(t, "2024-01-19T00:00:00", c.Operations[0].PrevBucket)
	assert.Equal(t, Operation{Op: OpGroupBy, By: []string{"region"}, Agg: "sum", Col: "sales"}, c.Operations[2])
}

func TestExplainSpikeWeekGrain(t *testing.T) {
	sp := defaultSpike()
	sp.TimeGrain = analysis.GrainWeek
	a, err := ExplainSpike(spikeSnapshot(sp), 1)
	require.NoError(t, err)
	// 2024-01-20 is a Saturday; its week starts Monday 2024-01-15 and holds every row
	assert.Equal(t, []analysis.Point{{X: "prev 2024-01-08", Y: 0}, {X: "spike 2024-01-15", Y: 525}}, a.Chart.Data)
	assert.Equal(t, 0, *a.Citations.RowsInPrevBucket)
}

func TestExplainSpikeErrors(t *testing.T) {
	missingCol := defaultSpike()
	missingCol.YCol = "profit"
	badTime := defaultSpike()
	badTime.X = "not a date"
	empty := defaultSpike()
	empty.X = "2023-06-01T00:00:00"

	cases := []struct {
		name  string
		s     *Snapshot
		index int
		msg   string
	}{
		{"out of range", spikeSnapshot(defaultSpike()), 5, "Invalid anomaly index"},
		{"negative", spikeSnapshot(defaultSpike()), -1, "Invalid anomaly index"},
		{"not a spike", spikeSnapshot(defaultSpike()), 0, "Selected anomaly is not a spike"},
		{"missing column", spikeSnapshot(missingCol), 1, "Columns for anomaly not found in dataset"},
		{"bad timestamp", spikeSnapshot(badTime), 1, "Invalid spike timestamp"},
		{"empty bucket", spikeSnapshot(empty), 1, "No rows found in spike period"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := ExplainSpike(c.s, c.index)
			require.Error(t, err)
			assert.True(t, apperr.IsInput(err))
			assert.Contains(t, err.Error(), c.msg)
		})
	}
}
