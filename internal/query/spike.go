package query

import (
	"fmt"
	"math"

	"github.com/KaramelBytes/instadash-cli/internal/analysis"
	"github.com/KaramelBytes/instadash-cli/internal/apperr"
	"github.com/KaramelBytes/instadash-cli/internal/dataset"
)

const (
	maxSpikeDims        = 2
	minDimUnique        = 2
	maxDimUnique        = 50
	maxAttributionRows  = 12
	spikeQuestion       = "explain spike"
	spikeChartSection   = "Recommended"
	spikeChartReason    = "Compares the detected spike bucket against the previous bucket."
	attributionCategory = "category"
)

// ExplainSpike compares the bucket of the spike anomaly at index with the
// bucket before it and attributes the change across the first safe
// categorical dimension.
func ExplainSpike(s *Snapshot, index int) (*Answer, error) {
	anomalies := s.Analysis.Anomalies
	if index < 0 || index >= len(anomalies) {
		return nil, apperr.Input("Invalid anomaly index")
	}
	an := anomalies[index]
	if an.Type != analysis.AnomalySpike || an.Spike == nil {
		return nil, apperr.Input("Selected anomaly is not a spike")
	}
	sp := an.Spike
	t := s.Table
	xc, ok1 := t.Column(sp.XCol)
	yc, ok2 := t.Column(sp.YCol)
	if !ok1 || !ok2 {
		return nil, apperr.Input("Columns for anomaly not found in dataset")
	}
	at, ok := dataset.ParseTime(sp.X)
	if !ok {
		return nil, apperr.Input("Invalid spike timestamp")
	}
	grain := sp.TimeGrain
	if !grain.Valid() {
		grain = analysis.GrainDay
	}
	spikeBucket := analysis.BucketStart(at, grain)
	prevBucket := analysis.PreviousBucket(at, grain)

	times, tok := xc.Times()
	vals, vok := yc.Floats()
	var spikeSum, prevSum float64
	var spikeRows, prevRows int
	for r := range times {
		if !tok[r] || !vok[r] {
			continue
		}
		switch b := analysis.BucketStart(times[r], grain); {
		case b.Equal(spikeBucket):
			spikeSum += vals[r]
			spikeRows++
		case b.Equal(prevBucket):
			prevSum += vals[r]
			prevRows++
		}
	}
	if spikeRows == 0 {
		return nil, apperr.Input("No rows found in spike period")
	}
	delta := spikeSum - prevSum
	if math.IsInf(delta, 0) || math.IsNaN(delta) {
		return nil, apperr.Inputf("%s totals overflow around %s", sp.YCol, dataset.FormatTime(spikeBucket))
	}

	dims := attributionDims(s)
	var attribution []analysis.DriverDelta
	if len(dims) > 0 {
		attribution = analysis.AttributeDelta(t, sp.XCol, sp.YCol, dims[0], grain, spikeBucket, prevBucket, maxAttributionRows)
	}

	spikeDay := spikeBucket.Format("2006-01-02")
	prevDay := prevBucket.Format("2006-01-02")
	chart := &analysis.Chart{
		Type:  analysis.ChartBar,
		Title: fmt.Sprintf("Spike period vs previous (%s)", grain),
		X:     "period",
		Y:     sp.YCol,
		Data: []analysis.Point{
			{X: "prev " + prevDay, Y: prevSum},
			{X: "spike " + spikeDay, Y: spikeSum},
		},
		Section: spikeChartSection,
		Reason:  spikeChartReason,
	}

	text := fmt.Sprintf("Spike explanation for %s: %s vs %s (Δ %s) at %s (%s).",
		sp.YCol, analysis.FormatG(spikeSum, 4), analysis.FormatG(prevSum, 4), analysis.FormatG(delta, 4), spikeDay, grain)
	if len(attribution) > 0 {
		text += fmt.Sprintf(" Biggest contributors by %s are shown below.", dims[0])
	}

	ops := []Operation{
		{Op: OpTimeBucket, Col: sp.XCol, Grain: grain, SpikeBucket: dataset.FormatTime(spikeBucket), PrevBucket: dataset.FormatTime(prevBucket)},
		{Op: "sum", Col: sp.YCol, Scope: "bucket"},
	}
	if len(attribution) > 0 {
		ops = append(ops, Operation{Op: OpGroupBy, By: []string{dims[0]}, Agg: "sum", Col: sp.YCol})
	}
	cite := Citations{
		Computed:          true,
		Question:          spikeQuestion,
		AnomalyIndex:      intp(index),
		ColumnsUsed:       append([]string{sp.XCol, sp.YCol}, dims...),
		Operations:        ops,
		RowsScanned:       intp(t.Len()),
		RowsInSpikeBucket: intp(spikeRows),
		RowsInPrevBucket:  intp(prevRows),
	}

	ans := &Answer{Type: TypeChart, Text: text, Chart: chart, Citations: &cite, Origin: OriginComputed}
	if len(attribution) > 0 {
		rows := make([]map[string]any, 0, len(attribution))
		for _, d := range attribution {
			rows = append(rows, map[string]any{
				attributionCategory: d.Value,
				"spike_sum":         d.Current,
				"prev_sum":          d.Previous,
				"delta":             d.Delta,
			})
		}
		ans.Type = TypeTable
		ans.Table = &Table{Columns: []string{attributionCategory, "spike_sum", "prev_sum", "delta"}, Rows: rows}
	}
	return ans, nil
}

// attributionDims returns up to two categorical columns that are not
// identifier-like and have between 2 and 50 distinct values.
func attributionDims(s *Snapshot) []string {
	var dims []string
	for _, name := range s.columnsOfType(analysis.TypeCategorical) {
		if analysis.IsIDLike(name) {
			continue
		}
		c, _ := s.Table.Column(name)
		if u := c.Distinct(); u >= minDimUnique && u <= maxDimUnique {
			dims = append(dims, name)
		}
		if len(dims) >= maxSpikeDims {
			break
		}
	}
	return dims
}
