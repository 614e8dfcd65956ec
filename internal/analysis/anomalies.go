package analysis

import (
	"math"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/KaramelBytes/instadash-cli/internal/dataset"
)

// AnomalyType tags an Anomaly record.
type AnomalyType string

const (
	AnomalySpike   AnomalyType = "spike"
	AnomalyOutlier AnomalyType = "outlier"
)

// Spike is a time bucket whose aggregated value deviates strongly from the series.
type Spike struct {
	XCol      string  `json:"x_col"`
	YCol      string  `json:"y_col"`
	X         string  `json:"x"`
	Y         float64 `json:"y"`
	Score     float64 `json:"score"`
	TimeGrain Grain   `json:"time_grain"`
}

// Outlier is a single value outside the IQR fences of its column.
type Outlier struct {
	Col   string  `json:"col"`
	Value float64 `json:"value"`
	Lo    float64 `json:"lo"`
	Hi    float64 `json:"hi"`
}

// Anomaly is a tagged union; exactly one of Spike or Outlier is set.
type Anomaly struct {
	Type AnomalyType `json:"type"`
	*Spike
	*Outlier
}

// Rank is the ordering score: |z| for spikes, zero for outliers.
func (a Anomaly) Rank() float64 {
	if a.Spike != nil {
		return a.Spike.Score
	}
	return 0
}

const (
	spikeNumericColumns = 3
	zEpsilon            = 1e-9
)

// DetectAnomalies finds bucketed z-score spikes and IQR outliers. It never
// fails: columns without enough data are skipped. profile may be nil.
func DetectAnomalies(t *dataset.Table, types Types, profile *Profile, opt Options) []Anomaly {
	opt = opt.withDefaults()
	if profile == nil {
		profile = BuildProfile(t, types, opt)
	}
	out := []Anomaly{}

	dtCols := ColumnsOfType(t, types, TypeDatetime)
	numCols := ColumnsOfType(t, types, TypeNumeric)
	rows := profile.Shape.Rows
	if rows == 0 {
		rows = t.Len()
	}

	if x := bestDatetime(dtCols, profile); x != "" {
		if grain, ok := InferGrain(profile.Column(x)); ok {
			for _, y := range topNumeric(numCols, profile, rows, spikeNumericColumns) {
				out = append(out, detectSpikes(t, x, y, grain, opt)...)
			}
		}
	}

	for i, y := range numCols {
		if i >= opt.MaxOutlierColumns {
			break
		}
		out = append(out, detectOutliers(t, y, opt)...)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Rank() > out[j].Rank() })
	if len(out) > opt.MaxAnomalies {
		out = out[:opt.MaxAnomalies]
	}
	return out
}

func detectSpikes(t *dataset.Table, x, y string, grain Grain, opt Options) []Anomaly {
	series := BucketSeries(t, x, y, grain, "sum")
	if len(series) < opt.MinSeriesLen {
		log.Debug().Str("x", x).Str("y", y).Int("buckets", len(series)).Msg("series too short for spike detection")
		return nil
	}
	vals := make([]float64, 0, len(series))
	kept := series[:0:0]
	for _, p := range series {
		if !isFinite(p.Value) {
			continue
		}
		vals = append(vals, p.Value)
		kept = append(kept, p)
	}
	if len(kept) < opt.MinSeriesLen {
		return nil
	}
	mu, sigma := popMeanStd(vals)
	sigma += zEpsilon
	var out []Anomaly
	if !isFinite(mu) || !isFinite(sigma) {
		return nil
	}
	for _, p := range kept {
		z := (p.Value - mu) / sigma
		if isFinite(z) && math.Abs(z) >= opt.ZThreshold {
			out = append(out, Anomaly{Type: AnomalySpike, Spike: &Spike{
				XCol: x, YCol: y, X: dataset.FormatTime(p.At), Y: p.Value, Score: math.Abs(z), TimeGrain: grain,
			}})
		}
	}
	return out
}

func detectOutliers(t *dataset.Table, y string, opt Options) []Anomaly {
	c, _ := t.Column(y)
	vals := c.ValidFloats()
	if len(vals) < opt.MinOutlierSample {
		return nil
	}
	sorted := sortedCopy(vals)
	q1, q3 := quantile(sorted, 0.25), quantile(sorted, 0.75)
	iqr := q3 - q1
	if iqr == 0 || math.IsNaN(iqr) {
		return nil
	}
	lo, hi := q1-opt.IQRMultiplier*iqr, q3+opt.IQRMultiplier*iqr
	var out []Anomaly
	for _, v := range vals {
		if v >= lo && v <= hi {
			continue
		}
		out = append(out, Anomaly{Type: AnomalyOutlier, Outlier: &Outlier{Col: y, Value: v, Lo: lo, Hi: hi}})
		if len(out) >= opt.MaxOutliersPerColumn {
			break
		}
	}
	return out
}

// bestDatetime picks the datetime column with the most parsed values; the
// first column in table order wins ties.
func bestDatetime(dtCols []string, p *Profile) string {
	best, bestCount := "", -1
	for _, c := range dtCols {
		n := 0
		if st := p.Column(c); st != nil {
			n = st.Count
		}
		if n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}

// numericScore favours columns with spread and coverage: std × (0.25 + coverage).
func numericScore(st *ColumnStats, rows int) (score, coverage float64) {
	if st == nil {
		return 0, 0
	}
	coverage = float64(st.Count) / math.Max(float64(rows), 1)
	return deref(st.Std) * (0.25 + coverage), coverage
}

func topNumeric(numCols []string, p *Profile, rows, limit int) []string {
	type scored struct {
		name  string
		score float64
	}
	ss := make([]scored, 0, len(numCols))
	for _, c := range numCols {
		s, _ := numericScore(p.Column(c), rows)
		ss = append(ss, scored{c, s})
	}
	sort.SliceStable(ss, func(i, j int) bool { return ss[i].score > ss[j].score })
	out := make([]string, 0, limit)
	for i := 0; i < len(ss) && i < limit; i++ {
		out = append(out, ss[i].name)
	}
	return out
}
