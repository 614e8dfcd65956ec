package analysis

import (
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/KaramelBytes/instadash-cli/internal/dataset"
)

// CountColumn is the pseudo-column that means "number of rows".
const CountColumn = "__count__"

// BucketPoint is one aggregated time bucket.
type BucketPoint struct {
	At    time.Time
	Value float64
	Rows  int
}

// BucketSeries aggregates y per time bucket of x. Rows whose timestamp (or,
// unless y is CountColumn, whose value) does not parse are dropped. The
// result is in chronological order.
func BucketSeries(t *dataset.Table, x, y string, g Grain, agg string) []BucketPoint {
	xc, ok := t.Column(x)
	if !ok {
		return nil
	}
	times, tok := xc.Times()
	counting := y == CountColumn || agg == "count"
	var vals []float64
	var vok []bool
	if y != CountColumn {
		yc, ok := t.Column(y)
		if !ok {
			return nil
		}
		vals, vok = yc.Floats()
	}

	groups := map[time.Time][]float64{}
	for r := range times {
		if !tok[r] {
			continue
		}
		if vals != nil && !vok[r] {
			continue
		}
		k := BucketStart(times[r], g)
		v := 1.0
		if vals != nil {
			v = vals[r]
		}
		groups[k] = append(groups[k], v)
	}

	out := make([]BucketPoint, 0, len(groups))
	for k, vs := range groups {
		p := BucketPoint{At: k, Rows: len(vs)}
		if counting {
			p.Value = float64(len(vs))
		} else {
			p.Value = Aggregate(vs, agg)
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}

// Aggregate reduces vals with sum, mean, min, max or count. Unknown names sum.
func Aggregate(vals []float64, agg string) float64 {
	switch agg {
	case "count":
		return float64(len(vals))
	case "mean":
		if len(vals) == 0 {
			return math.NaN()
		}
		return floats.Sum(vals) / float64(len(vals))
	case "min":
		if len(vals) == 0 {
			return math.NaN()
		}
		return floats.Min(vals)
	case "max":
		if len(vals) == 0 {
			return math.NaN()
		}
		return floats.Max(vals)
	default:
		return floats.Sum(vals)
	}
}
