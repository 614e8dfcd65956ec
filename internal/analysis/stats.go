package analysis

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// quantile uses linear interpolation between closest ranks; sorted must be ascending.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return math.NaN()
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	w := pos - float64(lo)
	return sorted[lo]*(1-w) + sorted[hi]*w
}

func sortedCopy(vals []float64) []float64 {
	s := append([]float64(nil), vals...)
	sort.Float64s(s)
	return s
}

// popMeanStd returns the mean and population standard deviation.
func popMeanStd(vals []float64) (mean, std float64) {
	if len(vals) == 0 {
		return math.NaN(), math.NaN()
	}
	return stat.PopMeanStdDev(vals, nil)
}

// pearson returns the correlation of paired observations, NaN when undefined.
func pearson(x, y []float64) float64 {
	if len(x) < 2 {
		return math.NaN()
	}
	return stat.Correlation(x, y, nil)
}

func finite(v float64) *float64 {
	if !isFinite(v) {
		return nil
	}
	return &v
}

// meanOf divides before summing when the plain sum overflowed.
func meanOf(vals []float64, sum float64) float64 {
	n := float64(len(vals))
	if isFinite(sum) {
		return sum / n
	}
	m := 0.0
	for _, v := range vals {
		m += v / n
	}
	return m
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func distinctFloats(vals []float64) int {
	seen := make(map[float64]struct{}, len(vals))
	for _, v := range vals {
		seen[v] = struct{}{}
	}
	return len(seen)
}
