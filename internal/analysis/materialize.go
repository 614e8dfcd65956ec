package analysis

import (
	"math"
	"math/rand"
	"sort"
	"strconv"

	"github.com/KaramelBytes/instadash-cli/internal/dataset"
)

// Chart is a ChartSpec evaluated against a table. Data holds []Point,
// []HistBin, []ComboRow or []map[string]any depending on Type.
type Chart struct {
	Type      string     `json:"type"`
	Title     string     `json:"title,omitempty"`
	X         string     `json:"x,omitempty"`
	Y         string     `json:"y,omitempty"`
	Bins      int        `json:"bins,omitempty"`
	Data      any        `json:"data"`
	TimeGrain Grain      `json:"time_grain,omitempty"`
	Agg       string     `json:"agg,omitempty"`
	Section   string     `json:"section,omitempty"`
	Reason    string     `json:"reason,omitempty"`
	Raw       *ChartSpec `json:"raw,omitempty"`
}

// Point is an x/y pair. X is an ISO timestamp, a category label or a number.
type Point struct {
	X any     `json:"x"`
	Y float64 `json:"y"`
}

// HistBin is one histogram interval rendered as "(lo, hi]".
type HistBin struct {
	Bin   string `json:"bin"`
	Count int    `json:"count"`
}

// ComboRow counts one pair of category values.
type ComboRow struct {
	A     string `json:"a"`
	B     string `json:"b"`
	Count int    `json:"count"`
}

const (
	defaultBarLimit   = 15
	defaultComboLimit = 20
	tablePreviewRows  = 50
)

// MaterializeChart evaluates spec against t. Invalid values are dropped, never fatal.
func MaterializeChart(t *dataset.Table, spec ChartSpec, opt Options) Chart {
	opt = opt.withDefaults()
	base := Chart{Type: spec.Type, Title: spec.Title, Section: spec.Section, Reason: spec.Reason}
	switch spec.Type {
	case ChartLine:
		return lineChart(t, spec, base, opt)
	case ChartBar:
		return barChart(t, spec, base)
	case ChartHist:
		return histChart(t, spec, base, opt)
	case ChartScatter:
		return scatterChart(t, spec, base, opt)
	case ChartTable:
		base.Data = PreviewRows(t, nil, tablePreviewRows)
		return base
	case ChartTableCombo:
		base.Type = ChartTable
		base.Data = comboRows(t, spec)
		return base
	default:
		raw := spec
		return Chart{Type: "unknown", Title: spec.Title, Raw: &raw}
	}
}

func lineChart(t *dataset.Table, spec ChartSpec, c Chart, opt Options) Chart {
	c.X, c.Y, c.Agg, c.TimeGrain = spec.X, spec.Y, spec.Agg, spec.TimeGrain
	if c.Agg == "" {
		c.Agg = "sum"
	}
	grain := spec.TimeGrain
	if !grain.Valid() {
		grain = GrainDay
	}
	series := BucketSeries(t, spec.X, spec.Y, grain, c.Agg)
	pts := make([]Point, 0, len(series))
	for _, p := range series {
		if !isFinite(p.Value) {
			continue
		}
		pts = append(pts, Point{X: dataset.FormatTime(p.At), Y: p.Value})
	}
	c.Data = downsample(pts, opt.MaxPoints)
	return c
}

// downsample keeps every k-th point so at most limit remain.
func downsample(pts []Point, limit int) []Point {
	if len(pts) <= limit {
		return pts
	}
	stride := (len(pts) + limit - 1) / limit
	out := make([]Point, 0, limit)
	for i := 0; i < len(pts); i += stride {
		out = append(out, pts[i])
	}
	return out
}

func barChart(t *dataset.Table, spec ChartSpec, c Chart) Chart {
	c.X, c.Y = spec.X, spec.Y
	limit := spec.Limit
	if limit <= 0 {
		limit = defaultBarLimit
	}
	agg := spec.Agg
	if spec.Y == CountColumn {
		agg = "count"
	}
	if agg == "" {
		agg = "sum"
	}
	if agg != "count" && agg != "mean" {
		agg = "sum"
	}
	groups := FiniteGroups(GroupBy(t, []string{spec.X}, spec.Y, agg))
	SortGroupsDesc(groups)
	if len(groups) > limit {
		groups = groups[:limit]
	}
	pts := make([]Point, 0, len(groups))
	for _, g := range groups {
		pts = append(pts, Point{X: g.Keys[0], Y: g.Value})
	}
	c.Data = pts
	return c
}

func histChart(t *dataset.Table, spec ChartSpec, c Chart, opt Options) Chart {
	c.X = spec.X
	bins := spec.Bins
	if bins <= 0 {
		bins = opt.HistBins
	}
	c.Bins = bins
	col, ok := t.Column(spec.X)
	if !ok {
		c.Data = []HistBin{}
		return c
	}
	c.Data = Histogram(col.ValidFloats(), bins)
	return c
}

// Histogram counts vals into equal-width bins spanning their range. The first
// edge is pushed down by 0.1% of the range so the minimum falls inside the
// first interval; a zero range is widened by 0.1% of the value.
func Histogram(vals []float64, bins int) []HistBin {
	if len(vals) == 0 || bins <= 0 {
		return []HistBin{}
	}
	lo, hi := vals[0], vals[0]
	for _, v := range vals {
		lo, hi = math.Min(lo, v), math.Max(hi, v)
	}
	if lo == hi {
		pad := 0.001
		if lo != 0 {
			pad = 0.001 * math.Abs(lo)
		}
		lo, hi = lo-pad, hi+pad
	}
	edges := make([]float64, bins+1)
	width := (hi - lo) / float64(bins)
	if !isFinite(width) {
		width = hi/float64(bins) - lo/float64(bins)
	}
	for i := range edges {
		edges[i] = lo + width*float64(i)
	}
	edges[bins] = hi
	if pad := (hi - lo) * 0.001; isFinite(pad) {
		edges[0] = lo - pad
	}

	counts := make([]int, bins)
	for _, v := range vals {
		i := sort.SearchFloat64s(edges, v) - 1
		if i < 0 {
			i = 0
		}
		if i >= bins {
			i = bins - 1
		}
		counts[i]++
	}
	out := make([]HistBin, bins)
	for i := range counts {
		out[i] = HistBin{Bin: "(" + fmtEdge(edges[i]) + ", " + fmtEdge(edges[i+1]) + "]", Count: counts[i]}
	}
	return out
}

func fmtEdge(v float64) string { return strconv.FormatFloat(v, 'g', 6, 64) }

func scatterChart(t *dataset.Table, spec ChartSpec, c Chart, opt Options) Chart {
	c.X, c.Y = spec.X, spec.Y
	xc, ok1 := t.Column(spec.X)
	yc, ok2 := t.Column(spec.Y)
	if !ok1 || !ok2 {
		c.Data = []Point{}
		return c
	}
	xs, xok := xc.Floats()
	ys, yok := yc.Floats()
	pts := make([]Point, 0, len(xs))
	for i := range xs {
		if xok[i] && yok[i] {
			pts = append(pts, Point{X: xs[i], Y: ys[i]})
		}
	}
	if len(pts) > opt.MaxPoints {
		rng := rand.New(rand.NewSource(opt.ScatterSeed))
		idx := rng.Perm(len(pts))[:opt.MaxPoints]
		sort.Ints(idx)
		sample := make([]Point, len(idx))
		for i, j := range idx {
			sample[i] = pts[j]
		}
		pts = sample
	}
	c.Data = pts
	return c
}

func comboRows(t *dataset.Table, spec ChartSpec) []ComboRow {
	limit := spec.Limit
	if limit <= 0 {
		limit = defaultComboLimit
	}
	groups := GroupBy(t, []string{spec.A, spec.B}, CountColumn, "count")
	SortGroupsDesc(groups)
	if len(groups) > limit {
		groups = groups[:limit]
	}
	out := make([]ComboRow, 0, len(groups))
	for _, g := range groups {
		out = append(out, ComboRow{A: g.Keys[0], B: g.Keys[1], Count: int(g.Value)})
	}
	return out
}

// PreviewRows renders the first n rows. Numeric columns become numbers and
// missing cells become empty strings.
func PreviewRows(t *dataset.Table, types Types, n int) []map[string]any {
	h := t.Head(n)
	out := make([]map[string]any, h.Len())
	for r := range out {
		out[r] = make(map[string]any, h.Width())
	}
	for _, name := range h.Columns() {
		c, _ := h.Column(name)
		numeric := types[name] == TypeNumeric
		for r, cell := range c.Cells {
			switch {
			case cell.Null:
				out[r][name] = ""
			case numeric:
				if v, ok := c.Parse(cell.Raw); ok {
					out[r][name] = v
				} else {
					out[r][name] = cell.Raw
				}
			default:
				out[r][name] = cell.Raw
			}
		}
	}
	return out
}
