package analysis

import (
	"math"
	"sort"
	"strings"

	"github.com/KaramelBytes/instadash-cli/internal/dataset"
)

// Group is one aggregated group of rows.
type Group struct {
	Keys  []string
	Value float64
	Rows  int
}

// KeyFunc extracts a grouping key for row r; ok=false drops the row.
type KeyFunc func(r int) (key string, ok bool)

// ValueFunc extracts the aggregated value for row r; ok=false drops the row.
// A nil ValueFunc counts rows.
type ValueFunc func(r int) (v float64, ok bool)

// ColumnKey groups by the raw value of a column, dropping missing cells.
func ColumnKey(c *dataset.Column) KeyFunc {
	return func(r int) (string, bool) {
		cell := c.Cells[r]
		return cell.Raw, !cell.Null
	}
}

// ColumnValue coerces a column to numbers, dropping failures.
func ColumnValue(c *dataset.Column) ValueFunc {
	vals, ok := c.Floats()
	return func(r int) (float64, bool) { return vals[r], ok[r] }
}

// GroupRows aggregates rows [0, n) passing include. Groups come back in
// ascending key order.
func GroupRows(n int, include func(r int) bool, keys []KeyFunc, value ValueFunc, agg string) []Group {
	type acc struct {
		keys []string
		vals []float64
	}
	groups := map[string]*acc{}
	for r := 0; r < n; r++ {
		if include != nil && !include(r) {
			continue
		}
		ks := make([]string, len(keys))
		skip := false
		for i, kf := range keys {
			k, ok := kf(r)
			if !ok {
				skip = true
				break
			}
			ks[i] = k
		}
		if skip {
			continue
		}
		v := 1.0
		if value != nil {
			var ok bool
			if v, ok = value(r); !ok {
				continue
			}
		}
		id := strings.Join(ks, "\x1f")
		g, ok := groups[id]
		if !ok {
			g = &acc{keys: ks}
			groups[id] = g
		}
		g.vals = append(g.vals, v)
	}
	out := make([]Group, 0, len(groups))
	for _, g := range groups {
		val := float64(len(g.vals))
		if value != nil && agg != "count" {
			val = Aggregate(g.vals, agg)
		}
		out = append(out, Group{Keys: g.keys, Value: val, Rows: len(g.vals)})
	}
	sort.Slice(out, func(i, j int) bool { return lessKeys(out[i].Keys, out[j].Keys) })
	return out
}

// GroupBy groups t by the raw values of cols and aggregates metric; metric
// CountColumn or agg "count" counts rows.
func GroupBy(t *dataset.Table, cols []string, metric, agg string) []Group {
	keys := make([]KeyFunc, 0, len(cols))
	for _, name := range cols {
		c, ok := t.Column(name)
		if !ok {
			return nil
		}
		keys = append(keys, ColumnKey(c))
	}
	var value ValueFunc
	if metric != CountColumn && agg != "count" {
		c, ok := t.Column(metric)
		if !ok {
			return nil
		}
		value = ColumnValue(c)
	}
	return GroupRows(t.Len(), nil, keys, value, agg)
}

// SortGroupsDesc orders groups by value, largest first; ties keep key order
// and NaN values sort last.
func SortGroupsDesc(gs []Group) {
	sort.SliceStable(gs, func(i, j int) bool {
		a, b := gs[i].Value, gs[j].Value
		if math.IsNaN(b) {
			return !math.IsNaN(a)
		}
		return a > b
	})
}

func lessKeys(a, b []string) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// FiniteGroups drops groups whose aggregate overflowed or is undefined.
func FiniteGroups(groups []Group) []Group {
	out := groups[:0]
	for _, g := range groups {
		if isFinite(g.Value) {
			out = append(out, g)
		}
	}
	return out
}
