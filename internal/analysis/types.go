package analysis

import (
	"github.com/KaramelBytes/instadash-cli/internal/dataset"
)

// ColumnType is the semantic kind assigned to a column.
type ColumnType string

const (
	TypeNumeric     ColumnType = "numeric"
	TypeDatetime    ColumnType = "datetime"
	TypeBoolean     ColumnType = "boolean"
	TypeCategorical ColumnType = "categorical"
	TypeText        ColumnType = "text"
)

// Types maps column names to their inferred kind.
type Types map[string]ColumnType

const (
	datetimeSample   = 50
	datetimeMinRate  = 0.8
	categoricalFloor = 25
	categoricalShare = 0.05
)

// InferTypes assigns exactly one ColumnType to every column of t.
func InferTypes(t *dataset.Table) Types {
	out := make(Types, t.Width())
	for _, name := range t.Columns() {
		c, _ := t.Column(name)
		out[name] = inferColumn(c, t.Len())
	}
	return out
}

func inferColumn(c *dataset.Column, rows int) ColumnType {
	vals := c.Values()
	if len(vals) == 0 {
		return TypeText
	}
	if allMatch(vals, func(s string) bool { _, ok := c.Parse(s); return ok }) {
		return TypeNumeric
	}
	if allMatch(vals, func(s string) bool { _, ok := dataset.ParseBool(s); return ok }) {
		return TypeBoolean
	}
	sample := vals
	if len(sample) > datetimeSample {
		sample = sample[:datetimeSample]
	}
	parsed := 0
	for _, s := range sample {
		if _, ok := dataset.ParseTime(s); ok {
			parsed++
		}
	}
	if float64(parsed)/float64(len(sample)) >= datetimeMinRate {
		return TypeDatetime
	}
	limit := max(categoricalFloor, int(categoricalShare*float64(rows)))
	if c.Distinct() <= limit {
		return TypeCategorical
	}
	return TypeText
}

func allMatch(vals []string, ok func(string) bool) bool {
	for _, v := range vals {
		if !ok(v) {
			return false
		}
	}
	return true
}

// ColumnsOfType returns the names of columns with type ct, in table order.
func ColumnsOfType(t *dataset.Table, types Types, ct ColumnType) []string {
	var out []string
	for _, name := range t.Columns() {
		if types[name] == ct {
			out = append(out, name)
		}
	}
	return out
}
