package dataset

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Cell is a single raw value. Null marks a missing value; Raw is empty for nulls.
type Cell struct {
	Raw  string
	Null bool
}

// Column is a named sequence of cells in row order.
type Column struct {
	Name   string
	Cells  []Cell
	format NumberFormat
}

// Table is an ordered collection of equally long columns. Tables are read-only
// once built; every analysis component treats them as immutable input.
type Table struct {
	cols   []*Column
	index  map[string]int
	rows   int
	format NumberFormat
}

// FromRecords builds a table from a header and string records. Short records are
// padded with missing cells and missing tokens are normalised to nulls.
func FromRecords(header []string, records [][]string) *Table {
	return FromRecordsWithFormat(header, records, NumberFormat{})
}

// FromRecordsWithFormat is FromRecords with an explicit number locale.
func FromRecordsWithFormat(header []string, records [][]string, nf NumberFormat) *Table {
	names := normalizeHeader(header)
	t := &Table{index: make(map[string]int, len(names)), rows: len(records), format: nf}
	for i, n := range names {
		c := &Column{Name: n, Cells: make([]Cell, len(records)), format: nf}
		for r, rec := range records {
			v := ""
			if i < len(rec) {
				v = rec[i]
			}
			c.Cells[r] = MakeCell(v)
		}
		t.cols = append(t.cols, c)
		t.index[n] = i
	}
	return t
}

// FromRows builds a table from loosely typed values. nil becomes a missing cell;
// numbers, booleans and times are rendered in canonical string form.
func FromRows(header []string, rows [][]any) *Table {
	records := make([][]string, len(rows))
	for r, row := range rows {
		rec := make([]string, len(header))
		for i := range header {
			if i < len(row) {
				rec[i] = formatAny(row[i])
			}
		}
		records[r] = rec
	}
	return FromRecords(header, records)
}

// MakeCell trims v and marks recognised missing tokens as null.
func MakeCell(v string) Cell {
	s := strings.TrimSpace(v)
	if IsMissing(s) {
		return Cell{Null: true}
	}
	return Cell{Raw: s}
}

func formatAny(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return FormatTime(x)
	default:
		return fmt.Sprint(x)
	}
}

func normalizeHeader(header []string) []string {
	out := make([]string, len(header))
	seen := map[string]int{}
	for i, h := range header {
		name := strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.cols) }

// Columns returns column names in table order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.cols))
	for i, c := range t.cols {
		out[i] = c.Name
	}
	return out
}

// Column looks a column up by exact name.
func (t *Table) Column(name string) (*Column, bool) {
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return t.cols[i], true
}

// Has reports whether the table has a column with this exact name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Cell returns the cell at row r of the named column.
func (t *Table) Cell(r int, name string) Cell {
	c, ok := t.Column(name)
	if !ok || r < 0 || r >= t.rows {
		return Cell{Null: true}
	}
	return c.Cells[r]
}

// Record returns row r keyed by column name; missing cells map to nil.
func (t *Table) Record(r int) map[string]any {
	out := make(map[string]any, len(t.cols))
	for _, c := range t.cols {
		cell := c.Cells[r]
		if cell.Null {
			out[c.Name] = nil
			continue
		}
		out[c.Name] = cell.Raw
	}
	return out
}

// Head returns a view over the first n rows.
func (t *Table) Head(n int) *Table {
	if n >= t.rows {
		return t
	}
	if n < 0 {
		n = 0
	}
	h := &Table{index: t.index, rows: n, format: t.format}
	for _, c := range t.cols {
		h.cols = append(h.cols, &Column{Name: c.Name, Cells: c.Cells[:n], format: c.format})
	}
	return h
}

// MissingCells counts null cells over the whole table.
func (t *Table) MissingCells() int {
	n := 0
	for _, c := range t.cols {
		n += c.Missing()
	}
	return n
}

// DuplicateRows counts rows that repeat an earlier row exactly.
func (t *Table) DuplicateRows() int {
	seen := make(map[string]struct{}, t.rows)
	dup := 0
	var b strings.Builder
	for r := 0; r < t.rows; r++ {
		b.Reset()
		for _, c := range t.cols {
			cell := c.Cells[r]
			if cell.Null {
				b.WriteByte(0)
			} else {
				b.WriteString(cell.Raw)
			}
			b.WriteByte(0x1f)
		}
		k := b.String()
		if _, ok := seen[k]; ok {
			dup++
			continue
		}
		seen[k] = struct{}{}
	}
	return dup
}

// Missing counts null cells.
func (c *Column) Missing() int {
	n := 0
	for _, cell := range c.Cells {
		if cell.Null {
			n++
		}
	}
	return n
}

// NonNull counts non-missing cells.
func (c *Column) NonNull() int { return len(c.Cells) - c.Missing() }

// Distinct counts distinct non-missing raw values.
func (c *Column) Distinct() int {
	seen := map[string]struct{}{}
	for _, cell := range c.Cells {
		if !cell.Null {
			seen[cell.Raw] = struct{}{}
		}
	}
	return len(seen)
}

// Values returns the non-missing raw values in row order.
func (c *Column) Values() []string {
	out := make([]string, 0, len(c.Cells))
	for _, cell := range c.Cells {
		if !cell.Null {
			out = append(out, cell.Raw)
		}
	}
	return out
}

// Floats coerces every cell to a number. ok[i] is false for missing or
// unparseable cells.
func (c *Column) Floats() (vals []float64, ok []bool) {
	vals = make([]float64, len(c.Cells))
	ok = make([]bool, len(c.Cells))
	for i, cell := range c.Cells {
		if cell.Null {
			continue
		}
		vals[i], ok[i] = c.format.Parse(cell.Raw)
	}
	return vals, ok
}

// Parse coerces s with the column's number format.
func (c *Column) Parse(s string) (float64, bool) { return c.format.Parse(s) }

// ValidFloats returns the coerced numbers in row order, dropping failures.
func (c *Column) ValidFloats() []float64 {
	vals, ok := c.Floats()
	out := make([]float64, 0, len(vals))
	for i, v := range vals {
		if ok[i] {
			out = append(out, v)
		}
	}
	return out
}

// Times coerces every cell to a timestamp.
func (c *Column) Times() (vals []time.Time, ok []bool) {
	vals = make([]time.Time, len(c.Cells))
	ok = make([]bool, len(c.Cells))
	for i, cell := range c.Cells {
		if cell.Null {
			continue
		}
		vals[i], ok[i] = ParseTime(cell.Raw)
	}
	return vals, ok
}
