package query

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/instadash-cli/internal/analysis"
	"github.com/KaramelBytes/instadash-cli/internal/dataset"
)

func TestBuildContext(t *testing.T) {
	dc := BuildContext(salesSnapshot(), "which customer buys most", DefaultOptions())

	assert.Equal(t, analysis.Shape{Rows: 5, Cols: 3}, dc.Shape)
	assert.Equal(t, []string{"date", "customer", "revenue"}, dc.Columns)
	assert.Len(t, dc.SampleRows, 5)
	require.Contains(t, dc.ColumnSummary, "revenue")

	rev := dc.ColumnSummary["revenue"]
	assert.Equal(t, analysis.TypeNumeric, rev.Type)
	require.NotNil(t, rev.Mean)
	assert.InDelta(t, 15.4, *rev.Mean, 1e-9)
	assert.Equal(t, 40.0, rev.Max)

	cust := dc.ColumnSummary["customer"]
	assert.Equal(t, analysis.TypeCategorical, cust.Type)
	assert.NotEmpty(t, cust.TopValues)

	assert.Equal(t, []string{"customer"}, dc.SelectedColumns)
	require.NotEmpty(t, dc.Retrieved)
	assert.Equal(t, "customer", dc.Retrieved[0].Key)
}

func TestBuildContextTrimsToBudget(t *testing.T) {
	dc := BuildContext(salesSnapshot(), "customer", Options{SampleRows: 20, ContextTokens: 1})

	assert.Len(t, dc.SampleRows, minSampleRows)
	assert.Equal(t, []string{"customer"}, dc.SelectedColumns)
	assert.Len(t, dc.ColumnSummary, 1)
	assert.Contains(t, dc.ColumnSummary, "customer")
}

func TestBuildContextClipsLongCells(t *testing.T) {
	long := strings.Repeat("z", 1000)
	tbl := dataset.FromRecords([]string{"note", "n"}, [][]string{{long, "1"}, {"short", "2"}})
	s := NewSnapshot(tbl, nil)

	dc := BuildContext(s, "note", DefaultOptions())
	require.Len(t, dc.SampleRows, 2)
	assert.Equal(t, strings.Repeat("z", maxCellTokens*4), dc.SampleRows[0]["note"])
	assert.Equal(t, "short", dc.SampleRows[1]["note"])
}
