package workspace_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/instadash-cli/internal/analysis"
	"github.com/KaramelBytes/instadash-cli/internal/apperr"
	"github.com/KaramelBytes/instadash-cli/internal/dataset"
	"github.com/KaramelBytes/instadash-cli/internal/workspace"
)

const salesCSV = "date,customer,revenue\n2024-01-01,A,10\n2024-01-01,B,5\n2024-02-01,A,20\n"

func TestImportGetListDelete(t *testing.T) {
	s, err := workspace.Open(filepath.Join(t.TempDir(), "ws"))
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "sales.csv")
	require.NoError(t, os.WriteFile(src, []byte(salesCSV), 0o644))

	d, tbl, err := s.Import(src, dataset.LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, "sales.csv", d.Name)
	assert.Equal(t, 3, d.Rows)
	assert.Equal(t, []string{"date", "customer", "revenue"}, d.Columns)
	assert.Equal(t, 3, tbl.Len())
	assert.FileExists(t, s.DataPath(d))

	got, err := s.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, d.ID, got.ID)
	assert.Nil(t, got.AnalyzedAt)

	d2, _, err := s.ImportReader("more.tsv", strings.NewReader("k\tv\nx\t1\n"), dataset.LoadOptions{})
	require.NoError(t, err)

	list, err := s.List()
	require.NoError(t, err)
	require.Len(t, list, 2)
	ids := []string{list[0].ID, list[1].ID}
	assert.ElementsMatch(t, []string{d.ID, d2.ID}, ids)

	reloaded, err := s.Table(d.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, reloaded.Len())

	require.NoError(t, s.Delete(d.ID))
	_, err = s.Get(d.ID)
	assert.True(t, apperr.IsNotFound(err))
	assert.True(t, apperr.IsNotFound(s.Delete(d.ID)))
}

func TestAnalysisRoundTrip(t *testing.T) {
	s, err := workspace.Open(t.TempDir())
	require.NoError(t, err)
	d, tbl, err := s.ImportReader("sales.csv", strings.NewReader(salesCSV), dataset.LoadOptions{})
	require.NoError(t, err)

	_, err = s.LoadAnalysis(d.ID)
	assert.True(t, apperr.IsNotFound(err))

	a := analysis.Analyze(tbl, analysis.DefaultOptions())
	require.NoError(t, s.SaveAnalysis(d.ID, a))

	back, err := s.LoadAnalysis(d.ID)
	require.NoError(t, err)
	assert.Equal(t, a.RunID, back.RunID)
	assert.Equal(t, a.Types, back.Types)
	require.NotNil(t, back.Profile.Column("revenue"))
	assert.Equal(t, *a.Profile.Column("revenue").Mean, *back.Profile.Column("revenue").Mean)

	meta, err := s.Get(d.ID)
	require.NoError(t, err)
	require.NotNil(t, meta.AnalyzedAt)
	assert.Equal(t, a.RunID, meta.RunID)
}

func TestTableReloadsWithImportFormat(t *testing.T) {
	s, err := workspace.Open(t.TempDir())
	require.NoError(t, err)
	opt := dataset.LoadOptions{
		Delimiter: ';',
		Numbers:   dataset.NumberFormat{Decimal: ',', Thousands: '.'},
	}
	d, tbl, err := s.ImportReader("eu.csv", strings.NewReader("item;amount\nA;1.234,5\nB;2.000,0\n"), opt)
	require.NoError(t, err)
	amount, ok := tbl.Column("amount")
	require.True(t, ok)
	assert.Equal(t, []float64{1234.5, 2000}, amount.ValidFloats())

	meta, err := s.Get(d.ID)
	require.NoError(t, err)
	assert.Equal(t, ";", meta.Delimiter)
	assert.Equal(t, ",", meta.Decimal)
	assert.Equal(t, ".", meta.Thousands)
	assert.Equal(t, opt, meta.LoadOptions())

	reloaded, err := s.Table(d.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"item", "amount"}, reloaded.Columns())
	amount, ok = reloaded.Column("amount")
	require.True(t, ok)
	assert.Equal(t, []float64{1234.5, 2000}, amount.ValidFloats())
}

func TestImportRejectsBadInput(t *testing.T) {
	root := t.TempDir()
	s, err := workspace.Open(root)
	require.NoError(t, err)

	_, _, err = s.ImportReader("notes.pdf", strings.NewReader("%PDF"), dataset.LoadOptions{})
	assert.True(t, apperr.IsInput(err))
	_, _, err = s.ImportReader("noext", strings.NewReader("a,b"), dataset.LoadOptions{})
	assert.True(t, apperr.IsInput(err))

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "failed imports must not leave directories behind")
}

func TestGetRejectsPathLikeIDs(t *testing.T) {
	s, err := workspace.Open(t.TempDir())
	require.NoError(t, err)
	_, err = s.Get("../etc")
	assert.True(t, apperr.IsNotFound(err))
}
