package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaramelBytes/instadash-cli/internal/apperr"
	"github.com/KaramelBytes/instadash-cli/internal/query"
	"github.com/KaramelBytes/instadash-cli/internal/workspace"
)

const salesCSV = "date,customer,revenue\n" +
	"2024-01-01,A,10\n" +
	"2024-01-01,B,5\n" +
	"2024-02-01,A,20\n" +
	"2024-02-01,C,2\n" +
	"2024-03-01,A,40\n"

// resetFlags restores every flag to its default so state does not leak
// between invocations of the shared root command.
func resetFlags(c *cobra.Command) {
	reset := func(fl *pflag.Flag) {
		if sv, ok := fl.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = fl.Value.Set(fl.DefValue)
		}
		fl.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// execCmd runs the root command with args and returns its stdout.
func execCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	cfg = nil
	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

// runCmd is execCmd that fails the test on error.
func runCmd(t *testing.T, args ...string) string {
	t.Helper()
	out, err := execCmd(t, args...)
	if err != nil {
		t.Fatalf("command %v failed: %v\n%s", args, err, out)
	}
	return out
}

// isolate points HOME at a temp dir and writes the sales fixture there.
func isolate(t *testing.T) (home, csvPath string) {
	t.Helper()
	home = t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("INSTADASH_API_KEY", "")
	t.Setenv("INSTADASH_WORKSPACE_DIR", "")
	csvPath = filepath.Join(home, "sales.csv")
	if err := os.WriteFile(csvPath, []byte(salesCSV), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return home, csvPath
}

func savedIDs(t *testing.T, home string) []string {
	t.Helper()
	store, err := workspace.Open(filepath.Join(home, ".instadash", "datasets"))
	require.NoError(t, err)
	ds, err := store.List()
	require.NoError(t, err)
	ids := make([]string, 0, len(ds))
	for _, d := range ds {
		ids = append(ids, d.ID)
	}
	return ids
}

func TestCLI_AnalyzePrintsSummary(t *testing.T) {
	_, csvPath := isolate(t)

	out := runCmd(t, "analyze", csvPath)
	assert.Contains(t, out, "✓ sales.csv: 5 rows × 3 columns")
	assert.Contains(t, out, "  - revenue (numeric)")
	assert.Contains(t, out, "Avg revenue: 15.4")
	assert.Contains(t, out, "Try asking:")
}

func TestCLI_AnalyzeWritesJSON(t *testing.T) {
	home, csvPath := isolate(t)
	dest := filepath.Join(home, "out.json")

	out := runCmd(t, "analyze", csvPath, "-o", dest)
	assert.Contains(t, out, "✓ Wrote analysis to "+dest)

	b, err := os.ReadFile(dest)
	require.NoError(t, err)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(b, &payload))
	for _, k := range []string{"run_id", "types", "profile", "chart_specs", "charts", "anomalies", "insights", "preview", "overview"} {
		assert.Contains(t, payload, k)
	}
}

func TestCLI_RejectsLegacyWorkbook(t *testing.T) {
	home, _ := isolate(t)
	xls := filepath.Join(home, "old.xls")
	require.NoError(t, os.WriteFile(xls, []byte("not a workbook"), 0o644))

	_, err := execCmd(t, "analyze", xls)
	require.Error(t, err)
	assert.True(t, apperr.IsInput(err))
}

func TestCLI_SaveListAskDelete(t *testing.T) {
	home, csvPath := isolate(t)

	out := runCmd(t, "analyze", csvPath, "--save")
	assert.Contains(t, out, "✓ Saved dataset ")
	ids := savedIDs(t, home)
	require.Len(t, ids, 1)
	id := ids[0]

	out = runCmd(t, "list")
	assert.Contains(t, out, id)
	assert.Contains(t, out, "sales.csv")

	out = runCmd(t, "ask", id, "sum", "revenue", "--no-llm")
	assert.Contains(t, out, "SUM(revenue) = 77")
	assert.Contains(t, out, "(computed; columns: revenue)")

	out = runCmd(t, "ask", id, "sum revenue", "--json")
	var ans query.Answer
	require.NoError(t, json.Unmarshal([]byte(out), &ans))
	assert.Equal(t, query.OriginComputed, ans.Origin)

	out = runCmd(t, "delete", id)
	assert.Contains(t, out, "✓ Deleted dataset "+id)
	assert.Empty(t, savedIDs(t, home))

	_, err := execCmd(t, "ask", id, "sum revenue")
	require.Error(t, err)
	assert.True(t, apperr.IsNotFound(err))
}

func TestCLI_AskHeuristicWithoutKey(t *testing.T) {
	_, csvPath := isolate(t)

	out := runCmd(t, "ask", csvPath, "what", "is", "interesting?")
	assert.Contains(t, out, "I see: date, customer, revenue")
}

func TestCLI_AskRejectsLongQuestion(t *testing.T) {
	_, csvPath := isolate(t)

	_, err := execCmd(t, "ask", csvPath, strings.Repeat("x", maxQuestionLen+1))
	require.Error(t, err)
	assert.True(t, apperr.IsInput(err))
}

func TestCLI_Pivot(t *testing.T) {
	_, csvPath := isolate(t)

	out := runCmd(t, "pivot", csvPath, "--group-by", "customer", "--metric", "revenue")
	assert.Contains(t, out, "sum(revenue) by customer.")
	assert.Contains(t, out, "[bar chart] sum(revenue) by customer")
	assert.Contains(t, out, "  A: 70\n")

	out = runCmd(t, "pivot", csvPath, "--group-by", "customer", "--agg", "count", "--chart-type", "table", "--filter", "customer=A", "--filter", "customer=B")
	assert.Contains(t, out, "Pivot result (count).")
	assert.NotContains(t, out, "[bar chart]")

	_, err := execCmd(t, "pivot", csvPath, "--group-by", "customer", "--agg", "median")
	require.Error(t, err)
	assert.True(t, apperr.IsInput(err))

	_, err = execCmd(t, "pivot", csvPath, "--group-by", "nope")
	require.Error(t, err)
	assert.True(t, apperr.IsInput(err))
}

func TestCLI_ExplainSpikeWithoutSpikes(t *testing.T) {
	_, csvPath := isolate(t)

	_, err := execCmd(t, "explain-spike", csvPath)
	require.Error(t, err)
	assert.True(t, apperr.IsInput(err))

	_, err = execCmd(t, "explain-spike", csvPath, "99")
	require.Error(t, err)
	assert.True(t, apperr.IsInput(err))
}

func TestCLI_ConfigSetAndShow(t *testing.T) {
	home, _ := isolate(t)

	runCmd(t, "config", "set", "api_key", "sk-abcdef123456")
	runCmd(t, "config", "set", "model", "gpt-4o-mini")
	_, err := os.Stat(filepath.Join(home, ".instadash", "config.yaml"))
	require.NoError(t, err)

	out := runCmd(t, "config", "show")
	assert.Contains(t, out, "api_key: sk-****456")
	assert.Contains(t, out, "model: gpt-4o-mini")

	_, err = execCmd(t, "config", "set", "provider", "ollama")
	require.Error(t, err)
	_, err = execCmd(t, "config", "set", "no_such_key", "1")
	require.Error(t, err)
}

func TestCLI_ModelsSyncAndCost(t *testing.T) {
	home, _ := isolate(t)
	catalog := filepath.Join(home, "models.yaml")
	require.NoError(t, os.WriteFile(catalog, []byte(`
local/cli-model:
  provider: openrouter
  context_tokens: 8000
  input_per_k: 1.0
  output_per_k: 2.0
`), 0o644))

	out := runCmd(t, "models", "sync", "--file", catalog)
	assert.Contains(t, out, "✓ Installed 1 models into ")

	out = runCmd(t, "models", "show")
	assert.Contains(t, out, "local/cli-model")

	out = runCmd(t, "models", "cost", "local/cli-model", "--prompt", "1000", "--completion", "500")
	assert.Contains(t, out, "local/cli-model: $2.000000")

	out = runCmd(t, "config", "show")
	assert.Contains(t, out, "models_catalog_file: "+filepath.Join(home, ".instadash", "models.yaml"))
}

func TestParseFilters(t *testing.T) {
	got, err := parseFilters([]string{"region=north", "region=south", "channel = web"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"region":  []any{"north", "south"},
		"channel": "web",
	}, got)

	_, err = parseFilters([]string{"=x"})
	assert.Error(t, err)
	_, err = parseFilters([]string{"novalue"})
	assert.Error(t, err)

	got, err = parseFilters(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLoadFlagsOptions(t *testing.T) {
	lf := loadFlags{delimiter: "tab", decimal: "comma", thousands: "space", sheetIndex: 2, maxRows: 10}
	opt, err := lf.options()
	require.NoError(t, err)
	assert.Equal(t, '\t', opt.Delimiter)
	assert.Equal(t, ',', opt.Numbers.Decimal)
	assert.Equal(t, ' ', opt.Numbers.Thousands)
	assert.Equal(t, "2", opt.Sheet)
	assert.Equal(t, 10, opt.MaxRows)

	for _, bad := range []loadFlags{
		{delimiter: "|"},
		{decimal: "x"},
		{thousands: "_"},
		{sheetName: "Q1", sheetIndex: 1},
	} {
		_, err := bad.options()
		assert.Error(t, err, "%+v", bad)
	}
}

func TestMask(t *testing.T) {
	assert.Equal(t, "", mask(""))
	assert.Equal(t, "******", mask("abc"))
	assert.Equal(t, "sk-****456", mask("sk-abcdef123456"))
}
