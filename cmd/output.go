package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/KaramelBytes/instadash-cli/internal/analysis"
	"github.com/KaramelBytes/instadash-cli/internal/query"
)

const maxPrintedRows = 20

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printAnswer(w io.Writer, a *query.Answer) {
	fmt.Fprintln(w, a.Text)
	if a.Table != nil && len(a.Table.Rows) > 0 {
		fmt.Fprintln(w)
		printTable(w, a.Table.Columns, a.Table.Rows)
	}
	if a.Chart != nil {
		fmt.Fprintln(w)
		printChart(w, a.Chart)
	}
	if c := a.Citations; c != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "(%s", a.Origin)
		if len(c.ColumnsUsed) > 0 {
			fmt.Fprintf(w, "; columns: %s", strings.Join(c.ColumnsUsed, ", "))
		}
		if c.Model != "" {
			fmt.Fprintf(w, "; model: %s", c.Model)
		}
		if c.Usage != nil && c.Usage.CostUSD != nil {
			fmt.Fprintf(w, "; est. cost $%.4f", *c.Usage.CostUSD)
		}
		fmt.Fprintln(w, ")")
	}
}

func printTable(w io.Writer, cols []string, rows []map[string]any) {
	if len(cols) == 0 && len(rows) > 0 {
		for k := range rows[0] {
			cols = append(cols, k)
		}
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	for i, r := range rows {
		if i == maxPrintedRows {
			fmt.Fprintf(tw, "… %d more rows\n", len(rows)-maxPrintedRows)
			break
		}
		cells := make([]string, len(cols))
		for j, c := range cols {
			cells[j] = formatCell(r[c])
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	tw.Flush()
}

func printChart(w io.Writer, c *analysis.Chart) {
	title := c.Title
	if title == "" {
		title = strings.TrimSpace(c.Y + " by " + c.X)
	}
	fmt.Fprintf(w, "[%s chart] %s\n", c.Type, title)
	pts, ok := c.Data.([]analysis.Point)
	if !ok {
		return
	}
	for i, p := range pts {
		if i == maxPrintedRows {
			fmt.Fprintf(w, "  … %d more points\n", len(pts)-maxPrintedRows)
			break
		}
		fmt.Fprintf(w, "  %v: %s\n", p.X, analysis.FormatG6(p.Y))
	}
}

func formatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return analysis.FormatG6(x)
	case *float64:
		if x == nil {
			return ""
		}
		return analysis.FormatG6(*x)
	default:
		return fmt.Sprint(x)
	}
}

func describeAnomaly(i int, an analysis.Anomaly) string {
	switch {
	case an.Spike != nil:
		s := an.Spike
		return fmt.Sprintf("[%d] spike in %s at %s (%s, z=%.2f)", i, s.YCol, s.X, s.TimeGrain, s.Score)
	case an.Outlier != nil:
		o := an.Outlier
		return fmt.Sprintf("[%d] outlier in %s: %s outside [%s, %s]", i, o.Col,
			analysis.FormatG6(o.Value), analysis.FormatG6(o.Lo), analysis.FormatG6(o.Hi))
	default:
		return fmt.Sprintf("[%d] %s", i, an.Type)
	}
}

// printSummary writes the human-readable overview of an analysis.
func printSummary(w io.Writer, label string, a *analysis.Analysis) {
	p := a.Profile
	ov := a.Overview
	fmt.Fprintf(w, "✓ %s: %s rows × %d columns (health %.0f/100, privacy risk %s)\n",
		label, analysis.Commas(p.Shape.Rows), p.Shape.Cols, ov.Health.Score, ov.Privacy.Risk)

	fmt.Fprintln(w, "\nColumns:")
	for _, c := range ov.Columns {
		fmt.Fprintf(w, "  - %s (%s)\n", c, a.Types[c])
	}
	if len(ov.KPIs) > 0 {
		fmt.Fprintln(w, "\nKPIs:")
		for _, k := range ov.KPIs {
			fmt.Fprintf(w, "  %s: %s\n", k.Label, formatCell(k.Value))
		}
	}
	if len(a.Insights) > 0 {
		fmt.Fprintln(w, "\nInsights:")
		for _, in := range a.Insights {
			fmt.Fprintf(w, "  - %s\n", in.Text)
		}
	}
	if len(a.Anomalies) > 0 {
		fmt.Fprintln(w, "\nAnomalies:")
		for i, an := range a.Anomalies {
			fmt.Fprintf(w, "  %s\n", describeAnomaly(i, an))
		}
	}
	if b := ov.ExecutiveBrief; b != nil && len(b.Bullets) > 0 {
		fmt.Fprintln(w, "\nBrief:")
		for _, s := range b.Bullets {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
	if len(a.Charts) > 0 {
		fmt.Fprintf(w, "\nCharts: %d suggested\n", len(a.Charts))
	}
	if len(ov.SuggestedQuestions) > 0 {
		fmt.Fprintln(w, "\nTry asking:")
		for _, q := range ov.SuggestedQuestions {
			fmt.Fprintf(w, "  - %s\n", q)
		}
	}
}
