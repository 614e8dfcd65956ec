package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/instadash-cli/internal/analysis"
	"github.com/KaramelBytes/instadash-cli/internal/metrics"
	"github.com/KaramelBytes/instadash-cli/internal/query"
)

var (
	pvLoad      loadFlags
	pvGroupBy   []string
	pvMetric    string
	pvAgg       string
	pvDateCol   string
	pvGrain     string
	pvTopN      int
	pvChartType string
	pvFilters   []string
	pvJSON      bool
)

var pivotCmd = &cobra.Command{
	Use:   "pivot <dataset-id|file>",
	Short: "Group, aggregate and chart a dataset",
	Example: `  instadash pivot sales.csv --group-by region --metric revenue --agg sum
  instadash pivot sales.csv --date-col date --grain month --metric revenue
  instadash pivot sales.csv --group-by customer --filter region=north --filter region=south`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		filters, err := parseFilters(pvFilters)
		if err != nil {
			return err
		}
		req := query.PivotRequest{
			GroupBy:   pvGroupBy,
			Metric:    pvMetric,
			Agg:       pvAgg,
			DateCol:   pvDateCol,
			TimeGrain: analysis.Grain(pvGrain),
			TopN:      pvTopN,
			Filters:   filters,
			ChartType: pvChartType,
		}
		// flag values are checked before the file is read
		if err := req.Validate(); err != nil {
			return err
		}
		snap, err := resolveSnapshot(args[0], &pvLoad)
		if err != nil {
			return err
		}
		ans, err := query.RunPivot(snap, req, queryOptions())
		if err != nil {
			return err
		}
		metrics.CountAnswer("pivot", ans.Origin)
		if pvJSON {
			return printJSON(cmd.OutOrStdout(), ans)
		}
		printAnswer(cmd.OutOrStdout(), ans)
		return nil
	},
}

// parseFilters turns repeated col=value flags into pivot filters. A column
// given more than once matches any of its values.
func parseFilters(in []string) (map[string]any, error) {
	if len(in) == 0 {
		return nil, nil
	}
	grouped := map[string][]any{}
	var order []string
	for _, f := range in {
		col, val, ok := strings.Cut(f, "=")
		col = strings.TrimSpace(col)
		if !ok || col == "" {
			return nil, fmt.Errorf("invalid --filter %q (use column=value)", f)
		}
		if _, seen := grouped[col]; !seen {
			order = append(order, col)
		}
		grouped[col] = append(grouped[col], strings.TrimSpace(val))
	}
	out := make(map[string]any, len(grouped))
	for _, col := range order {
		vals := grouped[col]
		if len(vals) == 1 {
			out[col] = vals[0]
		} else {
			out[col] = vals
		}
	}
	return out, nil
}

func init() {
	rootCmd.AddCommand(pivotCmd)
	pvLoad.register(pivotCmd)
	pivotCmd.Flags().StringSliceVar(&pvGroupBy, "group-by", nil, "columns to group by (repeat or comma-separate)")
	pivotCmd.Flags().StringVar(&pvMetric, "metric", "", "numeric column to aggregate (empty counts rows)")
	pivotCmd.Flags().StringVar(&pvAgg, "agg", "sum", "aggregation: sum|mean|count|min|max")
	pivotCmd.Flags().StringVar(&pvDateCol, "date-col", "", "datetime column to bucket by")
	pivotCmd.Flags().StringVar(&pvGrain, "grain", "", "time grain: day|week|month (default: from the date span)")
	pivotCmd.Flags().IntVar(&pvTopN, "top-n", 0, "rows kept after sorting, 1-50 (0 = config default)")
	pivotCmd.Flags().StringVar(&pvChartType, "chart-type", "", "bar|line|table")
	pivotCmd.Flags().StringArrayVar(&pvFilters, "filter", nil, "column=value filter (repeatable)")
	pivotCmd.Flags().BoolVar(&pvJSON, "json", false, "print the answer as JSON")
}
