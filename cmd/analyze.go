package cmd

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/instadash-cli/internal/analysis"
	"github.com/KaramelBytes/instadash-cli/internal/dataset"
	"github.com/KaramelBytes/instadash-cli/internal/metrics"
	"github.com/KaramelBytes/instadash-cli/internal/utils"
)

var (
	anaLoad       loadFlags
	anaOutputPath string
	anaJSON       bool
	anaSave       bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <file>",
	Short: "Profile a CSV/TSV/XLSX file: types, charts, anomalies and insights",
	Example: `  instadash analyze sales.csv
  instadash analyze sales.csv --json -o analysis.json
  instadash analyze report.xlsx --sheet-name Q1 --save`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		opt, err := anaLoad.options()
		if err != nil {
			return err
		}

		var (
			a       *analysis.Analysis
			savedID string
		)
		if anaSave {
			store, err := openStore()
			if err != nil {
				return err
			}
			d, t, err := store.Import(path, opt)
			if err != nil {
				return err
			}
			a = runAnalysis(t)
			if err := store.SaveAnalysis(d.ID, a); err != nil {
				return err
			}
			savedID = d.ID
		} else {
			t, err := dataset.Load(path, opt)
			if err != nil {
				return err
			}
			a = runAnalysis(t)
		}

		out := cmd.OutOrStdout()
		switch {
		case anaOutputPath != "":
			if err := utils.WriteJSON(anaOutputPath, a); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			fmt.Fprintf(out, "✓ Wrote analysis to %s\n", anaOutputPath)
		case anaJSON:
			if err := printJSON(out, a); err != nil {
				return err
			}
		default:
			printSummary(out, filepath.Base(path), a)
		}
		if savedID != "" {
			fmt.Fprintf(out, "✓ Saved dataset %s\n", savedID)
		}
		return nil
	},
}

// runAnalysis analyses t with the configured options and records metrics.
func runAnalysis(t *dataset.Table) *analysis.Analysis {
	start := time.Now()
	a := analysis.Analyze(t, analysisOptions())
	metrics.ObserveAnalysis(t.Len(), time.Since(start))
	return a
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	anaLoad.register(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&anaOutputPath, "output", "o", "", "write the full analysis JSON to this file")
	analyzeCmd.Flags().BoolVar(&anaJSON, "json", false, "print the full analysis as JSON")
	analyzeCmd.Flags().BoolVar(&anaSave, "save", false, "import the file into the workspace and store the analysis")
}
