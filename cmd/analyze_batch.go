package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/KaramelBytes/instadash-cli/internal/analysis"
	"github.com/KaramelBytes/instadash-cli/internal/dataset"
	"github.com/KaramelBytes/instadash-cli/internal/workspace"
)

var (
	abLoad        loadFlags
	abConcurrency int
	abSave        bool
	abQuiet       bool
	abFailFast    bool
)

var errSkipped = errors.New("skipped after an earlier failure")

type batchResult struct {
	path     string
	id       string
	analysis *analysis.Analysis
	err      error
}

var analyzeBatchCmd = &cobra.Command{
	Use:   "analyze-batch <files...>",
	Short: "Analyze multiple CSV/TSV/XLSX files concurrently",
	Example: `  instadash analyze-batch "data/*.csv"
  instadash analyze-batch a.csv b.xlsx --save --concurrency 2`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandInputs(args)
		if err != nil {
			return err
		}
		opt, err := abLoad.options()
		if err != nil {
			return err
		}
		var store *workspace.Store
		if abSave {
			if store, err = openStore(); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		results := make([]batchResult, len(files))
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		g, ctx := errgroup.WithContext(ctx)
		if abConcurrency > 0 {
			g.SetLimit(abConcurrency)
		}
		total := len(files)
		var progressMu sync.Mutex
		for i, path := range files {
			i, path := i, path
			g.Go(func() error {
				if ctx.Err() != nil {
					results[i] = batchResult{path: path, err: errSkipped}
					return nil
				}
				if !abQuiet {
					progressMu.Lock()
					fmt.Fprintf(out, "[%d/%d] Processing %s...\n", i+1, total, filepath.Base(path))
					progressMu.Unlock()
				}
				r := analyzeOne(store, path, opt)
				results[i] = r
				if abFailFast && r.err != nil {
					return fmt.Errorf("%s: %w", path, r.err)
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		failed := 0
		for _, r := range results {
			if r.err != nil {
				failed++
				fmt.Fprintf(out, "✗ %s: %v\n", r.path, r.err)
				continue
			}
			p := r.analysis.Profile
			line := fmt.Sprintf("✓ %s: %s rows × %d columns, %d charts, %d anomalies",
				r.path, analysis.Commas(p.Shape.Rows), p.Shape.Cols, len(r.analysis.Charts), len(r.analysis.Anomalies))
			if r.id != "" {
				line += " (saved as " + r.id + ")"
			}
			fmt.Fprintln(out, line)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, total)
		}
		return nil
	},
}

func analyzeOne(store *workspace.Store, path string, opt dataset.LoadOptions) batchResult {
	r := batchResult{path: path}
	if store == nil {
		t, err := dataset.Load(path, opt)
		if err != nil {
			r.err = err
			return r
		}
		r.analysis = runAnalysis(t)
		return r
	}
	d, t, err := store.Import(path, opt)
	if err != nil {
		r.err = err
		return r
	}
	r.analysis = runAnalysis(t)
	if err := store.SaveAnalysis(d.ID, r.analysis); err != nil {
		r.err = err
		return r
	}
	r.id = d.ID
	return r
}

// expandInputs resolves globs, keeps literal paths that exist, drops
// duplicates and sorts the result.
func expandInputs(args []string) ([]string, error) {
	var files []string
	seen := map[string]struct{}{}
	for _, arg := range args {
		matches, _ := filepath.Glob(arg)
		if len(matches) == 0 {
			if _, err := os.Stat(arg); err == nil {
				matches = []string{arg}
			}
		}
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			seen[m] = struct{}{}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no input files matched")
	}
	sort.Strings(files)
	return files, nil
}

func init() {
	rootCmd.AddCommand(analyzeBatchCmd)
	abLoad.register(analyzeBatchCmd)
	analyzeBatchCmd.Flags().IntVar(&abConcurrency, "concurrency", 4, "files analysed in parallel")
	analyzeBatchCmd.Flags().BoolVar(&abSave, "save", false, "import each file into the workspace")
	analyzeBatchCmd.Flags().BoolVar(&abQuiet, "quiet", false, "suppress progress output")
	analyzeBatchCmd.Flags().BoolVar(&abFailFast, "fail-fast", false, "stop at the first file that fails")
}
