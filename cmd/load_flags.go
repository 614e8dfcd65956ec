package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/instadash-cli/internal/analysis"
	"github.com/KaramelBytes/instadash-cli/internal/dataset"
	"github.com/KaramelBytes/instadash-cli/internal/query"
)

// loadFlags are the file-reading flags shared by commands that accept a path.
type loadFlags struct {
	delimiter  string
	decimal    string
	thousands  string
	sheetName  string
	sheetIndex int
	maxRows    int
}

func (lf *loadFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&lf.delimiter, "delimiter", "", "CSV delimiter: ',', ';', 'tab' (default: sniffed)")
	cmd.Flags().StringVar(&lf.decimal, "decimal", "", "decimal separator: '.'|'comma'")
	cmd.Flags().StringVar(&lf.thousands, "thousands", "", "thousands separator: ','|'.'|'space'")
	cmd.Flags().StringVar(&lf.sheetName, "sheet-name", "", "XLSX sheet name")
	cmd.Flags().IntVar(&lf.sheetIndex, "sheet-index", 0, "XLSX sheet index (1-based)")
	cmd.Flags().IntVar(&lf.maxRows, "max-rows", 0, "limit rows read (0 = config default)")
}

func (lf *loadFlags) options() (dataset.LoadOptions, error) {
	var opt dataset.LoadOptions
	if cfg != nil {
		opt.MaxRows = cfg.MaxRows
	}
	if lf.maxRows > 0 {
		opt.MaxRows = lf.maxRows
	}
	switch lf.delimiter {
	case "":
	case ",":
		opt.Delimiter = ','
	case "\t", "tab":
		opt.Delimiter = '\t'
	case ";":
		opt.Delimiter = ';'
	default:
		return opt, fmt.Errorf("unsupported --delimiter: %s", lf.delimiter)
	}
	switch strings.ToLower(strings.TrimSpace(lf.decimal)) {
	case ",", "comma":
		opt.Numbers.Decimal = ','
	case ".", "dot":
		opt.Numbers.Decimal = '.'
	case "":
	default:
		return opt, fmt.Errorf("unsupported --decimal: %s (use '.'|'comma')", lf.decimal)
	}
	switch strings.ToLower(strings.TrimSpace(lf.thousands)) {
	case ",":
		opt.Numbers.Thousands = ','
	case ".":
		opt.Numbers.Thousands = '.'
	case "space", " ":
		opt.Numbers.Thousands = ' '
	case "":
	default:
		return opt, fmt.Errorf("unsupported --thousands: %s (use ','|'.'|'space')", lf.thousands)
	}
	switch {
	case lf.sheetName != "" && lf.sheetIndex > 0:
		return opt, fmt.Errorf("use only one of --sheet-name or --sheet-index")
	case lf.sheetName != "":
		opt.Sheet = lf.sheetName
	case lf.sheetIndex > 0:
		opt.Sheet = strconv.Itoa(lf.sheetIndex)
	}
	return opt, nil
}

// resolveSnapshot treats ref as a file path when it exists on disk and as a
// workspace dataset id otherwise. Stored datasets reuse their saved analysis.
func resolveSnapshot(ref string, lf *loadFlags) (*query.Snapshot, error) {
	if st, err := os.Stat(ref); err == nil && !st.IsDir() {
		opt, err := lf.options()
		if err != nil {
			return nil, err
		}
		t, err := dataset.Load(ref, opt)
		if err != nil {
			return nil, err
		}
		return query.NewSnapshot(t, analysis.Analyze(t, analysisOptions())), nil
	}

	store, err := openStore()
	if err != nil {
		return nil, err
	}
	if _, err := store.Get(ref); err != nil {
		return nil, err
	}
	t, err := store.Table(ref)
	if err != nil {
		return nil, err
	}
	a, err := store.LoadAnalysis(ref)
	if err != nil {
		a = analysis.Analyze(t, analysisOptions())
		if err := store.SaveAnalysis(ref, a); err != nil {
			return nil, err
		}
	}
	return query.NewSnapshot(t, a), nil
}
