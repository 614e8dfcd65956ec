package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List datasets saved in the workspace",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		ds, err := store.List()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if listJSON {
			return printJSON(out, ds)
		}
		if len(ds) == 0 {
			fmt.Fprintln(out, "(no datasets)")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tROWS\tCOLS\tANALYZED")
		for _, d := range ds {
			analyzed := "-"
			if d.AnalyzedAt != nil {
				analyzed = d.AnalyzedAt.Local().Format("2006-01-02 15:04")
			}
			name := d.Name
			if d.Sheet != "" {
				name += " [" + d.Sheet + "]"
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\n", d.ID, name, d.Rows, d.Cols, analyzed)
		}
		return tw.Flush()
	},
}

var (
	importLoad loadFlags
	importSkip bool
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a file into the workspace and analyze it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opt, err := importLoad.options()
		if err != nil {
			return err
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		d, t, err := store.Import(args[0], opt)
		if err != nil {
			return err
		}
		if !importSkip {
			if err := store.SaveAnalysis(d.ID, runAnalysis(t)); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Imported %s as %s (%d rows; columns: %s)\n",
			d.Name, d.ID, d.Rows, strings.Join(d.Columns, ", "))
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:     "delete <dataset-id>",
	Aliases: []string{"rm"},
	Short:   "Delete a dataset and its stored analysis",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		if err := store.Delete(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted dataset %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd, importCmd, deleteCmd)
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print datasets as JSON")
	importLoad.register(importCmd)
	importCmd.Flags().BoolVar(&importSkip, "no-analyze", false, "store the file without running the analysis")
}
