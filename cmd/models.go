package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/instadash-cli/internal/ai"
	cfgpkg "github.com/KaramelBytes/instadash-cli/internal/config"
	"github.com/KaramelBytes/instadash-cli/internal/utils"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "Inspect or extend the model catalog and pricing",
	Example: `  instadash models show
  instadash models sync --file ./models.yaml
  instadash models cost gpt-4.1 --prompt 3000 --completion 500`,
}

var modelsShowJSON bool

var modelsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current model catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		cat := ai.Catalog()
		out := cmd.OutOrStdout()
		if modelsShowJSON {
			return printJSON(out, cat)
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PROVIDER\tMODEL\tCONTEXT\tIN $/1K\tOUT $/1K\tJSON")
		for _, m := range cat {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%.5f\t%.5f\t%t\n", m.Provider, m.Name, m.ContextTokens, m.InputPerK, m.OutputPerK, m.JSONMode)
		}
		return tw.Flush()
	},
}

var syncPath string

var modelsSyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Install a YAML/JSON model catalog and use it on every run",
	Long: `Validates the catalog file, copies it to ~/.instadash/models.yaml and
points models_catalog_file at it. Entries are merged over the built-in
catalog at startup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncPath == "" {
			return fmt.Errorf("--file is required")
		}
		m, err := ai.LoadCatalogFile(syncPath)
		if err != nil {
			return fmt.Errorf("load catalog: %w", err)
		}
		dir, err := cfgpkg.Dir()
		if err != nil {
			return err
		}
		if err := utils.EnsureDir(dir); err != nil {
			return err
		}
		b, err := yaml.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal catalog: %w", err)
		}
		dest := filepath.Join(dir, "models.yaml")
		if err := utils.SafeWriteFile(dest, b); err != nil {
			return err
		}
		ai.MergeCatalog(m)

		if cfg == nil {
			c, err := cfgpkg.Load(cfgFile)
			if err != nil {
				return err
			}
			cfg = c
		}
		if err := cfg.Set("models_catalog_file", dest); err != nil {
			return err
		}
		if err := cfgpkg.Save(cfg, cfgFile); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Installed %d models into %s\n", len(m), dest)
		return nil
	},
}

var (
	costPrompt     int
	costCompletion int
)

var modelsCostCmd = &cobra.Command{
	Use:   "cost <model>",
	Short: "Estimate the USD cost of a request",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		usd, ok := ai.EstimateCostUSD(args[0], costPrompt, costCompletion)
		if !ok {
			fmt.Fprintf(os.Stderr, "⚠ Warning: no pricing for %s\n", args[0])
			return nil
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: $%.6f (%d prompt + %d completion tokens)\n", args[0], usd, costPrompt, costCompletion)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.AddCommand(modelsShowCmd, modelsSyncCmd, modelsCostCmd)
	modelsShowCmd.Flags().BoolVar(&modelsShowJSON, "json", false, "print the catalog as JSON")
	modelsSyncCmd.Flags().StringVar(&syncPath, "file", "", "path to a YAML or JSON catalog")
	modelsCostCmd.Flags().IntVar(&costPrompt, "prompt", 0, "prompt tokens")
	modelsCostCmd.Flags().IntVar(&costCompletion, "completion", 0, "completion tokens")
}
