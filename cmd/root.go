package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/instadash-cli/internal/ai"
	"github.com/KaramelBytes/instadash-cli/internal/analysis"
	cfgpkg "github.com/KaramelBytes/instadash-cli/internal/config"
	"github.com/KaramelBytes/instadash-cli/internal/query"
	"github.com/KaramelBytes/instadash-cli/internal/utils"
	"github.com/KaramelBytes/instadash-cli/internal/workspace"
)

var (
	// Global flags
	cfgFile string
	debug   bool
	// Retry/HTTP flags (override config if set)
	flagHTTPTimeoutSec   int
	flagRetryMaxAttempts int
	flagRetryBaseDelayMs int
	flagRetryMaxDelayMs  int

	// Loaded configuration
	cfg *cfgpkg.Global
)

var rootCmd = &cobra.Command{
	Use:   "instadash",
	Short: "InstaDash CLI: instant dashboards and answers for tabular data",
	Long: `InstaDash profiles CSV/TSV/XLSX files, suggests charts, flags anomalies and
answers questions about the data, either from the terminal or over HTTP.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called by main.main()
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "✗ Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(loadConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ~/.instadash/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().IntVar(&flagHTTPTimeoutSec, "http-timeout", 0, "HTTP client timeout in seconds (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxAttempts, "retry-max", 0, "max retry attempts on 429/5xx (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryBaseDelayMs, "retry-base-ms", 0, "base retry backoff in ms (overrides config)")
	rootCmd.PersistentFlags().IntVar(&flagRetryMaxDelayMs, "retry-max-ms", 0, "max retry backoff cap in ms (overrides config)")
}

func loadConfig() {
	c, err := cfgpkg.Load(cfgFile)
	if err != nil {
		// Non-fatal: allow running commands that don't need config
		fmt.Fprintf(os.Stderr, "⚠ Warning: failed to load config: %v\n", err)
		level := "warn"
		if debug {
			level = "debug"
		}
		utils.InitLogger(level, true)
		return
	}
	cfg = c

	f := rootCmd.PersistentFlags()
	if f.Changed("http-timeout") && flagHTTPTimeoutSec > 0 {
		cfg.HTTPTimeoutSec = flagHTTPTimeoutSec
	}
	if f.Changed("retry-max") && flagRetryMaxAttempts > 0 {
		cfg.RetryMaxAttempts = flagRetryMaxAttempts
	}
	if f.Changed("retry-base-ms") && flagRetryBaseDelayMs > 0 {
		cfg.RetryBaseDelayMs = flagRetryBaseDelayMs
	}
	if f.Changed("retry-max-ms") && flagRetryMaxDelayMs > 0 {
		cfg.RetryMaxDelayMs = flagRetryMaxDelayMs
	}

	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	utils.InitLogger(level, cfg.LogPretty)

	if cfg.ModelsCatalogFile != "" {
		m, err := ai.LoadCatalogFile(cfg.ModelsCatalogFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "⚠ Warning: models catalog: %v\n", err)
		} else {
			ai.MergeCatalog(m)
		}
	}
}

func analysisOptions() analysis.Options {
	if cfg == nil {
		return analysis.DefaultOptions()
	}
	return cfg.AnalysisOptions()
}

func queryOptions() query.Options {
	if cfg == nil {
		return query.DefaultOptions()
	}
	return cfg.QueryOptions()
}

func openStore() (*workspace.Store, error) {
	dir := ""
	if cfg != nil {
		dir = cfg.WorkspaceDir
	}
	if dir == "" {
		d, err := cfgpkg.Dir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(d, "datasets")
	}
	return workspace.Open(dir)
}

// newFallback returns the generative answerer, or nil when no API key is
// configured. A nil interface keeps answers deterministic.
func newFallback() query.Fallback {
	if cfg == nil || cfg.APIKey == "" {
		return nil
	}
	rt, ok := ai.GetRuntime(cfg.Provider, cfg.RuntimeConfig())
	if !ok {
		fmt.Fprintf(os.Stderr, "⚠ Warning: unknown provider %q; generative answers disabled\n", cfg.Provider)
		return nil
	}
	return &ai.Answerer{
		Runtime:       rt,
		Model:         cfg.Model,
		PromptVersion: cfg.PromptVersion,
		MaxTokens:     cfg.MaxTokens,
		Temperature:   cfg.Temperature,
	}
}
