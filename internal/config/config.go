package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/KaramelBytes/instadash-cli/internal/ai"
	"github.com/KaramelBytes/instadash-cli/internal/analysis"
	"github.com/KaramelBytes/instadash-cli/internal/query"
)

const (
	envPrefix = "INSTADASH"
	dirName   = ".instadash"
)

// Global configuration structure.
type Global struct {
	// Generative fallback
	Provider          string  `mapstructure:"provider" yaml:"provider" validate:"oneof=openai openrouter"`
	APIKey            string  `mapstructure:"api_key" yaml:"api_key"`
	Model             string  `mapstructure:"model" yaml:"model" validate:"required"`
	BaseURL           string  `mapstructure:"base_url" yaml:"base_url"`
	PromptVersion     string  `mapstructure:"prompt_version" yaml:"prompt_version"`
	LLMTimeoutSec     int     `mapstructure:"llm_timeout_sec" yaml:"llm_timeout_sec" validate:"gte=1"`
	MaxTokens         int     `mapstructure:"max_tokens" yaml:"max_tokens" validate:"gte=1"`
	Temperature       float64 `mapstructure:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
	ModelsCatalogFile string  `mapstructure:"models_catalog_file" yaml:"models_catalog_file"`

	// HTTP/Retry configuration
	HTTPTimeoutSec   int `mapstructure:"http_timeout_sec" yaml:"http_timeout_sec" validate:"gte=1"`
	RetryMaxAttempts int `mapstructure:"retry_max_attempts" yaml:"retry_max_attempts" validate:"gte=1"`
	RetryBaseDelayMs int `mapstructure:"retry_base_delay_ms" yaml:"retry_base_delay_ms" validate:"gte=0"`
	RetryMaxDelayMs  int `mapstructure:"retry_max_delay_ms" yaml:"retry_max_delay_ms" validate:"gte=0"`

	// Analysis thresholds
	ZThreshold       float64 `mapstructure:"z_threshold" yaml:"z_threshold" validate:"gt=0"`
	IQRMultiplier    float64 `mapstructure:"iqr_multiplier" yaml:"iqr_multiplier" validate:"gt=0"`
	MinSpikeSeries   int     `mapstructure:"min_spike_series" yaml:"min_spike_series" validate:"gte=1"`
	MinOutlierSample int     `mapstructure:"min_outlier_sample" yaml:"min_outlier_sample" validate:"gte=1"`
	MaxCharts        int     `mapstructure:"max_charts" yaml:"max_charts" validate:"gte=1"`
	MaxAnomalies     int     `mapstructure:"max_anomalies" yaml:"max_anomalies" validate:"gte=1"`
	MaxPoints        int     `mapstructure:"max_points" yaml:"max_points" validate:"gte=1"`
	PreviewRows      int     `mapstructure:"preview_rows" yaml:"preview_rows" validate:"gte=1"`
	LLMSampleRows    int     `mapstructure:"llm_sample_rows" yaml:"llm_sample_rows" validate:"gte=1"`
	PivotDefaultTopN int     `mapstructure:"pivot_default_top_n" yaml:"pivot_default_top_n" validate:"gte=1,lte=50"`

	// Loading
	MaxRows int `mapstructure:"max_rows" yaml:"max_rows" validate:"gte=0"`

	// Storage and server
	WorkspaceDir   string   `mapstructure:"workspace_dir" yaml:"workspace_dir"`
	ServerAddr     string   `mapstructure:"server_addr" yaml:"server_addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level" validate:"oneof=trace debug info warn error"`
	LogPretty bool   `mapstructure:"log_pretty" yaml:"log_pretty"`
}

var validate = validator.New()

// Validate checks value ranges and enumerations.
func (c *Global) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// keys without a useful default are still registered so AutomaticEnv sees them
	v.SetDefault("api_key", "")
	v.SetDefault("models_catalog_file", "")
	v.SetDefault("workspace_dir", "")
	v.SetDefault("provider", ai.ProviderOpenAI)
	v.SetDefault("model", ai.DefaultModel)
	v.SetDefault("base_url", "")
	v.SetDefault("prompt_version", ai.DefaultPromptVersion)
	v.SetDefault("llm_timeout_sec", 25)
	v.SetDefault("max_tokens", 700)
	v.SetDefault("temperature", 0.2)
	// HTTP/retry defaults
	v.SetDefault("http_timeout_sec", 60)
	v.SetDefault("retry_max_attempts", 3)
	v.SetDefault("retry_base_delay_ms", 500)
	v.SetDefault("retry_max_delay_ms", 4000)

	d := analysis.DefaultOptions()
	v.SetDefault("z_threshold", d.ZThreshold)
	v.SetDefault("iqr_multiplier", d.IQRMultiplier)
	v.SetDefault("min_spike_series", d.MinSeriesLen)
	v.SetDefault("min_outlier_sample", d.MinOutlierSample)
	v.SetDefault("max_charts", d.MaxCharts)
	v.SetDefault("max_anomalies", d.MaxAnomalies)
	v.SetDefault("max_points", d.MaxPoints)
	v.SetDefault("preview_rows", d.PreviewRows)
	q := query.DefaultOptions()
	v.SetDefault("llm_sample_rows", q.SampleRows)
	v.SetDefault("pivot_default_top_n", q.PivotTopN)

	v.SetDefault("max_rows", 0)
	v.SetDefault("server_addr", ":8080")
	v.SetDefault("allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", true)
}

// Dir returns ~/.instadash.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.instadash/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	// may hold an API key
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults; cfgFile replaces the default path.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	// the file is optional; a present but malformed file is an error
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.WorkspaceDir == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		c.WorkspaceDir = filepath.Join(dir, "datasets")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// AnalysisOptions maps the thresholds onto analysis.Options.
func (c *Global) AnalysisOptions() analysis.Options {
	o := analysis.DefaultOptions()
	o.ZThreshold = c.ZThreshold
	o.IQRMultiplier = c.IQRMultiplier
	o.MinSeriesLen = c.MinSpikeSeries
	o.MinOutlierSample = c.MinOutlierSample
	o.MaxCharts = c.MaxCharts
	o.MaxAnomalies = c.MaxAnomalies
	o.MaxPoints = c.MaxPoints
	o.PreviewRows = c.PreviewRows
	return o
}

// QueryOptions maps the question-answering knobs onto query.Options.
func (c *Global) QueryOptions() query.Options {
	return query.Options{
		SampleRows:      c.LLMSampleRows,
		FallbackTimeout: time.Duration(c.LLMTimeoutSec) * time.Second,
		PivotTopN:       c.PivotDefaultTopN,
	}
}

// RuntimeConfig maps the provider settings onto ai.RuntimeConfig.
func (c *Global) RuntimeConfig() ai.RuntimeConfig {
	return ai.RuntimeConfig{
		APIKey:      c.APIKey,
		BaseURL:     c.BaseURL,
		HTTPTimeout: time.Duration(c.HTTPTimeoutSec) * time.Second,
		RetryMax:    c.RetryMaxAttempts,
		BaseDelay:   time.Duration(c.RetryBaseDelayMs) * time.Millisecond,
		MaxDelay:    time.Duration(c.RetryMaxDelayMs) * time.Millisecond,
	}
}
