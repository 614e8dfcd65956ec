package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

type field struct {
	get func(c *Global) string
	set func(c *Global, v string) error
}

func strField(p func(c *Global) *string) field {
	return field{
		get: func(c *Global) string { return *p(c) },
		set: func(c *Global, v string) error { *p(c) = v; return nil },
	}
}

func intField(key string, p func(c *Global) *int) field {
	return field{
		get: func(c *Global) string { return strconv.Itoa(*p(c)) },
		set: func(c *Global, v string) error {
			i, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid int for %s: %v", key, v)
			}
			*p(c) = i
			return nil
		},
	}
}

func floatField(key string, p func(c *Global) *float64) field {
	return field{
		get: func(c *Global) string { return strconv.FormatFloat(*p(c), 'g', -1, 64) },
		set: func(c *Global, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid float for %s: %v", key, v)
			}
			*p(c) = f
			return nil
		},
	}
}

var fields = map[string]field{
	"provider": {
		get: func(c *Global) string { return c.Provider },
		set: func(c *Global, v string) error { c.Provider = strings.ToLower(strings.TrimSpace(v)); return nil },
	},
	"api_key":             strField(func(c *Global) *string { return &c.APIKey }),
	"model":               strField(func(c *Global) *string { return &c.Model }),
	"base_url":            strField(func(c *Global) *string { return &c.BaseURL }),
	"prompt_version":      strField(func(c *Global) *string { return &c.PromptVersion }),
	"models_catalog_file": strField(func(c *Global) *string { return &c.ModelsCatalogFile }),
	"workspace_dir":       strField(func(c *Global) *string { return &c.WorkspaceDir }),
	"server_addr":         strField(func(c *Global) *string { return &c.ServerAddr }),
	"log_level":           strField(func(c *Global) *string { return &c.LogLevel }),
	"llm_timeout_sec":     intField("llm_timeout_sec", func(c *Global) *int { return &c.LLMTimeoutSec }),
	"max_tokens":          intField("max_tokens", func(c *Global) *int { return &c.MaxTokens }),
	"http_timeout_sec":    intField("http_timeout_sec", func(c *Global) *int { return &c.HTTPTimeoutSec }),
	"retry_max_attempts":  intField("retry_max_attempts", func(c *Global) *int { return &c.RetryMaxAttempts }),
	"retry_base_delay_ms": intField("retry_base_delay_ms", func(c *Global) *int { return &c.RetryBaseDelayMs }),
	"retry_max_delay_ms":  intField("retry_max_delay_ms", func(c *Global) *int { return &c.RetryMaxDelayMs }),
	"min_spike_series":    intField("min_spike_series", func(c *Global) *int { return &c.MinSpikeSeries }),
	"min_outlier_sample":  intField("min_outlier_sample", func(c *Global) *int { return &c.MinOutlierSample }),
	"max_charts":          intField("max_charts", func(c *Global) *int { return &c.MaxCharts }),
	"max_anomalies":       intField("max_anomalies", func(c *Global) *int { return &c.MaxAnomalies }),
	"max_points":          intField("max_points", func(c *Global) *int { return &c.MaxPoints }),
	"preview_rows":        intField("preview_rows", func(c *Global) *int { return &c.PreviewRows }),
	"llm_sample_rows":     intField("llm_sample_rows", func(c *Global) *int { return &c.LLMSampleRows }),
	"pivot_default_top_n": intField("pivot_default_top_n", func(c *Global) *int { return &c.PivotDefaultTopN }),
	"max_rows":            intField("max_rows", func(c *Global) *int { return &c.MaxRows }),
	"temperature":         floatField("temperature", func(c *Global) *float64 { return &c.Temperature }),
	"z_threshold":         floatField("z_threshold", func(c *Global) *float64 { return &c.ZThreshold }),
	"iqr_multiplier":      floatField("iqr_multiplier", func(c *Global) *float64 { return &c.IQRMultiplier }),
	"log_pretty": {
		get: func(c *Global) string { return strconv.FormatBool(c.LogPretty) },
		set: func(c *Global, v string) error {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid bool for log_pretty: %v", v)
			}
			c.LogPretty = b
			return nil
		},
	},
	"allowed_origins": {
		get: func(c *Global) string { return strings.Join(c.AllowedOrigins, ",") },
		set: func(c *Global, v string) error {
			c.AllowedOrigins = nil
			for _, o := range strings.Split(v, ",") {
				if o = strings.TrimSpace(o); o != "" {
					c.AllowedOrigins = append(c.AllowedOrigins, o)
				}
			}
			return nil
		},
	},
}

// Keys lists the settable keys in alphabetical order.
func Keys() []string {
	out := make([]string, 0, len(fields))
	for k := range fields {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Get returns the string form of key.
func (c *Global) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("unknown key: %s", key)
	}
	return f.get(c), nil
}

// Set parses value into key and re-validates the whole config. On error c
// is left unchanged.
func (c *Global) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown key: %s", key)
	}
	next := *c
	next.AllowedOrigins = append([]string(nil), c.AllowedOrigins...)
	if err := f.set(&next, value); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}
	*c = next
	return nil
}
