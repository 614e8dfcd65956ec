package ai

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Model metadata and pricing used for context budgeting and cost citations.
// Prices are illustrative; override them with a catalog file.

type ModelInfo struct {
	Name          string  `json:"name" yaml:"name"`
	Provider      string  `json:"provider" yaml:"provider"`
	ContextTokens int     `json:"context_tokens" yaml:"context_tokens"` // approximate context window
	InputPerK     float64 `json:"input_per_k" yaml:"input_per_k"`       // USD per 1K input tokens
	OutputPerK    float64 `json:"output_per_k" yaml:"output_per_k"`     // USD per 1K output tokens
	JSONMode      bool    `json:"json_mode" yaml:"json_mode"`           // honours response_format json_object
}

var (
	catalogMu sync.RWMutex
	models    = map[string]ModelInfo{
		"gpt-4o-mini": {
			Name: "gpt-4o-mini", Provider: ProviderOpenAI,
			ContextTokens: 128000, InputPerK: 0.00015, OutputPerK: 0.0006, JSONMode: true,
		},
		"gpt-4o": {
			Name: "gpt-4o", Provider: ProviderOpenAI,
			ContextTokens: 128000, InputPerK: 0.0025, OutputPerK: 0.01, JSONMode: true,
		},
		"gpt-4.1": {
			Name: "gpt-4.1", Provider: ProviderOpenAI,
			ContextTokens: 1047576, InputPerK: 0.002, OutputPerK: 0.008, JSONMode: true,
		},
		"gpt-4.1-mini": {
			Name: "gpt-4.1-mini", Provider: ProviderOpenAI,
			ContextTokens: 1047576, InputPerK: 0.0004, OutputPerK: 0.0016, JSONMode: true,
		},
		"openai/gpt-4o-mini": {
			Name: "openai/gpt-4o-mini", Provider: ProviderOpenRouter,
			ContextTokens: 128000, InputPerK: 0.00015, OutputPerK: 0.0006, JSONMode: true,
		},
		"openai/gpt-4.1-mini": {
			Name: "openai/gpt-4.1-mini", Provider: ProviderOpenRouter,
			ContextTokens: 1047576, InputPerK: 0.0004, OutputPerK: 0.0016, JSONMode: true,
		},
		"anthropic/claude-3.5-sonnet": {
			Name: "anthropic/claude-3.5-sonnet", Provider: ProviderOpenRouter,
			ContextTokens: 200000, InputPerK: 0.003, OutputPerK: 0.015,
		},
		"google/gemini-1.5-flash": {
			Name: "google/gemini-1.5-flash", Provider: ProviderOpenRouter,
			ContextTokens: 1000000, InputPerK: 0.0002, OutputPerK: 0.0008, JSONMode: true,
		},
		// free tier via OpenRouter
		"deepseek/deepseek-r1:free": {
			Name: "deepseek/deepseek-r1:free", Provider: ProviderOpenRouter,
			ContextTokens: 128000,
		},
		"meta-llama/llama-3.1-8b-instruct": {
			Name: "meta-llama/llama-3.1-8b-instruct", Provider: ProviderOpenRouter,
			ContextTokens: 131072,
		},
	}
)

// LookupModel returns ModelInfo and ok flag.
func LookupModel(name string) (ModelInfo, bool) {
	catalogMu.RLock()
	defer catalogMu.RUnlock()
	mi, ok := models[name]
	return mi, ok
}

// EstimateCostUSD estimates total cost in USD for given tokens using model pricing.
// If the model is unknown, returns 0 and ok=false.
func EstimateCostUSD(model string, promptTokens, completionTokens int) (float64, bool) {
	mi, ok := LookupModel(model)
	if !ok {
		return 0, false
	}
	inCost := (float64(promptTokens) / 1000.0) * mi.InputPerK
	outCost := (float64(completionTokens) / 1000.0) * mi.OutputPerK
	return inCost + outCost, true
}

// LoadCatalogFile reads a map of model name to ModelInfo from a YAML or JSON
// file. Entries without a name take the map key.
//
//	gpt-4o-mini:
//	  provider: openai
//	  context_tokens: 128000
//	  input_per_k: 0.00015
//	  output_per_k: 0.0006
func LoadCatalogFile(path string) (map[string]ModelInfo, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var m map[string]ModelInfo
	// JSON is a subset of YAML, so one decoder covers both
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", filepath.Base(path), err)
	}
	for k, v := range m {
		if strings.TrimSpace(v.Name) == "" {
			v.Name = k
			m[k] = v
		}
	}
	return m, nil
}

// MergeCatalog merges/overrides entries in the in-memory catalog.
func MergeCatalog(m map[string]ModelInfo) {
	if m == nil {
		return
	}
	catalogMu.Lock()
	defer catalogMu.Unlock()
	for k, v := range m {
		models[k] = v
	}
}

// Catalog returns the current catalog sorted by provider, then name.
func Catalog() []ModelInfo {
	catalogMu.RLock()
	out := make([]ModelInfo, 0, len(models))
	for _, v := range models {
		out = append(out, v)
	}
	catalogMu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Provider != out[j].Provider {
			return out[i].Provider < out[j].Provider
		}
		return out[i].Name < out[j].Name
	})
	return out
}
