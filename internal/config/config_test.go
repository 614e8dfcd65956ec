package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "openai", c.Provider)
	assert.Equal(t, "gpt-4.1", c.Model)
	assert.Equal(t, 700, c.MaxTokens)
	assert.Equal(t, 12, c.PivotDefaultTopN)
	assert.Equal(t, []string{"http://localhost:3000"}, c.AllowedOrigins)
	assert.Equal(t, filepath.Join(os.Getenv("HOME"), ".instadash", "datasets"), c.WorkspaceDir)

	o := c.AnalysisOptions()
	assert.Equal(t, 3.0, o.ZThreshold)
	assert.Equal(t, 10, o.MinSeriesLen)
	q := c.QueryOptions()
	assert.Equal(t, 25*time.Second, q.FallbackTimeout)
	rc := c.RuntimeConfig()
	assert.Equal(t, 500*time.Millisecond, rc.BaseDelay)
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: from-file\nmax_tokens: 300\n"), 0o644))
	t.Setenv("INSTADASH_MAX_TOKENS", "900")
	t.Setenv("INSTADASH_API_KEY", "sk-env")

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file", c.Model)
	assert.Equal(t, 900, c.MaxTokens)
	assert.Equal(t, "sk-env", c.APIKey)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider: ollama\n"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveAndReload(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	require.NoError(t, err)
	require.NoError(t, c.Set("model", "gpt-4o-mini"))
	require.NoError(t, c.Set("allowed_origins", "http://a, http://b"))
	require.NoError(t, Save(c, ""))

	back, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", back.Model)
	assert.Equal(t, []string{"http://a", "http://b"}, back.AllowedOrigins)
}

func TestSetValidates(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	c, err := Load("")
	require.NoError(t, err)

	assert.Error(t, c.Set("nope", "1"))
	assert.Error(t, c.Set("max_tokens", "many"))
	assert.Error(t, c.Set("pivot_default_top_n", "80"))
	assert.Equal(t, 12, c.PivotDefaultTopN)
	assert.Error(t, c.Set("provider", "ollama"))

	require.NoError(t, c.Set("provider", "OpenRouter"))
	assert.Equal(t, "openrouter", c.Provider)
	require.NoError(t, c.Set("temperature", "0.5"))
	v, err := c.Get("temperature")
	require.NoError(t, err)
	assert.Equal(t, "0.5", v)
	assert.Contains(t, Keys(), "api_key")
}
