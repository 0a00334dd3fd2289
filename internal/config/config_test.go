package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20, cfg.Agent.MaxIterations)
	assert.Equal(t, 5, cfg.Agent.MaxNudges)
	assert.Equal(t, 0.8, cfg.Agent.RepeatThreshold)
	assert.Equal(t, int64(10*1024*1024), cfg.Files.MaxFileSize())
	assert.Equal(t, "ask", cfg.Permission.Rules["delete"])
}

func TestLoadFromFileWithEnvExpansion(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("TEST_AZUL_MODEL", "codellama")
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model:
  name: ${TEST_AZUL_MODEL}
agent:
  max_iterations: 7
rag:
  enabled: false
  debounce: 2s
`), 0600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "codellama", cfg.Model.Name)
	assert.Equal(t, ProviderOllama, cfg.Model.Provider)
	assert.Equal(t, 7, cfg.Agent.MaxIterations)
	assert.Equal(t, 5, cfg.Agent.MaxNudges, "unset keys keep their defaults")
	assert.False(t, cfg.RAG.Enabled)
	assert.Equal(t, 2*time.Second, cfg.RAG.Debounce)
	assert.NotEmpty(t, cfg.Session.Dir)
	assert.NotEmpty(t, cfg.RAG.IndexDir)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultModel, cfg.Model.Name)
}

func TestLoadRejectsBrokenYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: [unclosed"), 0600))
	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("AZUL_MODEL", "gemini-2.5-flash")
	t.Setenv("AZUL_PROVIDER", "GEMINI")
	t.Setenv("AZUL_OLLAMA_HOST", "")
	t.Setenv("OLLAMA_HOST", "10.0.0.2:11434")
	t.Setenv("AZUL_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "secret")
	t.Setenv("AZUL_AUTO_APPROVE", "true")
	t.Setenv("AZUL_LOG_LEVEL", "DEBUG")

	cfg, err := LoadFrom("")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash", cfg.Model.Name)
	assert.Equal(t, ProviderGemini, cfg.Model.Provider)
	assert.Equal(t, "http://10.0.0.2:11434", cfg.Model.OllamaHost)
	assert.Equal(t, "secret", cfg.Model.APIKey)
	assert.True(t, cfg.Permission.AutoApprove)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		err    error
	}{
		{"unknown provider", func(c *Config) { c.Model.Provider = "openai" }, ErrUnknownProvider},
		{"gemini without key", func(c *Config) { c.Model.Provider = ProviderGemini }, ErrMissingAPIKey},
		{"no model", func(c *Config) { c.Model.Name = "" }, ErrMissingModel},
		{"zero budget", func(c *Config) { c.Agent.MaxNudges = 0 }, ErrInvalidAgentBudget},
		{"threshold above one", func(c *Config) { c.Agent.RepeatThreshold = 1.5 }, ErrInvalidThreshold},
		{"reserve too large", func(c *Config) { c.RAG.ReserveTokens = 5000 }, ErrInvalidContextBudget},
		{"reserve ignored without rag", func(c *Config) {
			c.RAG.Enabled = false
			c.RAG.ReserveTokens = 5000
		}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.err == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.err)
			}
		})
	}
}

func TestSaveToRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := DefaultConfig()
	cfg.Model.Name = "llama3"
	cfg.Agent.MaxIterations = 9
	require.NoError(t, cfg.SaveTo(path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "llama3", loaded.Model.Name)
	assert.Equal(t, 9, loaded.Agent.MaxIterations)
}

func TestNormalizeConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Model.Preset = "gemini-flash"
	require.NoError(t, NormalizeConfig(cfg))
	assert.Equal(t, ProviderGemini, cfg.Model.Provider)
	assert.Equal(t, "gemini-2.5-flash", cfg.Model.Name)
	assert.Equal(t, ProviderGemini, cfg.RAG.EmbeddingProvider)

	cfg = DefaultConfig()
	cfg.Model.Preset = "nope"
	assert.Error(t, NormalizeConfig(cfg))

	cfg = DefaultConfig()
	cfg.Model.Provider = ""
	cfg.Model.Name = "gemini-2.5-pro"
	require.NoError(t, NormalizeConfig(cfg))
	assert.Equal(t, ProviderGemini, cfg.Model.Provider)

	assert.Equal(t, ProviderOllama, DetectProvider("deepseek-coder:6.7b"))
	assert.Equal(t, []string{"gemini-flash", "gemini-pro", "local", "local-small"}, ListPresets())
}
