package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"azul/internal/fileutil"

	"gopkg.in/yaml.v3"
)

// Load loads configuration from the default config file and environment variables.
func Load() (*Config, error) {
	return LoadFrom(GetConfigPath())
}

// LoadFrom loads configuration from path. A missing file is not an error.
func LoadFrom(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		}
	}

	loadFromEnv(cfg)
	if err := NormalizeConfig(cfg); err != nil {
		return nil, err
	}
	cfg.applyDirs()

	return cfg, nil
}

// ConfigDir returns the azul configuration directory.
func ConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "azul")
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(homeDir, ".config", "azul")
}

// GetConfigPath returns the path to the config file.
func GetConfigPath() string {
	dir := ConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}

// loadFromFile loads configuration from a YAML file.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return nil
}

// loadFromEnv overrides configuration with environment variables.
func loadFromEnv(cfg *Config) {
	if model := os.Getenv("AZUL_MODEL"); model != "" {
		cfg.Model.Name = model
	}

	if provider := os.Getenv("AZUL_PROVIDER"); provider != "" {
		cfg.Model.Provider = strings.ToLower(provider)
	}

	if host := os.Getenv("AZUL_OLLAMA_HOST"); host != "" {
		cfg.Model.OllamaHost = host
	} else if host := os.Getenv("OLLAMA_HOST"); host != "" {
		cfg.Model.OllamaHost = normalizeHost(host)
	}

	// Priority: AZUL_API_KEY > GEMINI_API_KEY
	if apiKey := os.Getenv("AZUL_API_KEY"); apiKey != "" {
		cfg.Model.APIKey = apiKey
	} else if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		cfg.Model.APIKey = apiKey
	}

	if v := os.Getenv("AZUL_AUTO_APPROVE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Permission.AutoApprove = b
		}
	}

	if level := os.Getenv("AZUL_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}

// normalizeHost turns the OLLAMA_HOST shorthand (host:port) into a URL.
func normalizeHost(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		return host
	}
	return "http://" + host
}

func (c *Config) applyDirs() {
	dir := ConfigDir()
	if c.Session.Dir == "" && dir != "" {
		c.Session.Dir = filepath.Join(dir, "sessions")
	}
	if c.RAG.IndexDir == "" && dir != "" {
		c.RAG.IndexDir = filepath.Join(dir, "index")
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Model.Provider {
	case ProviderOllama:
	case ProviderGemini:
		if c.Model.APIKey == "" {
			return ErrMissingAPIKey
		}
	default:
		return ErrUnknownProvider
	}

	if c.Model.Name == "" {
		return ErrMissingModel
	}
	if c.Agent.MaxIterations <= 0 || c.Agent.MaxNudges <= 0 || c.Agent.HistoryWindow <= 0 {
		return ErrInvalidAgentBudget
	}
	if c.Agent.RepeatThreshold <= 0 || c.Agent.RepeatThreshold > 1 {
		return ErrInvalidThreshold
	}
	if c.RAG.Enabled {
		switch c.RAG.EmbeddingProvider {
		case ProviderOllama:
		case ProviderGemini:
			if c.Model.APIKey == "" {
				return ErrMissingAPIKey
			}
		default:
			return ErrUnknownProvider
		}
		if c.RAG.ReserveTokens >= c.RAG.ContextWindow {
			return ErrInvalidContextBudget
		}
	}
	return nil
}

// Error types for configuration validation.
type ConfigError string

func (e ConfigError) Error() string {
	return string(e)
}

const (
	ErrMissingAPIKey        ConfigError = "missing API key: set GEMINI_API_KEY or AZUL_API_KEY, or model.api_key in config.yaml"
	ErrUnknownProvider      ConfigError = "unknown provider: expected ollama or gemini"
	ErrMissingModel         ConfigError = "missing model name: set model.name or AZUL_MODEL"
	ErrInvalidAgentBudget   ConfigError = "agent.max_iterations, agent.max_nudges and agent.history_window must be positive"
	ErrInvalidThreshold     ConfigError = "agent.repeat_threshold must be in (0, 1]"
	ErrInvalidContextBudget ConfigError = "rag.reserve_tokens must be smaller than rag.context_window"
)

// Save saves the configuration to the default config file.
func (c *Config) Save() error {
	return c.SaveTo(GetConfigPath())
}

// SaveTo writes the configuration to path atomically with owner-only permissions.
func (c *Config) SaveTo(path string) error {
	if path == "" {
		return fmt.Errorf("could not determine config path")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := fileutil.AtomicWrite(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
