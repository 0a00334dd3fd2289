package config

import "time"

// Config represents the main application configuration.
type Config struct {
	Model      ModelConfig      `yaml:"model"`
	Agent      AgentConfig      `yaml:"agent"`
	Tools      ToolsConfig      `yaml:"tools"`
	Permission PermissionConfig `yaml:"permission"`
	Editor     EditorConfig     `yaml:"editor"`
	Files      FilesConfig      `yaml:"files"`
	Session    SessionConfig    `yaml:"session"`
	RAG        RAGConfig        `yaml:"rag"`
	Logging    LoggingConfig    `yaml:"logging"`
	UI         UIConfig         `yaml:"ui"`

	// Runtime version information
	Version string `yaml:"-"`
}

// ModelConfig selects the generation backend and its sampling parameters.
type ModelConfig struct {
	// Provider: ollama or gemini (default: ollama)
	Provider    string  `yaml:"provider"`
	// Preset fills provider, name and sampling in one go (see ListPresets)
	Preset      string  `yaml:"preset,omitempty"`
	Name        string  `yaml:"name"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int32   `yaml:"max_tokens"`

	// Ollama server URL (default: http://localhost:11434)
	OllamaHost string `yaml:"ollama_host"`
	// Optional bearer token for remote Ollama servers
	OllamaKey string `yaml:"ollama_key,omitempty"`
	// Gemini API key, only needed when provider or embedding provider is gemini
	APIKey string `yaml:"api_key,omitempty"`

	HTTPTimeout time.Duration `yaml:"http_timeout"`
	MaxRetries  int           `yaml:"max_retries"`
	RetryDelay  time.Duration `yaml:"retry_delay"`
}

// AgentConfig holds the policy constants of the agent loop.
type AgentConfig struct {
	MaxIterations int `yaml:"max_iterations"`
	MaxNudges     int `yaml:"max_nudges"`
	HistoryWindow int `yaml:"history_window"`

	// Repetition detection
	RepeatThreshold float64 `yaml:"repeat_threshold"`
	RepeatLookback  int     `yaml:"repeat_lookback"`
	MaxRepeats      int     `yaml:"max_repeats"`

	// A conversation is considered new while its history is at most this long.
	SeedHistoryThreshold int `yaml:"seed_history_threshold"`
	TreeDepth            int `yaml:"tree_depth"`

	StalledPhrases    []string `yaml:"stalled_phrases"`
	CompletionMarkers []string `yaml:"completion_markers"`
}

// ToolsConfig holds tool execution settings.
type ToolsConfig struct {
	ExecTimeout     time.Duration `yaml:"exec_timeout"`
	TailLines       int           `yaml:"tail_lines"`
	MaxOutputChars  int           `yaml:"max_output_chars"`
	BlockedCommands []string      `yaml:"blocked_commands"`
}

// PermissionConfig holds approval settings.
type PermissionConfig struct {
	AutoApprove     bool              `yaml:"auto_approve"`
	RememberChoices bool              `yaml:"remember_choices"`
	CherryPick      bool              `yaml:"cherry_pick"`
	Rules           map[string]string `yaml:"rules"` // tool -> allow/ask/deny
}

// EditorConfig holds diff editor settings.
type EditorConfig struct {
	GitBranch    bool   `yaml:"git_branch"`
	GitStage     bool   `yaml:"git_stage"`
	BranchPrefix string `yaml:"branch_prefix"`
}

// FilesConfig holds file access limits.
type FilesConfig struct {
	MaxFileSizeMB int `yaml:"max_file_size_mb"`
}

// MaxFileSize returns the size cap in bytes.
func (f FilesConfig) MaxFileSize() int64 {
	return int64(f.MaxFileSizeMB) * 1024 * 1024
}

// SessionConfig holds session persistence settings.
type SessionConfig struct {
	Dir    string `yaml:"dir"`
	Window int    `yaml:"window"`
}

// RAGConfig holds retrieval settings.
type RAGConfig struct {
	Enabled           bool          `yaml:"enabled"`
	EmbeddingProvider string        `yaml:"embedding_provider"` // ollama or gemini
	EmbeddingModel    string        `yaml:"embedding_model"`
	TopK              int           `yaml:"top_k"`
	MaxChunkTokens    int           `yaml:"max_chunk_tokens"`
	OverlapLines      int           `yaml:"overlap_lines"`
	ContextWindow     int           `yaml:"context_window"`
	ReserveTokens     int           `yaml:"reserve_tokens"`
	BatchSize         int           `yaml:"batch_size"`
	IndexDir          string        `yaml:"index_dir"`
	ExcludePatterns   []string      `yaml:"exclude_patterns"`
	Watch             bool          `yaml:"watch"`
	Debounce          time.Duration `yaml:"debounce"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// UIConfig holds terminal rendering settings.
type UIConfig struct {
	HighlightStyle string `yaml:"highlight_style"`
	Markdown       bool   `yaml:"markdown"`
	Color          bool   `yaml:"color"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Provider:    ProviderOllama,
			Name:        DefaultModel,
			Temperature: 0.7,
			MaxTokens:   DefaultMaxTokens,
			OllamaHost:  DefaultOllamaHost,
			HTTPTimeout: DefaultHTTPTimeout,
			MaxRetries:  DefaultMaxRetries,
			RetryDelay:  DefaultRetryDelay,
		},
		Agent: AgentConfig{
			MaxIterations:        20,
			MaxNudges:            5,
			HistoryWindow:        20,
			RepeatThreshold:      0.8,
			RepeatLookback:       3,
			MaxRepeats:           2,
			SeedHistoryThreshold: 2,
			TreeDepth:            3,
			StalledPhrases:       append([]string(nil), DefaultStalledPhrases...),
			CompletionMarkers:    []string{"<task_complete>", "task complete"},
		},
		Tools: ToolsConfig{
			ExecTimeout:    DefaultExecTimeout,
			TailLines:      10,
			MaxOutputChars: DefaultMaxOutputChars,
			BlockedCommands: []string{
				"rm -rf /",
				"mkfs",
				"dd if=/dev/zero of=/dev/sd",
				":(){ :|:& };:",
			},
		},
		Permission: PermissionConfig{
			AutoApprove:     false,
			RememberChoices: true,
			CherryPick:      false,
			Rules: map[string]string{
				"read":   "allow",
				"tree":   "allow",
				"write":  "allow",
				"exec":   "allow",
				"diff":   "ask",
				"delete": "ask",
			},
		},
		Editor: EditorConfig{
			GitBranch:    false,
			GitStage:     true,
			BranchPrefix: "azul/",
		},
		Files: FilesConfig{
			MaxFileSizeMB: 10,
		},
		Session: SessionConfig{
			Window: 20,
		},
		RAG: RAGConfig{
			Enabled:           true,
			EmbeddingProvider: ProviderOllama,
			EmbeddingModel:    DefaultEmbeddingModel,
			TopK:              5,
			MaxChunkTokens:    512,
			OverlapLines:      2,
			ContextWindow:     4096,
			ReserveTokens:     500,
			BatchSize:         10,
			Watch:             true,
			Debounce:          500 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		UI: UIConfig{
			HighlightStyle: "monokai",
			Markdown:       true,
			Color:          true,
		},
	}
}
