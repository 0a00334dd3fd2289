package config

import "time"

// Supported providers.
const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
)

// Default configuration values.
const (
	DefaultModel          = "qwen2.5-coder"
	DefaultEmbeddingModel = "nomic-embed-text"
	DefaultOllamaHost     = "http://localhost:11434"
	DefaultMaxTokens      = 2048

	DefaultMaxRetries  = 3
	DefaultRetryDelay  = 1 * time.Second
	DefaultHTTPTimeout = 120 * time.Second

	DefaultExecTimeout    = 300 * time.Second
	DefaultMaxOutputChars = 30000
)

// DefaultStalledPhrases are first-person future-tense phrases that describe an
// action without performing it.
var DefaultStalledPhrases = []string{
	"i will now",
	"let's start by",
	"next, i will",
	"i'll run the command",
	"let's execute",
	"i will create",
	"i will delete",
	"i will read",
	"i will write",
	"i will update",
	"i will modify",
	"i will remove",
	"i will run",
	"i will execute",
	"i will call",
	"i will use",
	"i will start",
	"i will begin",
	"i will list",
	"i will check",
	"i will verify",
	"going to create",
	"going to delete",
	"going to run",
	"about to create",
	"about to delete",
	"about to run",
}
