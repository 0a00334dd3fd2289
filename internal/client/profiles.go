package client

import "strings"

// ModelProfile describes what to expect from a model family.
type ModelProfile struct {
	Family        string // e.g. "llama", "qwen", "gemini"
	ContextWindow int    // approximate, in tokens
	IsCoding      bool   // tuned for code generation
	IsSmall       bool   // under 13B parameters, needs terse instructions
}

// knownProfiles maps model name prefixes to their profiles.
var knownProfiles = map[string]ModelProfile{
	"llama3.2": {Family: "llama", ContextWindow: 128000, IsSmall: true},
	"llama3.1": {Family: "llama", ContextWindow: 128000},
	"llama3":   {Family: "llama", ContextWindow: 8192},

	"qwen2.5-coder": {Family: "qwen", ContextWindow: 32768, IsCoding: true},
	"qwen2.5":       {Family: "qwen", ContextWindow: 32768},
	"qwen3":         {Family: "qwen", ContextWindow: 40960},

	"mistral":      {Family: "mistral", ContextWindow: 32768},
	"mistral-nemo": {Family: "mistral", ContextWindow: 128000},

	"phi4": {Family: "phi", ContextWindow: 16384, IsSmall: true},
	"phi3": {Family: "phi", ContextWindow: 4096, IsSmall: true},

	"codellama":      {Family: "codellama", ContextWindow: 16384, IsCoding: true},
	"deepseek-coder": {Family: "deepseek", ContextWindow: 16384, IsCoding: true},
	"starcoder2":     {Family: "starcoder", ContextWindow: 16384, IsCoding: true},
	"codegemma":      {Family: "gemma", ContextWindow: 8192, IsCoding: true},
	"gemma2":         {Family: "gemma", ContextWindow: 8192, IsSmall: true},

	"gemini": {Family: "gemini", ContextWindow: 1000000},
}

// Profile returns the profile for a model name by longest prefix match.
// Unknown models get conservative defaults.
func Profile(modelName string) ModelProfile {
	name := strings.TrimPrefix(strings.ToLower(modelName), "models/")

	base := name
	if i := strings.Index(name, ":"); i > 0 {
		base = name[:i]
	}

	best := ""
	for prefix := range knownProfiles {
		if strings.HasPrefix(base, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return ModelProfile{Family: "unknown", ContextWindow: 4096, IsSmall: isSmallByTag(name)}
	}
	p := knownProfiles[best]
	p.IsSmall = p.IsSmall || isSmallByTag(name)
	return p
}

// isSmallByTag checks if the model tag names a size under 13B.
func isSmallByTag(modelName string) bool {
	for _, tag := range []string{"0.5b", "1b", "1.5b", "3b", "7b", "8b", "9b", "11b", "12b"} {
		if strings.HasSuffix(modelName, ":"+tag) || strings.Contains(modelName, ":"+tag+"-") ||
			strings.Contains(modelName, "-"+tag) {
			return true
		}
	}
	return false
}

// PromptHints returns extra system prompt rules for the model, or "".
func PromptHints(modelName string) string {
	p := Profile(modelName)

	var hints []string
	if p.IsSmall {
		hints = append(hints,
			"- Keep replies short. Call a tool instead of describing what you would do.",
			"- Write the tool call exactly in the format shown, with quoted string arguments.")
	}
	if p.IsCoding {
		hints = append(hints, "- Prefer diff for small changes to existing files and write for new files.")
	}
	switch p.Family {
	case "llama", "gemma":
		hints = append(hints, "- Do not repeat a tool call whose output you already have.")
	case "phi":
		hints = append(hints, "- Number the steps of multi-step tasks and do them in order.")
	}
	return strings.Join(hints, "\n")
}
