package permission

import (
	"strings"

	"azul/internal/logging"
)

// builtinPolicy applies to tools the configuration does not mention.
// Reading and running are free; changing files in place asks.
var builtinPolicy = map[string]Level{
	"read":   LevelAllow,
	"tree":   LevelAllow,
	"write":  LevelAllow,
	"exec":   LevelAllow,
	"diff":   LevelAsk,
	"delete": LevelAsk,
	"create": LevelAsk,
}

// Rules maps tool names to levels. Tools missing from the map ask.
type Rules map[string]Level

// NewRulesFromConfig overlays configured levels on the builtin ones.
// Values other than allow, ask and deny fall back to ask.
func NewRulesFromConfig(configured map[string]string) Rules {
	r := make(Rules, len(builtinPolicy)+len(configured))
	for tool, lvl := range builtinPolicy {
		r[tool] = lvl
	}
	for tool, raw := range configured {
		lvl, ok := parseLevel(raw)
		if !ok {
			logging.Warn("unknown permission level", "tool", tool, "level", raw)
		}
		r[tool] = lvl
	}
	return r
}

// Level returns the level for tool.
func (r Rules) Level(tool string) Level {
	if lvl, ok := r[tool]; ok {
		return lvl
	}
	return LevelAsk
}

func parseLevel(s string) (Level, bool) {
	switch lvl := Level(strings.ToLower(strings.TrimSpace(s))); lvl {
	case LevelAllow, LevelAsk, LevelDeny:
		return lvl, true
	}
	return LevelAsk, false
}
