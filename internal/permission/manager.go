package permission

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"

	"azul/internal/config"
	"azul/internal/logging"
)

// PromptHandler is a function that prompts the user for permission.
// It receives a request and returns the user's decision.
type PromptHandler func(ctx context.Context, req *Request) (Decision, error)

// DefaultMaxCacheEntries is the default maximum number of cached decisions.
const DefaultMaxCacheEntries = 1000

// Gate mediates user approval for destructive actions.
type Gate struct {
	rules           Rules
	autoApprove     bool
	rememberChoices bool
	cherryPick      bool

	// "allow for session" decisions keyed by tool and target
	sessionCache    map[string]bool
	maxCacheEntries int

	promptHandler PromptHandler

	mu sync.RWMutex
}

// NewGate creates a gate from configuration. Without a prompt handler every
// request that needs asking is denied.
func NewGate(cfg config.PermissionConfig, handler PromptHandler) *Gate {
	return &Gate{
		rules:           NewRulesFromConfig(cfg.Rules),
		autoApprove:     cfg.AutoApprove,
		rememberChoices: cfg.RememberChoices,
		cherryPick:      cfg.CherryPick,
		sessionCache:    make(map[string]bool),
		maxCacheEntries: DefaultMaxCacheEntries,
		promptHandler:   handler,
	}
}

// SetPromptHandler sets the function to call when user input is needed.
func (g *Gate) SetPromptHandler(handler PromptHandler) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.promptHandler = handler
}

// SetAutoApprove toggles approval bypass.
func (g *Gate) SetAutoApprove(v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.autoApprove = v
}

// AutoApprove reports whether every request is granted without asking.
func (g *Gate) AutoApprove() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.autoApprove
}

// CherryPick reports whether diff hunks are approved one by one.
func (g *Gate) CherryPick() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cherryPick
}

// SetCherryPick toggles per-hunk approval.
func (g *Gate) SetCherryPick(v bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cherryPick = v
}

// Request asks for approval of a described action. Auto-approve bypasses the
// prompt; otherwise the prompt handler decides and anything but an explicit
// yes is a no.
func (g *Gate) Request(ctx context.Context, action, preview string) bool {
	return g.ask(ctx, &Request{Action: action, Preview: preview})
}

// Check applies the per-tool rule for tool acting on target, asking the user
// when the rule says so. Session-remembered approvals skip the prompt.
func (g *Gate) Check(ctx context.Context, tool, target, preview string) bool {
	switch g.policy(tool) {
	case LevelAllow:
		return true
	case LevelDeny:
		logging.Info("tool denied by configuration", "tool", tool, "target", target)
		return false
	}

	key := cacheKey(tool, target)
	g.mu.RLock()
	remembered := g.sessionCache[key]
	g.mu.RUnlock()
	if remembered {
		return true
	}

	return g.ask(ctx, &Request{
		Tool:    tool,
		Action:  describeTool(tool, target),
		Target:  target,
		Preview: preview,
	})
}

// SelectHunks decides which hunks of a diff to apply. In cherry-pick mode
// each hunk is approved on its own; otherwise one decision covers all.
func (g *Gate) SelectHunks(ctx context.Context, path string, hunks []string) []bool {
	selected := make([]bool, len(hunks))
	if len(hunks) == 0 {
		return selected
	}

	if !g.CherryPick() || len(hunks) == 1 {
		preview := ""
		for _, h := range hunks {
			preview += h
			if len(h) > 0 && h[len(h)-1] != '\n' {
				preview += "\n"
			}
		}
		return fill(selected, g.Check(ctx, "diff", path, preview))
	}

	switch g.policy("diff") {
	case LevelAllow:
		return fill(selected, true)
	case LevelDeny:
		logging.Info("tool denied by configuration", "tool", "diff", "target", path)
		return selected
	}
	g.mu.RLock()
	remembered := g.sessionCache[cacheKey("diff", path)]
	g.mu.RUnlock()
	if remembered {
		return fill(selected, true)
	}

	for i, h := range hunks {
		if ctx.Err() != nil {
			break
		}
		selected[i] = g.ask(ctx, &Request{
			Tool:       "diff",
			Action:     describeTool("diff", path),
			Target:     path,
			Preview:    h,
			Hunk:       i + 1,
			TotalHunks: len(hunks),
		})
	}
	return selected
}

func fill(selected []bool, v bool) []bool {
	for i := range selected {
		selected[i] = v
	}
	return selected
}

// ClearSession forgets all session-level decisions.
func (g *Gate) ClearSession() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessionCache = make(map[string]bool)
}

func (g *Gate) policy(tool string) Level {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.autoApprove {
		return LevelAllow
	}
	return g.rules.Level(tool)
}

// ask runs the prompt handler for req.
func (g *Gate) ask(ctx context.Context, req *Request) bool {
	g.mu.RLock()
	handler := g.promptHandler
	auto := g.autoApprove
	remember := g.rememberChoices
	g.mu.RUnlock()

	if auto {
		return true
	}
	if handler == nil {
		logging.Warn("permission request without prompt handler, denying", "action", req.Action)
		return false
	}

	decision, err := handler(ctx, req)
	if err != nil {
		logging.Warn("permission prompt failed, denying", "action", req.Action, "error", err)
		return false
	}

	if decision == DecisionAllowSession && remember && req.Tool != "" && !req.IsHunk() {
		g.rememberKey(cacheKey(req.Tool, req.Target))
	}

	logging.Debug("permission decision", "action", req.Action, "decision", decision.String())
	return decision.Allowed()
}

// cacheKey identifies a tool invocation for session memory. Commands are
// hashed so long command lines do not bloat the cache.
func cacheKey(tool, target string) string {
	if tool == "exec" {
		hash := sha256.Sum256([]byte(target))
		return fmt.Sprintf("%s:%x", tool, hash[:8])
	}
	return tool + ":" + target
}

// rememberKey stores a session-level approval, evicting half the cache when full.
func (g *Gate) rememberKey(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.sessionCache) >= g.maxCacheEntries {
		evictCount := g.maxCacheEntries / 2
		count := 0
		for k := range g.sessionCache {
			if count >= evictCount {
				break
			}
			delete(g.sessionCache, k)
			count++
		}
	}

	g.sessionCache[key] = true
}
