package security

import (
	"regexp"
	"strings"
)

// CommandValidator rejects a small set of catastrophic shell commands.
// It is a last line of defence, not a sandbox: anything it does not match runs.
type CommandValidator struct {
	blockedSubstrings []string
	blockedPatterns   []*regexp.Regexp
}

// defaultBlockedPatterns catch spacing and flag-order variants of the blocked substrings.
var defaultBlockedPatterns = []*regexp.Regexp{
	// rm -rf / , rm -fr /* , rm -r -f ~
	regexp.MustCompile(`\brm\s+(-[a-zA-Z]+\s+)*-[a-zA-Z]*[rR][a-zA-Z]*\s+(-[a-zA-Z]+\s+)*(/|/\*|~|\$HOME|\$\{HOME\})(\s|$|;|&|\|)`),
	// mkfs, mkfs.ext4, ...
	regexp.MustCompile(`\bmkfs(\.[a-z0-9]+)?\b`),
	// dd onto a block device
	regexp.MustCompile(`\bdd\s+.*\bof=/dev/(sd|hd|vd|nvme|disk|mmcblk)`),
	// raw redirect onto a block device
	regexp.MustCompile(`>\s*/dev/(sd|hd|vd|nvme|disk|mmcblk)`),
	// :(){ :|:& };:
	regexp.MustCompile(`:\s*\(\s*\)\s*\{\s*:\s*\|\s*:\s*&\s*\}\s*;\s*:`),
}

// NewCommandValidator creates a validator with the given extra blocked substrings.
func NewCommandValidator(blocked []string) *CommandValidator {
	subs := make([]string, 0, len(blocked))
	for _, b := range blocked {
		b = strings.ToLower(strings.TrimSpace(b))
		if b != "" {
			subs = append(subs, b)
		}
	}
	return &CommandValidator{
		blockedSubstrings: subs,
		blockedPatterns:   defaultBlockedPatterns,
	}
}

// ValidationResult contains the result of command validation.
type ValidationResult struct {
	Valid   bool
	Reason  string
	Pattern string // The pattern that matched, if any
}

// Validate checks if a command is allowed to execute.
func (cv *CommandValidator) Validate(command string) ValidationResult {
	if strings.TrimSpace(command) == "" {
		return ValidationResult{Valid: false, Reason: "empty command"}
	}

	normalized := strings.ToLower(command)

	for _, sub := range cv.blockedSubstrings {
		if matchesBlockedSubstring(normalized, sub) {
			return ValidationResult{
				Valid:   false,
				Reason:  "blocked command",
				Pattern: sub,
			}
		}
	}

	for _, re := range cv.blockedPatterns {
		if re.MatchString(command) {
			return ValidationResult{
				Valid:   false,
				Reason:  "blocked command pattern",
				Pattern: re.String(),
			}
		}
	}

	return ValidationResult{Valid: true}
}

// matchesBlockedSubstring matches sub inside cmd. A substring ending in "/"
// only matches when the slash ends a word, so "rm -rf /" does not block
// "rm -rf /tmp/build".
func matchesBlockedSubstring(cmd, sub string) bool {
	if !strings.HasSuffix(sub, "/") {
		return strings.Contains(cmd, sub)
	}

	rest := cmd
	for {
		idx := strings.Index(rest, sub)
		if idx < 0 {
			return false
		}
		end := idx + len(sub)
		if end == len(rest) || strings.ContainsRune(" \t;&|*", rune(rest[end])) {
			return true
		}
		rest = rest[idx+1:]
	}
}
