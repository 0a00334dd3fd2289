package editor

import (
	"regexp"
	"strings"
)

// BlockKind is the type of a fenced action block in a model response.
type BlockKind string

const (
	BlockDiff   BlockKind = "diff"
	BlockFile   BlockKind = "file"
	BlockDelete BlockKind = "delete"
)

// Block is one ```diff, ```file:<path> or ```delete:<path> fence.
type Block struct {
	Kind    BlockKind
	Path    string
	Content string
	Raw     string // the whole fence, for removal from the prose
}

var (
	blockRe         = regexp.MustCompile("(?s)```(diff|file:[^\\n`]+|delete:[^\\n`]+)[ \\t]*(?:\\n(.*?))?```")
	diffPathRe      = regexp.MustCompile(`(?m)^(?:\+\+\+|---)\s+(?:[ab]/)?([^\s]+)`)
	diffPathLooseRe = regexp.MustCompile(`(?m)^(?:\+\+\+|---)\s+(\S+\.\w+)`)
)

// ParseBlocks extracts action blocks in the order they appear and returns
// them with the remaining conversational text.
func ParseBlocks(response string) ([]Block, string) {
	var blocks []Block
	prose := response

	for _, m := range blockRe.FindAllStringSubmatch(response, -1) {
		tag, body := m[1], m[2]
		var b Block
		switch {
		case tag == "diff":
			path := diffTarget(body)
			if path == "" {
				continue
			}
			b = Block{Kind: BlockDiff, Path: path, Content: strings.Trim(body, "\n")}
		case strings.HasPrefix(tag, "file:"):
			b = Block{Kind: BlockFile, Path: strings.TrimSpace(tag[len("file:"):]), Content: strings.Trim(body, "\n")}
			if b.Content != "" {
				b.Content += "\n"
			}
		default:
			b = Block{Kind: BlockDelete, Path: strings.TrimSpace(tag[len("delete:"):])}
		}
		if b.Path == "" {
			continue
		}
		b.Raw = m[0]
		blocks = append(blocks, b)
		prose = strings.Replace(prose, m[0], "", 1)
	}
	return blocks, strings.TrimSpace(prose)
}

// diffTarget finds the file a diff block applies to from its headers.
func diffTarget(body string) string {
	for _, m := range diffPathRe.FindAllStringSubmatch(body, -1) {
		if m[1] != "/dev/null" {
			return m[1]
		}
	}
	if m := diffPathLooseRe.FindStringSubmatch(body); m != nil {
		return m[1]
	}
	return ""
}

var (
	explanationPhrases = []string{
		"here are some of the things i can do",
		"for example",
		"here is the format",
		"i can do things like",
		"here's an example",
		"for instance",
		"this is how",
		"like this",
		"as an example",
		"to illustrate",
		"here's what",
		"this shows",
		"you can see",
	}
	questionStarters = []string{"what", "who", "when", "where", "why", "how", "tell me", "explain", "describe"}
	actionWords      = []string{"create", "edit", "change", "delete", "update", "save", "apply", "modify", "write", "make", "remove"}
)

// IsLikelyFalsePositive reports whether blocks in a response were probably
// given as examples rather than meant to be applied. prose is the response
// without its blocks; prompt is what the user asked.
func IsLikelyFalsePositive(prose string, blocks []Block, prompt string) bool {
	if len(blocks) == 0 {
		return false
	}

	lowerProse := strings.ToLower(prose)
	for _, p := range explanationPhrases {
		if strings.Contains(lowerProse, p) {
			return true
		}
	}

	lowerPrompt := strings.ToLower(strings.TrimSpace(prompt))
	hasAction := false
	for _, w := range actionWords {
		if strings.Contains(lowerPrompt, w) {
			hasAction = true
			break
		}
	}

	for _, q := range questionStarters {
		if strings.HasPrefix(lowerPrompt, q) && !hasAction {
			return true
		}
	}

	threshold := 50
	if hasAction {
		threshold = 200
	}
	return len(strings.TrimSpace(prose)) > threshold
}
