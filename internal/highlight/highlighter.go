package highlight

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/lipgloss"
)

// Highlighter colours code and diffs for the terminal. With color off
// every method returns its input unchanged.
type Highlighter struct {
	style     *chroma.Style
	formatter chroma.Formatter
	color     bool
}

// New resolves a chroma style by name ("monokai", "dracula", ...). An
// empty or unknown name uses monokai.
func New(style string, color bool) *Highlighter {
	st := styles.Get(style)
	if style == "" || st == styles.Fallback {
		st = styles.Get("monokai")
	}
	return &Highlighter{
		style:     st,
		formatter: formatters.TTY256,
		color:     color,
	}
}

func (h *Highlighter) Plain() bool { return !h.color }

// Highlight colours code as lang. Unknown languages use the fallback lexer
// and any tokenizer failure returns code as is.
func (h *Highlighter) Highlight(code, lang string) string {
	if !h.color {
		return code
	}
	lexer := lexers.Get(lang)
	if lexer == nil {
		lexer = lexers.Fallback
	}
	tokens, err := chroma.Coalesce(lexer).Tokenise(nil, code)
	if err != nil {
		return code
	}
	var buf bytes.Buffer
	if err := h.formatter.Format(&buf, h.style, tokens); err != nil {
		return code
	}
	return buf.String()
}

// File highlights content by the language of path, numbering lines from 1.
func (h *Highlighter) File(path, content string) string {
	return h.WithLineNumbers(strings.TrimSuffix(content, "\n"), DetectLanguage(path), 1)
}

var gutterStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

// WithLineNumbers highlights code and adds a right-aligned line number
// gutter starting at first.
func (h *Highlighter) WithLineNumbers(code, lang string, first int) string {
	lines := strings.Split(h.Highlight(code, lang), "\n")
	width := len(strconv.Itoa(first + len(lines) - 1))

	for i, line := range lines {
		num := fmt.Sprintf("%*d", width, first+i)
		if h.color {
			num = gutterStyle.Render(num)
		}
		lines[i] = num + " │ " + line
	}
	return strings.Join(lines, "\n")
}

// diffStyles are tried in order; the first matching prefix wins.
var diffStyles = []struct {
	prefix string
	style  lipgloss.Style
}{
	{"+++", lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4")).Bold(true)},
	{"---", lipgloss.NewStyle().Foreground(lipgloss.Color("#06B6D4")).Bold(true)},
	{"@@", lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA"))},
	{"+", lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true)},
	{"-", lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true)},
	{"", lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))},
}

// Diff colours a unified diff line by line.
func (h *Highlighter) Diff(diff string) string {
	if !h.color {
		return diff
	}
	lines := strings.Split(diff, "\n")
	for i, line := range lines {
		for _, ds := range diffStyles {
			if strings.HasPrefix(line, ds.prefix) {
				lines[i] = ds.style.Render(line)
				break
			}
		}
	}
	return strings.Join(lines, "\n")
}

var langByExt = map[string]string{
	".go": "go", ".py": "python", ".js": "javascript", ".mjs": "javascript",
	".ts": "typescript", ".tsx": "tsx", ".jsx": "jsx", ".rs": "rust",
	".rb": "ruby", ".java": "java", ".c": "c", ".h": "c", ".cpp": "cpp",
	".hpp": "cpp", ".cs": "csharp", ".php": "php", ".swift": "swift",
	".kt": "kotlin", ".scala": "scala", ".sh": "bash", ".bash": "bash",
	".zsh": "bash", ".sql": "sql", ".html": "html", ".css": "css",
	".scss": "scss", ".json": "json", ".yaml": "yaml", ".yml": "yaml",
	".toml": "toml", ".xml": "xml", ".md": "markdown", ".lua": "lua",
	".r": "r", ".pl": "perl", ".diff": "diff", ".patch": "diff",
}

var langByName = map[string]string{
	"dockerfile": "docker",
	"makefile":   "makefile",
	"go.mod":     "gomod",
	".gitignore": "gitignore",
	".env":       "ini",
}

// DetectLanguage returns the chroma lexer name for a filename, or "text".
func DetectLanguage(filename string) string {
	if lang, ok := langByExt[strings.ToLower(filepath.Ext(filename))]; ok {
		return lang
	}
	if lang, ok := langByName[strings.ToLower(filepath.Base(filename))]; ok {
		return lang
	}
	if lexer := lexers.Match(filepath.Base(filename)); lexer != nil {
		return strings.ToLower(lexer.Config().Name)
	}
	return "text"
}
