package semantic

import (
	"go/ast"
	"go/parser"
	"go/token"
	"regexp"
	"sort"
	"strings"

	"azul/internal/logging"
)

const (
	DefaultMaxChunkTokens = 512
	DefaultOverlapLines   = 2
)

// Chunker splits file content into retrieval chunks. Go files are split
// along top-level declarations using go/ast, other known languages along
// top-level definitions found by regex. Anything else, or anything the
// structural pass cannot handle, is cut into overlapping line windows.
type Chunker struct {
	maxTokens int
	overlap   int
}

// NewChunker creates a Chunker with a token budget per chunk and a line
// overlap between consecutive windows.
func NewChunker(maxTokens, overlap int) *Chunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxChunkTokens
	}
	if overlap < 0 {
		overlap = 0
	}
	return &Chunker{maxTokens: maxTokens, overlap: overlap}
}

// unit is a 1-based inclusive line range found by the structural pass.
type unit struct {
	start, end int
	kind       string
}

var (
	pythonDef = regexp.MustCompile(`^(async\s+def|def|class)\s+[A-Za-z_]\w*`)
	jsDef     = regexp.MustCompile(`^(export\s+)?(default\s+)?((async\s+)?function\*?|class|interface|enum|type)\s+[A-Za-z_$][\w$]*|^(export\s+)?(const|let|var)\s+[A-Za-z_$][\w$]*\s*=\s*(async\s*)?(\(|function|[A-Za-z_$][\w$]*\s*=>)`)
	javaDef   = regexp.MustCompile(`^((public|private|protected|static|final|abstract|sealed)\s+)*(class|interface|enum|record|@interface)\s+[A-Za-z_]\w*`)
	otherDef  = regexp.MustCompile(`^(pub(\([a-z]+\))?\s+)?(async\s+)?(func|fn|def|class|interface|type|struct|enum|impl|trait|namespace|module|object)\b`)
	classWord = regexp.MustCompile(`\b(class|interface|struct|enum|trait|impl|record|object|type)\b`)
)

// ChunkFile splits content into chunks. It never panics: a failure in the
// structural pass degrades to line windows for that file.
func (c *Chunker) ChunkFile(path, content string) (chunks []Chunk) {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	lines := strings.Split(content, "\n")
	if strings.HasSuffix(content, "\n") {
		lines = lines[:len(lines)-1]
	}
	lang := DetectLanguage(path)

	defer func() {
		if r := recover(); r != nil {
			logging.Warn("structural chunking panicked, using line windows", "path", path, "panic", r)
			chunks = c.windows(path, lang, lines, 1, len(lines), ChunkWindow)
		}
	}()

	units := c.structural(path, content, lines, lang)
	if len(units) == 0 {
		return c.windows(path, lang, lines, 1, len(lines), ChunkWindow)
	}

	for _, u := range fillGaps(units, lines) {
		chunks = append(chunks, c.emit(path, lang, lines, u)...)
	}
	return chunks
}

func (c *Chunker) structural(path, content string, lines []string, lang string) []unit {
	switch lang {
	case "go":
		return goUnits(path, content, len(lines))
	case "python":
		return regexUnits(lines, pythonDef, true)
	case "javascript", "typescript":
		return regexUnits(lines, jsDef, false)
	case "java":
		return regexUnits(lines, javaDef, true)
	case "text":
		return nil
	default:
		return regexUnits(lines, otherDef, true)
	}
}

// goUnits returns the top-level declarations of a Go file, doc comments
// included. Files that do not parse yield no units.
func goUnits(path, content string, total int) []unit {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, content, parser.ParseComments)
	if err != nil {
		logging.Debug("go parse failed, using line windows", "path", path, "error", err)
		return nil
	}

	var units []unit
	for _, decl := range f.Decls {
		var start token.Pos
		var kind string
		switch d := decl.(type) {
		case *ast.FuncDecl:
			start, kind = d.Pos(), ChunkFunction
			if d.Doc != nil {
				start = d.Doc.Pos()
			}
		case *ast.GenDecl:
			start, kind = d.Pos(), ChunkDeclaration
			if d.Tok == token.TYPE {
				kind = ChunkClass
			}
			if d.Doc != nil {
				start = d.Doc.Pos()
			}
		default:
			continue
		}

		s := fset.Position(start).Line
		e := fset.Position(decl.End()).Line
		if s < 1 || e < s || e > total {
			continue
		}
		units = append(units, unit{start: s, end: e, kind: kind})
	}
	return units
}

// regexUnits starts a unit at every unindented line matching def and ends
// it before the next one. Decorator lines directly above a definition
// belong to it when decorators is set.
func regexUnits(lines []string, def *regexp.Regexp, decorators bool) []unit {
	var starts []int
	var kinds []string
	for i, line := range lines {
		m := def.FindString(line)
		if m == "" {
			continue
		}
		start := i
		if decorators {
			for start > 0 && strings.HasPrefix(lines[start-1], "@") {
				start--
			}
		}
		if len(starts) > 0 && start <= starts[len(starts)-1] {
			continue
		}
		kind := ChunkFunction
		if classWord.MatchString(m) {
			kind = ChunkClass
		}
		starts = append(starts, start)
		kinds = append(kinds, kind)
	}

	units := make([]unit, 0, len(starts))
	for i, s := range starts {
		end := len(lines)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		// trailing blank lines belong to no one
		for end > s+1 && strings.TrimSpace(lines[end-1]) == "" {
			end--
		}
		units = append(units, unit{start: s + 1, end: end, kind: kinds[i]})
	}
	return units
}

// fillGaps adds block units for non-blank lines no structural unit covers
// (package clauses, imports, module-level statements), so every line of
// the file lands in some chunk.
func fillGaps(units []unit, lines []string) []unit {
	sort.Slice(units, func(i, j int) bool { return units[i].start < units[j].start })

	var out []unit
	next := 1
	addGap := func(from, to int) {
		for from <= to && strings.TrimSpace(lines[from-1]) == "" {
			from++
		}
		for to >= from && strings.TrimSpace(lines[to-1]) == "" {
			to--
		}
		if from <= to {
			out = append(out, unit{start: from, end: to, kind: ChunkBlock})
		}
	}

	for _, u := range units {
		if u.end < next {
			continue
		}
		if u.start < next {
			u.start = next
		}
		addGap(next, u.start-1)
		out = append(out, u)
		next = u.end + 1
	}
	addGap(next, len(lines))
	return out
}

// emit turns a unit into one chunk, or several when it exceeds the budget.
func (c *Chunker) emit(path, lang string, lines []string, u unit) []Chunk {
	content := strings.Join(lines[u.start-1:u.end], "\n")
	if EstimateTokens(content) <= c.maxTokens {
		return []Chunk{newChunk(path, u.start, u.end, lang, u.kind, content)}
	}
	return c.split(path, lang, lines, u)
}

// split cuts an oversized unit into pieces that fit the budget, preferring
// to cut after a blank line.
func (c *Chunker) split(path, lang string, lines []string, u unit) []Chunk {
	var chunks []Chunk
	segStart := u.start
	tokens := 0
	lastBlank := 0

	flush := func(end int) {
		if end < segStart {
			return
		}
		content := strings.Join(lines[segStart-1:end], "\n")
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, newChunk(path, segStart, end, lang, u.kind, content))
		}
		segStart = end + 1
	}

	for n := u.start; n <= u.end; n++ {
		lt := EstimateTokens(lines[n-1] + "\n")
		if tokens+lt > c.maxTokens && n > segStart {
			cut := n - 1
			if lastBlank >= segStart && lastBlank < n-1 {
				cut = lastBlank
			}
			flush(cut)
			tokens = 0
			for k := segStart; k < n; k++ {
				tokens += EstimateTokens(lines[k-1] + "\n")
			}
			if tokens+lt > c.maxTokens && n > segStart {
				flush(n - 1)
				tokens = 0
			}
			lastBlank = 0
		}
		tokens += lt
		if strings.TrimSpace(lines[n-1]) == "" {
			lastBlank = n
		}
	}
	flush(u.end)
	return chunks
}

// windows cuts lines[from..to] into token-bounded windows where each window
// repeats the last overlap lines of the previous one.
func (c *Chunker) windows(path, lang string, lines []string, from, to int, kind string) []Chunk {
	var chunks []Chunk
	var current []string
	start := from
	tokens := 0

	emit := func(end int) {
		content := strings.Join(current, "\n")
		if strings.TrimSpace(content) != "" {
			chunks = append(chunks, newChunk(path, start, end, lang, kind, content))
		}
	}

	for n := from; n <= to; n++ {
		line := lines[n-1]
		lt := EstimateTokens(line + "\n")

		if tokens+lt > c.maxTokens && len(current) > 0 {
			emit(n - 1)

			keep := c.overlap
			if keep > len(current)-1 {
				keep = len(current) - 1
			}
			current = append([]string(nil), current[len(current)-keep:]...)
			start = n - len(current)
			tokens = 0
			for _, l := range current {
				tokens += EstimateTokens(l + "\n")
			}
		}

		current = append(current, line)
		tokens += lt
	}
	if len(current) > 0 {
		emit(to)
	}
	return chunks
}
