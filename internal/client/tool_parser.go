package client

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"azul/internal/logging"
)

// Tool call markers embedded in model output.
const (
	OpenMarker  = "<tool_code>"
	CloseMarker = "</tool_code>"
)

// ToolCall is a single tool invocation extracted from model text.
type ToolCall struct {
	Name string
	Args map[string]any
	// Raw is the verbatim marker-wrapped text, used to strip the call from the response.
	Raw string
}

var (
	toolCodePattern   = regexp.MustCompile(`(?is)<tool_code>(.*?)</tool_code>`)
	openMarkerPattern = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(OpenMarker))
)

// ExtractToolCall finds the first complete marker-wrapped invocation in text.
// Parsing is layered: a strict call-expression parser, then a permissive regex
// extractor. It never panics; malformed input yields (nil, false).
func ExtractToolCall(text string) (call *ToolCall, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.Warn("tool call parser panic", "panic", r)
			call, ok = nil, false
		}
	}()

	match := toolCodePattern.FindStringSubmatchIndex(text)
	if match == nil {
		return nil, false
	}

	raw := text[match[0]:match[1]]
	code := strings.TrimSpace(text[match[2]:match[3]])
	code = stripCodeFence(code)
	if code == "" {
		return nil, false
	}

	name, args, err := parseCallExpr(code)
	if err != nil {
		logging.Debug("strict tool call parse failed, using regex fallback", "code", code, "error", err)
		name, args, ok = parseCallRegex(code)
		if !ok {
			return nil, false
		}
	}

	return &ToolCall{
		Name: name,
		Args: normalizeArgs(name, args),
		Raw:  raw,
	}, true
}

// RemoveToolCall strips the first occurrence of the call's raw text and trims the rest.
func RemoveToolCall(text string, call *ToolCall) string {
	if call == nil || call.Raw == "" {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(strings.Replace(text, call.Raw, "", 1))
}

// HasOpenMarker reports whether text contains the opening marker (case-insensitive).
func HasOpenMarker(text string) bool {
	return OpenMarkerIndex(text) >= 0
}

// OpenMarkerIndex returns the byte offset of the first opening marker or -1.
func OpenMarkerIndex(text string) int {
	if loc := openMarkerPattern.FindStringIndex(text); loc != nil {
		return loc[0]
	}
	return -1
}

// DisplayableLength returns how many leading bytes of a streaming buffer may be
// shown to the user. Everything from the opening marker on is withheld, and so
// is a trailing fragment that could still grow into the marker.
func DisplayableLength(buffer string) int {
	if idx := OpenMarkerIndex(buffer); idx >= 0 {
		return idx
	}
	for n := len(OpenMarker) - 1; n > 0; n-- {
		if n <= len(buffer) && strings.EqualFold(buffer[len(buffer)-n:], OpenMarker[:n]) {
			return len(buffer) - n
		}
	}
	return len(buffer)
}

// stripCodeFence removes a ``` fence some models put inside the markers.
func stripCodeFence(code string) string {
	if !strings.HasPrefix(code, "```") {
		return code
	}
	code = strings.TrimPrefix(code, "```")
	if nl := strings.IndexByte(code, '\n'); nl >= 0 && !strings.Contains(code[:nl], "(") {
		code = code[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(code), "```"))
}

// normalizeArgs applies positional aliasing and key normalisation.
// exec: arg_0 -> command. Everything else: arg_0 -> file_path, arg_1 -> content.
func normalizeArgs(name string, args map[string]any) map[string]any {
	if args == nil {
		args = make(map[string]any)
	}

	for _, alias := range []string{"path", "file", "filename", "filepath"} {
		if v, ok := args[alias]; ok {
			if _, exists := args["file_path"]; !exists {
				args["file_path"] = v
				delete(args, alias)
			}
		}
	}
	if v, ok := args["diff_content"]; ok {
		if _, exists := args["content"]; !exists {
			args["content"] = v
			delete(args, "diff_content")
		}
	}
	if v, ok := args["cmd"]; ok && strings.EqualFold(name, "exec") {
		if _, exists := args["command"]; !exists {
			args["command"] = v
			delete(args, "cmd")
		}
	}

	if strings.EqualFold(name, "exec") {
		if v, ok := args["arg_0"]; ok {
			if _, exists := args["command"]; !exists {
				args["command"] = v
				delete(args, "arg_0")
			}
		}
		return args
	}

	if v, ok := args["arg_0"]; ok {
		if _, exists := args["file_path"]; !exists {
			args["file_path"] = v
			delete(args, "arg_0")
		}
	}
	if v, ok := args["arg_1"]; ok {
		if _, exists := args["content"]; !exists {
			args["content"] = v
			delete(args, "arg_1")
		}
	}
	return args
}

// --- strict parser ---

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokString
	tokNumber
	tokPunct
)

type token struct {
	kind tokenKind
	text string
	val  any
}

type lexer struct {
	src []rune
	pos int
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && unicode.IsSpace(l.src[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF}, nil
	}

	c := l.src[l.pos]

	// String prefixes: r'..', b'..', f'..' (f-strings are taken literally).
	if (c == 'r' || c == 'R' || c == 'b' || c == 'B' || c == 'f' || c == 'F' || c == 'u' || c == 'U') &&
		l.pos+1 < len(l.src) && (l.src[l.pos+1] == '\'' || l.src[l.pos+1] == '"') {
		raw := c == 'r' || c == 'R'
		l.pos++
		s, err := l.readString(raw)
		if err != nil {
			return token{}, err
		}
		return token{kind: tokString, val: s}, nil
	}

	switch {
	case c == '\'' || c == '"':
		s, err := l.readString(false)
		if err != nil {
			return token{}, err
		}
		return token{kind: tokString, val: s}, nil

	case c == '_' || unicode.IsLetter(c):
		start := l.pos
		for l.pos < len(l.src) && (l.src[l.pos] == '_' || l.src[l.pos] == '.' || unicode.IsLetter(l.src[l.pos]) || unicode.IsDigit(l.src[l.pos])) {
			l.pos++
		}
		return token{kind: tokIdent, text: string(l.src[start:l.pos])}, nil

	case unicode.IsDigit(c) || ((c == '-' || c == '+' || c == '.') && l.pos+1 < len(l.src) && unicode.IsDigit(l.src[l.pos+1])):
		start := l.pos
		l.pos++
		for l.pos < len(l.src) && (unicode.IsDigit(l.src[l.pos]) || strings.ContainsRune(".eE_+-", l.src[l.pos])) {
			// a sign is only part of the number right after an exponent
			if (l.src[l.pos] == '+' || l.src[l.pos] == '-') && l.src[l.pos-1] != 'e' && l.src[l.pos-1] != 'E' {
				break
			}
			l.pos++
		}
		text := strings.ReplaceAll(string(l.src[start:l.pos]), "_", "")
		if n, err := strconv.ParseInt(text, 10, 64); err == nil {
			return token{kind: tokNumber, val: int(n)}, nil
		}
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token{}, fmt.Errorf("invalid number %q", text)
		}
		return token{kind: tokNumber, val: f}, nil

	case strings.ContainsRune("(),=[]{}:", c):
		l.pos++
		return token{kind: tokPunct, text: string(c)}, nil
	}

	return token{}, fmt.Errorf("unexpected character %q at %d", c, l.pos)
}

// readString reads a single, double or triple quoted literal starting at l.pos.
func (l *lexer) readString(raw bool) (string, error) {
	quote := l.src[l.pos]
	triple := l.pos+2 < len(l.src) && l.src[l.pos+1] == quote && l.src[l.pos+2] == quote
	if triple {
		l.pos += 3
	} else {
		l.pos++
	}

	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]

		if c == '\\' && l.pos+1 < len(l.src) {
			next := l.src[l.pos+1]
			l.pos += 2
			if raw {
				sb.WriteRune('\\')
				sb.WriteRune(next)
				continue
			}
			switch next {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			case 'r':
				sb.WriteRune('\r')
			case '0':
				sb.WriteRune(0)
			case '\\', '\'', '"':
				sb.WriteRune(next)
			case '\n':
				// line continuation
			default:
				sb.WriteRune('\\')
				sb.WriteRune(next)
			}
			continue
		}

		if c == quote {
			if !triple {
				l.pos++
				return sb.String(), nil
			}
			if l.pos+2 < len(l.src) && l.src[l.pos+1] == quote && l.src[l.pos+2] == quote {
				l.pos += 3
				return sb.String(), nil
			}
		}

		if c == '\n' && !triple {
			return "", fmt.Errorf("newline in single-quoted string")
		}

		sb.WriteRune(c)
		l.pos++
	}
	return "", fmt.Errorf("unterminated string")
}

type exprParser struct {
	lex  *lexer
	tok  token
	peek *token
}

func (p *exprParser) advance() error {
	if p.peek != nil {
		p.tok = *p.peek
		p.peek = nil
		return nil
	}
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *exprParser) lookahead() (token, error) {
	if p.peek == nil {
		t, err := p.lex.next()
		if err != nil {
			return token{}, err
		}
		p.peek = &t
	}
	return *p.peek, nil
}

func (p *exprParser) expect(punct string) error {
	if p.tok.kind != tokPunct || p.tok.text != punct {
		return fmt.Errorf("expected %q", punct)
	}
	return p.advance()
}

func (p *exprParser) isPunct(punct string) bool {
	return p.tok.kind == tokPunct && p.tok.text == punct
}

// parseCallExpr parses `name(arg, key=value, ...)` with Python-like literals.
func parseCallExpr(code string) (string, map[string]any, error) {
	p := &exprParser{lex: &lexer{src: []rune(code)}}
	if err := p.advance(); err != nil {
		return "", nil, err
	}

	if p.tok.kind != tokIdent {
		return "", nil, fmt.Errorf("expected tool name")
	}
	name := p.tok.text
	if err := p.advance(); err != nil {
		return "", nil, err
	}
	if err := p.expect("("); err != nil {
		return "", nil, err
	}

	args := make(map[string]any)
	positional := 0
	for !p.isPunct(")") {
		if p.tok.kind == tokEOF {
			return "", nil, fmt.Errorf("unclosed call")
		}

		if p.tok.kind == tokIdent {
			next, err := p.lookahead()
			if err != nil {
				return "", nil, err
			}
			if next.kind == tokPunct && next.text == "=" {
				key := p.tok.text
				if err := p.advance(); err != nil {
					return "", nil, err
				}
				if err := p.advance(); err != nil {
					return "", nil, err
				}
				val, err := p.parseValue()
				if err != nil {
					return "", nil, err
				}
				args[key] = val
				if err := p.separator(")"); err != nil {
					return "", nil, err
				}
				continue
			}
		}

		val, err := p.parseValue()
		if err != nil {
			return "", nil, err
		}
		args[fmt.Sprintf("arg_%d", positional)] = val
		positional++
		if err := p.separator(")"); err != nil {
			return "", nil, err
		}
	}

	if err := p.advance(); err != nil {
		return "", nil, err
	}
	if p.tok.kind != tokEOF {
		return "", nil, fmt.Errorf("trailing input after call")
	}
	return name, args, nil
}

// separator consumes a comma or checks for the closing delimiter.
func (p *exprParser) separator(closing string) error {
	if p.isPunct(",") {
		return p.advance()
	}
	if p.isPunct(closing) {
		return nil
	}
	return fmt.Errorf("expected ',' or %q", closing)
}

func (p *exprParser) parseValue() (any, error) {
	switch p.tok.kind {
	case tokString:
		s := p.tok.val.(string)
		if err := p.advance(); err != nil {
			return nil, err
		}
		// adjacent literals concatenate
		for p.tok.kind == tokString {
			s += p.tok.val.(string)
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		return s, nil

	case tokNumber:
		v := p.tok.val
		return v, p.advance()

	case tokIdent:
		var v any
		switch p.tok.text {
		case "True", "true":
			v = true
		case "False", "false":
			v = false
		case "None", "null", "nil":
			v = nil
		default:
			v = p.tok.text
		}
		return v, p.advance()

	case tokPunct:
		switch p.tok.text {
		case "[", "(":
			closing := "]"
			if p.tok.text == "(" {
				closing = ")"
			}
			if err := p.advance(); err != nil {
				return nil, err
			}
			list := make([]any, 0)
			for !p.isPunct(closing) {
				if p.tok.kind == tokEOF {
					return nil, fmt.Errorf("unclosed list")
				}
				v, err := p.parseValue()
				if err != nil {
					return nil, err
				}
				list = append(list, v)
				if err := p.separator(closing); err != nil {
					return nil, err
				}
			}
			return list, p.advance()

		case "{":
			if err := p.advance(); err != nil {
				return nil, err
			}
			m := make(map[string]any)
			for !p.isPunct("}") {
				if p.tok.kind == tokEOF {
					return nil, fmt.Errorf("unclosed dict")
				}
				k, err := p.parseValue()
				if err != nil {
					return nil, err
				}
				if err := p.expect(":"); err != nil {
					return nil, err
				}
				v, err := p.parseValue()
				if err != nil {
					return nil, err
				}
				m[fmt.Sprint(k)] = v
				if err := p.separator("}"); err != nil {
					return nil, err
				}
			}
			return m, p.advance()
		}
	}
	return nil, fmt.Errorf("unexpected token")
}

// --- regex fallback ---

var (
	fallbackCallPattern    = regexp.MustCompile(`(?s)^\s*([A-Za-z_]\w*)\s*\((.*?)\)?\s*$`)
	fallbackStringPattern  = regexp.MustCompile(`(?s)'((?:\\.|[^'\\])*)'|"((?:\\.|[^"\\])*)"`)
	fallbackKeywordPattern = regexp.MustCompile(`(\w+)\s*=\s*(True|False|None|true|false|null|'[^']*'|"[^"]*"|[\w./-]+)`)
)

// parseCallRegex extracts the tool name, quoted positional arguments and
// key=value pairs without requiring a well-formed expression.
func parseCallRegex(code string) (string, map[string]any, bool) {
	m := fallbackCallPattern.FindStringSubmatch(code)
	if m == nil {
		return "", nil, false
	}

	name := m[1]
	argStr := strings.TrimSpace(m[2])
	args := make(map[string]any)
	if argStr == "" {
		return name, args, true
	}

	// Keyword arguments are removed before positional strings are collected.
	positionalPart := argStr
	for _, kw := range fallbackKeywordPattern.FindAllStringSubmatch(argStr, -1) {
		key, raw := kw[1], kw[2]
		switch raw {
		case "True", "true":
			args[key] = true
		case "False", "false":
			args[key] = false
		case "None", "null":
			args[key] = nil
		default:
			args[key] = strings.Trim(raw, `'"`)
		}
		positionalPart = strings.Replace(positionalPart, kw[0], "", 1)
	}

	strs := fallbackStringPattern.FindAllStringSubmatch(positionalPart, -1)
	if len(strs) > 0 {
		for i, s := range strs {
			v := s[1]
			if v == "" && s[2] != "" {
				v = s[2]
			}
			args[fmt.Sprintf("arg_%d", i)] = unescapeFallback(v)
		}
		return name, args, true
	}

	if len(args) == 0 {
		// Unquoted arguments: split on commas.
		parts := strings.Split(positionalPart, ",")
		idx := 0
		for _, part := range parts {
			part = strings.Trim(strings.TrimSpace(part), `'"`)
			if part == "" {
				continue
			}
			args[fmt.Sprintf("arg_%d", idx)] = part
			idx++
		}
	}
	return name, args, true
}

func unescapeFallback(s string) string {
	r := strings.NewReplacer(`\n`, "\n", `\t`, "\t", `\'`, "'", `\"`, `"`, `\\`, `\`)
	return r.Replace(s)
}
