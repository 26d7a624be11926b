package searchdata

import (
	"fmt"
	"io"
	"path"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

var fileNameRegex = regexp.MustCompile(`^([a-z]+)_([0-9a-f]+)\.js$`)

// ParseFileName splits a Doxygen search file name such as "functions_16.js"
// into its category and (hexadecimal) part number.
func ParseFileName(name string) (category string, part int, ok bool) {
	m := fileNameRegex.FindStringSubmatch(path.Base(name))
	if m == nil {
		return "", 0, false
	}
	n, err := strconv.ParseInt(m[2], 16, 32)
	if err != nil {
		return "", 0, false
	}
	return m[1], int(n), true
}

// ParseFile parses the content of a named searchData file.
func ParseFile(name string, data []byte) (*File, error) {
	entries, err := parseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}

	f := &File{
		Name:    path.Base(name),
		Entries: entries,
	}
	if category, part, ok := ParseFileName(name); ok {
		f.Category = category
		f.Part = part
	} else {
		f.Category = "all"
	}
	return f, nil
}

// Parse reads a searchData script and returns its records in file order.
func Parse(r io.Reader) ([]Entry, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read search data: %w", err)
	}
	return parseBytes(data)
}

func parseBytes(data []byte) ([]Entry, error) {
	p := &parser{lex: newLexer(data)}
	if err := p.next(); err != nil {
		return nil, err
	}

	// Skip the "var searchData =" prelude; a bare array is accepted too.
	if p.tok.kind != tokLBracket {
		for p.tok.kind != tokEquals {
			if p.tok.kind == tokEOF {
				return nil, p.errorf("no array literal found")
			}
			if err := p.next(); err != nil {
				return nil, err
			}
		}
		if err := p.next(); err != nil {
			return nil, err
		}
	}
	if p.tok.kind != tokLBracket {
		return nil, p.errorf("expected '[' but found %s", p.tok)
	}

	root, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	records, _ := root.([]any)

	entries := make([]Entry, 0, len(records))
	for i, rec := range records {
		entry, err := toEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// toEntry interprets one record: [key, [label, link, link, ...]].
// Links may also be wrapped in a single nested array.
func toEntry(rec any) (Entry, error) {
	fields, ok := rec.([]any)
	if !ok || len(fields) < 2 {
		return Entry{}, recordError("record is not a [key, [label, links...]] pair")
	}
	key, ok := fields[0].(string)
	if !ok {
		return Entry{}, recordError("record key is not a string")
	}
	body, ok := fields[1].([]any)
	if !ok || len(body) == 0 {
		return Entry{}, recordError("record %q has no label", key)
	}
	label, ok := body[0].(string)
	if !ok {
		return Entry{}, recordError("record %q label is not a string", key)
	}

	entry := Entry{
		Key:   key,
		Label: html.UnescapeString(label),
		Links: []Link{},
	}
	for _, item := range body[1:] {
		links, err := toLinks(item)
		if err != nil {
			return Entry{}, fmt.Errorf("record %q: %w", key, err)
		}
		entry.Links = append(entry.Links, links...)
	}
	return entry, nil
}

func toLinks(item any) ([]Link, error) {
	switch v := item.(type) {
	case nil:
		return nil, nil
	case []any:
		if len(v) == 0 {
			return nil, nil
		}
		if _, nested := v[0].([]any); nested {
			var links []Link
			for _, sub := range v {
				l, err := toLinks(sub)
				if err != nil {
					return nil, err
				}
				links = append(links, l...)
			}
			return links, nil
		}
		return toLink(v)
	default:
		return nil, recordError("unexpected %T in link list", item)
	}
}

func toLink(fields []any) ([]Link, error) {
	url, ok := fields[0].(string)
	if !ok {
		return nil, recordError("link URL is not a string")
	}
	link := Link{URL: url, Internal: true}
	for _, f := range fields[1:] {
		switch v := f.(type) {
		case float64:
			link.Internal = v != 0
		case bool:
			link.Internal = v
		case string:
			link.Scope = html.UnescapeString(v)
		}
	}
	return []Link{link}, nil
}

func recordError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSyntax, fmt.Sprintf(format, args...))
}

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) next() error {
	t, err := p.lex.scan()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Line: p.tok.line, Col: p.tok.col, Msg: fmt.Sprintf(format, args...)}
}

// parseValue parses the value starting at the current token and leaves the
// token following it in p.tok.
func (p *parser) parseValue() (any, error) {
	switch p.tok.kind {
	case tokLBracket:
		return p.parseArray()
	case tokString:
		s := p.tok.text
		return s, p.next()
	case tokNumber:
		n, err := strconv.ParseFloat(p.tok.text, 64)
		if err != nil {
			return nil, p.errorf("invalid number %q", p.tok.text)
		}
		return n, p.next()
	case tokIdent:
		var v any
		switch p.tok.text {
		case "null", "undefined":
			v = nil
		case "true":
			v = true
		case "false":
			v = false
		default:
			return nil, p.errorf("unexpected identifier %q", p.tok.text)
		}
		return v, p.next()
	default:
		return nil, p.errorf("unexpected %s", p.tok)
	}
}

func (p *parser) parseArray() (any, error) {
	if err := p.next(); err != nil {
		return nil, err
	}
	items := []any{}
	for {
		if p.tok.kind == tokRBracket {
			return items, p.next()
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		items = append(items, v)

		switch p.tok.kind {
		case tokComma:
			if err := p.next(); err != nil {
				return nil, err
			}
		case tokRBracket:
		default:
			return nil, p.errorf("expected ',' or ']' but found %s", p.tok)
		}
	}
}

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLBracket
	tokRBracket
	tokComma
	tokEquals
	tokSemicolon
	tokString
	tokNumber
	tokIdent
)

type token struct {
	kind tokenKind
	text string
	line int
	col  int
}

func (t token) String() string {
	switch t.kind {
	case tokEOF:
		return "end of file"
	case tokString:
		return "string"
	case tokNumber, tokIdent:
		return strconv.Quote(t.text)
	default:
		return "'" + t.text + "'"
	}
}

type lexer struct {
	src  []byte
	pos  int
	line int
	col  int
}

func newLexer(src []byte) *lexer {
	// Tolerate a UTF-8 byte order mark.
	if len(src) >= 3 && src[0] == 0xEF && src[1] == 0xBB && src[2] == 0xBF {
		src = src[3:]
	}
	return &lexer{src: src, line: 1, col: 1}
}

func (l *lexer) peek(off int) byte {
	if l.pos+off < len(l.src) {
		return l.src[l.pos+off]
	}
	return 0
}

func (l *lexer) advance() byte {
	c := l.src[l.pos]
	l.pos++
	if c == '\n' {
		l.line++
		l.col = 1
	} else {
		l.col++
	}
	return c
}

func (l *lexer) errorf(format string, args ...any) error {
	return &SyntaxError{Line: l.line, Col: l.col, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) skipSpaceAndComments() error {
	for l.pos < len(l.src) {
		c := l.peek(0)
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.advance()
		case c == '/' && l.peek(1) == '/':
			for l.pos < len(l.src) && l.peek(0) != '\n' {
				l.advance()
			}
		case c == '/' && l.peek(1) == '*':
			l.advance()
			l.advance()
			for {
				if l.pos >= len(l.src) {
					return l.errorf("unterminated comment")
				}
				if l.peek(0) == '*' && l.peek(1) == '/' {
					l.advance()
					l.advance()
					break
				}
				l.advance()
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *lexer) scan() (token, error) {
	if err := l.skipSpaceAndComments(); err != nil {
		return token{}, err
	}
	t := token{line: l.line, col: l.col}
	if l.pos >= len(l.src) {
		t.kind = tokEOF
		return t, nil
	}

	c := l.peek(0)
	switch {
	case c == '[':
		t.kind, t.text = tokLBracket, "["
		l.advance()
	case c == ']':
		t.kind, t.text = tokRBracket, "]"
		l.advance()
	case c == ',':
		t.kind, t.text = tokComma, ","
		l.advance()
	case c == '=':
		t.kind, t.text = tokEquals, "="
		l.advance()
	case c == ';':
		t.kind, t.text = tokSemicolon, ";"
		l.advance()
	case c == '\'' || c == '"':
		s, err := l.scanString()
		if err != nil {
			return token{}, err
		}
		t.kind, t.text = tokString, s
	case c == '-' || (c >= '0' && c <= '9'):
		start := l.pos
		l.advance()
		for l.pos < len(l.src) && isNumberByte(l.peek(0)) {
			l.advance()
		}
		t.kind, t.text = tokNumber, string(l.src[start:l.pos])
	case isIdentByte(c):
		start := l.pos
		for l.pos < len(l.src) && (isIdentByte(l.peek(0)) || (l.peek(0) >= '0' && l.peek(0) <= '9')) {
			l.advance()
		}
		t.kind, t.text = tokIdent, string(l.src[start:l.pos])
	default:
		return token{}, l.errorf("unexpected character %q", rune(c))
	}
	return t, nil
}

func (l *lexer) scanString() (string, error) {
	quote := l.advance()
	var b strings.Builder
	for {
		if l.pos >= len(l.src) {
			return "", l.errorf("unterminated string")
		}
		c := l.advance()
		switch c {
		case quote:
			return b.String(), nil
		case '\n':
			return "", l.errorf("newline in string")
		case '\\':
			if l.pos >= len(l.src) {
				return "", l.errorf("unterminated escape")
			}
			if err := l.scanEscape(&b); err != nil {
				return "", err
			}
		default:
			b.WriteByte(c)
		}
	}
}

func (l *lexer) scanEscape(b *strings.Builder) error {
	c := l.advance()
	switch c {
	case 'n':
		b.WriteByte('\n')
	case 't':
		b.WriteByte('\t')
	case 'r':
		b.WriteByte('\r')
	case 'b':
		b.WriteByte('\b')
	case 'f':
		b.WriteByte('\f')
	case 'v':
		b.WriteByte('\v')
	case '0':
		b.WriteByte(0)
	case 'x', 'u':
		width := 2
		if c == 'u' {
			width = 4
		}
		if l.pos+width > len(l.src) {
			return l.errorf("short \\%c escape", c)
		}
		n, err := strconv.ParseUint(string(l.src[l.pos:l.pos+width]), 16, 32)
		if err != nil {
			return l.errorf("invalid \\%c escape", c)
		}
		for i := 0; i < width; i++ {
			l.advance()
		}
		var buf [utf8.UTFMax]byte
		b.Write(buf[:utf8.EncodeRune(buf[:], rune(n))])
	case '\n':
		// line continuation
	default:
		b.WriteByte(c)
	}
	return nil
}

func isNumberByte(c byte) bool {
	return (c >= '0' && c <= '9') || c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-'
}

func isIdentByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' || c == '$'
}
