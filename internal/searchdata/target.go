package searchdata

import (
	"path"
	"strings"
)

// Target is the decoded destination of a link.
type Target struct {
	Page         string `json:"page"`
	Anchor       string `json:"anchor,omitempty"`
	CompoundKind string `json:"compound_kind"`
	Compound     string `json:"compound"`
}

// compoundPrefixes maps Doxygen output file prefixes to compound kinds,
// longest match first.
var compoundPrefixes = []struct {
	prefix string
	kind   string
}{
	{"namespace", "namespace"},
	{"interface", "interface"},
	{"protocol", "protocol"},
	{"category", "category"},
	{"exception", "exception"},
	{"struct", "struct"},
	{"union", "union"},
	{"class", "class"},
	{"concept", "concept"},
	{"group__", "group"},
	{"dir_", "dir"},
	{"md_", "page"},
}

// Target decodes the page and anchor the link points at.
func (l Link) Target() Target {
	ref := l.URL
	var anchor string
	if i := strings.IndexByte(ref, '#'); i >= 0 {
		ref, anchor = ref[:i], ref[i+1:]
	}
	page := path.Base(ref)
	kind, compound := DecodePageName(page)
	return Target{
		Page:         page,
		Anchor:       anchor,
		CompoundKind: kind,
		Compound:     compound,
	}
}

// DecodePageName recovers the compound kind and name from a Doxygen output
// file name, e.g. "classjem_1_1gl_1_1Transform.html" -> ("class", "jem::gl::Transform").
func DecodePageName(page string) (kind, name string) {
	base := strings.TrimSuffix(path.Base(page), path.Ext(page))
	if base == "" {
		return "page", ""
	}
	for _, p := range compoundPrefixes {
		if strings.HasPrefix(base, p.prefix) && len(base) > len(p.prefix) {
			return p.kind, unescapeFileName(base[len(p.prefix):])
		}
	}
	if strings.Contains(base, "_8") {
		return "file", unescapeFileName(base)
	}
	return "page", unescapeFileName(base)
}

var fileNameEscapes = map[byte]byte{
	'_': '_',
	'1': ':',
	'2': '/',
	'3': '<',
	'4': '>',
	'5': '*',
	'6': '&',
	'7': '|',
	'8': '.',
	'9': '!',
}

var fileNameEscapes0 = map[byte]byte{
	'0': ',',
	'1': ' ',
	'2': '{',
	'3': '}',
	'4': '?',
	'5': '^',
	'6': '%',
	'7': '(',
	'8': ')',
	'9': '+',
	'a': '=',
	'b': '$',
	'c': '\\',
	'd': '@',
	'e': ']',
	'f': '[',
	'g': '#',
}

// unescapeFileName reverses Doxygen's escapeCharsInString. An underscore
// followed by a lower-case letter stands for the upper-case letter when
// CASE_SENSE_NAMES is off.
func unescapeFileName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '_' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		n := s[i+1]
		if n == '0' && i+2 < len(s) {
			if r, ok := fileNameEscapes0[s[i+2]]; ok {
				b.WriteByte(r)
				i += 2
				continue
			}
		}
		if r, ok := fileNameEscapes[n]; ok {
			b.WriteByte(r)
			i++
			continue
		}
		if n >= 'a' && n <= 'z' {
			b.WriteByte(n - 'a' + 'A')
			i++
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

// Symbol interprets the tooltip of a link for the given label. A tooltip
// holding a call signature ("jem::iarray(int n)") yields the qualified name
// and the signature; otherwise the tooltip is the enclosing scope.
func (l Link) Symbol(label string) (scope, qualified, signature string) {
	tip := strings.TrimSpace(l.Scope)
	if tip == "" {
		return "", label, ""
	}

	if i := strings.Index(tip, label+"("); i >= 0 && label != "" {
		qualified = tip[:i+len(label)]
		signature = tip
	} else if i := strings.IndexByte(tip, '('); i > 0 {
		qualified = strings.TrimSpace(tip[:i])
		signature = tip
	} else {
		if tip == label {
			return "", label, ""
		}
		return tip, tip + "::" + label, ""
	}

	if j := strings.LastIndex(qualified, "::"); j >= 0 {
		scope = qualified[:j]
	}
	return scope, qualified, signature
}
