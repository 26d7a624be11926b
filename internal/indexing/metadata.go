package indexing

import (
	"strings"
	"unicode"
)

// noiseWords are identifier fragments too common in C++ APIs to help ranking.
var noiseWords = map[string]bool{
	"get": true, "set": true, "is": true, "has": true, "to": true,
	"of": true, "the": true, "and": true, "or": true, "in": true,
	"on": true, "at": true, "by": true, "for": true, "a": true,
	"const": true, "int": true, "void": true, "bool": true, "char": true,
	"double": true, "float": true, "long": true, "operator": true,
}

// SplitIdentifier breaks a C++ identifier into lower-case words at camel-case
// humps, digits-to-letter changes and non-alphanumeric separators.
// Example: "readXMLFile_" -> ["read", "xml", "file"]
func SplitIdentifier(ident string) []string {
	var words []string
	var cur []rune
	flush := func() {
		if len(cur) > 0 {
			words = append(words, strings.ToLower(string(cur)))
			cur = cur[:0]
		}
	}

	runes := []rune(ident)
	for i, r := range runes {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			flush()
			continue
		}
		if i > 0 && len(cur) > 0 {
			prev := runes[i-1]
			switch {
			case unicode.IsUpper(r) && unicode.IsLower(prev):
				flush()
			case unicode.IsUpper(r) && unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1]):
				// "XMLFile": the F starts a new word
				flush()
			case unicode.IsDigit(r) != unicode.IsDigit(prev):
				flush()
			}
		}
		cur = append(cur, r)
	}
	flush()
	return words
}

// ExtractKeywords extracts key terms from a symbol name and its scope.
// Keywords keep their first-seen order and are limited to MaxKeywords.
func ExtractKeywords(name, scope string) []string {
	words := SplitIdentifier(name)
	for _, part := range strings.Split(scope, "::") {
		words = append(words, SplitIdentifier(part)...)
	}

	seen := make(map[string]bool)
	keywords := make([]string, 0, len(words))
	for _, word := range words {
		if len(word) < 2 || noiseWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
		if len(keywords) == MaxKeywords {
			break
		}
	}
	return keywords
}

// NamespaceOf returns the namespace part of a compound name. Namespaces are
// their own namespace; for classes and members the last component is dropped.
// Example: ("class", "jem::gl::Transform") -> "jem::gl"
func NamespaceOf(kind, compound string) string {
	if kind == "namespace" {
		return compound
	}
	if kind == "file" || kind == "page" || kind == "group" || kind == "dir" {
		return ""
	}
	if i := strings.LastIndex(compound, "::"); i >= 0 {
		return compound[:i]
	}
	return ""
}

// EnrichMetadata fills the derived fields of a document: lookup keys,
// namespace, breadcrumb and keywords.
func EnrichMetadata(doc *SymbolDoc) {
	doc.NameKey = strings.ToLower(doc.Name)
	doc.QualifiedKey = strings.ToLower(doc.Qualified)

	if doc.Namespace == "" {
		doc.Namespace = NamespaceOf(doc.CompoundKind, doc.Compound)
	}

	// Build breadcrumb (library > namespace > compound > name)
	var breadcrumb []string
	if doc.Library != "" {
		breadcrumb = append(breadcrumb, doc.Library)
	}
	if doc.Namespace != "" {
		breadcrumb = append(breadcrumb, doc.Namespace)
	}
	if doc.Compound != "" && doc.Compound != doc.Namespace {
		breadcrumb = append(breadcrumb, doc.Compound)
	}
	if doc.Name != "" && doc.Name != doc.Compound {
		breadcrumb = append(breadcrumb, doc.Name)
	}
	if len(breadcrumb) > 0 {
		doc.Breadcrumb = strings.Join(breadcrumb, " > ")
	}

	doc.Keywords = ExtractKeywords(doc.Name, doc.Scope)
}
