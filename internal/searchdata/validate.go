package searchdata

import (
	"fmt"
	"strings"
)

// Issue severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue codes reported by Validate.
const (
	CodeDuplicateKey     = "duplicate-key"
	CodeNoLinks          = "no-links"
	CodeEmptyKey         = "empty-key"
	CodeEmptyLabel       = "empty-label"
	CodeEmptyURL         = "empty-url"
	CodeKeyFormat        = "key-format"
	CodeKeyLabelMismatch = "key-label-mismatch"
	CodeUnorderedKeys    = "unordered-keys"
	CodeDuplicateLink    = "duplicate-link"

	// CodeSyntax marks a file that could not be parsed at all.
	CodeSyntax = "syntax"
)

// Issue is one finding of Validate.
type Issue struct {
	Severity string `json:"severity" yaml:"severity"`
	Code     string `json:"code" yaml:"code"`
	File     string `json:"file,omitempty" yaml:"file,omitempty"`
	Key      string `json:"key,omitempty" yaml:"key,omitempty"`
	Message  string `json:"message" yaml:"message"`
}

func (i Issue) String() string {
	var b strings.Builder
	b.WriteString(i.Severity)
	if i.File != "" {
		b.WriteString(" ")
		b.WriteString(i.File)
	}
	if i.Key != "" {
		fmt.Fprintf(&b, " [%s]", i.Key)
	}
	fmt.Fprintf(&b, " %s: %s", i.Code, i.Message)
	return b.String()
}

// Validate checks the structural invariants of a generated file. Keys must
// be unique within the file and every entry needs at least one link; the
// remaining checks are reported as warnings.
func (f *File) Validate() []Issue {
	var issues []Issue
	add := func(severity, code, key, format string, args ...any) {
		issues = append(issues, Issue{
			Severity: severity,
			Code:     code,
			File:     f.Name,
			Key:      key,
			Message:  fmt.Sprintf(format, args...),
		})
	}

	seen := make(map[string]int, len(f.Entries))
	prevBase := ""
	for i, e := range f.Entries {
		if e.Key == "" {
			add(SeverityError, CodeEmptyKey, "", "record %d has an empty key", i)
		} else if first, dup := seen[e.Key]; dup {
			add(SeverityError, CodeDuplicateKey, e.Key, "key already used by record %d", first)
		} else {
			seen[e.Key] = i
		}

		if strings.TrimSpace(e.Label) == "" {
			add(SeverityError, CodeEmptyLabel, e.Key, "record %d has an empty label", i)
		}
		if len(e.Links) == 0 {
			add(SeverityError, CodeNoLinks, e.Key, "entry %q has no links", e.Label)
		}

		urls := make(map[string]bool, len(e.Links))
		for j, l := range e.Links {
			if l.URL == "" {
				add(SeverityError, CodeEmptyURL, e.Key, "link %d has an empty URL", j)
				continue
			}
			if urls[l.URL] {
				add(SeverityWarning, CodeDuplicateLink, e.Key, "link %s listed twice", l.URL)
			}
			urls[l.URL] = true
		}

		if e.Key == "" {
			continue
		}
		base, _, ok := SplitKey(e.Key)
		if !ok {
			add(SeverityWarning, CodeKeyFormat, e.Key, "key has no _<serial> suffix")
			base = e.Key
		}
		if e.Label != "" && base != EncodeKey(e.Label) {
			add(SeverityWarning, CodeKeyLabelMismatch, e.Key, "key does not encode label %q (want %q)", e.Label, EncodeKey(e.Label))
		}
		if base < prevBase {
			add(SeverityWarning, CodeUnorderedKeys, e.Key, "key sorts before preceding key base %q", prevBase)
		}
		prevBase = base
	}
	return issues
}

// HasErrors reports whether any issue has error severity.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}
