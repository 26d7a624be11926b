// Package diff compares the symbol tables of two documentation builds.
// Entries are matched by label because the numeric key suffixes are
// reassigned on every build.
package diff

import (
	"fmt"
	"sort"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"

	"github.com/ritukeshbharali/jemjive-3.0/internal/searchdata"
)

// Change describes one label whose links differ between builds.
type Change struct {
	Label        string            `json:"label" yaml:"label"`
	AddedLinks   []searchdata.Link `json:"added_links,omitempty" yaml:"added_links,omitempty"`
	RemovedLinks []searchdata.Link `json:"removed_links,omitempty" yaml:"removed_links,omitempty"`
}

// Report is the result of Compare. All lists are sorted by label.
type Report struct {
	Added   []string `json:"added" yaml:"added"`
	Removed []string `json:"removed" yaml:"removed"`
	Changed []Change `json:"changed" yaml:"changed"`
}

// Empty reports whether both builds hold the same symbols.
func (r Report) Empty() bool {
	return len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Changed) == 0
}

// Summary returns a one-line count of the differences.
func (r Report) Summary() string {
	return fmt.Sprintf("%d added, %d removed, %d changed", len(r.Added), len(r.Removed), len(r.Changed))
}

// Compare matches the entries of two builds by label.
func Compare(oldFiles, newFiles []*searchdata.File) Report {
	before := collect(oldFiles)
	after := collect(newFiles)

	report := Report{Added: []string{}, Removed: []string{}, Changed: []Change{}}
	for label, links := range after {
		prev, ok := before[label]
		if !ok {
			report.Added = append(report.Added, label)
			continue
		}
		if c := changeOf(label, prev, links); c != nil {
			report.Changed = append(report.Changed, *c)
		}
	}
	for label := range before {
		if _, ok := after[label]; !ok {
			report.Removed = append(report.Removed, label)
		}
	}

	sort.Strings(report.Added)
	sort.Strings(report.Removed)
	sort.Slice(report.Changed, func(i, j int) bool {
		return report.Changed[i].Label < report.Changed[j].Label
	})
	return report
}

// collect merges the links of every entry per label, dropping repeats such
// as the same symbol listed under "all" and "functions".
func collect(files []*searchdata.File) map[string][]searchdata.Link {
	out := make(map[string][]searchdata.Link)
	seen := make(map[string]map[searchdata.Link]bool)
	for _, f := range files {
		for _, e := range f.Entries {
			if seen[e.Label] == nil {
				seen[e.Label] = make(map[searchdata.Link]bool)
				out[e.Label] = []searchdata.Link{}
			}
			for _, l := range e.Links {
				if seen[e.Label][l] {
					continue
				}
				seen[e.Label][l] = true
				out[e.Label] = append(out[e.Label], l)
			}
		}
	}
	return out
}

func changeOf(label string, before, after []searchdata.Link) *Change {
	inBefore := make(map[searchdata.Link]bool, len(before))
	for _, l := range before {
		inBefore[l] = true
	}
	inAfter := make(map[searchdata.Link]bool, len(after))
	for _, l := range after {
		inAfter[l] = true
	}

	c := &Change{Label: label}
	for _, l := range after {
		if !inBefore[l] {
			c.AddedLinks = append(c.AddedLinks, l)
		}
	}
	for _, l := range before {
		if !inAfter[l] {
			c.RemovedLinks = append(c.RemovedLinks, l)
		}
	}
	if len(c.AddedLinks) == 0 && len(c.RemovedLinks) == 0 {
		return nil
	}
	return c
}

// Listing renders files as one sorted "label<TAB>url<TAB>tooltip" line per
// link, the normal form used for unified diffs.
func Listing(files []*searchdata.File) string {
	entries := collect(files)
	labels := make([]string, 0, len(entries))
	for label := range entries {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	var b strings.Builder
	for _, label := range labels {
		links := entries[label]
		if len(links) == 0 {
			fmt.Fprintf(&b, "%s\t-\t-\n", label)
			continue
		}
		for _, l := range links {
			fmt.Fprintf(&b, "%s\t%s\t%s\n", label, l.URL, l.Scope)
		}
	}
	return b.String()
}

// Unified produces a unified diff between the listings of two builds.
// Identical builds give an empty string.
func Unified(oldName, newName string, oldFiles, newFiles []*searchdata.File) (string, error) {
	u := difflib.UnifiedDiff{
		A:        difflib.SplitLines(Listing(oldFiles)),
		B:        difflib.SplitLines(Listing(newFiles)),
		FromFile: oldName,
		ToFile:   newName,
		Context:  3,
	}
	s, err := difflib.GetUnifiedDiffString(u)
	if err != nil {
		return "", fmt.Errorf("failed to render diff: %w", err)
	}
	return s, nil
}
