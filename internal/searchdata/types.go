// Package searchdata reads the searchData index files that Doxygen generates
// for the client-side search box of an HTML API reference.
//
// Every file holds one JavaScript array literal:
//
//	var searchData=
//	[
//	  ['iarray_3869',['iarray',['../namespacejem.html#a7ae8…',1,'jem::iarray(int n)'], …]],
//	  …
//	];
//
// Each record maps a search key to a display label and one link per documented
// overload or location.
package searchdata

import (
	"errors"
	"fmt"
)

// ErrSyntax is wrapped by every parse error.
var ErrSyntax = errors.New("searchdata: syntax error")

// Link is one documented location of a symbol.
type Link struct {
	// URL is the page path relative to the search directory, plus anchor.
	URL string `json:"url" yaml:"url"`
	// Internal is false for references resolved through a tag file.
	Internal bool `json:"internal" yaml:"internal"`
	// Scope is the tooltip text: the enclosing scope, or the full
	// signature when the key has several overloads.
	Scope string `json:"scope,omitempty" yaml:"scope,omitempty"`
}

// Entry is one search index record.
type Entry struct {
	Key   string `json:"key" yaml:"key"`
	Label string `json:"label" yaml:"label"`
	Links []Link `json:"links" yaml:"links"`
}

// File is a parsed searchData file.
type File struct {
	Name     string  `json:"name" yaml:"name"`
	Category string  `json:"category" yaml:"category"`
	Part     int     `json:"part" yaml:"part"`
	Entries  []Entry `json:"entries" yaml:"entries"`
}

// LinkCount returns the number of links over all entries.
func (f *File) LinkCount() int {
	n := 0
	for _, e := range f.Entries {
		n += len(e.Links)
	}
	return n
}

// SyntaxError reports where a file stopped making sense.
type SyntaxError struct {
	Line int
	Col  int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("searchdata: line %d, column %d: %s", e.Line, e.Col, e.Msg)
}

func (e *SyntaxError) Unwrap() error {
	return ErrSyntax
}
