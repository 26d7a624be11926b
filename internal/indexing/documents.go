package indexing

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/ritukeshbharali/jemjive-3.0/internal/searchdata"
)

// BuildDocuments turns parsed search files into index documents, one per link.
// When baseURL is set, relative link URLs are resolved against the search
// directory below it so results carry browsable addresses.
func BuildDocuments(library, baseURL string, files []*searchdata.File) []SymbolDoc {
	searchBase := searchDirURL(baseURL)

	var docs []SymbolDoc
	for _, f := range files {
		for pos, entry := range f.Entries {
			for n, link := range entry.Links {
				scope, qualified, signature := link.Symbol(entry.Label)
				target := link.Target()

				doc := SymbolDoc{
					ID:           DocumentID(library, f.Name, pos, entry.Key, n),
					Library:      library,
					Category:     f.Category,
					File:         f.Name,
					Key:          entry.Key,
					Name:         entry.Label,
					Qualified:    qualified,
					Scope:        scope,
					Signature:    signature,
					URL:          resolveURL(searchBase, link.URL),
					Page:         target.Page,
					Anchor:       target.Anchor,
					Compound:     target.Compound,
					CompoundKind: target.CompoundKind,
					Internal:     link.Internal,
					Overload:     n,
				}
				EnrichMetadata(&doc)
				docs = append(docs, doc)
			}
		}
	}
	return docs
}

// DocumentID builds the identifier of the n-th link of the entry at pos in
// its file. The position keeps entries that share a key apart.
// Example: ("jem", "functions_8.js", 0, "iarray_3869", 1) -> "jem/functions_8.js/0/iarray_3869#1"
func DocumentID(library, file string, pos int, key string, n int) string {
	return fmt.Sprintf("%s/%s/%d/%s#%d", library, file, pos, key, n)
}

func searchDirURL(baseURL string) *url.URL {
	if baseURL == "" {
		return nil
	}
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/search/")
	if err != nil {
		return nil
	}
	return u
}

func resolveURL(base *url.URL, ref string) string {
	if base == nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(r).String()
}

// ResolveLink returns the address of a search link for a build published at
// baseURL. Links are relative to the search directory of that build.
func ResolveLink(baseURL, ref string) string {
	return resolveURL(searchDirURL(baseURL), ref)
}
