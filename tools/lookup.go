package tools

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"os"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ritukeshbharali/jemjive-3.0/internal/catalog"
	"github.com/ritukeshbharali/jemjive-3.0/internal/docpage"
	"github.com/ritukeshbharali/jemjive-3.0/internal/indexing"
	"github.com/ritukeshbharali/jemjive-3.0/internal/searchdata"
)

// ErrNoPages is returned when no HTML pages are configured for a link.
var ErrNoPages = errors.New("no HTML pages available for this library")

// LookupSymbolInput defines input for lookup_symbol tool
type LookupSymbolInput struct {
	Name    string `json:"name" jsonschema:"Exact symbol name such as isWritable (case-insensitive), or a search key such as iswritable_3955"`
	Library string `json:"library,omitempty" jsonschema:"Only look in this library (optional)"`
}

// LookupSymbolOutput defines output for lookup_symbol tool
type LookupSymbolOutput struct {
	Name    string           `json:"name" yaml:"name"`
	Symbols []catalog.Symbol `json:"symbols" yaml:"symbols"`
	Links   int              `json:"links" yaml:"links"`
}

// GetSymbolDocsInput defines input for get_symbol_docs tool
type GetSymbolDocsInput struct {
	URL      string `json:"url,omitempty" jsonschema:"Link URL from search_symbols or lookup_symbol results (required unless name is given)"`
	Name     string `json:"name,omitempty" jsonschema:"Symbol name to document (required unless url is given)"`
	Library  string `json:"library,omitempty" jsonschema:"Library the URL or name belongs to (optional)"`
	Overload int    `json:"overload,omitempty" jsonschema:"Zero-based overload to document when looking up by name (optional, defaults to 0)"`
}

// GetSymbolDocsOutput defines output for get_symbol_docs tool
type GetSymbolDocsOutput struct {
	Library   string `json:"library,omitempty" yaml:"library,omitempty"`
	URL       string `json:"url" yaml:"url"`
	Source    string `json:"source" yaml:"source"`
	Overloads int    `json:"overloads,omitempty" yaml:"overloads,omitempty"`
	Title     string `json:"title" yaml:"title"`
	Anchor    string `json:"anchor,omitempty" yaml:"anchor,omitempty"`
	Prototype string `json:"prototype,omitempty" yaml:"prototype,omitempty"`
	Markdown  string `json:"markdown" yaml:"markdown"`
}

// ensureCatalog opens the catalog, building it first when this process has
// not initialized search yet.
func ensureCatalog(ctx context.Context) (*catalog.Store, error) {
	if indexMgr.current.Load() == nil {
		if err := InitializeSymbolSearch(ctx); err != nil {
			return nil, fmt.Errorf("failed to initialize symbol search: %w", err)
		}
	}
	return openCatalog()
}

// Lookup returns every entry named input.Name with all its links.
func Lookup(ctx context.Context, input LookupSymbolInput) (LookupSymbolOutput, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return LookupSymbolOutput{}, fmt.Errorf("name is required")
	}

	st, err := ensureCatalog(ctx)
	if err != nil {
		return LookupSymbolOutput{}, err
	}

	symbols, err := st.Lookup(ctx, name, input.Library)
	if err != nil {
		return LookupSymbolOutput{}, err
	}

	output := LookupSymbolOutput{Name: name, Symbols: symbols}
	for _, sym := range symbols {
		output.Links += len(sym.Links)
	}
	return output, nil
}

// LookupSymbol returns every overload of an exactly named symbol
func LookupSymbol(ctx context.Context, req *mcp.CallToolRequest, input LookupSymbolInput) (*mcp.CallToolResult, LookupSymbolOutput, error) {
	output, err := Lookup(ctx, input)
	if err != nil {
		return nil, LookupSymbolOutput{}, err
	}
	return nil, output, nil
}

// Docs extracts the documentation a link points at.
func Docs(ctx context.Context, input GetSymbolDocsInput) (GetSymbolDocsOutput, error) {
	output := GetSymbolDocsOutput{Library: input.Library, URL: input.URL}

	if output.URL == "" {
		if strings.TrimSpace(input.Name) == "" {
			return output, fmt.Errorf("url or name is required")
		}
		found, err := Lookup(ctx, LookupSymbolInput{Name: input.Name, Library: input.Library})
		if err != nil {
			return output, err
		}

		type located struct {
			library string
			link    searchdata.Link
		}
		var links []located
		for _, sym := range found.Symbols {
			for _, l := range sym.Links {
				links = append(links, located{library: sym.Library, link: l})
			}
		}
		if input.Overload < 0 || input.Overload >= len(links) {
			return output, fmt.Errorf("overload %d out of range, %s has %d documented locations", input.Overload, input.Name, len(links))
		}
		output.Library = links[input.Overload].library
		output.URL = links[input.Overload].link.URL
		output.Overloads = len(links)
	}

	page, anchor, source, err := readPage(ctx, output.Library, output.URL)
	if err != nil {
		return output, err
	}
	output.Source = source

	section, err := docpage.Extract(page, anchor)
	if err != nil {
		return output, fmt.Errorf("%s: %w", source, err)
	}
	output.Title = section.Title
	output.Anchor = section.Anchor
	output.Prototype = section.Prototype
	output.Markdown = section.Markdown
	return output, nil
}

// GetSymbolDocs returns the Markdown documentation of a symbol
func GetSymbolDocs(ctx context.Context, req *mcp.CallToolRequest, input GetSymbolDocsInput) (*mcp.CallToolResult, GetSymbolDocsOutput, error) {
	output, err := Docs(ctx, input)
	if err != nil {
		return nil, GetSymbolDocsOutput{}, err
	}
	return nil, output, nil
}

// readPage loads the page a link points at. Absolute links are fetched;
// relative ones are read below the library's HTML directory, or fetched from
// its base URL.
func readPage(ctx context.Context, library, link string) (page []byte, anchor, source string, err error) {
	if u, perr := url.Parse(link); perr == nil && (u.Scheme == "http" || u.Scheme == "https") {
		anchor = u.Fragment
		u.Fragment = ""
		body, _, err := fetcher.Get(ctx, u.String())
		if err != nil {
			return nil, "", "", err
		}
		return body, anchor, u.String(), nil
	}

	candidates := Libraries()
	if library != "" {
		lib, ok := findLibrary(library)
		if !ok {
			return nil, "", "", fmt.Errorf("unknown library %q", library)
		}
		candidates = []Library{lib}
	}

	for _, lib := range candidates {
		if lib.HTMLDir != "" {
			file, a, err := docpage.LocalPath(lib.HTMLDir, link)
			if err != nil {
				return nil, "", "", err
			}
			data, err := os.ReadFile(file)
			if err == nil {
				return data, a, file, nil
			}
			if !os.IsNotExist(err) || library != "" {
				return nil, "", "", fmt.Errorf("failed to read page: %w", err)
			}
			continue
		}
		if lib.BaseURL != "" && (library != "" || len(candidates) == 1) {
			return readPage(ctx, "", indexing.ResolveLink(lib.BaseURL, link))
		}
	}

	if library == "" {
		log.Printf("Warning: No library serves %s", link)
		return nil, "", "", fmt.Errorf("%w: pass the library of %s", ErrNoPages, link)
	}
	return nil, "", "", fmt.Errorf("%w: %s", ErrNoPages, library)
}
