package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ritukeshbharali/jemjive-3.0/internal/catalog"
)

const uriScheme = "jemdoc://"

// ListLibrariesInput defines input for list_libraries tool
type ListLibrariesInput struct {
	// No input needed - returns every library
}

// LibrarySummary combines where a library comes from with what is stored for it.
type LibrarySummary struct {
	Name        string    `json:"name" yaml:"name"`
	Origin      string    `json:"origin" yaml:"origin"`
	BaseURL     string    `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	HTMLDir     string    `json:"html_dir,omitempty" yaml:"html_dir,omitempty"`
	Embedded    bool      `json:"embedded" yaml:"embedded"`
	Watch       bool      `json:"watch" yaml:"watch"`
	Indexed     bool      `json:"indexed" yaml:"indexed"`
	Files       int       `json:"files" yaml:"files"`
	Entries     int       `json:"entries" yaml:"entries"`
	Links       int       `json:"links" yaml:"links"`
	Fingerprint string    `json:"fingerprint,omitempty" yaml:"fingerprint,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

// ListLibrariesOutput defines output for list_libraries tool
type ListLibrariesOutput struct {
	Libraries []LibrarySummary `json:"libraries" yaml:"libraries"`
	Count     int              `json:"count" yaml:"count"`
	Totals    catalog.Stats    `json:"totals" yaml:"totals"`
}

// Summaries lists every library with its stored snapshot counts.
func Summaries(ctx context.Context) (ListLibrariesOutput, error) {
	st, err := ensureCatalog(ctx)
	if err != nil {
		return ListLibrariesOutput{}, err
	}
	snapshots, err := st.Snapshots(ctx)
	if err != nil {
		return ListLibrariesOutput{}, err
	}
	stats, err := st.Stats(ctx)
	if err != nil {
		return ListLibrariesOutput{}, err
	}

	byName := make(map[string]catalog.Snapshot, len(snapshots))
	for _, snap := range snapshots {
		byName[snap.Library] = snap
	}

	summaries := make([]LibrarySummary, 0, len(snapshots))
	for _, lib := range Libraries() {
		summary := LibrarySummary{
			Name:     lib.Name,
			Origin:   lib.Origin,
			BaseURL:  lib.BaseURL,
			HTMLDir:  lib.HTMLDir,
			Embedded: lib.Embedded,
			Watch:    lib.Watch,
		}
		if snap, ok := byName[lib.Name]; ok {
			summary.Indexed = true
			summary.Files = snap.Files
			summary.Entries = snap.Entries
			summary.Links = snap.Links
			summary.Fingerprint = snap.Fingerprint
			summary.UpdatedAt = snap.CreatedAt
		}
		summaries = append(summaries, summary)
	}

	return ListLibrariesOutput{
		Libraries: summaries,
		Count:     len(summaries),
		Totals:    stats,
	}, nil
}

// ListLibraries returns every library with its indexed counts
func ListLibraries(ctx context.Context, req *mcp.CallToolRequest, input ListLibrariesInput) (*mcp.CallToolResult, ListLibrariesOutput, error) {
	output, err := Summaries(ctx)
	if err != nil {
		return nil, ListLibrariesOutput{}, fmt.Errorf("failed to list libraries: %w", err)
	}
	return nil, output, nil
}

// RegisterLibraryTools registers list_libraries and the catalog resources
func RegisterLibraryTools(server *mcp.Server) error {
	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "list_libraries",
			Description: "List the documented libraries (such as jem and jive) with where their search data comes from and how many entries and links are indexed.",
		},
		ListLibraries,
	)

	server.AddResource(&mcp.Resource{
		URI:         uriScheme + "libraries",
		Name:        "libraries",
		Description: "Documented libraries and their indexed counts",
		MIMEType:    "application/json",
	}, handleLibrariesResource)

	server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "symbols/{name}",
		Name:        "symbol",
		Description: "Every documented overload of a symbol, by exact name",
		MIMEType:    "application/json",
	}, handleSymbolResource)

	return nil
}

func handleLibrariesResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	output, err := Summaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing libraries: %w", err)
	}
	return jsonResource(req.Params.URI, output)
}

func handleSymbolResource(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
	name := extractSymbolName(req.Params.URI)
	if name == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	output, err := Lookup(ctx, LookupSymbolInput{Name: name})
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up symbol: %w", err)
	}
	return jsonResource(req.Params.URI, output)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractSymbolName extracts the name from a URI like jemdoc://symbols/{name}.
// Operator names arrive percent-encoded.
func extractSymbolName(uri string) string {
	const prefix = uriScheme + "symbols/"
	if !strings.HasPrefix(uri, prefix) {
		return ""
	}
	name, err := url.PathUnescape(strings.TrimPrefix(uri, prefix))
	if err != nil {
		return ""
	}
	return name
}
