package tools

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ritukeshbharali/jemjive-3.0/internal/catalog"
	"github.com/ritukeshbharali/jemjive-3.0/internal/config"
	"github.com/ritukeshbharali/jemjive-3.0/internal/indexing"
	"github.com/ritukeshbharali/jemjive-3.0/internal/searchdata"
	"github.com/ritukeshbharali/jemjive-3.0/internal/sources"
)

// embeddedOrigin is the snapshot origin of libraries bundled in the binary.
const embeddedOrigin = "embedded"

var (
	dataDir string // Data directory for the catalog and search index
	cfg     = config.Default()
	fetcher = newFetcher(cfg)

	storeMu sync.Mutex
	store   *catalog.Store
)

// Setup points the tools at a data directory and configuration. Call it
// before registering tools or initializing search.
func Setup(dir string, c *config.Config) {
	if c == nil {
		c = config.Default()
	}
	dataDir = dir
	cfg = c
	fetcher = newFetcher(c)
	if indexMgr == nil {
		indexMgr = &indexHolder{}
	}
}

func newFetcher(c *config.Config) *sources.Fetcher {
	return sources.NewFetcher(c.Remote.RequestsPerSecond, c.Remote.Timeout.Duration, c.Remote.UserAgent)
}

// Library describes where the search files and pages of one library come from.
type Library struct {
	Name     string `json:"name" yaml:"name"`
	Origin   string `json:"origin" yaml:"origin"`
	BaseURL  string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	HTMLDir  string `json:"html_dir,omitempty" yaml:"html_dir,omitempty"`
	Embedded bool   `json:"embedded" yaml:"embedded"`
	Watch    bool   `json:"watch" yaml:"watch"`

	source config.Source
}

// Libraries lists the configured sources followed by the bundled libraries
// no source overrides. Each group is ordered by name.
func Libraries() []Library {
	var libs []Library
	seen := make(map[string]bool)
	for _, src := range cfg.Sources {
		lib := Library{
			Name:    src.Name,
			BaseURL: src.BaseURL,
			HTMLDir: src.HTMLDir,
			Watch:   src.Watch,
			source:  src,
		}
		if src.Remote() {
			lib.Origin = src.BaseURL
		} else {
			lib.Origin = src.SearchDir
			if lib.HTMLDir == "" && src.SearchDir != "" {
				lib.HTMLDir = filepath.Dir(filepath.Clean(src.SearchDir))
			}
		}
		libs = append(libs, lib)
		seen[src.Name] = true
	}
	sort.Slice(libs, func(i, j int) bool { return libs[i].Name < libs[j].Name })
	configured := len(libs)

	entries, err := defaultDataProvider.ReadDir(embeddedRoot)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Warning: Could not list embedded search data: %v", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() || seen[entry.Name()] {
			continue
		}
		libs = append(libs, Library{
			Name:     entry.Name(),
			Origin:   embeddedOrigin,
			Embedded: true,
		})
	}

	bundled := libs[configured:]
	sort.Slice(bundled, func(i, j int) bool { return bundled[i].Name < bundled[j].Name })
	return libs
}

func findLibrary(name string) (Library, bool) {
	for _, lib := range Libraries() {
		if lib.Name == name {
			return lib, true
		}
	}
	return Library{}, false
}

// WatchedDirs returns the search directories of local sources with watch enabled.
func WatchedDirs() []string {
	var dirs []string
	for _, src := range cfg.Sources {
		if src.Watch && !src.Remote() && src.SearchDir != "" {
			dirs = append(dirs, src.SearchDir)
		}
	}
	return dirs
}

func loadLibrary(ctx context.Context, lib Library) (*sources.Result, error) {
	if !lib.Embedded {
		return sources.Load(ctx, lib.source, fetcher)
	}
	files, raw, err := sources.LoadDir(defaultDataProvider, path.Join(embeddedRoot, lib.Name), nil)
	if err != nil {
		return nil, fmt.Errorf("embedded library %s: %w", lib.Name, err)
	}
	return &sources.Result{
		Library: lib.Name,
		Origin:  embeddedOrigin,
		Files:   files,
		Raw:     raw,
	}, nil
}

func openCatalog() (*catalog.Store, error) {
	storeMu.Lock()
	defer storeMu.Unlock()

	if store != nil {
		return store, nil
	}
	s, err := catalog.Open(filepath.Join(dataDir, config.CatalogFile))
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	store = s
	return s, nil
}

// SymbolResult is a search hit with its score.
type SymbolResult struct {
	Symbol indexing.SymbolDoc `json:"symbol" yaml:"symbol"`
	Score  float64            `json:"score" yaml:"score"`
}

// SearchSymbolsInput defines input for search_symbols tool
type SearchSymbolsInput struct {
	Query      string `json:"query" jsonschema:"Symbol name, qualified name (jem::io::FileInfo) or words from a signature"`
	Library    string `json:"library,omitempty" jsonschema:"Only return symbols of this library, e.g. jem or jive (optional)"`
	Category   string `json:"category,omitempty" jsonschema:"Only return symbols from this search category, e.g. functions or classes (optional)"`
	MaxResults int    `json:"max_results,omitempty" jsonschema:"Maximum number of results (optional, defaults to 10, at most 50)"`
}

// SearchSymbolsOutput defines output for search_symbols tool
type SearchSymbolsOutput struct {
	Results   []SymbolResult `json:"results" yaml:"results"`
	Query     string         `json:"query" yaml:"query"`
	TotalHits int            `json:"total_hits" yaml:"total_hits"`
}

// RefreshSymbolIndexInput defines input for refresh_symbol_index tool
type RefreshSymbolIndexInput struct {
	Force bool `json:"force,omitempty" jsonschema:"Re-ingest every library even when its search files are unchanged (optional, defaults to false)"`
}

// RefreshSymbolIndexOutput defines output for refresh_symbol_index tool
type RefreshSymbolIndexOutput struct {
	Updated          bool              `json:"updated" yaml:"updated"`
	Changed          []string          `json:"changed,omitempty" yaml:"changed,omitempty"`
	Unchanged        []string          `json:"unchanged,omitempty" yaml:"unchanged,omitempty"`
	Removed          []string          `json:"removed,omitempty" yaml:"removed,omitempty"`
	Failed           map[string]string `json:"failed,omitempty" yaml:"failed,omitempty"`
	DocumentsIndexed int               `json:"documents_indexed" yaml:"documents_indexed"`
	LastUpdate       time.Time         `json:"last_update" yaml:"last_update"`
	Message          string            `json:"message" yaml:"message"`
}

// indexHolder manages concurrent access to the bleve symbol index
type indexHolder struct {
	// current holds the active index pointer (atomic access for lock-free reads)
	current atomic.Pointer[Index]

	// refreshMu serializes rebuilds; searches never take it
	refreshMu sync.Mutex

	// wg tracks in-flight searches so a replaced index is closed only after them
	wg sync.WaitGroup
}

var (
	indexMgr = &indexHolder{}
)

// InitializeSymbolSearch opens the local index when its schema version is
// current, otherwise builds catalog and index from every library.
func InitializeSymbolSearch(ctx context.Context) error {
	startTime := time.Now()
	log.Printf("Initializing symbol search...")

	if indexMgr == nil {
		indexMgr = &indexHolder{}
	}

	indexPath := filepath.Join(dataDir, config.IndexDir)

	log.Printf("Acquiring index lock...")
	lockStart := time.Now()
	if err := dataDirLock().acquire(ctx); err != nil {
		return fmt.Errorf("failed to acquire index lock: %w", err)
	}
	log.Printf("Lock acquired in %v", time.Since(lockStart).Round(time.Millisecond))

	st, err := openCatalog()
	if err != nil {
		return err
	}
	snapshots, err := st.Snapshots(ctx)
	if err != nil {
		return err
	}

	if _, err := os.Stat(indexPath); err == nil && len(snapshots) > 0 {
		if currentVersion := getIndexVersion(); currentVersion != indexing.IndexSchemaVersion {
			log.Printf("Index schema version mismatch (have: v%d, want: v%d), rebuilding...",
				currentVersion, indexing.IndexSchemaVersion)
			removeIndex()
		} else {
			index, err := openIndex(indexPath)
			if err == nil {
				indexMgr.current.Store(&index)
				count, _ := index.DocCount()
				log.Printf("✓ Symbol search initialized (%d docs, %d libraries, index v%d) in %v",
					count, len(snapshots), indexing.IndexSchemaVersion, time.Since(startTime).Round(time.Millisecond))
				return nil
			}

			log.Printf("Warning: Local index corrupted (%v), removing...", err)
			removeIndex()
		}
	}

	log.Printf("No usable local index, building from search data...")
	report, err := rebuildIndex(ctx, true)
	if err != nil {
		return fmt.Errorf("failed to build symbol index: %w", err)
	}
	log.Printf("✓ Symbol search initialized (%d docs) in %v",
		report.DocumentsIndexed, time.Since(startTime).Round(time.Millisecond))
	return nil
}

func removeIndex() {
	os.RemoveAll(filepath.Join(dataDir, config.IndexDir))
	os.Remove(filepath.Join(dataDir, config.IndexVersionFile))
}

// getIndexVersion reads the current index schema version from disk
func getIndexVersion() int {
	data, err := os.ReadFile(filepath.Join(dataDir, config.IndexVersionFile))
	if err != nil {
		return 0
	}

	version := 0
	fmt.Sscanf(string(data), "%d", &version)
	return version
}

// writeIndexVersion writes the current index schema version to disk
func writeIndexVersion() error {
	versionPath := filepath.Join(dataDir, config.IndexVersionFile)
	os.MkdirAll(filepath.Dir(versionPath), 0755)

	content := fmt.Sprintf("%d", indexing.IndexSchemaVersion)
	return os.WriteFile(versionPath, []byte(content), 0644)
}

// rebuildIndex reloads every library, replaces the catalog snapshot of those
// whose files changed (all of them when force is set), and rebuilds the index
// from the catalog. A library that fails to load keeps its previous snapshot.
func rebuildIndex(ctx context.Context, force bool) (RefreshSymbolIndexOutput, error) {
	indexMgr.refreshMu.Lock()
	defer indexMgr.refreshMu.Unlock()

	startTime := time.Now()
	out := RefreshSymbolIndexOutput{}

	if err := dataDirLock().acquire(ctx); err != nil {
		return out, fmt.Errorf("failed to acquire lock for refresh: %w", err)
	}
	// Lock is released by CloseSymbolSearch() when the process exits

	st, err := openCatalog()
	if err != nil {
		return out, err
	}

	libs := Libraries()
	known := make(map[string]Library, len(libs))
	for _, lib := range libs {
		known[lib.Name] = lib

		res, err := loadLibrary(ctx, lib)
		if err != nil {
			if ctx.Err() != nil {
				return out, ctx.Err()
			}
			log.Printf("Warning: Could not load library %s: %v", lib.Name, err)
			if out.Failed == nil {
				out.Failed = make(map[string]string)
			}
			out.Failed[lib.Name] = err.Error()
			continue
		}

		fingerprint := catalog.Fingerprint(res.Raw)
		stored, err := st.StoredFingerprint(ctx, lib.Name)
		if err != nil {
			return out, err
		}
		if !force && stored == fingerprint {
			out.Unchanged = append(out.Unchanged, lib.Name)
			continue
		}

		for _, f := range res.Files {
			if issues := f.Validate(); searchdata.HasErrors(issues) {
				log.Printf("Warning: %s/%s breaks search data invariants (%d issues), ingesting anyway", lib.Name, f.Name, len(issues))
			}
		}

		snap, err := st.ReplaceLibrary(ctx, lib.Name, res.Origin, fingerprint, res.Files)
		if err != nil {
			return out, fmt.Errorf("failed to store library %s: %w", lib.Name, err)
		}
		log.Printf("✓ Library %s: %d files, %d entries, %d links", snap.Library, snap.Files, snap.Entries, snap.Links)
		out.Changed = append(out.Changed, lib.Name)
	}

	snapshots, err := st.Snapshots(ctx)
	if err != nil {
		return out, err
	}
	for _, snap := range snapshots {
		if _, ok := known[snap.Library]; ok {
			continue
		}
		if err := st.DeleteLibrary(ctx, snap.Library); err != nil {
			return out, err
		}
		log.Printf("Library %s is no longer configured, removed", snap.Library)
		out.Removed = append(out.Removed, snap.Library)
	}

	if !force && len(out.Changed) == 0 && len(out.Removed) == 0 &&
		indexMgr.current.Load() != nil && getIndexVersion() == indexing.IndexSchemaVersion {
		out.Message = "Search data unchanged, index kept"
		log.Printf("%s", out.Message)
		return out, nil
	}

	var docs []indexing.SymbolDoc
	for _, lib := range libs {
		files, err := st.Files(ctx, lib.Name)
		if errors.Is(err, catalog.ErrNotFound) {
			continue
		}
		if err != nil {
			return out, err
		}
		docs = append(docs, indexing.BuildDocuments(lib.Name, lib.BaseURL, files)...)
	}

	if err := indexSymbols(docs); err != nil {
		return out, fmt.Errorf("indexing failed: %w", err)
	}

	out.Updated = true
	out.DocumentsIndexed = len(docs)
	out.LastUpdate = time.Now()
	out.Message = fmt.Sprintf("Symbol index rebuilt, %d documents indexed", len(docs))
	log.Printf("✓ Symbol refresh completed in %v", time.Since(startTime).Round(time.Millisecond))
	return out, nil
}

// indexSymbols builds a fresh index next to the live one, renames it into
// place and swaps the pointer searches read from.
func indexSymbols(docs []indexing.SymbolDoc) error {
	startTime := time.Now()
	indexPath := filepath.Join(dataDir, config.IndexDir)
	tempIndexPath := indexPath + ".tmp"

	// Leftover from a crashed build
	os.RemoveAll(tempIndexPath)

	log.Printf("Creating new index with %d documents in temp location...", len(docs))
	if err := indexing.BuildIndex(tempIndexPath, docs); err != nil {
		os.RemoveAll(tempIndexPath)
		return err
	}
	log.Printf("Indexed %d documents in %v", len(docs), time.Since(startTime).Round(time.Millisecond))

	if err := os.RemoveAll(indexPath); err != nil && !os.IsNotExist(err) {
		os.RemoveAll(tempIndexPath)
		return fmt.Errorf("failed to remove old index: %w", err)
	}
	if err := os.Rename(tempIndexPath, indexPath); err != nil {
		os.RemoveAll(tempIndexPath)
		return fmt.Errorf("failed to rename temp index: %w", err)
	}

	finalIndex, err := openIndex(indexPath)
	if err != nil {
		return err
	}

	oldIndexPtr := indexMgr.current.Swap(&finalIndex)

	go func(oldPtr *Index) {
		if oldPtr == nil {
			return
		}

		waitStart := time.Now()
		indexMgr.wg.Wait()

		old := *oldPtr
		if err := old.Close(); err != nil {
			log.Printf("Warning: Error closing old index: %v", err)
		} else {
			log.Printf("✓ Old index closed (waited %v for searches)", time.Since(waitStart).Round(time.Millisecond))
		}
	}(oldIndexPtr)

	log.Printf("✓ Index swap completed in %v, searches now using new index",
		time.Since(startTime).Round(time.Millisecond))

	if err := writeIndexVersion(); err != nil {
		log.Printf("Warning: Failed to write index version: %v", err)
	}
	return nil
}

// Search runs a ranked symbol query against the current index.
func Search(ctx context.Context, input SearchSymbolsInput) (SearchSymbolsOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return SearchSymbolsOutput{}, fmt.Errorf("query is required")
	}

	// Track in-flight searches for graceful cleanup (MUST be before Load)
	indexMgr.wg.Add(1)
	defer indexMgr.wg.Done()

	indexPtr := indexMgr.current.Load()
	if indexPtr == nil {
		log.Printf("Symbol index not initialized, initializing now...")
		if err := InitializeSymbolSearch(ctx); err != nil {
			return SearchSymbolsOutput{}, fmt.Errorf("failed to initialize symbol index: %w", err)
		}
		indexPtr = indexMgr.current.Load()
		if indexPtr == nil {
			return SearchSymbolsOutput{}, fmt.Errorf("index still nil after initialization")
		}
	}
	index := *indexPtr

	maxResults := input.MaxResults
	if maxResults <= 0 {
		maxResults = cfg.Search.DefaultResults
	}
	if maxResults > cfg.Search.MaxResults {
		maxResults = cfg.Search.MaxResults
	}

	req := bleve.NewSearchRequestOptions(indexing.NewSymbolQuery(input.Query, input.Library, input.Category), maxResults, 0, false)
	req.Fields = []string{"*"}

	searchResults, err := index.Search(req)
	if err != nil {
		return SearchSymbolsOutput{}, fmt.Errorf("search failed: %w", err)
	}

	results := make([]SymbolResult, 0, len(searchResults.Hits))
	for _, hit := range searchResults.Hits {
		results = append(results, SymbolResult{
			Symbol: indexing.DocFromHit(hit),
			Score:  hit.Score,
		})
	}

	return SearchSymbolsOutput{
		Results:   results,
		Query:     input.Query,
		TotalHits: int(searchResults.Total),
	}, nil
}

// SearchSymbols searches the symbol index
func SearchSymbols(ctx context.Context, req *mcp.CallToolRequest, input SearchSymbolsInput) (*mcp.CallToolResult, SearchSymbolsOutput, error) {
	output, err := Search(ctx, input)
	if err != nil {
		return nil, SearchSymbolsOutput{}, err
	}
	return nil, output, nil
}

// Refresh reloads the libraries and rebuilds what changed.
func Refresh(ctx context.Context, force bool) (RefreshSymbolIndexOutput, error) {
	if indexMgr == nil {
		indexMgr = &indexHolder{}
	}
	return rebuildIndex(ctx, force)
}

// RefreshSymbolIndex re-ingests changed libraries and swaps in a new index
func RefreshSymbolIndex(ctx context.Context, req *mcp.CallToolRequest, input RefreshSymbolIndexInput) (*mcp.CallToolResult, RefreshSymbolIndexOutput, error) {
	output, err := Refresh(ctx, input.Force)
	if err != nil {
		return nil, output, fmt.Errorf("refresh failed: %w", err)
	}
	return nil, output, nil
}

// RegisterSymbolTools initializes symbol search and registers its tools
func RegisterSymbolTools(server *mcp.Server) error {
	if err := InitializeSymbolSearch(context.Background()); err != nil {
		log.Printf("Warning: Symbol search initialization failed: %v", err)
		log.Printf("Symbol search will attempt to initialize on first use")
	}

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "search_symbols",
			Description: "Search the jem/jive API reference for classes, functions and members by name, qualified name or signature. Returns ranked matches with the page URL of each overload.",
		},
		SearchSymbols,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "lookup_symbol",
			Description: "Look up a symbol by its exact name (case-insensitive) or search key and return every documented overload in index order.",
		},
		LookupSymbol,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "get_symbol_docs",
			Description: "Return the documentation of a symbol as Markdown, extracted from its generated HTML page. Accepts a link URL or a symbol name.",
		},
		GetSymbolDocs,
	)

	mcp.AddTool(server,
		&mcp.Tool{
			Name:        "refresh_symbol_index",
			Description: "Reload the search data of every library and rebuild the symbol index when it changed",
		},
		RefreshSymbolIndex,
	)

	return nil
}

// CloseSymbolSearch closes the index and catalog and releases the lock
func CloseSymbolSearch() error {
	var closeErr error

	if indexMgr != nil {
		// Swap to nil first so no new search picks up the index
		indexPtr := indexMgr.current.Swap(nil)

		if indexPtr != nil {
			log.Printf("Waiting for in-flight searches to complete before closing...")
			indexMgr.wg.Wait()

			index := *indexPtr
			closeErr = index.Close()
			if closeErr != nil {
				log.Printf("Error closing symbol index: %v", closeErr)
			} else {
				log.Printf("✓ Symbol index closed successfully")
			}
		}
	}

	storeMu.Lock()
	if store != nil {
		if err := store.Close(); err != nil {
			log.Printf("Error closing catalog: %v", err)
			if closeErr == nil {
				closeErr = err
			}
		}
		store = nil
	}
	storeMu.Unlock()

	// Always attempt to release inter-process lock, even if close failed
	if err := dataDirLock().release(); err != nil {
		log.Printf("Error releasing lock: %v", err)
		if closeErr == nil {
			closeErr = err
		}
	}

	return closeErr
}
