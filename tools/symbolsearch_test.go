package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ritukeshbharali/jemjive-3.0/internal/catalog"
	"github.com/ritukeshbharali/jemjive-3.0/internal/config"
	"github.com/ritukeshbharali/jemjive-3.0/internal/docpage"
	"github.com/ritukeshbharali/jemjive-3.0/internal/indexing"
)

const demoSearchData = `var searchData=
[
  ['isreadable_0',['isReadable',['../classjem_1_1io_1_1FileInfo.html#a1f0e',1,'jem::io::FileInfo']]],
  ['iswritable_1',['isWritable',['../classjem_1_1io_1_1FileInfo.html#a2c704e52889f2c6914edab0ef0e0f5f8',1,'jem::io::FileInfo'],['../classjem_1_1io_1_1Dir.html#a3b7d',1,'jem::io::Dir']]]
];
`

// setupSymbolSearch points the package at a fresh data directory with one
// bundled library named demo.
func setupSymbolSearch(t *testing.T, c *config.Config) {
	t.Helper()

	mock := NewMockDataProvider()
	mock.AddFile(path.Join(embeddedRoot, "demo", "functions_0.js"), []byte(demoSearchData))
	SetDefaultDataProvider(mock)

	oldDataDir, oldCfg := dataDir, cfg
	Setup(t.TempDir(), c)
	indexMgr = &indexHolder{}

	t.Cleanup(func() {
		if err := CloseSymbolSearch(); err != nil {
			t.Errorf("CloseSymbolSearch() error = %v", err)
		}
		ResetDefaultDataProvider()
		indexMgr = &indexHolder{}
		Setup(oldDataDir, oldCfg)
	})
}

func TestSymbolSearch_EndToEnd(t *testing.T) {
	setupSymbolSearch(t, nil)
	ctx := context.Background()

	if err := InitializeSymbolSearch(ctx); err != nil {
		t.Fatalf("InitializeSymbolSearch() error = %v", err)
	}

	t.Run("search ranks exact name first", func(t *testing.T) {
		out, err := Search(ctx, SearchSymbolsInput{Query: "isWritable"})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(out.Results) < 2 {
			t.Fatalf("expected both overloads, got %d results", len(out.Results))
		}
		if out.Results[0].Symbol.Name != "isWritable" {
			t.Errorf("first result = %q, want isWritable", out.Results[0].Symbol.Name)
		}
		if out.Results[0].Symbol.Library != "demo" {
			t.Errorf("library = %q, want demo", out.Results[0].Symbol.Library)
		}
	})

	t.Run("library filter", func(t *testing.T) {
		out, err := Search(ctx, SearchSymbolsInput{Query: "isWritable", Library: "other"})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(out.Results) != 0 {
			t.Errorf("expected no results for unknown library, got %d", len(out.Results))
		}
	})

	t.Run("max results clamp", func(t *testing.T) {
		out, err := Search(ctx, SearchSymbolsInput{Query: "is", MaxResults: 1})
		if err != nil {
			t.Fatalf("Search() error = %v", err)
		}
		if len(out.Results) > 1 {
			t.Errorf("expected at most 1 result, got %d", len(out.Results))
		}
	})

	t.Run("empty query", func(t *testing.T) {
		if _, err := Search(ctx, SearchSymbolsInput{Query: "  "}); err == nil {
			t.Error("expected error for empty query")
		}
	})

	t.Run("lookup is case-insensitive", func(t *testing.T) {
		out, err := Lookup(ctx, LookupSymbolInput{Name: "ISWRITABLE"})
		if err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
		if len(out.Symbols) != 1 || out.Links != 2 {
			t.Fatalf("expected 1 symbol with 2 links, got %d symbols, %d links", len(out.Symbols), out.Links)
		}
		if out.Symbols[0].Links[1].Scope != "jem::io::Dir" {
			t.Errorf("links out of order: %+v", out.Symbols[0].Links)
		}
	})

	t.Run("lookup by key", func(t *testing.T) {
		out, err := Lookup(ctx, LookupSymbolInput{Name: "isreadable_0"})
		if err != nil {
			t.Fatalf("Lookup() error = %v", err)
		}
		if out.Symbols[0].Label != "isReadable" {
			t.Errorf("label = %q", out.Symbols[0].Label)
		}
	})

	t.Run("lookup miss", func(t *testing.T) {
		_, err := Lookup(ctx, LookupSymbolInput{Name: "doesNotExist"})
		if !errors.Is(err, catalog.ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("unchanged refresh keeps index", func(t *testing.T) {
		out, err := Refresh(ctx, false)
		if err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		if out.Updated {
			t.Error("refresh without changes should not rebuild")
		}
		if len(out.Unchanged) != 1 || out.Unchanged[0] != "demo" {
			t.Errorf("Unchanged = %v", out.Unchanged)
		}
	})

	t.Run("forced refresh rebuilds", func(t *testing.T) {
		out, err := Refresh(ctx, true)
		if err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		if !out.Updated || out.DocumentsIndexed != 3 {
			t.Errorf("expected rebuild with 3 documents, got updated=%v docs=%d", out.Updated, out.DocumentsIndexed)
		}

		// Searches keep working on the swapped index
		res, err := Search(ctx, SearchSymbolsInput{Query: "isReadable"})
		if err != nil {
			t.Fatalf("Search() after refresh error = %v", err)
		}
		if len(res.Results) == 0 || res.Results[0].Symbol.Name != "isReadable" {
			t.Errorf("unexpected results after refresh: %+v", res.Results)
		}
	})

	t.Run("summaries", func(t *testing.T) {
		out, err := Summaries(ctx)
		if err != nil {
			t.Fatalf("Summaries() error = %v", err)
		}
		if out.Count != 1 {
			t.Fatalf("Count = %d, want 1", out.Count)
		}
		lib := out.Libraries[0]
		if !lib.Embedded || !lib.Indexed || lib.Entries != 2 || lib.Links != 3 {
			t.Errorf("unexpected summary: %+v", lib)
		}
		if out.Totals.Libraries != 1 {
			t.Errorf("Totals.Libraries = %d", out.Totals.Libraries)
		}
	})
}

func TestInitializeSymbolSearch_ReopensIndex(t *testing.T) {
	setupSymbolSearch(t, nil)
	ctx := context.Background()

	if err := InitializeSymbolSearch(ctx); err != nil {
		t.Fatalf("InitializeSymbolSearch() error = %v", err)
	}
	if v := getIndexVersion(); v != indexing.IndexSchemaVersion {
		t.Fatalf("index version = %d, want %d", v, indexing.IndexSchemaVersion)
	}

	// Close everything except the files on disk, then start again
	dir := dataDir
	if err := CloseSymbolSearch(); err != nil {
		t.Fatalf("CloseSymbolSearch() error = %v", err)
	}
	indexMgr = &indexHolder{}
	Setup(dir, cfg)

	if err := InitializeSymbolSearch(ctx); err != nil {
		t.Fatalf("second InitializeSymbolSearch() error = %v", err)
	}
	out, err := Search(ctx, SearchSymbolsInput{Query: "isWritable"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if out.TotalHits == 0 {
		t.Error("reopened index should contain documents")
	}
}

func TestRefresh_ConfiguredSource(t *testing.T) {
	root := t.TempDir()
	searchDir := filepath.Join(root, "html", "search")
	if err := os.MkdirAll(searchDir, 0755); err != nil {
		t.Fatalf("Failed to create search dir: %v", err)
	}
	writeSearchFile(t, searchDir, "functions_0.js", demoSearchData)

	page, err := os.ReadFile(filepath.Join("..", "internal", "docpage", "testdata", "classjem_1_1io_1_1FileInfo.html"))
	if err != nil {
		t.Fatalf("Failed to read page fixture: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "html", "classjem_1_1io_1_1FileInfo.html"), page, 0644); err != nil {
		t.Fatalf("Failed to write page: %v", err)
	}

	c := config.Default()
	c.Sources = []config.Source{{Name: "local", SearchDir: searchDir, Watch: true}}
	setupSymbolSearch(t, c)
	ctx := context.Background()

	if err := InitializeSymbolSearch(ctx); err != nil {
		t.Fatalf("InitializeSymbolSearch() error = %v", err)
	}

	if dirs := WatchedDirs(); len(dirs) != 1 || dirs[0] != searchDir {
		t.Errorf("WatchedDirs() = %v", dirs)
	}

	t.Run("docs by name", func(t *testing.T) {
		out, err := Docs(ctx, GetSymbolDocsInput{Name: "isWritable", Library: "local"})
		if err != nil {
			t.Fatalf("Docs() error = %v", err)
		}
		if out.Overloads != 2 {
			t.Errorf("Overloads = %d, want 2", out.Overloads)
		}
		if out.Title != "isWritable()" {
			t.Errorf("Title = %q", out.Title)
		}
		if !strings.Contains(out.Markdown, "Tests whether the file can be written.") {
			t.Errorf("unexpected Markdown: %q", out.Markdown)
		}
	})

	t.Run("docs link outside html dir", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(root, "secret.html"), page, 0644); err != nil {
			t.Fatalf("Failed to write page: %v", err)
		}
		for _, link := range []string{"../../secret.html#a2c704e52889f2c6914edab0ef0e0f5f8", "../../../../etc/secret.html#a1"} {
			_, err := Docs(ctx, GetSymbolDocsInput{URL: link, Library: "local"})
			if !errors.Is(err, docpage.ErrOutsideDir) {
				t.Errorf("Docs(%q) error = %v, want ErrOutsideDir", link, err)
			}
		}
	})

	t.Run("docs overload out of range", func(t *testing.T) {
		_, err := Docs(ctx, GetSymbolDocsInput{Name: "isWritable", Overload: 5})
		if err == nil {
			t.Error("expected error for overload out of range")
		}
	})

	t.Run("changed source is re-ingested", func(t *testing.T) {
		writeSearchFile(t, searchDir, "functions_0.js", strings.Replace(demoSearchData,
			"['isreadable_0',['isReadable',['../classjem_1_1io_1_1FileInfo.html#a1f0e',1,'jem::io::FileInfo']]],\n", "", 1))

		out, err := Refresh(ctx, false)
		if err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		if !out.Updated || len(out.Changed) != 1 || out.Changed[0] != "local" {
			t.Errorf("expected local to change, got %+v", out)
		}

		if _, err := Lookup(ctx, LookupSymbolInput{Name: "isReadable", Library: "local"}); !errors.Is(err, catalog.ErrNotFound) {
			t.Errorf("removed entry should be gone, got %v", err)
		}
	})

	t.Run("failed source keeps snapshot", func(t *testing.T) {
		writeSearchFile(t, searchDir, "functions_0.js", "var searchData = [ @ ];")

		out, err := Refresh(ctx, false)
		if err != nil {
			t.Fatalf("Refresh() error = %v", err)
		}
		if _, ok := out.Failed["local"]; !ok {
			t.Fatalf("expected local to fail, got %+v", out)
		}

		if _, err := Lookup(ctx, LookupSymbolInput{Name: "isWritable", Library: "local"}); err != nil {
			t.Errorf("previous snapshot should survive a failed load: %v", err)
		}
	})
}

func TestRefresh_RemovesUnconfiguredLibrary(t *testing.T) {
	searchDir := t.TempDir()
	writeSearchFile(t, searchDir, "functions_0.js", demoSearchData)

	c := config.Default()
	c.Sources = []config.Source{{Name: "local", SearchDir: searchDir}}
	setupSymbolSearch(t, c)
	ctx := context.Background()

	if err := InitializeSymbolSearch(ctx); err != nil {
		t.Fatalf("InitializeSymbolSearch() error = %v", err)
	}
	if _, err := Lookup(ctx, LookupSymbolInput{Name: "isWritable", Library: "local"}); err != nil {
		t.Fatalf("Lookup() before removal error = %v", err)
	}

	// Same data directory, source dropped from the configuration.
	Setup(dataDir, config.Default())

	out, err := Refresh(ctx, false)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(out.Removed) != 1 || out.Removed[0] != "local" {
		t.Fatalf("Removed = %v, want [local]", out.Removed)
	}

	if _, err := Lookup(ctx, LookupSymbolInput{Name: "isWritable", Library: "local"}); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("removed library should not be looked up, got %v", err)
	}
	search, err := Search(ctx, SearchSymbolsInput{Query: "isWritable", Library: "local"})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(search.Results) != 0 {
		t.Errorf("removed library still has %d search results", len(search.Results))
	}
	if _, err := Lookup(ctx, LookupSymbolInput{Name: "isWritable", Library: "demo"}); err != nil {
		t.Errorf("bundled library should survive: %v", err)
	}
}

func TestLibraries_ConfiguredOverridesBundled(t *testing.T) {
	searchDir := t.TempDir()
	writeSearchFile(t, searchDir, "functions_0.js", `var searchData=
[
  ['isreadable_0',['isReadable',['../classjem_1_1io_1_1FileInfo.html#a1f0e',1,'jem::io::FileInfo']]]
];
`)

	c := config.Default()
	c.Sources = []config.Source{{Name: "demo", SearchDir: searchDir}}
	setupSymbolSearch(t, c)
	ctx := context.Background()

	libs := Libraries()
	if len(libs) != 1 {
		t.Fatalf("Libraries() = %+v, want only the configured demo", libs)
	}
	if libs[0].Embedded || libs[0].Origin != searchDir {
		t.Errorf("demo = %+v, want configured source at %s", libs[0], searchDir)
	}

	if err := InitializeSymbolSearch(ctx); err != nil {
		t.Fatalf("InitializeSymbolSearch() error = %v", err)
	}
	if _, err := Lookup(ctx, LookupSymbolInput{Name: "isReadable", Library: "demo"}); err != nil {
		t.Errorf("configured entry missing: %v", err)
	}
	if _, err := Lookup(ctx, LookupSymbolInput{Name: "isWritable", Library: "demo"}); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("bundled entry should be shadowed, got %v", err)
	}
}

func TestLibraries_ConfiguredBeforeBundled(t *testing.T) {
	c := config.Default()
	c.Sources = []config.Source{
		{Name: "zeta", SearchDir: t.TempDir()},
		{Name: "alpha", SearchDir: t.TempDir()},
	}
	setupSymbolSearch(t, c)

	var names []string
	for _, lib := range Libraries() {
		names = append(names, lib.Name)
	}
	want := []string{"alpha", "zeta", "demo"}
	if strings.Join(names, ",") != strings.Join(want, ",") {
		t.Errorf("Libraries() order = %v, want %v", names, want)
	}
}

func writeSearchFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

// --- indexHolder tests ---
// These exercise the atomic pointer swap with mock indexes only.

func TestIndexHolderConcurrentReads(t *testing.T) {
	idx := Index(newMockIndex(1))
	holder := &indexHolder{}
	holder.current.Store(&idx)

	const numReaders = 50
	errChan := make(chan error, numReaders)
	doneChan := make(chan bool, numReaders)

	for i := 0; i < numReaders; i++ {
		go func(id int) {
			defer func() { doneChan <- true }()

			holder.wg.Add(1)
			defer holder.wg.Done()

			indexPtr := holder.current.Load()
			if indexPtr == nil {
				errChan <- fmt.Errorf("goroutine %d: got nil index", id)
				return
			}
			count, err := (*indexPtr).DocCount()
			if err != nil {
				errChan <- fmt.Errorf("goroutine %d: DocCount failed: %v", id, err)
				return
			}
			if count != 100 {
				errChan <- fmt.Errorf("goroutine %d: expected 100, got %d", id, count)
			}
		}(i)
	}

	for i := 0; i < numReaders; i++ {
		<-doneChan
	}
	close(errChan)
	for err := range errChan {
		t.Error(err)
	}
	holder.wg.Wait()
}

func TestIndexHolderAtomicSwap(t *testing.T) {
	idx1 := Index(newMockIndex(1))
	idx2 := Index(newMockIndex(2))

	holder := &indexHolder{}
	holder.current.Store(&idx1)

	ptr1 := holder.current.Load()
	if ptr1 == nil || *ptr1 != idx1 {
		t.Fatal("Expected idx1")
	}

	oldPtr := holder.current.Swap(&idx2)
	if oldPtr == nil || *oldPtr != idx1 {
		t.Fatal("Swap should return idx1")
	}

	ptr2 := holder.current.Load()
	if ptr2 == nil || *ptr2 != idx2 {
		t.Fatal("Expected idx2")
	}
	if ptr1 == ptr2 {
		t.Error("Old and new pointers should be different")
	}
}

func TestIndexHolderRefreshMutexSerialization(t *testing.T) {
	holder := &indexHolder{}

	const numGoroutines = 10
	counter := 0
	doneChan := make(chan bool, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func() {
			defer func() { doneChan <- true }()

			holder.refreshMu.Lock()
			defer holder.refreshMu.Unlock()

			old := counter
			for j := 0; j < 1000; j++ {
				_ = j * j
			}
			counter = old + 1
		}()
	}

	for i := 0; i < numGoroutines; i++ {
		<-doneChan
	}
	if counter != numGoroutines {
		t.Errorf("Expected counter=%d, got %d (mutex not properly serializing)", numGoroutines, counter)
	}
}

func TestIndexHolderClosesReplacedIndexAfterSearches(t *testing.T) {
	oldMock := newMockIndex(1)
	oldIdx := Index(oldMock)
	newIdx := Index(newMockIndex(2))

	holder := &indexHolder{}
	holder.current.Store(&oldIdx)

	// In-flight search on the old index
	holder.wg.Add(1)
	searching := *holder.current.Load()

	replaced := holder.current.Swap(&newIdx)
	closed := make(chan struct{})
	go func() {
		holder.wg.Wait()
		(*replaced).Close()
		close(closed)
	}()

	if _, err := searching.DocCount(); err != nil {
		t.Fatalf("old index closed while a search was running: %v", err)
	}
	if oldMock.IsClosed() {
		t.Fatal("old index closed before the search finished")
	}
	holder.wg.Done()

	<-closed
	if !oldMock.IsClosed() {
		t.Error("old index should be closed once searches drain")
	}
}

func TestIndexHolderConcurrentSwapAndRead(t *testing.T) {
	idx := Index(newMockIndex(0))
	holder := &indexHolder{}
	holder.current.Store(&idx)

	const numReaders = 20
	const iterations = 5
	errChan := make(chan error, numReaders)
	doneChan := make(chan bool, numReaders+1)

	for i := 0; i < numReaders; i++ {
		go func(id int) {
			defer func() { doneChan <- true }()

			for j := 0; j < iterations; j++ {
				holder.wg.Add(1)
				indexPtr := holder.current.Load()
				if indexPtr == nil {
					holder.wg.Done()
					errChan <- fmt.Errorf("reader %d iteration %d: got nil", id, j)
					return
				}
				_, err := (*indexPtr).DocCount()
				holder.wg.Done()
				if err != nil {
					errChan <- fmt.Errorf("reader %d iteration %d: %v", id, j, err)
					return
				}
			}
		}(i)
	}

	go func() {
		defer func() { doneChan <- true }()
		for i := 0; i < 3; i++ {
			next := Index(newMockIndex(i + 1))
			holder.current.Swap(&next)
		}
	}()

	for i := 0; i < numReaders+1; i++ {
		<-doneChan
	}
	close(errChan)
	for err := range errChan {
		t.Error(err)
	}
	holder.wg.Wait()
}

func TestSearch_UsesCurrentIndex(t *testing.T) {
	oldMgr, oldCfg := indexMgr, cfg
	defer func() { indexMgr, cfg = oldMgr, oldCfg }()

	cfg = config.Default()
	mock := newMockIndex(1,
		symbolHit("jem/functions_8.js/iswritable_3955/0", "isWritable", "jem", 3.5),
		symbolHit("jem/functions_8.js/iswritable_3955/1", "isWritable", "jem", 2.0),
	)
	idx := Index(mock)
	indexMgr = &indexHolder{}
	indexMgr.current.Store(&idx)

	out, err := Search(context.Background(), SearchSymbolsInput{Query: "isWritable", MaxResults: 500})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if req := mock.lastRequest(); req == nil || req.Size != cfg.Search.MaxResults {
		t.Errorf("request size should be clamped to %d", cfg.Search.MaxResults)
	}
	if out.TotalHits != 2 || len(out.Results) != 2 {
		t.Fatalf("expected 2 results, got %+v", out)
	}
	first := out.Results[0]
	if first.Score != 3.5 || first.Symbol.Name != "isWritable" || first.Symbol.Overload != 1 {
		t.Errorf("unexpected first result: %+v", first)
	}
	if len(first.Symbol.Keywords) != 2 {
		t.Errorf("keywords not restored: %v", first.Symbol.Keywords)
	}

	if _, err := Search(context.Background(), SearchSymbolsInput{Query: "isWritable"}); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if req := mock.lastRequest(); req.Size != cfg.Search.DefaultResults {
		t.Errorf("request size = %d, want default %d", req.Size, cfg.Search.DefaultResults)
	}
}
