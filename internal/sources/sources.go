// Package sources loads the searchData files of a documentation build from a
// local directory, an fs.FS, or a published HTML tree.
package sources

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ritukeshbharali/jemjive-3.0/internal/config"
	"github.com/ritukeshbharali/jemjive-3.0/internal/searchdata"
)

// AllCategory is the Doxygen category whose files list every symbol.
const AllCategory = "all"

// skipped names are the search engine scripts living next to the data files.
var skipped = map[string]bool{
	"search.js":     true,
	"searchdata.js": true,
}

// Result is one loaded documentation build.
type Result struct {
	Library string
	// Origin is the directory or URL the files were read from.
	Origin  string
	BaseURL string
	HTMLDir string
	Files   []*searchdata.File
	// Raw holds the file contents by name, for fingerprinting.
	Raw map[string][]byte
}

// LoadDir parses every searchData file directly inside dir. When categories
// is empty and the directory has "all" files, only those are loaded since
// they hold every other category's entries.
func LoadDir(fsys fs.FS, dir string, categories []string) ([]*searchdata.File, map[string][]byte, error) {
	names, err := Names(fsys, dir)
	if err != nil {
		return nil, nil, err
	}

	byCategory := make(map[string][]string)
	for _, name := range names {
		category, _, _ := searchdata.ParseFileName(name)
		byCategory[category] = append(byCategory[category], name)
	}

	wanted := categories
	if len(wanted) == 0 {
		if _, ok := byCategory[AllCategory]; ok {
			wanted = []string{AllCategory}
		} else {
			for category := range byCategory {
				wanted = append(wanted, category)
			}
		}
	}

	var files []*searchdata.File
	raw := make(map[string][]byte)
	for _, category := range wanted {
		for _, name := range byCategory[category] {
			data, err := fs.ReadFile(fsys, path.Join(dir, name))
			if err != nil {
				return nil, nil, fmt.Errorf("failed to read %s: %w", name, err)
			}
			f, err := searchdata.ParseFile(name, data)
			if err != nil {
				return nil, nil, err
			}
			files = append(files, f)
			raw[name] = data
		}
	}
	if len(files) == 0 {
		return nil, nil, fmt.Errorf("%w in %s", ErrNoSearchData, dir)
	}
	SortFiles(files)
	return files, raw, nil
}

// Names lists the searchData file names directly inside dir, sorted.
func Names(fsys fs.FS, dir string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".js") || skipped[strings.ToLower(name)] {
			continue
		}
		if _, _, ok := searchdata.ParseFileName(name); !ok {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// SortFiles orders files by category, then part number.
func SortFiles(files []*searchdata.File) {
	sort.Slice(files, func(i, j int) bool {
		if files[i].Category != files[j].Category {
			return files[i].Category < files[j].Category
		}
		return files[i].Part < files[j].Part
	})
}

// Load reads the files of a configured source. Local directories win over
// base URLs; remote sources go through fetcher.
func Load(ctx context.Context, src config.Source, fetcher *Fetcher) (*Result, error) {
	res := &Result{
		Library: src.Name,
		BaseURL: src.BaseURL,
		HTMLDir: src.HTMLDir,
	}

	if !src.Remote() {
		if src.SearchDir == "" {
			return nil, fmt.Errorf("source %s has neither search_dir nor base_url", src.Name)
		}
		files, raw, err := LoadDir(os.DirFS(src.SearchDir), ".", src.Categories)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", src.Name, err)
		}
		res.Origin = src.SearchDir
		res.Files = files
		res.Raw = raw
		if res.HTMLDir == "" {
			res.HTMLDir = filepath.Dir(filepath.Clean(src.SearchDir))
		}
		return res, nil
	}

	if fetcher == nil {
		return nil, fmt.Errorf("source %s is remote but no fetcher is configured", src.Name)
	}
	files, raw, err := fetcher.FetchRemote(ctx, src.BaseURL, src.Categories)
	if err != nil {
		return nil, fmt.Errorf("source %s: %w", src.Name, err)
	}
	res.Origin = src.BaseURL
	res.Files = files
	res.Raw = raw
	return res, nil
}
