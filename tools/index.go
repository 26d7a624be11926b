package tools

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
)

// Index is what symbol searches need from an open index. bleve.Index
// satisfies it; tests use an in-memory mock.
type Index interface {
	Search(req *bleve.SearchRequest) (*bleve.SearchResult, error)
	DocCount() (uint64, error)
	Close() error
}

// openIndex opens the on-disk symbol index at path.
func openIndex(path string) (Index, error) {
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open index %s: %w", path, err)
	}
	return idx, nil
}
