package tools

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search"
)

var errIndexClosed = errors.New("index closed")

// mockIndex is an in-memory Index that records requests and returns canned hits.
type mockIndex struct {
	id       int
	docCount uint64
	hits     search.DocumentMatchCollection
	closed   atomic.Bool

	mu       sync.Mutex
	requests []*bleve.SearchRequest
}

func newMockIndex(id int, hits ...*search.DocumentMatch) *mockIndex {
	return &mockIndex{
		id:       id,
		docCount: 100,
		hits:     hits,
	}
}

func (m *mockIndex) Search(req *bleve.SearchRequest) (*bleve.SearchResult, error) {
	if m.closed.Load() {
		return nil, errIndexClosed
	}
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	hits := m.hits
	if req.Size < len(hits) {
		hits = hits[:req.Size]
	}
	return &bleve.SearchResult{
		Request: req,
		Hits:    hits,
		Total:   uint64(len(m.hits)),
	}, nil
}

func (m *mockIndex) DocCount() (uint64, error) {
	if m.closed.Load() {
		return 0, errIndexClosed
	}
	return m.docCount, nil
}

func (m *mockIndex) Close() error {
	if m.closed.Swap(true) {
		return errors.New("already closed")
	}
	return nil
}

func (m *mockIndex) IsClosed() bool {
	return m.closed.Load()
}

func (m *mockIndex) lastRequest() *bleve.SearchRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// symbolHit builds a hit carrying the stored fields of a symbol document.
func symbolHit(id, name, library string, score float64) *search.DocumentMatch {
	return &search.DocumentMatch{
		ID:    id,
		Score: score,
		Fields: map[string]interface{}{
			"library":  library,
			"category": "functions",
			"name":     name,
			"name_key": name,
			"url":      "../classjem_1_1io_1_1FileInfo.html#a1",
			"overload": float64(1),
			"keywords": []interface{}{"is", "writable"},
		},
	}
}
