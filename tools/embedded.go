package tools

import (
	"embed"
)

// The jem and jive search files ship inside the binary so the server can
// build a usable index on first start without any configured source. Each
// subdirectory of data/searchdata is one library.
//
//go:embed data/searchdata
var embeddedFS embed.FS

const embeddedRoot = "data/searchdata"

// NewEmbeddedDataProvider returns the production DataProvider backed by the
// embedded search files.
func NewEmbeddedDataProvider() DataProvider {
	return embeddedFS
}

// Default provider used by package-level functions
var defaultDataProvider DataProvider = NewEmbeddedDataProvider()
