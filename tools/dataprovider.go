package tools

import (
	"io/fs"
)

// DataProvider gives access to the bundled search files. It is an fs.FS so
// the sources loader can read it directly; tests inject an in-memory one.
//
// Implementations:
//   - embed.FS: production (files under data/searchdata)
//   - MockDataProvider: in-memory files for testing
type DataProvider interface {
	fs.ReadFileFS
	fs.ReadDirFS
}
