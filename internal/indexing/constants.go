package indexing

const (
	// BatchSize is the number of documents submitted per bleve batch
	BatchSize = 100

	// MaxKeywords caps the keywords stored per document
	MaxKeywords = 10

	// IndexSchemaVersion increments when the document layout or mapping changes.
	// Documents are one per link, identified by library, file, entry position,
	// key and link position.
	IndexSchemaVersion = 1
)
