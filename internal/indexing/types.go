package indexing

// SymbolDoc represents one documented location of a symbol in the search index.
// Overloads of the same key become separate documents sharing Key and Name.
type SymbolDoc struct {
	ID           string   `json:"id"`
	Library      string   `json:"library"`
	Category     string   `json:"category"`
	File         string   `json:"file"`
	Key          string   `json:"key"`
	Name         string   `json:"name"`          // Display label, e.g. "isWritable"
	NameKey      string   `json:"name_key"`      // Lower-cased label for exact and prefix matches
	Qualified    string   `json:"qualified"`     // "jem::io::FileInfo::isWritable"
	QualifiedKey string   `json:"qualified_key"` // Lower-cased qualified name
	Scope        string   `json:"scope,omitempty"`
	Namespace    string   `json:"namespace,omitempty"`
	Signature    string   `json:"signature,omitempty"`
	URL          string   `json:"url"`
	Page         string   `json:"page"`
	Anchor       string   `json:"anchor,omitempty"`
	Compound     string   `json:"compound,omitempty"`
	CompoundKind string   `json:"compound_kind"`
	Internal     bool     `json:"internal"`
	Overload     int      `json:"overload"`             // Position of the link within its entry
	Breadcrumb   string   `json:"breadcrumb,omitempty"` // "jem > jem::io > jem::io::FileInfo > isWritable"
	Keywords     []string `json:"keywords,omitempty"`
}
