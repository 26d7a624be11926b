package indexing

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search"
	"github.com/blevesearch/bleve/v2/search/query"
)

// NewIndexMapping returns the bleve mapping for SymbolDoc. Identifiers that
// must match exactly use the keyword analyzer; prose-like fields are tokenized.
func NewIndexMapping() mapping.IndexMapping {
	exact := bleve.NewTextFieldMapping()
	exact.Analyzer = keyword.Name

	text := bleve.NewTextFieldMapping()
	text.Analyzer = standard.Name

	stored := bleve.NewTextFieldMapping()
	stored.Index = false

	doc := bleve.NewDocumentMapping()
	for _, field := range []string{"library", "category", "file", "key", "name_key", "qualified_key", "compound_kind", "namespace"} {
		doc.AddFieldMappingsAt(field, exact)
	}
	for _, field := range []string{"name", "qualified", "signature", "breadcrumb", "keywords", "compound", "scope"} {
		doc.AddFieldMappingsAt(field, text)
	}
	for _, field := range []string{"id", "url", "page", "anchor"} {
		doc.AddFieldMappingsAt(field, stored)
	}
	doc.AddFieldMappingsAt("internal", bleve.NewBooleanFieldMapping())
	doc.AddFieldMappingsAt("overload", bleve.NewNumericFieldMapping())

	im := bleve.NewIndexMapping()
	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im
}

// IndexDocuments adds docs to idx in batches of BatchSize.
func IndexDocuments(idx bleve.Index, docs []SymbolDoc) error {
	batch := idx.NewBatch()
	for i, doc := range docs {
		if err := batch.Index(doc.ID, doc); err != nil {
			return fmt.Errorf("failed to add document %s to batch: %w", doc.ID, err)
		}

		// Submit batch every BatchSize documents
		if (i+1)%BatchSize == 0 {
			if err := idx.Batch(batch); err != nil {
				return fmt.Errorf("failed to index batch: %w", err)
			}
			batch = idx.NewBatch()
		}
	}

	// Submit remaining
	if batch.Size() > 0 {
		if err := idx.Batch(batch); err != nil {
			return fmt.Errorf("failed to index final batch: %w", err)
		}
	}
	return nil
}

// BuildIndex creates a fresh on-disk index at path holding docs. Any existing
// index at path is removed first.
func BuildIndex(path string, docs []SymbolDoc) error {
	if err := os.RemoveAll(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove old index: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create index directory: %w", err)
	}

	idx, err := bleve.New(path, NewIndexMapping())
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := IndexDocuments(idx, docs); err != nil {
		idx.Close()
		os.RemoveAll(path)
		return err
	}

	if err := idx.Close(); err != nil {
		return fmt.Errorf("failed to close index: %w", err)
	}
	log.Printf("✓ Indexed %d symbol documents into %s", len(docs), path)
	return nil
}

// NewSymbolQuery builds the ranked query used for symbol search: the label
// is boosted over qualified names and signatures, and a prefix on the
// lower-cased label catches partial identifiers. library and category
// restrict the result when non-empty.
func NewSymbolQuery(text, library, category string) query.Query {
	text = strings.TrimSpace(text)

	name := bleve.NewMatchQuery(text)
	name.SetField("name")
	name.SetBoost(5)

	exact := bleve.NewTermQuery(strings.ToLower(text))
	exact.SetField("name_key")
	exact.SetBoost(10)

	prefix := bleve.NewPrefixQuery(strings.ToLower(text))
	prefix.SetField("name_key")
	prefix.SetBoost(3)

	qualified := bleve.NewMatchQuery(text)
	qualified.SetField("qualified")
	qualified.SetBoost(2)

	qualifiedExact := bleve.NewTermQuery(strings.ToLower(text))
	qualifiedExact.SetField("qualified_key")
	qualifiedExact.SetBoost(8)

	signature := bleve.NewMatchQuery(text)
	signature.SetField("signature")

	keywords := bleve.NewMatchQuery(text)
	keywords.SetField("keywords")

	breadcrumb := bleve.NewMatchQuery(text)
	breadcrumb.SetField("breadcrumb")
	breadcrumb.SetBoost(0.5)

	var q query.Query = bleve.NewDisjunctionQuery(name, exact, prefix, qualified, qualifiedExact, signature, keywords, breadcrumb)

	var filters []query.Query
	if library != "" {
		lib := bleve.NewTermQuery(library)
		lib.SetField("library")
		filters = append(filters, lib)
	}
	if category != "" {
		cat := bleve.NewTermQuery(category)
		cat.SetField("category")
		filters = append(filters, cat)
	}
	if len(filters) > 0 {
		q = bleve.NewConjunctionQuery(append([]query.Query{q}, filters...)...)
	}
	return q
}

// DocFromHit rebuilds a SymbolDoc from the stored fields of a search hit.
func DocFromHit(hit *search.DocumentMatch) SymbolDoc {
	f := hit.Fields
	doc := SymbolDoc{
		ID:           hit.ID,
		Library:      stringField(f, "library"),
		Category:     stringField(f, "category"),
		File:         stringField(f, "file"),
		Key:          stringField(f, "key"),
		Name:         stringField(f, "name"),
		NameKey:      stringField(f, "name_key"),
		Qualified:    stringField(f, "qualified"),
		QualifiedKey: stringField(f, "qualified_key"),
		Scope:        stringField(f, "scope"),
		Namespace:    stringField(f, "namespace"),
		Signature:    stringField(f, "signature"),
		URL:          stringField(f, "url"),
		Page:         stringField(f, "page"),
		Anchor:       stringField(f, "anchor"),
		Compound:     stringField(f, "compound"),
		CompoundKind: stringField(f, "compound_kind"),
		Breadcrumb:   stringField(f, "breadcrumb"),
	}
	if internal, ok := f["internal"].(bool); ok {
		doc.Internal = internal
	}
	if overload, ok := f["overload"].(float64); ok {
		doc.Overload = int(overload)
	}

	// Single-valued arrays come back as a plain string
	switch kw := f["keywords"].(type) {
	case string:
		doc.Keywords = []string{kw}
	case []interface{}:
		doc.Keywords = make([]string, 0, len(kw))
		for _, v := range kw {
			if s, ok := v.(string); ok {
				doc.Keywords = append(doc.Keywords, s)
			}
		}
	}
	return doc
}

func stringField(fields map[string]interface{}, name string) string {
	s, _ := fields[name].(string)
	return s
}
