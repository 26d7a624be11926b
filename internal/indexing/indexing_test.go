package indexing_test

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/blevesearch/bleve/v2"
	"github.com/ritukeshbharali/jemjive-3.0/internal/indexing"
	"github.com/ritukeshbharali/jemjive-3.0/internal/searchdata"
)

func TestSplitIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{name: "camel case", input: "isWritable", expected: []string{"is", "writable"}},
		{name: "trailing underscore", input: "writeError_", expected: []string{"write", "error"}},
		{name: "acronym", input: "readXMLFile", expected: []string{"read", "xml", "file"}},
		{name: "digits", input: "Int64", expected: []string{"int", "64"}},
		{name: "destructor", input: "~Array", expected: []string{"array"}},
		{name: "empty string", input: "", expected: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := indexing.SplitIdentifier(tt.input)
			if !reflect.DeepEqual(result, tt.expected) {
				t.Errorf("indexing.SplitIdentifier(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestExtractKeywords(t *testing.T) {
	tests := []struct {
		name     string
		symbol   string
		scope    string
		expected []string
	}{
		{
			name:     "member function",
			symbol:   "isWritable",
			scope:    "jem::io::FileInfo",
			expected: []string{"writable", "jem", "io", "file", "info"},
		},
		{
			name:     "filters noise words and duplicates",
			symbol:   "getIntArray",
			scope:    "jem::Array",
			expected: []string{"array", "jem"},
		},
		{
			name:     "empty input",
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keywords := indexing.ExtractKeywords(tt.symbol, tt.scope)
			if !reflect.DeepEqual(keywords, tt.expected) {
				t.Errorf("indexing.ExtractKeywords() = %v, want %v", keywords, tt.expected)
			}
		})
	}

	t.Run("max limit", func(t *testing.T) {
		keywords := indexing.ExtractKeywords("alphaBetaGammaDeltaEpsilonZetaEtaThetaIotaKappaLambdaMu", "")
		if len(keywords) != indexing.MaxKeywords {
			t.Errorf("indexing.ExtractKeywords() returned %d keywords, max should be %d", len(keywords), indexing.MaxKeywords)
		}
	})
}

func TestNamespaceOf(t *testing.T) {
	tests := []struct {
		kind     string
		compound string
		expected string
	}{
		{"class", "jem::gl::Transform", "jem::gl"},
		{"namespace", "jem::io", "jem::io"},
		{"struct", "Foo", ""},
		{"file", "Array.h", ""},
	}

	for _, tt := range tests {
		if got := indexing.NamespaceOf(tt.kind, tt.compound); got != tt.expected {
			t.Errorf("indexing.NamespaceOf(%q, %q) = %q, want %q", tt.kind, tt.compound, got, tt.expected)
		}
	}
}

func TestEnrichMetadata(t *testing.T) {
	doc := &indexing.SymbolDoc{
		Library:      "jem",
		Name:         "isWritable",
		Qualified:    "jem::io::FileInfo::isWritable",
		Scope:        "jem::io::FileInfo",
		Compound:     "jem::io::FileInfo",
		CompoundKind: "class",
	}
	indexing.EnrichMetadata(doc)

	expectedBreadcrumb := "jem > jem::io > jem::io::FileInfo > isWritable"
	if doc.Breadcrumb != expectedBreadcrumb {
		t.Errorf("Breadcrumb = %s, want %s", doc.Breadcrumb, expectedBreadcrumb)
	}
	if doc.Namespace != "jem::io" {
		t.Errorf("Namespace = %s, want jem::io", doc.Namespace)
	}
	if doc.NameKey != "iswritable" || doc.QualifiedKey != "jem::io::fileinfo::iswritable" {
		t.Errorf("unexpected keys %q %q", doc.NameKey, doc.QualifiedKey)
	}
	if len(doc.Keywords) == 0 {
		t.Error("Keywords should not be empty")
	}
}

func loadFixture(t *testing.T) *searchdata.File {
	t.Helper()
	path := filepath.Join("..", "searchdata", "testdata", "functions_8.js")
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read fixture: %v", err)
	}
	f, err := searchdata.ParseFile(path, data)
	if err != nil {
		t.Fatalf("searchdata.ParseFile() error = %v", err)
	}
	return f
}

func TestBuildDocuments(t *testing.T) {
	f := loadFixture(t)
	docs := indexing.BuildDocuments("jem", "", []*searchdata.File{f})

	if len(docs) != f.LinkCount() {
		t.Fatalf("Expected one document per link (%d), got %d", f.LinkCount(), len(docs))
	}

	ids := make(map[string]bool)
	for _, doc := range docs {
		if ids[doc.ID] {
			t.Errorf("Duplicate document ID %s", doc.ID)
		}
		ids[doc.ID] = true
	}

	first := docs[0]
	if first.ID != "jem/functions_8.js/0/iarray_3869#0" {
		t.Errorf("ID = %s", first.ID)
	}
	if first.Qualified != "jem::iarray" || first.Signature != "jem::iarray(int n)" {
		t.Errorf("unexpected symbol fields: %q %q", first.Qualified, first.Signature)
	}
	if first.CompoundKind != "namespace" || first.Namespace != "jem" {
		t.Errorf("unexpected compound fields: %q %q", first.CompoundKind, first.Namespace)
	}
	if docs[1].Overload != 1 || docs[1].Key != first.Key {
		t.Errorf("second overload not grouped under the same key: %+v", docs[1])
	}
	if first.URL != "../namespacejem.html#a7ae85b225b0c658231ec9cf1e9233046" {
		t.Errorf("URL should stay relative without base URL, got %s", first.URL)
	}
}

func TestBuildDocuments_BaseURL(t *testing.T) {
	f := &searchdata.File{
		Name:     "functions_0.js",
		Category: "functions",
		Entries: []searchdata.Entry{{
			Key:   "identity_1",
			Label: "identity",
			Links: []searchdata.Link{{URL: "../classjem_1_1gl_1_1Transform.html#a573f", Internal: true, Scope: "jem::gl::Transform"}},
		}},
	}

	docs := indexing.BuildDocuments("jem", "https://example.org/jem/doc/html/", []*searchdata.File{f})
	if len(docs) != 1 {
		t.Fatalf("Expected 1 document, got %d", len(docs))
	}
	expected := "https://example.org/jem/doc/html/classjem_1_1gl_1_1Transform.html#a573f"
	if docs[0].URL != expected {
		t.Errorf("URL = %s, want %s", docs[0].URL, expected)
	}
	if docs[0].Qualified != "jem::gl::Transform::identity" {
		t.Errorf("Qualified = %s", docs[0].Qualified)
	}
}

func TestResolveLink(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"https://example.org/doc/html", "../classA.html#x", "https://example.org/doc/html/classA.html#x"},
		{"", "../classA.html#x", "../classA.html#x"},
		{"https://example.org/doc/html/", "https://other.org/p.html", "https://other.org/p.html"},
	}
	for _, tt := range tests {
		if got := indexing.ResolveLink(tt.base, tt.ref); got != tt.want {
			t.Errorf("ResolveLink(%q, %q) = %q, want %q", tt.base, tt.ref, got, tt.want)
		}
	}
}

func TestSymbolQueryIntegration(t *testing.T) {
	f := loadFixture(t)
	docs := indexing.BuildDocuments("jem", "", []*searchdata.File{f})

	idx, err := bleve.NewMemOnly(indexing.NewIndexMapping())
	if err != nil {
		t.Fatalf("bleve.NewMemOnly() error = %v", err)
	}
	defer idx.Close()

	if err := indexing.IndexDocuments(idx, docs); err != nil {
		t.Fatalf("indexing.IndexDocuments() error = %v", err)
	}

	count, err := idx.DocCount()
	if err != nil || int(count) != len(docs) {
		t.Fatalf("DocCount() = %d, %v; want %d", count, err, len(docs))
	}

	tests := []struct {
		name     string
		query    string
		library  string
		wantName string
		wantNone bool
	}{
		{name: "exact label", query: "isWritable", wantName: "isWritable"},
		{name: "prefix", query: "itemcou", wantName: "itemCount"},
		{name: "library filter", query: "isWritable", library: "jive", wantNone: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := bleve.NewSearchRequest(indexing.NewSymbolQuery(tt.query, tt.library, ""))
			req.Size = 5
			req.Fields = []string{"*"}

			res, err := idx.Search(req)
			if err != nil {
				t.Fatalf("Search() error = %v", err)
			}
			if tt.wantNone {
				if len(res.Hits) != 0 {
					t.Errorf("Expected no hits, got %d", len(res.Hits))
				}
				return
			}
			if len(res.Hits) == 0 {
				t.Fatal("Expected hits, got none")
			}
			top := indexing.DocFromHit(res.Hits[0])
			if top.Name != tt.wantName {
				t.Errorf("Top hit = %s, want %s", top.Name, tt.wantName)
			}
			if top.Library != "jem" || top.URL == "" {
				t.Errorf("Stored fields not restored: %+v", top)
			}
		})
	}
}

func TestBuildDocuments_DuplicateKeys(t *testing.T) {
	f, err := searchdata.ParseFile("functions_0.js", []byte(`var searchData=
[
  ['foo_1',['foo',['../a.html#x',1,'ns::foo(int)']]],
  ['foo_1',['foo',['../b.html#y',1,'ns::foo(double)']]]
];`))
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if !searchdata.HasErrors(f.Validate()) {
		t.Fatal("duplicate keys should fail validation")
	}

	docs := indexing.BuildDocuments("demo", "", []*searchdata.File{f})
	if len(docs) != 2 || docs[0].ID == docs[1].ID {
		t.Fatalf("expected 2 distinct documents, got %+v", docs)
	}

	idx, err := bleve.NewMemOnly(indexing.NewIndexMapping())
	if err != nil {
		t.Fatalf("bleve.NewMemOnly() error = %v", err)
	}
	defer idx.Close()

	if err := indexing.IndexDocuments(idx, docs); err != nil {
		t.Fatalf("indexing.IndexDocuments() error = %v", err)
	}
	if count, _ := idx.DocCount(); count != 2 {
		t.Errorf("DocCount() = %d, want 2 (one per link)", count)
	}
}

func TestBuildIndex(t *testing.T) {
	f := loadFixture(t)
	docs := indexing.BuildDocuments("jem", "", []*searchdata.File{f})
	path := filepath.Join(t.TempDir(), "search", "index")

	if err := indexing.BuildIndex(path, docs); err != nil {
		t.Fatalf("indexing.BuildIndex() error = %v", err)
	}

	idx, err := bleve.Open(path)
	if err != nil {
		t.Fatalf("bleve.Open() error = %v", err)
	}
	defer idx.Close()

	count, _ := idx.DocCount()
	if int(count) != len(docs) {
		t.Errorf("DocCount() = %d, want %d", count, len(docs))
	}
}
