package tools

import (
	"io/fs"
	"testing/fstest"
)

// MockDataProvider implements DataProvider over an in-memory file map.
type MockDataProvider struct {
	files fstest.MapFS
}

// NewMockDataProvider creates an empty mock data provider.
func NewMockDataProvider() *MockDataProvider {
	return &MockDataProvider{
		files: fstest.MapFS{},
	}
}

// AddFile adds a file; parent directories are implied by the path.
func (m *MockDataProvider) AddFile(name string, content []byte) {
	m.files[name] = &fstest.MapFile{Data: content, Mode: 0644}
}

func (m *MockDataProvider) Open(name string) (fs.File, error) {
	return m.files.Open(name)
}

func (m *MockDataProvider) ReadFile(name string) ([]byte, error) {
	return m.files.ReadFile(name)
}

func (m *MockDataProvider) ReadDir(name string) ([]fs.DirEntry, error) {
	return m.files.ReadDir(name)
}

// SetDefaultDataProvider replaces the provider used for bundled libraries.
func SetDefaultDataProvider(provider DataProvider) {
	defaultDataProvider = provider
}

// ResetDefaultDataProvider restores the embedded provider.
func ResetDefaultDataProvider() {
	defaultDataProvider = NewEmbeddedDataProvider()
}
