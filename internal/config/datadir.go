package config

import (
	"log"
	"os"
	"path/filepath"
)

// DataDirEnv overrides data directory resolution when set.
const DataDirEnv = "JEMDOC_DATA_DIR"

// Layout of the data directory.
const (
	ConfigFile       = "config.toml"
	CatalogFile      = "catalog.db"
	IndexDir         = "search/index"
	LockFile         = "search/index.lock"
	IndexVersionFile = "search/.index_version"
)

// ResolveDataDir picks the directory holding the index, catalog and config:
// $JEMDOC_DATA_DIR, then ~/.jemdoc, then data/ next to the binary, then ./data.
// The chosen directory and its search/ subdirectory are created.
func ResolveDataDir() string {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		if err := ensureLayout(dir); err == nil {
			log.Printf("✓ Data directory: %s ($%s)", dir, DataDirEnv)
			return dir
		} else {
			log.Printf("Warning: Could not use %s=%s: %v", DataDirEnv, dir, err)
		}
	}

	// Strategy 1: user home directory (standalone installation)
	homeDir, err := os.UserHomeDir()
	if err == nil {
		userDataDir := filepath.Join(homeDir, ".jemdoc")
		if info, err := os.Stat(userDataDir); err == nil && info.IsDir() {
			ensureLayout(userDataDir)
			log.Printf("✓ Data directory: %s (user home)", userDataDir)
			return userDataDir
		}
		if err := ensureLayout(userDataDir); err == nil {
			log.Printf("✓ Data directory created: %s", userDataDir)
			return userDataDir
		} else {
			log.Printf("Warning: Could not create user data directory at %s: %v", userDataDir, err)
		}
	} else {
		log.Printf("Warning: Could not determine user home directory: %v", err)
	}

	// Strategy 2: data/ next to the executable
	if execPath, err := os.Executable(); err == nil {
		relativeDataDir := filepath.Join(filepath.Dir(execPath), "data")
		if info, err := os.Stat(relativeDataDir); err == nil && info.IsDir() {
			dir, _ := filepath.Abs(relativeDataDir)
			ensureLayout(dir)
			log.Printf("✓ Data directory: %s (relative to binary)", dir)
			return dir
		}
	}

	// Strategy 3: current working directory
	dir := filepath.Join(".", "data")
	log.Printf("Warning: Data directory (fallback): %s", dir)
	ensureLayout(dir)
	return dir
}

func ensureLayout(dir string) error {
	return os.MkdirAll(filepath.Join(dir, "search"), 0755)
}
