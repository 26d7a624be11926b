// Package catalog stores the parsed search entries of every library in SQLite
// so exact lookups return all overloads of a symbol in file order.
package catalog

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ritukeshbharali/jemjive-3.0/internal/catalog/migrations"
	"github.com/ritukeshbharali/jemjive-3.0/internal/searchdata"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("catalog: symbol not found")

// Snapshot describes the currently stored generation of one library.
type Snapshot struct {
	ID          string    `json:"id" yaml:"id"`
	Library     string    `json:"library" yaml:"library"`
	Origin      string    `json:"origin" yaml:"origin"`
	Fingerprint string    `json:"fingerprint" yaml:"fingerprint"`
	Files       int       `json:"files" yaml:"files"`
	Entries     int       `json:"entries" yaml:"entries"`
	Links       int       `json:"links" yaml:"links"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Symbol is one search entry together with its links in file order.
type Symbol struct {
	Library  string            `json:"library" yaml:"library"`
	Category string            `json:"category" yaml:"category"`
	File     string            `json:"file" yaml:"file"`
	Key      string            `json:"key" yaml:"key"`
	Label    string            `json:"label" yaml:"label"`
	Links    []searchdata.Link `json:"links" yaml:"links"`
}

// Stats summarises the whole catalog.
type Stats struct {
	Libraries int `json:"libraries" yaml:"libraries"`
	Files     int `json:"files" yaml:"files"`
	Entries   int `json:"entries" yaml:"entries"`
	Links     int `json:"links" yaml:"links"`
}

// Store is the SQLite-backed catalog.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the catalog database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating catalog directory: %w", err)
	}

	// Pragmas in the DSN apply to every pooled connection, not just the first.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}
	return nil
}

// Fingerprint hashes raw file contents in name order. Two loads of the same
// generated output give the same fingerprint.
func Fingerprint(raw map[string][]byte) string {
	names := make([]string, 0, len(raw))
	for name := range raw {
		names = append(names, name)
	}
	sort.Strings(names)

	h := sha256.New()
	for _, name := range names {
		h.Write([]byte(name))
		h.Write([]byte{0})
		h.Write(raw[name])
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// ReplaceLibrary drops everything stored for library and inserts files in a
// single transaction, mirroring how a documentation build regenerates its
// search files wholesale.
func (s *Store) ReplaceLibrary(ctx context.Context, library, origin, fingerprint string, files []*searchdata.File) (Snapshot, error) {
	snap := Snapshot{
		ID:          uuid.New().String(),
		Library:     library,
		Origin:      origin,
		Fingerprint: fingerprint,
		Files:       len(files),
		CreatedAt:   time.Now().UTC(),
	}
	for _, f := range files {
		snap.Entries += len(f.Entries)
		snap.Links += f.LinkCount()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteLibraryRows(ctx, tx, library); err != nil {
		return Snapshot{}, fmt.Errorf("deleting previous snapshot: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO snapshots (id, library, origin, fingerprint, files, entries, links, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, snap.ID, snap.Library, snap.Origin, snap.Fingerprint, snap.Files, snap.Entries, snap.Links,
		snap.CreatedAt.Format(time.RFC3339Nano)); err != nil {
		return Snapshot{}, fmt.Errorf("saving snapshot: %w", err)
	}

	entryStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (file_id, position, key, label, label_lower) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("preparing statement: %w", err)
	}
	defer entryStmt.Close()

	linkStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO links (entry_id, position, url, internal, scope) VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("preparing statement: %w", err)
	}
	defer linkStmt.Close()

	for _, f := range files {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO files (snapshot_id, name, category, part) VALUES (?, ?, ?, ?)
		`, snap.ID, f.Name, f.Category, f.Part)
		if err != nil {
			return Snapshot{}, fmt.Errorf("saving file %s: %w", f.Name, err)
		}
		fileID, err := res.LastInsertId()
		if err != nil {
			return Snapshot{}, fmt.Errorf("reading file id: %w", err)
		}

		for pos, e := range f.Entries {
			res, err := entryStmt.ExecContext(ctx, fileID, pos, e.Key, e.Label, strings.ToLower(e.Label))
			if err != nil {
				return Snapshot{}, fmt.Errorf("saving entry %s: %w", e.Key, err)
			}
			entryID, err := res.LastInsertId()
			if err != nil {
				return Snapshot{}, fmt.Errorf("reading entry id: %w", err)
			}
			for lpos, l := range e.Links {
				if _, err := linkStmt.ExecContext(ctx, entryID, lpos, l.URL, l.Internal, l.Scope); err != nil {
					return Snapshot{}, fmt.Errorf("saving link of %s: %w", e.Key, err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, fmt.Errorf("committing transaction: %w", err)
	}
	return snap, nil
}

// StoredFingerprint returns the fingerprint of the stored snapshot of library,
// or "" when the library has never been ingested.
func (s *Store) StoredFingerprint(ctx context.Context, library string) (string, error) {
	var fp string
	err := s.db.QueryRowContext(ctx, `SELECT fingerprint FROM snapshots WHERE library = ?`, library).Scan(&fp)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading fingerprint: %w", err)
	}
	return fp, nil
}

// Lookup returns every entry whose label equals name case-insensitively or
// whose key equals name exactly. library restricts the search when set.
func (s *Store) Lookup(ctx context.Context, name, library string) ([]Symbol, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.library, f.category, f.name, e.id, e.key, e.label,
		       l.url, l.internal, l.scope
		FROM entries e
		JOIN files f ON f.id = e.file_id
		JOIN snapshots s ON s.id = f.snapshot_id
		LEFT JOIN links l ON l.entry_id = e.id
		WHERE (e.label_lower = ? OR e.key = ?)
		  AND (? = '' OR s.library = ?)
		ORDER BY s.library, f.category, f.part, f.id, e.position, l.position
	`, strings.ToLower(name), name, library, library)
	if err != nil {
		return nil, fmt.Errorf("querying symbols: %w", err)
	}
	defer rows.Close()

	var symbols []Symbol
	lastID := int64(-1)
	for rows.Next() {
		var (
			sym      Symbol
			entryID  int64
			url      sql.NullString
			internal sql.NullBool
			scope    sql.NullString
		)
		if err := rows.Scan(&sym.Library, &sym.Category, &sym.File, &entryID, &sym.Key, &sym.Label,
			&url, &internal, &scope); err != nil {
			return nil, fmt.Errorf("scanning symbol: %w", err)
		}
		if entryID != lastID {
			sym.Links = []searchdata.Link{}
			symbols = append(symbols, sym)
			lastID = entryID
		}
		if url.Valid {
			cur := &symbols[len(symbols)-1]
			cur.Links = append(cur.Links, searchdata.Link{
				URL:      url.String,
				Internal: internal.Bool,
				Scope:    scope.String,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating symbols: %w", err)
	}

	if len(symbols) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return symbols, nil
}

// Snapshots lists the stored snapshot of every library, by library name.
func (s *Store) Snapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, library, origin, fingerprint, files, entries, links, created_at
		FROM snapshots ORDER BY library
	`)
	if err != nil {
		return nil, fmt.Errorf("querying snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := []Snapshot{}
	for rows.Next() {
		var snap Snapshot
		var created string
		if err := rows.Scan(&snap.ID, &snap.Library, &snap.Origin, &snap.Fingerprint,
			&snap.Files, &snap.Entries, &snap.Links, &created); err != nil {
			return nil, fmt.Errorf("scanning snapshot: %w", err)
		}
		snap.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		snapshots = append(snapshots, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating snapshots: %w", err)
	}
	return snapshots, nil
}

// Stats counts the rows of the catalog.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM snapshots),
			(SELECT COUNT(*) FROM files),
			(SELECT COUNT(*) FROM entries),
			(SELECT COUNT(*) FROM links)
	`).Scan(&st.Libraries, &st.Files, &st.Entries, &st.Links)
	if err != nil {
		return Stats{}, fmt.Errorf("counting catalog rows: %w", err)
	}
	return st, nil
}

// Files rebuilds the stored files of library with entries and links in their
// original order.
func (s *Store) Files(ctx context.Context, library string) ([]*searchdata.File, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.name, f.category, f.part, e.id, e.key, e.label,
		       l.url, l.internal, l.scope
		FROM files f
		JOIN snapshots s ON s.id = f.snapshot_id
		LEFT JOIN entries e ON e.file_id = f.id
		LEFT JOIN links l ON l.entry_id = e.id
		WHERE s.library = ?
		ORDER BY f.category, f.part, f.id, e.position, l.position
	`, library)
	if err != nil {
		return nil, fmt.Errorf("querying files: %w", err)
	}
	defer rows.Close()

	var (
		files     []*searchdata.File
		lastFile  = int64(-1)
		lastEntry = int64(-1)
	)
	for rows.Next() {
		var (
			fileID   int64
			f        searchdata.File
			entryID  sql.NullInt64
			key      sql.NullString
			label    sql.NullString
			url      sql.NullString
			internal sql.NullBool
			scope    sql.NullString
		)
		if err := rows.Scan(&fileID, &f.Name, &f.Category, &f.Part, &entryID, &key, &label,
			&url, &internal, &scope); err != nil {
			return nil, fmt.Errorf("scanning file row: %w", err)
		}
		if fileID != lastFile {
			f.Entries = []searchdata.Entry{}
			files = append(files, &f)
			lastFile = fileID
		}
		if !entryID.Valid {
			continue
		}
		cur := files[len(files)-1]
		if entryID.Int64 != lastEntry {
			cur.Entries = append(cur.Entries, searchdata.Entry{
				Key:   key.String,
				Label: label.String,
				Links: []searchdata.Link{},
			})
			lastEntry = entryID.Int64
		}
		if url.Valid {
			e := &cur.Entries[len(cur.Entries)-1]
			e.Links = append(e.Links, searchdata.Link{
				URL:      url.String,
				Internal: internal.Bool,
				Scope:    scope.String,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating files: %w", err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: library %s", ErrNotFound, library)
	}
	return files, nil
}

// DeleteLibrary removes the stored snapshot of library and all its rows.
func (s *Store) DeleteLibrary(ctx context.Context, library string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := deleteLibraryRows(ctx, tx, library); err != nil {
		return fmt.Errorf("deleting snapshot: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// deleteLibraryRows removes the rows of a library, children first, so none are
// orphaned even on a connection where foreign keys are off.
func deleteLibraryRows(ctx context.Context, tx *sql.Tx, library string) error {
	stmts := []string{
		`DELETE FROM links WHERE entry_id IN (
			SELECT e.id FROM entries e
			JOIN files f ON f.id = e.file_id
			JOIN snapshots s ON s.id = f.snapshot_id
			WHERE s.library = ?)`,
		`DELETE FROM entries WHERE file_id IN (
			SELECT f.id FROM files f
			JOIN snapshots s ON s.id = f.snapshot_id
			WHERE s.library = ?)`,
		`DELETE FROM files WHERE snapshot_id IN (SELECT id FROM snapshots WHERE library = ?)`,
		`DELETE FROM snapshots WHERE library = ?`,
	}
	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt, library); err != nil {
			return err
		}
	}
	return nil
}
