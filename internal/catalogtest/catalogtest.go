// Package catalogtest builds real catalog database fixtures for tests.
package catalogtest

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/catseek/catseek/internal/source"
)

const schema = `
CREATE TABLE items (
    id   INTEGER PRIMARY KEY,
    name TEXT,
    type INTEGER
);
CREATE TABLE file_meta (
    item_id       INTEGER PRIMARY KEY,
    name          TEXT,
    size          INTEGER,
    date_modified TEXT,
    date_created  TEXT
);
CREATE TABLE parent_links (
    item_id   INTEGER,
    parent_id INTEGER
);
CREATE TABLE volume_meta (
    item_id   INTEGER PRIMARY KEY,
    label     TEXT,
    root_path TEXT
);
`

// Catalog is a writable catalog database under a test temp dir.
type Catalog struct {
	t      *testing.T
	db     *sql.DB
	path   string
	nextID int64
}

// New creates an empty catalog file with the source schema.
func New(t *testing.T) *Catalog {
	t.Helper()

	path := filepath.Join(t.TempDir(), "catalog.db")
	db, err := sql.Open(source.DriverName, path)
	if err != nil {
		t.Fatalf("failed to open fixture catalog: %v", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create fixture schema: %v", err)
	}

	c := &Catalog{t: t, db: db, path: path}
	t.Cleanup(c.Close)
	return c
}

// Path returns the catalog file path.
func (c *Catalog) Path() string { return c.path }

// Close closes the fixture's write handle. Idempotent.
func (c *Catalog) Close() { _ = c.db.Close() }

// Exec runs arbitrary SQL against the fixture.
func (c *Catalog) Exec(query string, args ...interface{}) {
	c.t.Helper()
	if _, err := c.db.Exec(query, args...); err != nil {
		c.t.Fatalf("fixture exec failed: %v", err)
	}
}

func (c *Catalog) addItem(name string, typ int) int64 {
	c.t.Helper()
	c.nextID++
	c.Exec(`INSERT INTO items (id, name, type) VALUES (?, ?, ?)`, c.nextID, name, typ)
	return c.nextID
}

// AddParent links an item to a parent; parent 0 records an explicit root
// marker.
func (c *Catalog) AddParent(item, parent int64) {
	c.t.Helper()
	c.Exec(`INSERT INTO parent_links (item_id, parent_id) VALUES (?, ?)`, item, parent)
}

// AddVolume adds a volume item with its metadata. Empty label/rootPath
// are stored as NULL.
func (c *Catalog) AddVolume(name, label, rootPath string) int64 {
	c.t.Helper()
	id := c.addItem(name, source.TypeVolume)
	c.AddParent(id, 0)
	c.Exec(`INSERT INTO volume_meta (item_id, label, root_path) VALUES (?, ?, ?)`,
		id, nullable(label), nullable(rootPath))
	return id
}

// AddFolder adds a folder item under parent (0 for root).
func (c *Catalog) AddFolder(name string, parent int64) int64 {
	c.t.Helper()
	id := c.addItem(name, source.TypeFolder)
	c.AddParent(id, parent)
	return id
}

// AddFile adds a file item with a size and a fixed modification date.
func (c *Catalog) AddFile(name string, parent, size int64) int64 {
	c.t.Helper()
	id := c.addItem(name, source.TypeFile)
	c.AddParent(id, parent)
	c.Exec(`INSERT INTO file_meta (item_id, name, size, date_modified, date_created) VALUES (?, NULL, ?, ?, NULL)`,
		id, size, "2024-05-01T12:00:00Z")
	return id
}

// AddItem adds an item of an arbitrary type code under parent.
func (c *Catalog) AddItem(name string, typ int, parent int64) int64 {
	c.t.Helper()
	id := c.addItem(name, typ)
	c.AddParent(id, parent)
	return id
}

// SetFileName overrides the file_meta display name of an item.
func (c *Catalog) SetFileName(item int64, name string) {
	c.t.Helper()
	c.Exec(`
		INSERT INTO file_meta (item_id, name) VALUES (?, ?)
		ON CONFLICT(item_id) DO UPDATE SET name = excluded.name
	`, item, name)
}

// Bump advances the catalog file's mtime well past timestamp granularity
// so signature comparison sees a change.
func (c *Catalog) Bump() {
	c.t.Helper()
	info, err := os.Stat(c.path)
	if err != nil {
		c.t.Fatalf("failed to stat fixture: %v", err)
	}
	next := info.ModTime().Add(2 * time.Second)
	if err := os.Chtimes(c.path, next, next); err != nil {
		c.t.Fatalf("failed to bump fixture mtime: %v", err)
	}
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
