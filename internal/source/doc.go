// Package source provides read-only access to the hierarchical catalog
// database: items, per-file metadata, parent links and volume metadata.
//
// The catalog is owned by an external tool; this package never writes to
// it. A build takes one LoadSnapshot, an in-memory copy of all four tables
// read concurrently, so the index builder works from a single consistent
// view instead of issuing per-item lookups.
//
// Change detection uses FileSignature, a (mtime, size) pair compared
// against the values recorded at the last successful build.
//
// Two SQLite drivers are supported behind build tags: mattn/go-sqlite3
// with the cgo_sqlite tag, modernc.org/sqlite otherwise. See build_cgo.go
// and build_purego.go.
package source
