// Package index builds flat, search-optimized generations from the
// hierarchical catalog.
//
// A build reads one snapshot of the source, resolves every candidate's
// full path and owning volume by walking the parent-link graph (bounded
// depth, cycle-guarded), applies filename and directory exclusions,
// aggregates folder sizes, and stages everything into a fresh in-memory
// SQLite database with a case-insensitive name index.
//
// A Generation is immutable once returned from Build. Publication is the
// caller's atomic pointer swap; retirement waits for in-flight readers via
// the generation's reference count, so queries always observe either the
// complete old generation or the complete new one.
package index
