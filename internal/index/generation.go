package index

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/catseek/catseek/internal/source"
	"github.com/catseek/catseek/pkg/types"
)

// generationSchema is the flat search index. The name column carries
// COLLATE NOCASE so equality and ordering are case-insensitive to match
// LIKE's default behavior; size is NULL for volumes and files without
// metadata.
const generationSchema = `
CREATE TABLE entries (
    id            INTEGER PRIMARY KEY,
    name          TEXT NOT NULL COLLATE NOCASE,
    type          TEXT NOT NULL,
    size          INTEGER,
    date_modified TEXT,
    date_created  TEXT,
    full_path     TEXT,
    volume_label  TEXT,
    volume_path   TEXT
);

CREATE INDEX idx_entries_name ON entries(name COLLATE NOCASE);
CREATE INDEX idx_entries_size ON entries(size DESC);
`

// Generation is one complete, immutable build of the flat search index,
// held in its own in-memory SQLite database. Readers take a reference
// around each query; retirement closes the database only once the last
// reference is released, so a publish can never yank storage out from
// under an executing query.
type Generation struct {
	db      *sql.DB
	seq     uint64
	builtAt time.Time
	sig     source.Signature
	stats   types.Statistics

	mu      sync.Mutex
	refs    int
	retired bool
}

func newGeneration(seq uint64) (*Generation, error) {
	db, err := sql.Open(source.DriverName, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open generation store: %w", err)
	}

	// A second connection would see a different, empty memory database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(generationSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create generation schema: %w", err)
	}

	return &Generation{db: db, seq: seq}, nil
}

// Seq returns the generation's publish sequence number.
func (g *Generation) Seq() uint64 { return g.seq }

// BuiltAt returns when the build of this generation completed.
func (g *Generation) BuiltAt() time.Time { return g.builtAt }

// Signature returns the source signature recorded at build time.
func (g *Generation) Signature() source.Signature { return g.sig }

// Stats returns the statistics computed when this generation was built.
func (g *Generation) Stats() types.Statistics { return g.stats }

// DB exposes the generation's database for read-only queries. Callers
// must hold a reference obtained via Acquire.
func (g *Generation) DB() *sql.DB { return g.db }

// Acquire takes a read reference. It returns false if the generation has
// already been retired, in which case the caller should re-fetch the
// current generation and try again.
func (g *Generation) Acquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.retired {
		return false
	}
	g.refs++
	return true
}

// Release drops a reference taken with Acquire. The last release after
// retirement closes the underlying database.
func (g *Generation) Release() {
	g.mu.Lock()
	g.refs--
	closeNow := g.retired && g.refs == 0
	g.mu.Unlock()
	if closeNow {
		_ = g.db.Close()
	}
}

// Retire marks the generation as superseded. New Acquire calls fail from
// here on; the database closes as soon as in-flight readers finish.
func (g *Generation) Retire() {
	g.mu.Lock()
	already := g.retired
	g.retired = true
	closeNow := !already && g.refs == 0
	g.mu.Unlock()
	if closeNow {
		_ = g.db.Close()
	}
}
