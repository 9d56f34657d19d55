package source

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
)

// Item type codes as stored in the catalog's items table. Codes outside
// this set are administrative rows and never reach the index.
const (
	TypeFile   = 1
	TypeFolder = 2
	TypeVolume = 3
	TypeRoot   = 4
)

// Item is one row of the items table.
type Item struct {
	ID   int64
	Name string
	Type int
}

// FileMeta is the optional per-item file metadata record. Every field
// except ItemID is nullable in the source.
type FileMeta struct {
	ItemID       int64
	Name         *string
	Size         *int64
	DateModified *string
	DateCreated  *string
}

// VolumeMeta is the per-volume metadata record.
type VolumeMeta struct {
	ItemID   int64
	Label    *string
	RootPath *string
}

// Signature captures the identity of the catalog file for change
// detection: modification time plus size.
type Signature struct {
	ModTime time.Time
	Size    int64
}

// Equal reports whether two signatures describe the same catalog state.
func (s Signature) Equal(o Signature) bool {
	return s.Size == o.Size && s.ModTime.Equal(o.ModTime)
}

// FileSignature stats the catalog file and returns its signature.
func FileSignature(path string) (Signature, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Signature{}, fmt.Errorf("failed to stat catalog: %w", err)
	}
	return Signature{ModTime: info.ModTime(), Size: info.Size()}, nil
}

// Store is a read-only handle on the catalog database.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens the catalog database read-only and verifies it is reachable.
func Open(path string) (*Store, error) {
	db, err := sql.Open(DriverName, "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}

	// One connection per concurrent bulk load; the snapshot reads four
	// tables in parallel.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(0)

	var probe int
	if err := db.QueryRow("SELECT COUNT(*) FROM items WHERE 1=0").Scan(&probe); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog unreadable or missing items table: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the catalog file path this store was opened on.
func (s *Store) Path() string {
	return s.path
}

// Ping verifies the catalog is still reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// CandidateFilter narrows the item enumeration while candidates are
// scanned. ExcludeNames holds compiled LIKE patterns matched against each
// candidate's effective name; MinFileSize drops files below the threshold
// (folders and volumes are always eligible).
type CandidateFilter struct {
	ExcludeNames []string
	MinFileSize  int64
}

// Snapshot is one complete in-memory read of the catalog tables. Items
// holds every row so ancestry walks can resolve names of non-candidate
// ancestors; Candidates holds only the index-eligible items.
type Snapshot struct {
	Items      map[int64]Item
	Candidates []Item
	FileMeta   map[int64]FileMeta
	Parents    map[int64][]int64
	Volumes    map[int64]VolumeMeta
}

// LoadSnapshot reads the four catalog tables concurrently and returns a
// consistent in-memory copy. Any read failure aborts the whole snapshot.
func (s *Store) LoadSnapshot(ctx context.Context, filter CandidateFilter) (*Snapshot, error) {
	snap := &Snapshot{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		items, err := s.loadItems(gctx)
		if err != nil {
			return err
		}
		snap.Items = items
		return nil
	})
	g.Go(func() error {
		cands, err := s.loadCandidates(gctx, filter)
		if err != nil {
			return err
		}
		snap.Candidates = cands
		return nil
	})
	g.Go(func() error {
		meta, err := s.loadFileMeta(gctx)
		if err != nil {
			return err
		}
		snap.FileMeta = meta
		return nil
	})
	g.Go(func() error {
		parents, volumes, err := s.loadLinksAndVolumes(gctx)
		if err != nil {
			return err
		}
		snap.Parents = parents
		snap.Volumes = volumes
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to snapshot catalog: %w", err)
	}
	return snap, nil
}

func (s *Store) loadItems(ctx context.Context) (map[int64]Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, type FROM items`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	items := make(map[int64]Item)
	for rows.Next() {
		var it Item
		var name sql.NullString
		if err := rows.Scan(&it.ID, &name, &it.Type); err != nil {
			return nil, err
		}
		it.Name = name.String
		items[it.ID] = it
	}
	return items, rows.Err()
}

// loadCandidates enumerates items eligible for indexing: files, folders
// and volumes, minus filename-pattern exclusions and undersized files.
// Exclusion runs against the effective name (file_meta override when
// present) so the name the user sees is the name the pattern hits.
func (s *Store) loadCandidates(ctx context.Context, filter CandidateFilter) ([]Item, error) {
	var b strings.Builder
	b.WriteString(`
		SELECT i.id, i.name, i.type
		FROM items i
		LEFT JOIN file_meta f ON f.item_id = i.id
		WHERE i.type IN (?, ?, ?)
	`)
	args := []interface{}{TypeFile, TypeFolder, TypeVolume}

	for _, p := range filter.ExcludeNames {
		b.WriteString(` AND COALESCE(f.name, i.name) NOT LIKE ? ESCAPE '\'`)
		args = append(args, p)
	}
	if filter.MinFileSize > 0 {
		b.WriteString(` AND (i.type != ? OR COALESCE(f.size, 0) >= ?)`)
		args = append(args, TypeFile, filter.MinFileSize)
	}
	b.WriteString(` ORDER BY i.id`)

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	candidates := make([]Item, 0)
	for rows.Next() {
		var it Item
		var name sql.NullString
		if err := rows.Scan(&it.ID, &name, &it.Type); err != nil {
			return nil, err
		}
		it.Name = name.String
		candidates = append(candidates, it)
	}
	return candidates, rows.Err()
}

func (s *Store) loadFileMeta(ctx context.Context) (map[int64]FileMeta, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT item_id, name, size, date_modified, date_created
		FROM file_meta
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	meta := make(map[int64]FileMeta)
	for rows.Next() {
		var m FileMeta
		var name, modified, created sql.NullString
		var size sql.NullInt64
		if err := rows.Scan(&m.ItemID, &name, &size, &modified, &created); err != nil {
			return nil, err
		}
		if name.Valid {
			m.Name = &name.String
		}
		if size.Valid {
			m.Size = &size.Int64
		}
		if modified.Valid {
			m.DateModified = &modified.String
		}
		if created.Valid {
			m.DateCreated = &created.String
		}
		meta[m.ItemID] = m
	}
	return meta, rows.Err()
}

// loadLinksAndVolumes shares one goroutine: both tables are tiny compared
// to items and file_meta.
func (s *Store) loadLinksAndVolumes(ctx context.Context) (map[int64][]int64, map[int64]VolumeMeta, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT item_id, parent_id FROM parent_links`)
	if err != nil {
		return nil, nil, err
	}
	parents := make(map[int64][]int64)
	for rows.Next() {
		var id int64
		var parent sql.NullInt64
		if err := rows.Scan(&id, &parent); err != nil {
			_ = rows.Close()
			return nil, nil, err
		}
		// parent_id 0 or NULL both mean "no parent"; keep the zero so the
		// walk can tell "root link present" from "no link row at all".
		parents[id] = append(parents[id], parent.Int64)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, nil, err
	}
	_ = rows.Close()

	vrows, err := s.db.QueryContext(ctx, `SELECT item_id, label, root_path FROM volume_meta`)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = vrows.Close() }()

	volumes := make(map[int64]VolumeMeta)
	for vrows.Next() {
		var v VolumeMeta
		var label, root sql.NullString
		if err := vrows.Scan(&v.ItemID, &label, &root); err != nil {
			return nil, nil, err
		}
		if label.Valid {
			v.Label = &label.String
		}
		if root.Valid {
			v.RootPath = &root.String
		}
		volumes[v.ItemID] = v
	}
	return parents, volumes, vrows.Err()
}
