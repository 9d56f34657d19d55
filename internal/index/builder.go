package index

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/catseek/catseek/internal/pattern"
	"github.com/catseek/catseek/internal/source"
	"github.com/catseek/catseek/pkg/types"
)

// maxWalkDepth bounds the length of any resolved ancestor chain. Hitting
// the cap is not an error: the chain is truncated and reports "no volume
// found".
const maxWalkDepth = 128

// Config contains configuration for the index builder.
type Config struct {
	// ExcludePatterns are glob-style rules removing matching filenames or
	// whole directory subtrees at build time. Invalid patterns are logged
	// and skipped; they never abort a build.
	ExcludePatterns []string
	// MinFileSize drops files smaller than this many bytes. Folders and
	// volumes are unaffected.
	MinFileSize int64
}

// Builder produces complete index generations from the catalog store.
type Builder struct {
	store     *source.Store
	filenames []pattern.Exclude
	dirs      []pattern.Exclude
	minSize   int64
}

// NewBuilder compiles the exclude patterns and returns a Builder. Each
// malformed pattern is reported once and dropped from the active set.
func NewBuilder(store *source.Store, cfg Config) *Builder {
	b := &Builder{store: store, minSize: cfg.MinFileSize}
	for _, raw := range cfg.ExcludePatterns {
		ex, err := pattern.ParseExclude(raw)
		if err != nil {
			log.Printf("index: skipping exclude pattern: %v", err)
			continue
		}
		switch ex.Kind {
		case pattern.ExcludeFilename:
			b.filenames = append(b.filenames, ex)
		case pattern.ExcludeDirectory:
			b.dirs = append(b.dirs, ex)
		}
	}
	return b
}

// entryRow is one staged index entry prior to insertion.
type entryRow struct {
	id           int64
	name         string
	typ          types.EntryType
	size         *int64
	dateModified *string
	dateCreated  *string
	fullPath     *string
	volumeLabel  *string
	volumePath   *string
}

// Build reads the catalog once and materializes a new generation. The
// returned generation is fully built but not yet published; the caller
// owns the swap. On any failure the partial generation is discarded and
// the error surfaced, leaving whatever generation is currently published
// untouched.
func (b *Builder) Build(ctx context.Context, seq uint64) (*Generation, error) {
	start := time.Now()

	// Record the signature before reading: if the catalog changes while we
	// read it, the next check-and-reload sees a difference and rebuilds.
	sig, err := source.FileSignature(b.store.Path())
	if err != nil {
		return nil, err
	}

	filter := source.CandidateFilter{MinFileSize: b.minSize}
	for _, ex := range b.filenames {
		filter.ExcludeNames = append(filter.ExcludeNames, ex.Match)
	}

	snap, err := b.store.LoadSnapshot(ctx, filter)
	if err != nil {
		return nil, err
	}

	g, err := newGeneration(seq)
	if err != nil {
		return nil, err
	}

	if err := b.populate(ctx, g, snap); err != nil {
		g.Retire()
		return nil, err
	}

	g.sig = sig
	g.builtAt = time.Now()
	log.Printf("index: built generation %d (%d entries, %d files, %v)",
		seq, g.stats.TotalItems, g.stats.TotalFiles, time.Since(start).Round(time.Millisecond))
	return g, nil
}

func (b *Builder) populate(ctx context.Context, g *Generation, snap *source.Snapshot) error {
	tx, err := g.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin generation transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	chains, err := insertEntries(ctx, tx, snap)
	if err != nil {
		return err
	}

	if err := b.applyDirectoryExcludes(ctx, tx); err != nil {
		return err
	}

	if err := computeFolderSizes(ctx, tx, snap, chains); err != nil {
		return err
	}

	stats, err := computeStats(ctx, tx)
	if err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit generation: %w", err)
	}

	g.stats = stats
	return nil
}

// insertEntries resolves ancestry for every candidate and stages it into
// the entries table. It returns the chosen ancestry chain per entry id for
// the folder-size pass.
func insertEntries(ctx context.Context, tx *sql.Tx, snap *source.Snapshot) (map[int64][]int64, error) {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (id, name, type, size, date_modified, date_created, full_path, volume_label, volume_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare entry insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	res := newAncestryResolver(snap)
	chains := make(map[int64][]int64, len(snap.Candidates))
	for _, it := range snap.Candidates {
		row, chain := buildEntry(snap, res, it)
		chains[it.ID] = chain
		_, err := stmt.ExecContext(ctx,
			row.id, row.name, string(row.typ), row.size,
			row.dateModified, row.dateCreated, row.fullPath,
			row.volumeLabel, row.volumePath)
		if err != nil {
			return nil, fmt.Errorf("failed to insert entry %d: %w", row.id, err)
		}
	}
	return chains, nil
}

// buildEntry turns one candidate item into a staged entry. The returned
// chain lists the item's chosen ancestors, youngest first.
func buildEntry(snap *source.Snapshot, res *ancestryResolver, it source.Item) (entryRow, []int64) {
	row := entryRow{id: it.ID, name: it.Name}
	fm, hasMeta := snap.FileMeta[it.ID]
	if hasMeta && fm.Name != nil {
		row.name = *fm.Name
	}

	switch it.Type {
	case source.TypeVolume:
		// A volume is its own attribution and carries no path or size.
		row.typ = types.EntryVolume
		vm := snap.Volumes[it.ID]
		row.volumeLabel = vm.Label
		row.volumePath = vm.RootPath
		return row, nil
	case source.TypeFolder:
		row.typ = types.EntryFolder
		zero := int64(0)
		row.size = &zero // updated by the folder-size pass
	default:
		row.typ = types.EntryFile
		if hasMeta {
			row.size = fm.Size
			row.dateModified = fm.DateModified
			row.dateCreated = fm.DateCreated
		}
	}

	anc := res.resolve(it.ID)
	chain, volumeID := anc.chain, anc.volume

	segments := make([]string, 0, len(chain)+1)
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i] == volumeID {
			continue // the volume's own name is excluded from the path
		}
		segments = append(segments, snap.Items[chain[i]].Name)
	}
	segments = append(segments, row.name)
	fullPath := strings.Join(segments, "/")
	row.fullPath = &fullPath

	if volumeID != 0 {
		vm := snap.Volumes[volumeID]
		row.volumeLabel = vm.Label
		row.volumePath = vm.RootPath
	}
	return row, chain
}

// ancestry is the resolved placement of one item: its chosen ancestor
// chain (youngest first) and the owning volume's id, 0 when none.
type ancestry struct {
	chain  []int64
	volume int64
}

// ancestryResolver resolves ancestor chains over the parent-link graph
// with per-item memoization: an item's chosen chain is its best parent's
// chain plus one hop, so every item is resolved exactly once no matter
// how many link rows reference it. Enumerating chains without the memo
// is exponential in depth when items carry multiple parent edges.
type ancestryResolver struct {
	items   map[int64]source.Item
	parents map[int64][]int64
	memo    map[int64]ancestry
	onPath  map[int64]bool
}

func newAncestryResolver(snap *source.Snapshot) *ancestryResolver {
	return &ancestryResolver{
		items:   snap.Items,
		parents: snap.Parents,
		memo:    make(map[int64]ancestry, len(snap.Items)),
		onPath:  make(map[int64]bool),
	}
}

// resolve returns the chosen ancestry of itemID. When several chains
// exist, any chain that reaches a volume beats one that does not, a
// deeper chain beats a shallower one, and ties keep the first chain in
// source edge order.
//
// The traversal is an explicit depth-first post-order: an item is pushed
// until all of its resolvable parents are memoized, then combined. A
// parent still on the active path is a cycle edge and is treated as an
// unparented root, so malformed input can neither recurse unboundedly
// nor loop forever.
func (r *ancestryResolver) resolve(itemID int64) ancestry {
	if a, ok := r.memo[itemID]; ok {
		return a
	}

	stack := []int64{itemID}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		if _, done := r.memo[cur]; done {
			stack = stack[:len(stack)-1]
			continue
		}

		if !r.onPath[cur] {
			r.onPath[cur] = true
			ready := true
			for _, p := range r.parents[cur] {
				if p == 0 || r.onPath[p] {
					continue
				}
				parent, ok := r.items[p]
				if !ok || parent.Type == source.TypeVolume || parent.Type == source.TypeRoot {
					continue
				}
				if _, done := r.memo[p]; !done {
					stack = append(stack, p)
					ready = false
				}
			}
			if !ready {
				continue
			}
		}

		r.memo[cur] = r.combine(cur)
		delete(r.onPath, cur)
		stack = stack[:len(stack)-1]
	}
	return r.memo[itemID]
}

// combine picks the best ancestry for id from its parent edges, all of
// which are terminal or already memoized by the time it runs.
func (r *ancestryResolver) combine(id int64) ancestry {
	var best ancestry
	haveBest := false
	consider := func(a ancestry) {
		if haveBest {
			if (best.volume != 0) != (a.volume != 0) {
				if best.volume != 0 {
					return
				}
			} else if len(a.chain) <= len(best.chain) {
				return
			}
		}
		best = a
		haveBest = true
	}

	for _, p := range r.parents[id] {
		if p == 0 {
			consider(ancestry{}) // explicit root marker
			continue
		}
		parent, ok := r.items[p]
		if !ok {
			consider(ancestry{}) // dangling link
			continue
		}
		switch parent.Type {
		case source.TypeVolume:
			consider(ancestry{chain: []int64{p}, volume: p})
		case source.TypeRoot:
			consider(ancestry{}) // root markers never appear in paths
		default:
			if r.onPath[p] {
				consider(ancestry{}) // cycle guard
				continue
			}
			pa := r.memo[p]
			chain := make([]int64, 0, len(pa.chain)+1)
			chain = append(chain, p)
			chain = append(chain, pa.chain...)
			volume := pa.volume
			if len(chain) > maxWalkDepth {
				chain = chain[:maxWalkDepth]
				volume = 0 // depth cap: give up on finding a volume
			}
			consider(ancestry{chain: chain, volume: volume})
		}
	}
	return best
}

// applyDirectoryExcludes drops every staged entry whose resolved full path
// is the excluded directory, ends in it, or passes through it anywhere: a
// match at any path segment removes the whole subtree below it.
func (b *Builder) applyDirectoryExcludes(ctx context.Context, tx *sql.Tx) error {
	for _, ex := range b.dirs {
		_, err := tx.ExecContext(ctx, `
			DELETE FROM entries
			WHERE full_path LIKE ? ESCAPE '\'
			   OR full_path LIKE ? ESCAPE '\'
			   OR full_path LIKE ? ESCAPE '\'
			   OR full_path LIKE ? ESCAPE '\'
		`, ex.Match, ex.Match+"/%", "%/"+ex.Match, "%/"+ex.Match+"/%")
		if err != nil {
			return fmt.Errorf("failed to apply exclude %q: %w", ex.Raw, err)
		}
	}
	return nil
}

// computeFolderSizes sums file sizes up each file's chosen ancestry chain.
// Only entries that survived exclusion participate, so folder sizes always
// agree with the file set of the same generation.
func computeFolderSizes(ctx context.Context, tx *sql.Tx, snap *source.Snapshot, chains map[int64][]int64) error {
	folders, err := entryIDs(ctx, tx, types.EntryFolder)
	if err != nil {
		return err
	}
	files, err := entryIDs(ctx, tx, types.EntryFile)
	if err != nil {
		return err
	}

	totals := make(map[int64]int64, len(folders))
	for fileID := range files {
		fm, ok := snap.FileMeta[fileID]
		if !ok || fm.Size == nil || *fm.Size == 0 {
			continue
		}
		for _, anc := range chains[fileID] {
			if _, isFolder := folders[anc]; isFolder {
				totals[anc] += *fm.Size
			}
		}
	}

	stmt, err := tx.PrepareContext(ctx, `UPDATE entries SET size = ? WHERE id = ?`)
	if err != nil {
		return fmt.Errorf("failed to prepare size update: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for id, total := range totals {
		if _, err := stmt.ExecContext(ctx, total, id); err != nil {
			return fmt.Errorf("failed to update folder size for %d: %w", id, err)
		}
	}
	return nil
}

func entryIDs(ctx context.Context, tx *sql.Tx, typ types.EntryType) (map[int64]struct{}, error) {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM entries WHERE type = ?`, string(typ))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	ids := make(map[int64]struct{})
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

func computeStats(ctx context.Context, tx *sql.Tx) (types.Statistics, error) {
	var stats types.Statistics
	queries := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM entries`, &stats.TotalItems},
		{`SELECT COUNT(*) FROM entries WHERE type = 'file'`, &stats.TotalFiles},
		{`SELECT COUNT(*) FROM entries WHERE type = 'folder'`, &stats.TotalFolders},
		{`SELECT COUNT(*) FROM entries WHERE type = 'volume'`, &stats.TotalVolumes},
	}
	for _, q := range queries {
		if err := tx.QueryRowContext(ctx, q.query).Scan(q.dest); err != nil {
			return stats, fmt.Errorf("failed to compute statistics: %w", err)
		}
	}
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(size), 0) FROM entries WHERE type = 'file'`,
	).Scan(&stats.TotalSizeBytes)
	if err != nil {
		return stats, fmt.Errorf("failed to compute total size: %w", err)
	}
	return stats, nil
}
