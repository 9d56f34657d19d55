package search

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/catseek/catseek/internal/index"
	"github.com/catseek/catseek/internal/pattern"
	"github.com/catseek/catseek/pkg/types"
)

const (
	// MaxLimit caps the page size of a single search call.
	MaxLimit = 1000
	// DefaultLimit applies when the caller leaves the limit unspecified.
	DefaultLimit = 100

	cacheSize = 1024
)

// GenerationProvider hands out the current index generation and lets the
// searcher trigger a freshness check before each query. The refresh
// coordinator implements it.
type GenerationProvider interface {
	// CheckAndReload rebuilds the index if the source changed. A failed
	// rebuild is not fatal to the query: the previous generation keeps
	// serving.
	CheckAndReload(ctx context.Context) error
	// Current returns the published generation, or nil before the first
	// successful build.
	Current() *index.Generation
}

// Searcher answers queries against whichever generation is current at the
// moment of execution. A single query never mixes rows from two
// generations: it pins one generation for its whole lifetime.
type Searcher struct {
	provider GenerationProvider
	cache    *lru.Cache[string, []types.Result]
}

// New creates a Searcher on top of the given provider.
func New(provider GenerationProvider) *Searcher {
	cache, err := lru.New[string, []types.Result](cacheSize)
	if err != nil {
		// Only reachable with a non-positive size constant.
		panic(fmt.Sprintf("failed to create search cache: %v", err))
	}
	return &Searcher{provider: provider, cache: cache}
}

// Search executes a user query with pagination. The limit is clamped to
// [1, MaxLimit] with DefaultLimit applied when zero; a negative offset
// becomes 0. An empty or all-whitespace query matches everything.
func (s *Searcher) Search(ctx context.Context, query string, limit, offset int) (*types.SearchResponse, error) {
	start := time.Now()

	if err := s.provider.CheckAndReload(ctx); err != nil {
		log.Printf("search: reload check failed, serving current generation: %v", err)
	}

	switch {
	case limit == 0:
		limit = DefaultLimit
	case limit < 1:
		limit = 1
	case limit > MaxLimit:
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}

	g, err := s.pin()
	if err != nil {
		return nil, err
	}
	defer g.Release()

	// The generation sequence in the key makes hits from older builds
	// impossible; stale entries age out of the LRU on their own.
	key := fmt.Sprintf("%d|%d|%d|%s", g.Seq(), limit, offset, query)
	results, ok := s.cache.Get(key)
	if !ok {
		results, err = runQuery(ctx, g.DB(), query, limit, offset)
		if err != nil {
			return nil, err
		}
		s.cache.Add(key, results)
	}

	return &types.SearchResponse{
		Query:                  query,
		Results:                results,
		TotalResultsOnThisPage: len(results),
		ExecutionTimeMs:        float64(time.Since(start).Microseconds()) / 1000.0,
	}, nil
}

// Random returns one entry selected uniformly from the current generation.
func (s *Searcher) Random(ctx context.Context) (*types.Result, error) {
	if err := s.provider.CheckAndReload(ctx); err != nil {
		log.Printf("search: reload check failed, serving current generation: %v", err)
	}

	g, err := s.pin()
	if err != nil {
		return nil, err
	}
	defer g.Release()

	row := g.DB().QueryRowContext(ctx, selectColumns+` FROM entries ORDER BY RANDOM() LIMIT 1`)
	res, err := scanResult(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, types.ErrNoItems
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// pin fetches the current generation and takes a read reference. Losing
// the race against a concurrent publish just means retrying against the
// freshly published generation.
func (s *Searcher) pin() (*index.Generation, error) {
	for attempt := 0; attempt < 8; attempt++ {
		g := s.provider.Current()
		if g == nil {
			return nil, types.ErrNoGeneration
		}
		if g.Acquire() {
			return g, nil
		}
	}
	return nil, fmt.Errorf("failed to pin index generation")
}

const selectColumns = `
	SELECT id, name, type, size, date_modified, date_created,
	       full_path, volume_label, volume_path`

// runQuery compiles the search text into a conjunction of substring
// predicates over the name column and executes it with stable ordering:
// size descending, id ascending on ties, so pages never overlap.
func runQuery(ctx context.Context, db *sql.DB, query string, limit, offset int) ([]types.Result, error) {
	var b strings.Builder
	b.WriteString(selectColumns)
	b.WriteString(` FROM entries`)

	var args []interface{}
	for i, term := range pattern.ParseQuery(query) {
		if i == 0 {
			b.WriteString(` WHERE `)
		} else {
			b.WriteString(` AND `)
		}
		b.WriteString(`name LIKE ? ESCAPE '\'`)
		args = append(args, pattern.TermToMatchPattern(term))
	}
	b.WriteString(` ORDER BY size DESC, id LIMIT ? OFFSET ?`)
	args = append(args, limit, offset)

	rows, err := db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]types.Result, 0, limit)
	for rows.Next() {
		res, err := scanResult(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, res)
	}
	return results, rows.Err()
}

func scanResult(scan func(dest ...interface{}) error) (types.Result, error) {
	var res types.Result
	var typ string
	var size sql.NullInt64
	var modified, created, fullPath, volLabel, volPath sql.NullString

	err := scan(&res.ID, &res.Name, &typ, &size, &modified, &created,
		&fullPath, &volLabel, &volPath)
	if err != nil {
		return res, err
	}

	res.Type = types.EntryType(typ)
	if size.Valid {
		res.Size = size.Int64
	}
	if modified.Valid {
		res.DateModified = &modified.String
	}
	if created.Valid {
		res.DateCreated = &created.String
	}
	if volLabel.Valid {
		res.VolumeLabel = &volLabel.String
	}
	if volPath.Valid {
		res.VolumePath = &volPath.String
	}

	res.Path = displayPath(res.Name, fullPath, volLabel, volPath)
	return res, nil
}

// displayPath resolves the presentation path: volume root prefix when
// known, bracketed label as a fallback, bare full path without volume
// attribution, and finally the entry's own name when no path resolved.
func displayPath(name string, fullPath, volLabel, volPath sql.NullString) string {
	if !fullPath.Valid {
		return name
	}
	switch {
	case volPath.Valid:
		return strings.TrimRight(volPath.String, "/") + "/" + fullPath.String
	case volLabel.Valid:
		return "[" + volLabel.String + "] " + fullPath.String
	default:
		return fullPath.String
	}
}
