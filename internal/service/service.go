package service

import (
	"context"
	"os"
	"time"

	"github.com/catseek/catseek/internal/config"
	"github.com/catseek/catseek/internal/index"
	"github.com/catseek/catseek/internal/refresh"
	"github.com/catseek/catseek/internal/search"
	"github.com/catseek/catseek/internal/source"
	"github.com/catseek/catseek/pkg/types"
)

// Service is the facade the transport layer talks to: search, random
// selection and catalog status, wired over the refresh coordinator and
// the query engine.
type Service struct {
	store    *source.Store
	coord    *refresh.Coordinator
	searcher *search.Searcher
}

// New opens the catalog read-only and assembles the engine. The index is
// not built yet; call Start.
func New(cfg config.Config) (*Service, error) {
	store, err := source.Open(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	builder := index.NewBuilder(store, index.Config{
		ExcludePatterns: cfg.ExcludePatterns,
		MinFileSize:     cfg.MinFileSize,
	})

	coord := refresh.New(builder, cfg.CatalogPath, refresh.Options{
		Debounce:    time.Duration(cfg.DebounceMs) * time.Millisecond,
		RefreshHour: cfg.RefreshHour,
	})

	return &Service{
		store:    store,
		coord:    coord,
		searcher: search.New(coord),
	}, nil
}

// Start builds the first generation and starts the refresh triggers. It
// fails when no generation can be built at all.
func (s *Service) Start(ctx context.Context) error {
	return s.coord.Start(ctx)
}

// Stop tears the engine down: refresh triggers first, then the catalog
// handle.
func (s *Service) Stop() {
	s.coord.Stop()
	_ = s.store.Close()
}

// Search answers a user query with pagination.
func (s *Service) Search(ctx context.Context, query string, limit, offset int) (*types.SearchResponse, error) {
	return s.searcher.Search(ctx, query, limit, offset)
}

// Random returns one uniformly selected entry.
func (s *Service) Random(ctx context.Context) (*types.Result, error) {
	return s.searcher.Random(ctx)
}

// DBStatus reports the catalog file state and the statistics of the
// currently published generation.
func (s *Service) DBStatus(ctx context.Context) (*types.DBStatus, error) {
	status := &types.DBStatus{
		Path:      s.store.Path(),
		Connected: s.store.Ping(ctx) == nil,
	}

	if info, err := os.Stat(s.store.Path()); err == nil {
		status.FileSizeBytes = info.Size()
		modified := info.ModTime().UTC().Format(time.RFC3339)
		status.LastModified = &modified
	}

	if g := s.coord.Current(); g != nil {
		loaded := g.BuiltAt().UTC().Format(time.RFC3339)
		status.LastLoaded = &loaded
		status.Generation = g.Seq()
		status.Statistics = g.Stats()
	}

	return status, nil
}
