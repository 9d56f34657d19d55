package types

import "errors"

// Domain errors shared across components
var (
	// ErrNoItems is returned by random selection against an empty index.
	ErrNoItems = errors.New("no items in index")

	// ErrNoGeneration is returned when a query arrives before any index
	// generation has been published.
	ErrNoGeneration = errors.New("no index generation loaded")
)
