//go:build !cgo_sqlite
// +build !cgo_sqlite

package source

// This file is compiled when building without the cgo_sqlite tag.
//
// Build command:
//   CGO_ENABLED=0 go build ./...
//
// The pure Go implementation needs no C compiler and cross-compiles
// cleanly; bulk loads are somewhat slower than the C driver.
//
// Driver used: modernc.org/sqlite

import (
	_ "modernc.org/sqlite"
)

const (
	// DriverName is the SQLite driver to use
	DriverName = "sqlite"

	// BuildMode describes the current build configuration
	BuildMode = "purego"
)
