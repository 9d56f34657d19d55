// Package pattern translates user-facing text into safe matching primitives.
//
// Two inputs arrive here: typed search queries and configured glob-style
// exclude patterns. Both are compiled into patterns for the SQL LIKE
// language (multi-character wildcard '%', single-character wildcard '_',
// escape character '\') and only ever travel as bind parameters, so user
// text can never alter query structure.
//
// The package is pure and stateless: malformed search input degrades to
// best-effort term extraction, never an error; malformed exclude patterns
// return ErrInvalidPattern and are handled (logged, skipped) by the caller.
package pattern
