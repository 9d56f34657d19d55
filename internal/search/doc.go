// Package search is the query engine: it compiles parsed search terms
// into parameterized LIKE predicates, executes them against the current
// index generation with stable size-descending pagination, and maps rows
// to public result records.
//
// Each call first asks the refresh coordinator to check-and-reload, then
// pins whichever generation is current for the full duration of the
// query. A small LRU cache keyed by generation sequence short-circuits
// repeated pages of the same query.
package search
