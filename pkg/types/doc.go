// Package types provides the shared public records of the catseek engine.
//
// These are the shapes consumed by the transport layer: search results,
// search responses, index statistics and catalog status. Nullable source
// fields (sizes, dates, volume attribution) are represented as pointers so
// absence of data stays unambiguous all the way to serialization.
package types
