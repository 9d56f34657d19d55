// Package service assembles the engine behind a single facade with the
// three operations the transport layer consumes: Search, Random and
// DBStatus. Routing, request validation and rendering live outside this
// module.
package service
