// Package refresh keeps the published index generation in sync with the
// catalog file.
//
// Two independent triggers feed one entry point: a debounced fsnotify
// watcher on the catalog file, and an hourly sweep for filesystems with
// unreliable change notifications. Both funnel into CheckAndReload, which
// compares the file's (mtime, size) signature with the one recorded at
// the last successful build and rebuilds on any difference. A singleflight
// group guarantees overlapping triggers share one rebuild.
//
// Publication is an atomic pointer swap; the superseded generation is
// retired and reclaimed only after its last in-flight reader finishes. A
// rebuild failure after startup is logged and the stale-but-valid
// generation keeps serving.
package refresh
