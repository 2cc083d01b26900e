// Package cleanup walks the asset store and removes expired entries. Removal
// is per content id: an id survives as long as any of its filenames is still
// fresh, pending, or undecidable (missing expiry, malformed metadata). The
// sweeper is invoked from the CLI cleanup mode and supports a dry-run that
// only reports what a real sweep would delete.
package cleanup
