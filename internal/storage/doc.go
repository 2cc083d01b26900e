// Package storage defines the two-tier persistence contract for cached assets:
// small JSON metadata records and opaque content blobs, both addressed by
// (file id, filename). The filesystem reference implementation lays out one
// directory per content-addressed id holding <filename> for content and
// <filename>.json for metadata, writes through temp files with atomic renames,
// and serializes writers per entry. Metadata and content are independently
// present; an entry with metadata but no content is the expected "pending"
// state between URL generation and the first proxy fetch. Remote backends
// (object storage, KV) can implement the same interface as long as they keep
// that independence.
package storage
