// Package asset holds the pure domain model of the CDN cache: content-addressed
// file ids derived from origin URLs, descriptors that translate upstream asset
// references into canonical storage filenames, and the metadata record that the
// storage layer persists next to each content blob. Nothing in this package
// touches the network or the filesystem; higher layers (urlgen, proxy, cleanup)
// compose these values with storage and download primitives.
package asset
