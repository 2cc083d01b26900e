// Package proxy serves /f/{id}/{filename} requests: it resolves stored
// metadata, lazily downloads and persists origin bytes on the first real
// fetch, and emits conditional cache semantics (ETag, 304) plus configured
// Cache-Control directives on the way out. Concurrent first fetches for the
// same entry are coalesced through a singleflight group so only one request
// hits the origin. Storage misses surface as 404, origin failures as 502;
// partial content is never committed because downloads are fully buffered
// before the store write.
package proxy
