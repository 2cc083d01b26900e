// Package server hosts the Fiber HTTP service and request middleware chain for
// the asset proxy. It binds GET/HEAD /f/{id}/{filename} to an injected
// AssetHandler, rejects ids that do not look content-addressed before the
// handler runs, and attaches a per-request id used by structured logs and the
// X-Request-ID response header. Diagnostics routes under /-/ are registered by
// the routes subpackage. Keep exports narrow and accept explicit dependencies.
package server
