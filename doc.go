// Package partialcache provides a template fragment cache for server-rendered views.
// A nested view is rendered once and its output is served from a cache until expiry or explicit invalidation.
//
// Features:
//
//  - Template directives (@cache, @cacheIf, @cacheWhen) expanded when a view is compiled.
//  - Malformed directive expressions fail at compile time, before any request is served.
//  - Variations produce distinct cache entries for the same fragment.
//  - Explicit zero TTL is passed to the store unchanged, unset TTL falls back to configured default.
//  - Pluggable stores: in-memory, failover with per-key build locks, Redis.
//  - Global bypass switch for local development, per-request bypass and refresh via context.
//  - Allows logging, stats collection.
package partialcache
