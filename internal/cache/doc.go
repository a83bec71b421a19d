// Package cache implements the layered response cache: a bounded in-process
// hot layer in front of a durable SQLite warm layer, with exact-match and
// token-set similarity lookup. Responses pass a cacheability filter before
// they are stored; rejected responses are never persisted. A corrupt warm
// store degrades the cache to hot-only operation instead of failing the
// request path.
package cache
