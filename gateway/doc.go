// Package gateway is the caching GraphQL proxy: the dispatch protocol and its
// HTTP surface.
//
// A request names an upstream family by route, /{type}/{identifier}/{name},
// and carries a GraphQL query. The Dispatcher resolves the upstream endpoint,
// normalizes the operation, derives a cache key and consults the cache store.
// Hits are answered from the store. Misses are forwarded upstream once, with
// no retry, and successful JSON answers are persisted and returned verbatim.
// Every hit and every write is reported as a usage event.
//
// The cache store is fail-open: read errors are treated as misses and write
// errors are logged while the upstream answer is still returned.
//
// # Usage
//
//	d, err := gateway.NewDispatcher(gateway.Config{
//	    Resolver: endpoint.NewResolver(endpoint.Config{Credential: key}),
//	    Store:    cache.NewMemoryStore(),
//	    Usage:    emitter,
//	})
//	http.ListenAndServe(":8080", gateway.NewRouter(d, gateway.RouterConfig{}))
package gateway
