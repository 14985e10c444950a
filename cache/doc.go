// Package cache provides deterministic cache keys and the cache-store contract
// for GraphQL responses.
//
// Keys have the form <prefix>//<digest>. The prefix scopes an entry to a
// service type, subgraph name and (for types where it is not a caller
// credential) identifier; the digest is an MD5 over the canonical JSON of the
// normalized operation and its variables.
//
// Stores persist the full Entry (endpoint, operation, data, variables) with a
// fixed TTL. Backends: in-memory, SQLite, Redis and NATS JetStream KV. An
// expired entry is indistinguishable from one that was never written.
package cache
