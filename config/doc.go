// Package config loads the gateway configuration.
//
// Values are layered: built-in defaults, then an optional YAML file, then
// environment variables prefixed with GRAPHCACHE_. The bypass credential may
// be a secret reference (secretref:env:NAME, secretref:file:NAME) or contain
// ${VAR} expansions; it is resolved once at load time.
//
// Environment variable names follow the struct layout, for example
// GRAPHCACHE_CACHE_BACKEND, GRAPHCACHE_BYPASS_CREDENTIAL and
// GRAPHCACHE_TELEMETRY_LOG_LEVEL.
package config
