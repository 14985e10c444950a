package cache

import (
	"strings"
	"time"
)

// Policy configures caching behavior.
type Policy struct {
	// TTL is how long entries live. If zero, caching is disabled.
	TTL time.Duration

	// MaxTTL is the maximum allowed TTL. Override TTLs are clamped to this.
	// If zero, no maximum is enforced.
	MaxTTL time.Duration

	// CacheMutations permits caching mutation and subscription operations.
	CacheMutations bool
}

// DefaultPolicy returns the default caching policy.
// TTL: 5 minutes, MaxTTL: 1 hour, CacheMutations: false
func DefaultPolicy() Policy {
	return Policy{
		TTL:    DefaultTTL,
		MaxTTL: 1 * time.Hour,
	}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache returns true if caching is enabled by this policy.
func (p Policy) ShouldCache() bool {
	return p.TTL > 0
}

// Cacheable reports whether an operation of the given kind may be cached.
// Kind is "query", "mutation" or "subscription"; an empty kind is a query.
func (p Policy) Cacheable(kind string) bool {
	if !p.ShouldCache() {
		return false
	}
	switch strings.ToLower(kind) {
	case "", "query":
		return true
	default:
		return p.CacheMutations
	}
}

// EffectiveTTL returns the TTL to use, applying defaults and clamping.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.TTL
	}

	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}

	return ttl
}
