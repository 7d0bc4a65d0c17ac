// Package cache provides a read-through, TTL-expiring cache for the
// read-heavy listing and aggregate queries of the portal. It is a
// performance layer over re-derivable data, never the system of record,
// and the packet lifecycle write path never reads from it.
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

// Domain names a cache keyspace. Invalidation is per-domain rather than by
// raw string prefix, so "packets" can never accidentally sweep a
// "packet-versions" entry or vice versa.
type Domain string

const (
	DomainPackets        Domain = "packets"
	DomainPacketVersions Domain = "packet-versions"
	DomainRequirements   Domain = "requirements"
)

// Key is a structured cache key: a domain plus id parts.
type Key struct {
	domain Domain
	id     string
}

// NewKey builds a key within a domain from one or more id parts.
func NewKey(domain Domain, parts ...string) Key {
	return Key{domain: domain, id: strings.Join(parts, "/")}
}

func (k Key) String() string {
	return string(k.domain) + ":" + k.id
}

type entry struct {
	value     any
	expiresAt time.Time
}

// Cache is a process-local, mutex-guarded read-through cache with TTL
// expiry. The clock is injected so TTL behavior is testable; entries carry
// no cross-process guarantee.
type Cache struct {
	mu         sync.RWMutex
	entries    map[Key]entry
	defaultTTL time.Duration
	now        func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithClock overrides the time source, used by tests to control expiry.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// New creates a cache service instance. defaultTTL applies when GetOrCompute
// is called with a non-positive ttl.
func New(defaultTTL time.Duration, opts ...Option) *Cache {
	c := &Cache{
		entries:    make(map[Key]entry),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrCompute returns the cached value for key when present and unexpired;
// otherwise it invokes producer, stores the result with the given ttl, and
// returns it. A producer error is returned as-is and nothing is cached.
func GetOrCompute[T any](c *Cache, key Key, ttl time.Duration, producer func() (T, error)) (T, error) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}

	c.mu.RLock()
	cached, ok := c.entries[key]
	c.mu.RUnlock()
	if ok && c.now().Before(cached.expiresAt) {
		value, ok := cached.value.(T)
		if ok {
			return value, nil
		}
		// Type mismatch on a reused key; fall through and recompute.
	}

	value, err := producer()
	if err != nil {
		return value, err
	}

	c.mu.Lock()
	c.entries[key] = entry{value: value, expiresAt: c.now().Add(ttl)}
	c.mu.Unlock()

	return value, nil
}

// Invalidate removes every entry in the given domain. Write paths call this
// after a mutation that could change a cached query result.
func (c *Cache) Invalidate(domain Domain) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if key.domain == domain {
			delete(c.entries, key)
		}
	}
}

// InvalidateKey removes a single entry.
func (c *Cache) InvalidateKey(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len reports the number of live entries, expired or not. Mostly for tests
// and debug logging.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// String implements fmt.Stringer for debug logging.
func (c *Cache) String() string {
	return fmt.Sprintf("cache(entries=%d, defaultTTL=%s)", c.Len(), c.defaultTTL)
}
