package resolve

import (
	"context"
	"net/netip"
	"slices"
	"time"

	"github.com/projectdiscovery/gcache"
)

// Cache remembers successful lookups for a while. Failures are not
// cached, so an unreachable host is retried on every sweep.
type Cache struct {
	next    Resolver
	entries store
}

// store is the part of gcache.Cache in use.
type store interface {
	Get(key string) ([]netip.Addr, error)
	Set(key string, value []netip.Addr) error
	Len(checkExpired bool) int
	Purge()
}

// NewCache wraps next with an LRU cache of size entries expiring after
// ttl.
func NewCache(next Resolver, size int, ttl time.Duration) *Cache {
	return &Cache{
		next: next,
		entries: gcache.New[string, []netip.Addr](size).
			LRU().
			Expiration(ttl).
			Build(),
	}
}

func (c *Cache) LookupNetIP(ctx context.Context, network, host string) ([]netip.Addr, error) {
	key := network + "/" + host
	if addrs, err := c.entries.Get(key); err == nil {
		return slices.Clone(addrs), nil
	}

	addrs, err := c.next.LookupNetIP(ctx, network, host)
	if err != nil {
		return nil, err
	}
	if err := c.entries.Set(key, slices.Clone(addrs)); err != nil {
		log.Errorf("%s: not caching lookup: %v", host, err)
	}
	return addrs, nil
}

// Len returns the number of live entries.
func (c *Cache) Len() int {
	return c.entries.Len(true)
}

// Purge forgets everything.
func (c *Cache) Purge() {
	c.entries.Purge()
}
