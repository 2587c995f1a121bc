package imageio

import (
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/fabrylab/clickpoints/pkg/types"
)

// DefaultTTL is the lifetime of cached pixels when none is configured.
const DefaultTTL = 5 * time.Minute

// Cache holds decoded pixels keyed by image id. Entries expire after the
// configured TTL.
type Cache struct {
	c *cache.Cache
}

// NewCache returns a cache with the given TTL. Zero uses DefaultTTL; a
// negative TTL keeps entries until they are deleted.
func NewCache(ttl time.Duration) *Cache {
	if ttl == 0 {
		ttl = DefaultTTL
	}
	cleanup := 2 * ttl
	if ttl < 0 {
		ttl, cleanup = cache.NoExpiration, 0
	}
	return &Cache{c: cache.New(ttl, cleanup)}
}

func key(id int64) string { return strconv.FormatInt(id, 10) }

// Get returns the cached pixels of an image.
func (c *Cache) Get(id int64) (*types.Pixels, bool) {
	v, ok := c.c.Get(key(id))
	if !ok {
		return nil, false
	}
	p, ok := v.(*types.Pixels)
	return p, ok
}

// Put caches the pixels of an image.
func (c *Cache) Put(id int64, p *types.Pixels) {
	c.c.Set(key(id), p, cache.DefaultExpiration)
}

// Delete drops the entry of an image.
func (c *Cache) Delete(id int64) { c.c.Delete(key(id)) }

// Flush drops every entry.
func (c *Cache) Flush() { c.c.Flush() }

// Len returns the number of entries, including expired ones not yet cleaned.
func (c *Cache) Len() int { return c.c.ItemCount() }
