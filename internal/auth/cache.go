package auth

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// tokenCacheTTL is how long a player's recorded token is kept in memory.
const tokenCacheTTL = 10 * time.Minute

// Cache keeps recently used player tokens so that reconnects do not hit the
// database. Its contents are specific to each instance.
type Cache struct {
	cacheInstance *gocache.Cache
}

func NewCache() *Cache {
	return &Cache{cacheInstance: gocache.New(tokenCacheTTL, time.Minute)}
}

// Put sets a key/value pair in the cache with an optional duration. Passing 0 for
// ttl will cause the default expiration to be used and -1 will not set a ttl.
func (c *Cache) Put(key string, value string, ttl time.Duration) {
	c.cacheInstance.Set(key, value, ttl)
}

// Get fetches a value from the cache, returning the value as well as whether
// or not the value was found (semantics similar to map).
func (c *Cache) Get(key string) (string, bool) {
	v, ok := c.cacheInstance.Get(key)
	if !ok {
		return "", false
	}
	return v.(string), true
}
