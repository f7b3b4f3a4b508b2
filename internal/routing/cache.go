package routing

import (
	"encoding/json"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// CachedRouter memoises successful results of another router keyed on
// the statement and the JSON form of the argument, so pointers are keyed by
// what they point at. Arguments that cannot be encoded bypass the cache.
// Routers that decide on unexported fields should not be cached.
type CachedRouter struct {
	next  Router
	cache *gocache.Cache
}

// NewCachedRouter wraps next with a TTL cache
func NewCachedRouter(next Router, ttl time.Duration) *CachedRouter {
	return &CachedRouter{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Route implements Router
func (c *CachedRouter) Route(fact Fact) (Result, error) {
	key, ok := cacheKey(fact)
	if !ok {
		return c.next.Route(fact)
	}
	if cached, found := c.cache.Get(key); found {
		return cached.(Result), nil
	}

	result, err := c.next.Route(fact)
	if err != nil {
		return Result{}, err
	}

	c.cache.Set(key, result, gocache.DefaultExpiration)
	return result, nil
}

// Flush drops every cached result
func (c *CachedRouter) Flush() {
	c.cache.Flush()
}

// Len returns the number of cached results
func (c *CachedRouter) Len() int {
	return c.cache.ItemCount()
}

func cacheKey(fact Fact) (string, bool) {
	encoded, err := json.Marshal(fact.Argument)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("%s|%T|%s", fact.Statement, fact.Argument, encoded), true
}
