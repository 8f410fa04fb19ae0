package embedding

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hyperjump/rankd/internal/metrics"
)

// DefaultCacheSize bounds the number of document vectors kept in memory.
const DefaultCacheSize = 10000

// VectorCache is a thread-safe LRU of document vectors keyed by document id.
type VectorCache struct {
	lru *lru.Cache[string, Vector]
}

// NewVectorCache creates a cache holding at most capacity vectors.
func NewVectorCache(capacity int) (*VectorCache, error) {
	if capacity <= 0 {
		capacity = DefaultCacheSize
	}
	c, err := lru.New[string, Vector](capacity)
	if err != nil {
		return nil, err
	}
	return &VectorCache{lru: c}, nil
}

// Get returns the cached vector for id if present and marks it recently used.
func (c *VectorCache) Get(id string) (Vector, bool) {
	v, ok := c.lru.Get(id)
	if ok {
		metrics.VectorCache.WithLabelValues("hit").Inc()
	} else {
		metrics.VectorCache.WithLabelValues("miss").Inc()
	}
	return v, ok
}

// Set stores the vector for id, evicting the least recently used entry if at capacity.
func (c *VectorCache) Set(id string, v Vector) {
	c.lru.Add(id, v)
}

// Remove drops id from the cache.
func (c *VectorCache) Remove(id string) {
	c.lru.Remove(id)
}

// Len returns the number of cached vectors.
func (c *VectorCache) Len() int {
	return c.lru.Len()
}
