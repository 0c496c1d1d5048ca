// Package opcache implements the operation cache: bounded LRU caches for
// deterministic transforms, embeddings, and search results, keyed by the
// invoking primitive plus a content hash of its arguments, with dependency
// tracking so a key is dropped when content it was computed from mutates.
package opcache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Key identifies one cached result.
type Key string

// KeyFor builds the cache key for a primitive invocation from the primitive
// name and a stable hash of its arguments. Arguments are serialized to JSON
// with sorted map keys, so logically equal argument sets produce equal keys.
func KeyFor(primitive string, args any) Key {
	blob, err := json.Marshal(args)
	if err != nil {
		// Unserializable arguments are never cached; return a key no
		// Put will ever store under.
		return ""
	}
	sum := sha256.Sum256(blob)
	return Key(primitive + ":" + hex.EncodeToString(sum[:]))
}

// Stats is a point-in-time view of one cache's counters.
type Stats struct {
	Hits   int64
	Misses int64
	Len    int
}

// Cache is one LRU cache with hit/miss counters and dependency-based
// invalidation. Safe for concurrent use.
type Cache struct {
	lru *lru.Cache[Key, any]

	hits   atomic.Int64
	misses atomic.Int64

	mu sync.Mutex
	// dependents maps a content key (a stored path, a node name) to the
	// cache keys whose results were derived from it.
	dependents map[string]map[Key]struct{}
	// depsOf is the reverse index used to unlink on eviction.
	depsOf map[Key][]string
}

// New creates a cache holding at most capacity entries.
func New(capacity int) (*Cache, error) {
	c := &Cache{
		dependents: make(map[string]map[Key]struct{}),
		depsOf:     make(map[Key][]string),
	}
	inner, err := lru.NewWithEvict[Key, any](capacity, func(key Key, _ any) {
		c.unlink(key)
	})
	if err != nil {
		return nil, err
	}
	c.lru = inner
	return c, nil
}

// Get returns the cached value for key, counting the lookup as a hit or
// miss.
func (c *Cache) Get(key Key) (any, bool) {
	if key == "" {
		c.misses.Add(1)
		return nil, false
	}
	v, ok := c.lru.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Put stores value under key, recording the content keys it depends on. A
// later Invalidate of any dependency drops the entry.
func (c *Cache) Put(key Key, value any, deps ...string) {
	if key == "" {
		return
	}
	c.mu.Lock()
	for _, d := range deps {
		set, ok := c.dependents[d]
		if !ok {
			set = make(map[Key]struct{})
			c.dependents[d] = set
		}
		set[key] = struct{}{}
	}
	c.depsOf[key] = append([]string(nil), deps...)
	c.mu.Unlock()

	c.lru.Add(key, value)
}

// Invalidate drops every cached entry that was computed from contentKey.
func (c *Cache) Invalidate(contentKey string) {
	c.mu.Lock()
	keys := make([]Key, 0, len(c.dependents[contentKey]))
	for k := range c.dependents[contentKey] {
		keys = append(keys, k)
	}
	c.mu.Unlock()

	for _, k := range keys {
		c.lru.Remove(k) // eviction callback unlinks dependency records
	}
}

// Purge drops every entry. Used for caches whose dependency set cannot be
// tracked precisely (search results span arbitrary content), where any
// mutation must conservatively clear the cache.
func (c *Cache) Purge() {
	c.lru.Purge()
}

func (c *Cache) unlink(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.depsOf[key] {
		if set, ok := c.dependents[d]; ok {
			delete(set, key)
			if len(set) == 0 {
				delete(c.dependents, d)
			}
		}
	}
	delete(c.depsOf, key)
}

// Stats returns the cache's counters.
func (c *Cache) Stats() Stats {
	return Stats{Hits: c.hits.Load(), Misses: c.misses.Load(), Len: c.lru.Len()}
}

// Caches bundles the three operation caches the engine maintains.
type Caches struct {
	Embeddings *Cache
	Transforms *Cache
	Searches   *Cache
}

// NewCaches builds the standard cache set, one capacity per cache.
func NewCaches(embeddings, transforms, searches int) (*Caches, error) {
	e, err := New(embeddings)
	if err != nil {
		return nil, err
	}
	t, err := New(transforms)
	if err != nil {
		return nil, err
	}
	s, err := New(searches)
	if err != nil {
		return nil, err
	}
	return &Caches{Embeddings: e, Transforms: t, Searches: s}, nil
}

// InvalidateContent drops every entry in every cache derived from
// contentKey. Search results cannot attribute their dependencies to
// individual keys, so the whole search cache clears on any mutation.
// Called by the primitive layer after a successful store; link purges only
// the search cache.
func (cs *Caches) InvalidateContent(contentKey string) {
	cs.Embeddings.Invalidate(contentKey)
	cs.Transforms.Invalidate(contentKey)
	cs.Searches.Purge()
}
