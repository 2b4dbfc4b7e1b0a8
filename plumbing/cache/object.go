// Package cache provides an in-memory object cache used to avoid
// re-reading and re-inflating loose objects and delta bases during pack
// reconstruction (§4.2 File backend specifics).
package cache

import (
	"sync"

	"github.com/golang/groupcache/lru"

	"github.com/haugantoine/git/plumbing"
)

// Object is the cache contract consumed by the file backend's object
// reader and the packfile delta resolver.
type Object interface {
	Add(o plumbing.EncodedObject)
	Get(id plumbing.ObjectID) (plumbing.EncodedObject, bool)
	Clear()
}

const (
	// DefaultMaxSize bounds the default object LRU to 96 MiB, matching
	// the order of magnitude go-git's default object cache uses.
	DefaultMaxSize = 96 * 1024 * 1024
)

// lruObjectCache is an Object cache backed by groupcache/lru with no
// entry-count limit; it tracks the running total of cached payload sizes
// itself and evicts the oldest entries once that total would exceed
// maxSize, since groupcache/lru itself only knows about entry counts.
type lruObjectCache struct {
	mu      sync.Mutex
	maxSize int64
	size    int64
	entries *lru.Cache
}

// NewObjectLRU returns an Object cache that evicts the least recently
// used entry once the sum of cached object sizes would exceed maxSize.
func NewObjectLRU(maxSize int64) Object {
	c := &lruObjectCache{maxSize: maxSize}
	c.entries = &lru.Cache{
		OnEvicted: func(key lru.Key, value interface{}) {
			c.size -= value.(plumbing.EncodedObject).Size()
		},
	}
	return c
}

// NewObjectLRUDefault returns an Object cache sized to DefaultMaxSize.
func NewObjectLRUDefault() Object {
	return NewObjectLRU(DefaultMaxSize)
}

func (c *lruObjectCache) Add(o plumbing.EncodedObject) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if o.Size() > c.maxSize {
		return
	}

	key := lru.Key(o.ID())
	if _, ok := c.entries.Get(key); !ok {
		c.size += o.Size()
	}
	c.entries.Add(key, o)

	for c.size > c.maxSize {
		c.entries.RemoveOldest()
	}
}

func (c *lruObjectCache) Get(id plumbing.ObjectID) (plumbing.EncodedObject, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.entries.Get(lru.Key(id))
	if !ok {
		return nil, false
	}
	return v.(plumbing.EncodedObject), true
}

func (c *lruObjectCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries.Clear()
	c.size = 0
}
