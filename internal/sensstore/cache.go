package sensstore

import (
	"container/list"
	"sync"

	"github.com/petroseis/pgi/internal/metrics"
)

// DefaultCacheBytes is the chunk cache budget used when none is given.
const DefaultCacheBytes = 256 << 20

// ChunkCache keeps decoded chunks in memory so repeated matrix products
// skip the fetch-and-decompress path. Eviction is LRU by byte budget.
// Cached slices are shared with callers and must not be mutated.
type ChunkCache struct {
	mu sync.Mutex

	maxBytes  int64
	usedBytes int64

	entries map[string]*list.Element
	lru     *list.List // front = most recently used
}

type cacheEntry struct {
	key    string
	values []float64
	size   int64
}

// NewChunkCache builds a cache with the given byte budget. A non-positive
// budget falls back to DefaultCacheBytes.
func NewChunkCache(maxBytes int64) *ChunkCache {
	if maxBytes <= 0 {
		maxBytes = DefaultCacheBytes
	}
	return &ChunkCache{
		maxBytes: maxBytes,
		entries:  make(map[string]*list.Element),
		lru:      list.New(),
	}
}

func (c *ChunkCache) get(key string) ([]float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		metrics.ChunkCacheMisses.Inc()
		return nil, false
	}
	metrics.ChunkCacheHits.Inc()
	c.lru.MoveToFront(el)
	return el.Value.(*cacheEntry).values, true
}

func (c *ChunkCache) put(key string, values []float64) {
	size := int64(len(values) * 8)
	if size > c.maxBytes {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		ent := el.Value.(*cacheEntry)
		c.usedBytes += size - ent.size
		ent.values = values
		ent.size = size
		c.lru.MoveToFront(el)
		c.evictLocked()
		return
	}

	c.entries[key] = c.lru.PushFront(&cacheEntry{key: key, values: values, size: size})
	c.usedBytes += size
	c.evictLocked()
}

func (c *ChunkCache) evictLocked() {
	for c.usedBytes > c.maxBytes {
		el := c.lru.Back()
		if el == nil {
			return
		}
		ent := el.Value.(*cacheEntry)
		c.lru.Remove(el)
		delete(c.entries, ent.key)
		c.usedBytes -= ent.size
		metrics.ChunkCacheEvictions.Inc()
	}
}

// Len reports the number of cached chunks.
func (c *ChunkCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// UsedBytes reports the decoded bytes currently held.
func (c *ChunkCache) UsedBytes() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.usedBytes
}
