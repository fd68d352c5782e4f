package resolve

import "sync"

// Cache stores per-file resolution results keyed by content hash, safe
// for concurrent use by file-resolution workers. A changed content hash
// misses, so edits invalidate naturally.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	contentHash uint64
	refs        []ResolvedRef
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry)}
}

// Get returns the cached resolutions for path when the content hash
// still matches.
func (c *Cache) Get(path string, contentHash uint64) ([]ResolvedRef, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[path]
	if !ok || entry.contentHash != contentHash {
		return nil, false
	}
	return entry.refs, true
}

// Put stores resolutions for path at the given content hash.
func (c *Cache) Put(path string, contentHash uint64, refs []ResolvedRef) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[path] = cacheEntry{contentHash: contentHash, refs: refs}
}

// Invalidate drops the entry for path.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, path)
}

// Len returns the number of cached files.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
