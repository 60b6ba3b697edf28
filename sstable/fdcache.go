package sstable

import (
	"container/list"
	"os"
	"sync"
)

// DescriptorCache is a bounded LRU of open SSTable file handles,
// adapted from a write-side rotating-segment writer into a read-side
// cache: since tables are immutable and never removed, a cached
// handle never needs to be invalidated, only evicted for capacity.
//
// Each cached file has its own mutex so concurrent Get calls against
// different tables don't serialize on each other, while concurrent
// reads of the same table's file do (a single *os.File's read
// position is not safe for concurrent seek+read otherwise).
type DescriptorCache struct {
	mu       sync.Mutex
	capacity int
	entries  map[string]*list.Element
	order    *list.List
}

type cachedFile struct {
	file *os.File
	mu   sync.Mutex
}

type cacheEntry struct {
	path string
	cf   *cachedFile
}

// NewDescriptorCache returns a cache that evicts the least recently
// used handles beyond capacity (see evictLocked for when it cannot).
func NewDescriptorCache(capacity int) *DescriptorCache {
	return &DescriptorCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Acquire returns the cached handle for path (opening and caching one
// if absent), locked for exclusive use. The caller must invoke the
// returned release func when done.
func (c *DescriptorCache) Acquire(path string) (*os.File, func(), error) {
	c.mu.Lock()
	if el, ok := c.entries[path]; ok {
		c.order.MoveToFront(el)
		cf := el.Value.(*cacheEntry).cf
		c.mu.Unlock()
		cf.mu.Lock()
		return cf.file, func() { cf.mu.Unlock() }, nil
	}

	f, err := os.Open(path)
	if err != nil {
		c.mu.Unlock()
		return nil, nil, err
	}
	cf := &cachedFile{file: f}
	el := c.order.PushFront(&cacheEntry{path: path, cf: cf})
	c.entries[path] = el
	c.evictLocked()
	c.mu.Unlock()

	cf.mu.Lock()
	return cf.file, func() { cf.mu.Unlock() }, nil
}

// evictLocked closes the least recently used handles beyond capacity.
// If the least recently used entry is locked by an in-flight read,
// eviction stops there rather than blocking on it, so the cache can
// stay above capacity until a later Acquire evicts again.
func (c *DescriptorCache) evictLocked() {
	for c.order.Len() > c.capacity {
		back := c.order.Back()
		if back == nil {
			return
		}
		entry := back.Value.(*cacheEntry)
		if !entry.cf.mu.TryLock() {
			return
		}
		entry.cf.file.Close()
		entry.cf.mu.Unlock()
		c.order.Remove(back)
		delete(c.entries, entry.path)
	}
}

// Close closes every cached handle.
func (c *DescriptorCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for _, el := range c.entries {
		entry := el.Value.(*cacheEntry)
		entry.cf.mu.Lock()
		if err := entry.cf.file.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		entry.cf.mu.Unlock()
	}
	c.entries = make(map[string]*list.Element)
	c.order.Init()
	return firstErr
}
