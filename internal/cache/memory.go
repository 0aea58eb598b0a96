package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	sourceTag string
	expiresAt time.Time
}

// MemoryCache is the in-process backend. It is the fallback when no shared
// store is reachable and the bottom layer of the tiered cache. Expired
// entries are dropped lazily on read.
type MemoryCache struct {
	mu         sync.RWMutex
	entries    map[string]*memoryEntry
	bySource   map[string]map[string]struct{}
	defaultTTL time.Duration
	now        func() time.Time
}

func NewMemoryCache(defaultTTL time.Duration) *MemoryCache {
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	return &MemoryCache{
		entries:    make(map[string]*memoryEntry),
		bySource:   make(map[string]map[string]struct{}),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, agentName string) ([]byte, bool) {
	c.mu.RLock()
	entry, ok := c.entries[agentName]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.mu.Lock()
		// re-check under the write lock; a Put may have raced the expiry
		if cur, ok := c.entries[agentName]; ok && c.now().After(cur.expiresAt) {
			c.removeLocked(agentName, cur)
		}
		c.mu.Unlock()
		return nil, false
	}
	return entry.value, true
}

func (c *MemoryCache) Put(_ context.Context, agentName string, value []byte, sourceTag string, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if old, ok := c.entries[agentName]; ok {
		c.unindexLocked(agentName, old.sourceTag)
	}
	c.entries[agentName] = &memoryEntry{
		value:     value,
		sourceTag: sourceTag,
		expiresAt: c.now().Add(ttl),
	}
	if sourceTag != "" {
		idx, ok := c.bySource[sourceTag]
		if !ok {
			idx = make(map[string]struct{})
			c.bySource[sourceTag] = idx
		}
		idx[agentName] = struct{}{}
	}
}

func (c *MemoryCache) Invalidate(_ context.Context, agentName string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if entry, ok := c.entries[agentName]; ok {
		c.removeLocked(agentName, entry)
	}
}

func (c *MemoryCache) InvalidateBySource(_ context.Context, sourceTag string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx, ok := c.bySource[sourceTag]
	if !ok {
		return 0
	}
	count := 0
	for agentName := range idx {
		if entry, ok := c.entries[agentName]; ok && entry.sourceTag == sourceTag {
			delete(c.entries, agentName)
			count++
		}
	}
	delete(c.bySource, sourceTag)
	return count
}

func (c *MemoryCache) Close() error {
	return nil
}

func (c *MemoryCache) removeLocked(agentName string, entry *memoryEntry) {
	delete(c.entries, agentName)
	c.unindexLocked(agentName, entry.sourceTag)
}

func (c *MemoryCache) unindexLocked(agentName, sourceTag string) {
	if idx, ok := c.bySource[sourceTag]; ok {
		delete(idx, agentName)
		if len(idx) == 0 {
			delete(c.bySource, sourceTag)
		}
	}
}
