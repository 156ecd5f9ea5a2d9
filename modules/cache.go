package modules

import (
	"sync"

	"github.com/wippyai/scripthost/boundary"
)

// Cache maps name hashes to the most recently registered module with that
// name, across every context.
type Cache struct {
	entries map[boundary.NameHash]*Module
	mu      sync.RWMutex
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[boundary.NameHash]*Module)}
}

// Register stores m under its name hash. The last registration wins.
func (c *Cache) Register(m *Module) {
	c.mu.Lock()
	c.entries[m.NameHash] = m
	c.mu.Unlock()
}

// Lookup returns the module registered under h.
func (c *Cache) Lookup(h boundary.NameHash) (*Module, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.entries[h]
	return m, ok
}

// Unregister removes whatever is registered under h.
func (c *Cache) Unregister(h boundary.NameHash) {
	c.mu.Lock()
	delete(c.entries, h)
	c.mu.Unlock()
}

// Remove unregisters m only if it is still the entry for its name, so a
// newer module with the same name survives. It reports whether m was removed.
func (c *Cache) Remove(m *Module) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[m.NameHash]; ok && cur == m {
		delete(c.entries, m.NameHash)
		return true
	}
	return false
}

// Len returns the number of registered names.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// All returns a snapshot of the registered modules.
func (c *Cache) All() []*Module {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Module, 0, len(c.entries))
	for _, m := range c.entries {
		out = append(out, m)
	}
	return out
}
