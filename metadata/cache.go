package metadata

import (
	"math"
	"sync"

	"github.com/wippyai/scripthost/errors"
)

type nameKey struct {
	name string
	kind Kind
}

// Cache assigns ids to descriptors.
type Cache struct {
	byDesc map[Descriptor]ID
	byID   map[ID]Descriptor
	byName map[nameKey]ID
	mu     sync.RWMutex
	last   ID
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		byDesc: make(map[Descriptor]ID),
		byID:   make(map[ID]Descriptor),
		byName: make(map[nameKey]ID),
	}
}

// Intern returns the id for d, assigning the next one on first use.
func (c *Cache) Intern(d Descriptor) (ID, error) {
	if !d.Kind.Valid() {
		return 0, errors.New(errors.PhaseMetadata, errors.KindUnsupported).
			Detail("descriptor kind %v", d.Kind).
			Build()
	}

	c.mu.RLock()
	id, ok := c.byDesc[d]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if id, ok := c.byDesc[d]; ok {
		return id, nil
	}
	if c.last == math.MaxInt32 {
		return 0, errors.New(errors.PhaseMetadata, errors.KindUnknown).Detail("descriptor ids exhausted").Build()
	}
	c.last++
	id = c.last
	c.byDesc[d] = id
	c.byID[id] = d
	c.byName[nameKey{d.QualifiedName(), d.Kind}] = id
	return id, nil
}

// Resolve returns the descriptor for id.
func (c *Cache) Resolve(id ID) (Descriptor, error) {
	c.mu.RLock()
	d, ok := c.byID[id]
	c.mu.RUnlock()
	if !ok {
		return Descriptor{}, errors.New(errors.PhaseMetadata, errors.KindInvalidID).
			Detail("descriptor id %d is not interned", id).
			Value(int32(id)).
			Build()
	}
	return d, nil
}

// Lookup returns the most recently interned id of the given kind whose
// qualified name is name.
func (c *Cache) Lookup(kind Kind, name string) (ID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.byName[nameKey{name, kind}]
	return id, ok
}

// ClearAll drops every entry. Ids handed out before stay invalid.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	c.byDesc = make(map[Descriptor]ID)
	c.byID = make(map[ID]Descriptor)
	c.byName = make(map[nameKey]ID)
	c.mu.Unlock()
}

// Len returns the number of interned descriptors.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byID)
}
