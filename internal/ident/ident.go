// Package ident assigns stable numeric identities to names.
//
// Ids start from the xxhash of the name. When two different names hash to
// the same value the later one probes forward until it finds a free id, so
// ids never collide. Assignments are kept for the life of the table, which
// makes the id of a name stable across unload and reload.
package ident

import (
	"sync"

	"github.com/cespare/xxhash/v2"
)

// ID is a collision-checked name identity. Zero is never assigned.
type ID uint64

// Table maps names to ids and back.
type Table struct {
	byName map[string]ID
	byID   map[ID]string
	mu     sync.RWMutex
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		byName: make(map[string]ID),
		byID:   make(map[ID]string),
	}
}

// Assign returns the id for name, allocating one on first use.
func (t *Table) Assign(name string) ID {
	t.mu.RLock()
	id, ok := t.byName[name]
	t.mu.RUnlock()
	if ok {
		return id
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if id, ok := t.byName[name]; ok {
		return id
	}

	id = ID(xxhash.Sum64String(name))
	for {
		if id == 0 {
			id++
			continue
		}
		if _, taken := t.byID[id]; !taken {
			break
		}
		id++
	}

	t.byName[name] = id
	t.byID[id] = name
	return id
}

// Lookup returns the id previously assigned to name.
func (t *Table) Lookup(name string) (ID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	id, ok := t.byName[name]
	return id, ok
}

// Name returns the name an id was assigned to.
func (t *Table) Name(id ID) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	name, ok := t.byID[id]
	return name, ok
}

// Len returns the number of assigned names.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byName)
}
