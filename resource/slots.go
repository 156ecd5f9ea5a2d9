package resource

import (
	"sync"

	"github.com/wippyai/scripthost/boundary"
)

// slots is the storage behind a Registry: a slice of entries with a free
// list. A handle is (generation << 32) | (index + 1).
type slots struct {
	entries  []entry
	freeList []uint32
	mu       sync.RWMutex
	closed   bool
}

type entry struct {
	value    any
	typeName string
	owner    boundary.ContextID
	gen      uint32
	valid    bool
}

func newSlots() *slots {
	return &slots{
		entries:  make([]entry, 0, 64),
		freeList: make([]uint32, 0, 16),
	}
}

func makeHandle(idx, gen uint32) boundary.Handle {
	return boundary.Handle(uint64(gen)<<32 | uint64(idx+1))
}

func splitHandle(h boundary.Handle) (idx, gen uint32, ok bool) {
	low := uint32(h)
	if low == 0 {
		return 0, 0, false
	}
	return low - 1, uint32(h >> 32), true
}

// create stores value and returns its handle, or 0 once closed.
func (s *slots) create(value any, owner boundary.ContextID, typeName string) boundary.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}

	if n := len(s.freeList); n > 0 {
		idx := s.freeList[n-1]
		s.freeList = s.freeList[:n-1]
		e := &s.entries[idx]
		e.value = value
		e.owner = owner
		e.typeName = typeName
		e.valid = true
		return makeHandle(idx, e.gen)
	}

	s.entries = append(s.entries, entry{
		value:    value,
		owner:    owner,
		typeName: typeName,
		gen:      1,
		valid:    true,
	})
	return makeHandle(uint32(len(s.entries)-1), 1)
}

// lookup returns the live entry for h. Callers hold s.mu.
func (s *slots) lookup(h boundary.Handle) (*entry, uint32, bool) {
	idx, gen, ok := splitHandle(h)
	if !ok || int(idx) >= len(s.entries) {
		return nil, 0, false
	}
	e := &s.entries[idx]
	if !e.valid || e.gen != gen {
		return nil, 0, false
	}
	return e, idx, true
}

func (s *slots) get(h boundary.Handle) (entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, _, ok := s.lookup(h)
	if !ok {
		return entry{}, false
	}
	return *e, true
}

// drop invalidates h and returns the entry it held.
func (s *slots) drop(h boundary.Handle) (entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, idx, ok := s.lookup(h)
	if !ok {
		return entry{}, false
	}
	out := *e
	s.free(e, idx)
	return out, true
}

// free clears e and returns its slot to the free list. Callers hold s.mu.
func (s *slots) free(e *entry, idx uint32) {
	e.valid = false
	e.value = nil
	e.typeName = ""
	e.owner = 0
	e.gen++
	if e.gen == 0 {
		e.gen = 1
	}
	s.freeList = append(s.freeList, idx)
}

// dropOwned invalidates every entry owned by owner.
func (s *slots) dropOwned(owner boundary.ContextID) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	var dropped []Event
	for i := range s.entries {
		e := &s.entries[i]
		if !e.valid || e.owner != owner {
			continue
		}
		dropped = append(dropped, Event{
			Type:     EventDropped,
			Handle:   makeHandle(uint32(i), e.gen),
			Owner:    e.owner,
			TypeName: e.typeName,
			Value:    e.value,
		})
		s.free(e, uint32(i))
	}
	return dropped
}

// close invalidates everything and returns what was live.
func (s *slots) close() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var dropped []Event
	for i := range s.entries {
		e := &s.entries[i]
		if !e.valid {
			continue
		}
		dropped = append(dropped, Event{
			Type:     EventDropped,
			Handle:   makeHandle(uint32(i), e.gen),
			Owner:    e.owner,
			TypeName: e.typeName,
			Value:    e.value,
		})
	}
	s.entries = nil
	s.freeList = nil
	return dropped
}

func (s *slots) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries) - len(s.freeList)
}

func (s *slots) each(fn func(boundary.Handle, entry) bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, e := range s.entries {
		if e.valid {
			if !fn(makeHandle(uint32(i), e.gen), e) {
				break
			}
		}
	}
}
