package ident

import (
	"sync"
	"testing"

	"github.com/cespare/xxhash/v2"
)

func TestAssign_Stable(t *testing.T) {
	tbl := NewTable()

	a := tbl.Assign("scripts")
	b := tbl.Assign("scripts")
	if a != b {
		t.Fatalf("same name got different ids: %d, %d", a, b)
	}
	if a == 0 {
		t.Fatal("id 0 must never be assigned")
	}
	if a != ID(xxhash.Sum64String("scripts")) {
		t.Errorf("first assignment should use the plain hash")
	}

	name, ok := tbl.Name(a)
	if !ok || name != "scripts" {
		t.Errorf("Name(%d) = %q, %v", a, name, ok)
	}
}

func TestAssign_CollisionProbes(t *testing.T) {
	tbl := NewTable()

	// Occupy the hash slot of "b" with a different name.
	h := ID(xxhash.Sum64String("b"))
	tbl.mu.Lock()
	tbl.byName["a"] = h
	tbl.byID[h] = "a"
	tbl.mu.Unlock()

	id := tbl.Assign("b")
	if id == h {
		t.Fatal("colliding name reused a taken id")
	}
	if id != h+1 {
		t.Errorf("expected linear probe to %d, got %d", h+1, id)
	}

	if got, _ := tbl.Lookup("a"); got != h {
		t.Error("existing assignment changed")
	}
}

func TestLookup_Unknown(t *testing.T) {
	tbl := NewTable()
	if _, ok := tbl.Lookup("missing"); ok {
		t.Fatal("unexpected id for unknown name")
	}
	if _, ok := tbl.Name(1); ok {
		t.Fatal("unexpected name for unknown id")
	}
}

func TestAssign_Concurrent(t *testing.T) {
	tbl := NewTable()
	ids := make([]ID, 64)

	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = tbl.Assign("shared")
		}(i)
	}
	wg.Wait()

	for _, id := range ids {
		if id != ids[0] {
			t.Fatalf("concurrent assignments disagree: %d vs %d", id, ids[0])
		}
	}
	if tbl.Len() != 1 {
		t.Errorf("expected 1 name, got %d", tbl.Len())
	}
}
