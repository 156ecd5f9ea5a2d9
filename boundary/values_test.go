package boundary

import (
	"errors"
	"runtime"
	"sync"
	"testing"

	serrors "github.com/wippyai/scripthost/errors"
)

func TestString_FreeOnce(t *testing.T) {
	s := NewString("hello")
	if !s.Valid() || s.String() != "hello" || s.Len() != 5 {
		t.Fatalf("unexpected string state: %q (%d)", s.String(), s.Len())
	}

	alias := s
	if !alias.Free() {
		t.Fatal("first Free should release")
	}
	if s.Free() {
		t.Error("second Free through a copy should be a no-op")
	}
	if s.Valid() || s.String() != "" || s.Bytes() != nil || s.Len() != 0 {
		t.Error("freed string should be empty")
	}
}

func TestString_ConcurrentFree(t *testing.T) {
	s := NewString("x")
	var wg sync.WaitGroup
	var mu sync.Mutex
	released := 0
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.Free() {
				mu.Lock()
				released++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if released != 1 {
		t.Fatalf("expected exactly one release, got %d", released)
	}
}

func TestString_FromBytes(t *testing.T) {
	src := []byte("abc")
	s := StringFromBytes(src)
	src[0] = 'z'
	if s.String() != "abc" {
		t.Errorf("string should own a copy, got %q", s.String())
	}

	bad := StringFromBytes([]byte{'a', 0xff, 'b'})
	if bad.String() != "a�b" {
		t.Errorf("invalid utf-8 should be replaced, got %q", bad.String())
	}

	var zero String
	if zero.Valid() || zero.Free() {
		t.Error("zero String should be invalid")
	}
}

func TestArray_Owning(t *testing.T) {
	src := []int32{1, 2, 3}
	a := ArrayOf(src)
	src[0] = 99

	if !a.Owning() {
		t.Fatal("ArrayOf should own its buffer")
	}
	v, err := a.At(0)
	if err != nil || v != 1 {
		t.Fatalf("At(0) = %d, %v", v, err)
	}
	if err := a.Set(2, 30); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if got := a.ToSlice(); len(got) != 3 || got[2] != 30 {
		t.Errorf("unexpected contents %v", got)
	}

	if _, err := a.At(3); !errors.Is(err, serrors.ErrInvalidID) {
		t.Errorf("out of range should be InvalidId, got %v", err)
	}
	if !a.Free() || a.Free() {
		t.Error("Free should release once")
	}
	if _, err := a.At(0); !errors.Is(err, serrors.ErrInvalidHandle) {
		t.Errorf("use after free should be InvalidHandle, got %v", err)
	}
}

func TestArray_NewArray(t *testing.T) {
	a := NewArray[float32](4)
	if a.Len() != 4 || !a.Owning() {
		t.Fatalf("unexpected array len=%d owning=%v", a.Len(), a.Owning())
	}
	if NewArray[int](-1).Len() != 0 {
		t.Error("negative length should clamp to zero")
	}
}

func TestArray_View(t *testing.T) {
	src := []uint8{1, 2, 3}
	view := MapArray(src)
	if view.Owning() {
		t.Fatal("MapArray should not own")
	}
	if err := view.Set(1, 20); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if src[1] != 20 {
		t.Error("writes through a view should reach the source slice")
	}
	if !view.Free() {
		t.Fatal("Free should release the view")
	}
	if src[0] != 1 || len(src) != 3 {
		t.Error("freeing a view must not touch the source")
	}
	if view.Len() != 0 || view.Slice() != nil {
		t.Error("freed view should be empty")
	}

	empty := MapArray[int](nil)
	if empty.Len() != 0 || !empty.Free() {
		t.Error("empty view should be valid and freeable")
	}
}

func TestArray_ViewDroppedWithoutFree(t *testing.T) {
	src := make([]int64, 64)
	for i := 0; i < 32; i++ {
		mapAndDrop(t, src)
	}
	for i := 0; i < 3; i++ {
		runtime.GC()
	}
	src[0] = 7
	view := MapArray(src)
	if v, err := view.At(0); err != nil || v != 7 {
		t.Fatalf("At(0) = %v, %v", v, err)
	}
}

func mapAndDrop(t *testing.T, src []int64) {
	t.Helper()
	if view := MapArray(src); view.Len() != len(src) {
		t.Fatalf("view len = %d, want %d", view.Len(), len(src))
	}
}

func TestArray_Nil(t *testing.T) {
	var a Array[int]
	if _, err := a.At(0); !errors.Is(err, serrors.ErrNullReference) {
		t.Errorf("expected NullReference, got %v", err)
	}
	if err := a.Set(0, 1); !errors.Is(err, serrors.ErrNullReference) {
		t.Errorf("expected NullReference, got %v", err)
	}
	if a.Free() || a.Valid() {
		t.Error("zero array should not be valid")
	}
}

func TestBool32(t *testing.T) {
	if BoolOf(true) != True || BoolOf(false) != False {
		t.Error("BoolOf mapping wrong")
	}
	if !Bool32(7).Bool() || False.Bool() {
		t.Error("any non-zero value should be true")
	}
}

func TestHandleAndInstance(t *testing.T) {
	var h Handle
	if !h.IsZero() {
		t.Error("zero handle should be zero")
	}
	inst := InstanceOf[string](Handle(0x10))
	if inst.IsZero() || inst.Handle() != 0x10 {
		t.Errorf("unexpected instance %v", inst.Handle())
	}
	if Handle(0x10).String() != "handle(0x10)" {
		t.Errorf("unexpected string %q", Handle(0x10).String())
	}
	if TypeRef(0).Valid() || !TypeRef(3).Valid() {
		t.Error("TypeRef validity wrong")
	}
}
