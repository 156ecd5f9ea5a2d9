package boundary

import (
	"sync"

	"github.com/wippyai/scripthost/errors"
)

// Array is a length-prefixed sequence handed across the boundary. It either
// owns a buffer it allocated or is a view over a caller's slice.
type Array[T any] struct {
	arr *array[T]
}

type array[T any] struct {
	data   []T
	mu     sync.Mutex
	owning bool
	freed  bool
}

// NewArray allocates an owning array of n zero values.
func NewArray[T any](n int) Array[T] {
	if n < 0 {
		n = 0
	}
	return Array[T]{arr: &array[T]{data: make([]T, n), owning: true}}
}

// ArrayOf copies values into an owning array.
func ArrayOf[T any](values []T) Array[T] {
	data := make([]T, len(values))
	copy(data, values)
	return Array[T]{arr: &array[T]{data: data, owning: true}}
}

// MapArray returns a view over values. Writes through the view are visible
// in values. Free drops the view's reference but never releases values, and
// a view that is never freed is reclaimed with its last reference.
func MapArray[T any](values []T) Array[T] {
	return Array[T]{arr: &array[T]{data: values}}
}

// Owning reports whether the array owns its buffer.
func (a Array[T]) Owning() bool {
	return a.arr != nil && a.arr.owning
}

// Valid reports whether the array is usable.
func (a Array[T]) Valid() bool {
	if a.arr == nil {
		return false
	}
	a.arr.mu.Lock()
	defer a.arr.mu.Unlock()
	return !a.arr.freed
}

// Len returns the element count, 0 once freed.
func (a Array[T]) Len() int {
	if a.arr == nil {
		return 0
	}
	a.arr.mu.Lock()
	defer a.arr.mu.Unlock()
	if a.arr.freed {
		return 0
	}
	return len(a.arr.data)
}

// At returns element i.
func (a Array[T]) At(i int) (T, error) {
	var zero T
	if a.arr == nil {
		return zero, errors.New(errors.PhaseBoundary, errors.KindNullReference).Detail("nil array").Build()
	}
	a.arr.mu.Lock()
	defer a.arr.mu.Unlock()
	if a.arr.freed {
		return zero, errors.New(errors.PhaseBoundary, errors.KindInvalidHandle).Detail("array used after free").Build()
	}
	if i < 0 || i >= len(a.arr.data) {
		return zero, errors.New(errors.PhaseBoundary, errors.KindInvalidID).
			Detail("index %d out of bounds (length %d)", i, len(a.arr.data)).
			Value(i).
			Build()
	}
	return a.arr.data[i], nil
}

// Set stores v at element i.
func (a Array[T]) Set(i int, v T) error {
	if a.arr == nil {
		return errors.New(errors.PhaseBoundary, errors.KindNullReference).Detail("nil array").Build()
	}
	a.arr.mu.Lock()
	defer a.arr.mu.Unlock()
	if a.arr.freed {
		return errors.New(errors.PhaseBoundary, errors.KindInvalidHandle).Detail("array used after free").Build()
	}
	if i < 0 || i >= len(a.arr.data) {
		return errors.New(errors.PhaseBoundary, errors.KindInvalidID).
			Detail("index %d out of bounds (length %d)", i, len(a.arr.data)).
			Value(i).
			Build()
	}
	a.arr.data[i] = v
	return nil
}

// Slice returns the backing slice without copying. It is only valid until
// Free.
func (a Array[T]) Slice() []T {
	if a.arr == nil {
		return nil
	}
	a.arr.mu.Lock()
	defer a.arr.mu.Unlock()
	if a.arr.freed {
		return nil
	}
	return a.arr.data
}

// ToSlice returns a copy of the elements.
func (a Array[T]) ToSlice() []T {
	if a.arr == nil {
		return nil
	}
	a.arr.mu.Lock()
	defer a.arr.mu.Unlock()
	if a.arr.freed {
		return nil
	}
	out := make([]T, len(a.arr.data))
	copy(out, a.arr.data)
	return out
}

// Free releases an owning array or detaches a view. It returns true only for
// the first call.
func (a Array[T]) Free() bool {
	if a.arr == nil {
		return false
	}
	a.arr.mu.Lock()
	defer a.arr.mu.Unlock()
	if a.arr.freed {
		return false
	}
	a.arr.freed = true
	a.arr.data = nil
	return true
}
