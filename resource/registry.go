package resource

import (
	"reflect"
	"sync"

	"github.com/wippyai/scripthost/boundary"
	"github.com/wippyai/scripthost/errors"
)

// Registry maps handles to Go values owned by load contexts.
type Registry struct {
	slots     *slots
	observers []Observer
	obsMu     sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{slots: newSlots()}
}

// Wrap stores object under owner and returns a new handle. Absent objects,
// including typed nil pointers, maps, slices, funcs and channels, fail with
// NullReference.
func (r *Registry) Wrap(object any, owner boundary.ContextID) (boundary.Handle, error) {
	if isNil(object) {
		return 0, errors.New(errors.PhaseHandle, errors.KindNullReference).
			GoType(typeName(object)).
			Detail("cannot wrap a nil object").
			Build()
	}

	name := typeName(object)
	h := r.slots.create(object, owner, name)
	if h == 0 {
		return 0, errors.New(errors.PhaseHandle, errors.KindUnknown).Detail("registry closed").Build()
	}

	r.notify(Event{
		Type:     EventCreated,
		Handle:   h,
		Owner:    owner,
		TypeName: name,
		Value:    object,
	})
	return h, nil
}

// Get returns the value behind h.
func (r *Registry) Get(h boundary.Handle) (any, error) {
	e, ok := r.slots.get(h)
	if !ok {
		return nil, errors.InvalidHandle(uint64(h))
	}
	return e.value, nil
}

// Owner returns the context that owns h.
func (r *Registry) Owner(h boundary.Handle) (boundary.ContextID, bool) {
	e, ok := r.slots.get(h)
	if !ok {
		return 0, false
	}
	return e.owner, true
}

// TypeName returns the Go type h was wrapped as.
func (r *Registry) TypeName(h boundary.Handle) (string, bool) {
	e, ok := r.slots.get(h)
	if !ok {
		return "", false
	}
	return e.typeName, true
}

// Deref returns the value behind h as a T.
func Deref[T any](r *Registry, h boundary.Handle) (T, error) {
	var zero T
	e, ok := r.slots.get(h)
	if !ok {
		return zero, errors.InvalidHandle(uint64(h))
	}
	v, ok := e.value.(T)
	if !ok {
		return zero, errors.New(errors.PhaseHandle, errors.KindTypeMismatch).
			GoType(e.typeName).
			Want(reflect.TypeFor[T]().String()).
			Value(uint64(h)).
			Build()
	}
	return v, nil
}

// DerefInstance resolves a typed boundary handle.
func DerefInstance[T any](r *Registry, inst boundary.Instance[T]) (T, error) {
	return Deref[T](r, inst.Handle())
}

// Release drops h and reports whether anything was released. Unknown and
// already released handles are a no-op.
func (r *Registry) Release(h boundary.Handle) bool {
	e, ok := r.slots.drop(h)
	if !ok {
		return false
	}
	r.dropped(Event{
		Type:     EventDropped,
		Handle:   h,
		Owner:    e.owner,
		TypeName: e.typeName,
		Value:    e.value,
	})
	return true
}

// ReleaseOwned drops every entry owned by owner and returns them as leaks.
func (r *Registry) ReleaseOwned(owner boundary.ContextID) []Leak {
	events := r.slots.dropOwned(owner)
	if len(events) == 0 {
		return nil
	}
	leaks := make([]Leak, 0, len(events))
	for _, ev := range events {
		r.dropped(ev)
		leaks = append(leaks, Leak{Handle: ev.Handle, Owner: ev.Owner, TypeName: ev.TypeName})
	}
	return leaks
}

// Len returns the number of live entries.
func (r *Registry) Len() int {
	return r.slots.len()
}

// Each calls fn for every live entry until fn returns false. fn must not
// call back into the registry.
func (r *Registry) Each(fn func(h boundary.Handle, owner boundary.ContextID, value any) bool) {
	r.slots.each(func(h boundary.Handle, e entry) bool {
		return fn(h, e.owner, e.value)
	})
}

// Subscribe adds an observer for lifecycle events.
func (r *Registry) Subscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	r.observers = append(r.observers, o)
}

// Unsubscribe removes an observer.
func (r *Registry) Unsubscribe(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	for i, obs := range r.observers {
		if obs == o {
			r.observers = append(r.observers[:i], r.observers[i+1:]...)
			return
		}
	}
}

// Close releases every entry and stops accepting new ones.
func (r *Registry) Close() error {
	for _, ev := range r.slots.close() {
		r.dropped(ev)
	}
	return nil
}

func (r *Registry) dropped(ev Event) {
	if d, ok := ev.Value.(Dropper); ok {
		d.Drop()
	}
	r.notify(ev)
}

func (r *Registry) notify(e Event) {
	r.obsMu.RLock()
	defer r.obsMu.RUnlock()
	for _, o := range r.observers {
		o.OnResourceEvent(e)
	}
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface, reflect.UnsafePointer:
		return rv.IsNil()
	}
	return false
}

func typeName(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
