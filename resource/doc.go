// Package resource implements the handle registry.
//
// A Registry maps opaque 64-bit handles to Go values so native code can hold
// references to managed objects without seeing them. Each entry records the
// load context that owns it and the Go type it was wrapped as.
//
//	reg := resource.NewRegistry()
//	h, err := reg.Wrap(player, ctxID)
//	p, err := resource.Deref[*Player](reg, h)  // TypeMismatch for other types
//	reg.Release(h)                             // second call is a no-op
//
// # Handles
//
// A handle packs a slot index with the slot's generation. Releasing an entry
// bumps the generation before the slot is reused, so a stale handle fails
// with InvalidHandle instead of resolving to a newer object.
//
// # Owners
//
// ReleaseOwned drops every entry owned by one context and returns the ones
// that were still live so the caller can report them as leaks. Values that
// implement Dropper get Drop called whenever their entry is released.
//
// # Observers
//
// Subscribe registers an Observer that sees EventCreated and EventDropped
// for every entry.
package resource
