// Package metadata interns type and member descriptors as small integer ids.
//
// Boundary calls refer to modules, exported functions, memories and custom
// sections by id instead of by name. A Cache assigns the ids lazily the first
// time a descriptor is interned. Ids grow monotonically and are never reused:
// after ClearAll every earlier id fails to resolve with InvalidId, and the
// cache fills again on demand.
//
// Table computes the static descriptors of a compiled module once, at load
// time. Function signatures come from the module's "wit" custom section when
// present and from the core function types otherwise.
package metadata
