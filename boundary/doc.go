// Package boundary provides the value types that cross between the native
// host and hosted script code.
//
// Every boundary call takes and returns only primitive numbers and the types
// in this package:
//
//	String       owned UTF-8 buffer, released exactly once
//	Array[T]     owning buffer or view over a Go slice
//	Handle       opaque reference into the handle registry
//	Instance[T]  Handle tagged with the type it is expected to hold
//	Bool32       four byte boolean
//	TypeRef      cached type/member identifier
//
// # Ownership
//
// A buffer has exactly one owner, decided by the constructor. NewString,
// NewArray and ArrayOf allocate and own their memory; MapArray views the
// caller's slice and never frees it. Free on a view only detaches it. A value
// must not be used after Free on either side of the boundary.
//
// # Guest Memory
//
// ReadString, ReadBytes and WriteBytes copy between Go and a module's linear
// memory. GuestAllocator calls a module's exported alloc/dealloc pair so the
// host can hand strings to guest functions.
package boundary
