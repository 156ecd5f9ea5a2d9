package boundary

import "fmt"

// Handle is an opaque reference to a host-side object. Handle 0 is reserved
// and always invalid.
type Handle uint64

// IsZero reports whether h is the reserved invalid handle.
func (h Handle) IsZero() bool {
	return h == 0
}

func (h Handle) String() string {
	return fmt.Sprintf("handle(%#x)", uint64(h))
}

// Instance is a Handle that is expected to reference a T. The check happens
// when the registry dereferences it.
type Instance[T any] struct {
	handle Handle
}

// InstanceOf tags h with the type it should hold.
func InstanceOf[T any](h Handle) Instance[T] {
	return Instance[T]{handle: h}
}

// Handle returns the untyped handle.
func (i Instance[T]) Handle() Handle {
	return i.handle
}

// IsZero reports whether the instance holds no handle.
func (i Instance[T]) IsZero() bool {
	return i.handle == 0
}

// HostModule is the import module name under which the host exposes its
// functions to guest code.
const HostModule = "scripthost"
