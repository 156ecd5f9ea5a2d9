package boundary

import (
	"context"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/scripthost/errors"
)

// Export names a guest module provides so the host can place data in its
// linear memory.
const (
	AllocExport   = "alloc"
	DeallocExport = "dealloc"
)

// ReadBytes copies length bytes at ptr out of guest memory.
func ReadBytes(mem api.Memory, ptr, length uint32) ([]byte, error) {
	if mem == nil {
		return nil, errors.New(errors.PhaseBoundary, errors.KindNullReference).Detail("module has no memory").Build()
	}
	if length == 0 {
		return []byte{}, nil
	}
	view, ok := mem.Read(ptr, length)
	if !ok {
		return nil, outOfRange(ptr, length, mem.Size())
	}
	out := make([]byte, length)
	copy(out, view)
	return out, nil
}

// ReadString copies a UTF-8 string out of guest memory into an owned String.
func ReadString(mem api.Memory, ptr, length uint32) (String, error) {
	b, err := ReadBytes(mem, ptr, length)
	if err != nil {
		return String{}, err
	}
	return StringFromBytes(b), nil
}

// WriteBytes copies data into guest memory at ptr.
func WriteBytes(mem api.Memory, ptr uint32, data []byte) error {
	if mem == nil {
		return errors.New(errors.PhaseBoundary, errors.KindNullReference).Detail("module has no memory").Build()
	}
	if len(data) == 0 {
		return nil
	}
	if !mem.Write(ptr, data) {
		return outOfRange(ptr, uint32(len(data)), mem.Size())
	}
	return nil
}

func outOfRange(ptr, length, size uint32) *errors.Error {
	return errors.New(errors.PhaseBoundary, errors.KindInvalidID).
		Detail("range [%d, %d) outside guest memory of %d bytes", ptr, uint64(ptr)+uint64(length), size).
		Build()
}

// GuestAllocator places host data in a guest module's memory using the
// module's own allocator exports.
type GuestAllocator struct {
	mod     api.Module
	alloc   api.Function
	dealloc api.Function
}

// NewGuestAllocator binds to mod's alloc export. dealloc is optional; without
// it Free is a no-op and the guest reclaims memory on its own terms.
func NewGuestAllocator(mod api.Module) (*GuestAllocator, error) {
	if mod == nil {
		return nil, errors.New(errors.PhaseBoundary, errors.KindNullReference).Detail("nil module").Build()
	}
	alloc := mod.ExportedFunction(AllocExport)
	if alloc == nil {
		return nil, errors.New(errors.PhaseBoundary, errors.KindUnsupported).
			Path(mod.Name()).
			Detail("module does not export %q", AllocExport).
			Build()
	}
	if mod.Memory() == nil {
		return nil, errors.New(errors.PhaseBoundary, errors.KindUnsupported).
			Path(mod.Name()).
			Detail("module does not export a memory").
			Build()
	}
	return &GuestAllocator{
		mod:     mod,
		alloc:   alloc,
		dealloc: mod.ExportedFunction(DeallocExport),
	}, nil
}

// Memory returns the guest memory the allocator writes into.
func (a *GuestAllocator) Memory() api.Memory {
	return a.mod.Memory()
}

// Alloc reserves size bytes in guest memory.
func (a *GuestAllocator) Alloc(ctx context.Context, size uint32) (uint32, error) {
	res, err := a.alloc.Call(ctx, uint64(size))
	if err != nil {
		return 0, errors.Wrap(errors.PhaseBoundary, errors.KindUnknown, err, "guest alloc")
	}
	if len(res) != 1 {
		return 0, errors.New(errors.PhaseBoundary, errors.KindTypeMismatch).
			Detail("alloc returned %d results, want 1", len(res)).
			Build()
	}
	ptr := api.DecodeU32(res[0])
	if ptr == 0 && size > 0 {
		return 0, errors.New(errors.PhaseBoundary, errors.KindNullReference).
			Detail("guest alloc of %d bytes returned null", size).
			Build()
	}
	return ptr, nil
}

// Free hands ptr back to the guest.
func (a *GuestAllocator) Free(ctx context.Context, ptr, size uint32) error {
	if a.dealloc == nil || ptr == 0 {
		return nil
	}
	if _, err := a.dealloc.Call(ctx, uint64(ptr), uint64(size)); err != nil {
		return errors.Wrap(errors.PhaseBoundary, errors.KindUnknown, err, "guest dealloc")
	}
	return nil
}

// PassString copies s into guest memory for a single call. The returned
// release func frees the guest copy and is safe to call more than once.
func PassString(ctx context.Context, a *GuestAllocator, s string) (ptr, length uint32, release func(), err error) {
	length = uint32(len(s))
	if length == 0 {
		return 0, 0, func() {}, nil
	}
	ptr, err = a.Alloc(ctx, length)
	if err != nil {
		return 0, 0, nil, err
	}
	if err = WriteBytes(a.Memory(), ptr, []byte(s)); err != nil {
		_ = a.Free(ctx, ptr, length)
		return 0, 0, nil, err
	}
	done := false
	release = func() {
		if done {
			return
		}
		done = true
		_ = a.Free(ctx, ptr, length)
	}
	return ptr, length, release, nil
}
