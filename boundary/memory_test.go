package boundary_test

import (
	"context"
	"errors"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/scripthost/boundary"
	serrors "github.com/wippyai/scripthost/errors"
	"github.com/wippyai/scripthost/image"
)

func instantiate(t *testing.T, bin []byte) api.Module {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntime(ctx)
	t.Cleanup(func() { r.Close(ctx) })

	_, err := r.NewHostModuleBuilder(boundary.HostModule).
		NewFunctionBuilder().WithFunc(func(int32, int32, int32) {}).Export("log").
		NewFunctionBuilder().WithFunc(func(int32, int32) {}).Export("report_exception").
		Instantiate(ctx)
	if err != nil {
		t.Fatalf("host module: %v", err)
	}
	mod, err := r.Instantiate(ctx, bin)
	if err != nil {
		t.Fatalf("instantiate: %v", err)
	}
	return mod
}

func TestReadWriteBytes(t *testing.T) {
	mod := instantiate(t, image.Starter("mem"))
	mem := mod.Memory()

	if err := boundary.WriteBytes(mem, 100, []byte("abc")); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	got, err := boundary.ReadBytes(mem, 100, 3)
	if err != nil || string(got) != "abc" {
		t.Fatalf("ReadBytes = %q, %v", got, err)
	}

	s, err := boundary.ReadString(mem, 100, 3)
	if err != nil || s.String() != "abc" {
		t.Fatalf("ReadString = %q, %v", s.String(), err)
	}

	if _, err := boundary.ReadBytes(mem, mem.Size()-1, 8); !errors.Is(err, serrors.ErrInvalidID) {
		t.Errorf("out of range read should fail with InvalidId, got %v", err)
	}
	if err := boundary.WriteBytes(mem, mem.Size(), []byte("x")); !errors.Is(err, serrors.ErrInvalidID) {
		t.Errorf("out of range write should fail with InvalidId, got %v", err)
	}
	if _, err := boundary.ReadBytes(nil, 0, 1); !errors.Is(err, serrors.ErrNullReference) {
		t.Errorf("nil memory should fail with NullReference, got %v", err)
	}
}

func TestPassString(t *testing.T) {
	ctx := context.Background()
	mod := instantiate(t, image.Starter("mem"))

	alloc, err := boundary.NewGuestAllocator(mod)
	if err != nil {
		t.Fatalf("NewGuestAllocator: %v", err)
	}
	ptr, n, release, err := boundary.PassString(ctx, alloc, "héllo")
	if err != nil {
		t.Fatalf("PassString: %v", err)
	}
	defer release()

	if n != uint32(len("héllo")) {
		t.Errorf("unexpected length %d", n)
	}
	s, err := boundary.ReadString(mod.Memory(), ptr, n)
	if err != nil || s.String() != "héllo" {
		t.Errorf("guest copy = %q, %v", s.String(), err)
	}
	release()

	ptr, n, release, err = boundary.PassString(ctx, alloc, "")
	if err != nil || ptr != 0 || n != 0 {
		t.Errorf("empty string should not allocate: %d %d %v", ptr, n, err)
	}
	release()
}

func TestGuestAllocator_RequiresAlloc(t *testing.T) {
	mod := instantiate(t, image.Library("plain"))
	if _, err := boundary.NewGuestAllocator(mod); !errors.Is(err, serrors.ErrUnsupported) {
		t.Errorf("expected Unsupported without alloc export, got %v", err)
	}
	if _, err := boundary.NewGuestAllocator(nil); !errors.Is(err, serrors.ErrNullReference) {
		t.Errorf("expected NullReference for nil module, got %v", err)
	}
}
