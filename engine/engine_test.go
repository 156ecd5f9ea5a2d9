package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/scripthost/boundary"
	serrors "github.com/wippyai/scripthost/errors"
	"github.com/wippyai/scripthost/image"
)

func TestNew(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		cfg  *Config
		name string
	}{
		{nil, "nil config"},
		{&Config{}, "default config"},
		{&Config{MemoryLimitPages: 256}, "16MB limit"},
		{&Config{EnableThreads: true}, "threads"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e, err := New(ctx, tc.cfg)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			defer e.Close(ctx)

			if e.Runtime() == nil {
				t.Error("engine runtime should not be nil")
			}
		})
	}
}

func TestEngine_CompileInstantiate(t *testing.T) {
	ctx := context.Background()
	e, _ := New(ctx, nil)
	defer e.Close(ctx)

	compiled, err := e.Compile(ctx, image.Library("math"))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if len(compiled.CustomSections()) != 1 {
		t.Errorf("custom sections should be kept, got %d", len(compiled.CustomSections()))
	}

	mod, err := e.Instantiate(ctx, compiled, "math")
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	if e.Module("math") != mod {
		t.Error("Module should find the instance by name")
	}

	if _, err := e.Instantiate(ctx, compiled, "math"); !errors.Is(err, serrors.ErrUnknown) {
		t.Errorf("duplicate instance name should fail, got %v", err)
	}
}

func TestEngine_CompileInvalid(t *testing.T) {
	ctx := context.Background()
	e, _ := New(ctx, nil)
	defer e.Close(ctx)

	_, err := e.Compile(ctx, []byte("not wasm"))
	if !errors.Is(err, serrors.ErrInvalidImage) {
		t.Fatalf("expected InvalidImage, got %v", err)
	}
}

func TestEngine_HostModule(t *testing.T) {
	ctx := context.Background()
	e, _ := New(ctx, nil)
	defer e.Close(ctx)

	var logged []uint64
	funcs := []HostFunc{
		{
			Name:       "log",
			ParamTypes: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32, api.ValueTypeI32},
			Fn: func(_ context.Context, _ api.Module, stack []uint64) {
				logged = append(logged, stack[0])
			},
		},
		{
			Name:       "report_exception",
			ParamTypes: []api.ValueType{api.ValueTypeI32, api.ValueTypeI32},
			Fn:         func(context.Context, api.Module, []uint64) {},
		},
	}
	host, err := e.HostModule(ctx, boundary.HostModule, funcs)
	if err != nil {
		t.Fatalf("HostModule failed: %v", err)
	}
	again, err := e.HostModule(ctx, boundary.HostModule, nil)
	if err != nil || again != host {
		t.Fatal("second HostModule with same name should return existing module")
	}

	compiled, err := e.Compile(ctx, image.Starter("game"))
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	mod, err := e.Instantiate(ctx, compiled, "game")
	if err != nil {
		t.Fatalf("Instantiate failed: %v", err)
	}
	if _, err := mod.ExportedFunction("hello").Call(ctx, 16, 4); err != nil {
		t.Fatalf("hello failed: %v", err)
	}
	if len(logged) != 1 || logged[0] != 1 {
		t.Fatalf("host log not called as expected: %v", logged)
	}
}

func TestEngine_Forward(t *testing.T) {
	ctx := context.Background()
	lib, _ := New(ctx, nil)
	defer lib.Close(ctx)
	app, _ := New(ctx, nil)
	defer app.Close(ctx)

	libCompiled, _ := lib.Compile(ctx, image.Library("math"))
	libMod, err := lib.Instantiate(ctx, libCompiled, "math")
	if err != nil {
		t.Fatalf("Instantiate lib: %v", err)
	}

	current := libMod
	target := func(context.Context) (api.Module, error) {
		if current == nil {
			return nil, serrors.NotFound(serrors.PhaseResolve, "module", "math")
		}
		return current, nil
	}
	if _, err := app.Forward(ctx, "math", libCompiled.ExportedFunctions(), target); err != nil {
		t.Fatalf("Forward failed: %v", err)
	}

	appCompiled, _ := app.Compile(ctx, image.Dependent("game", "math"))
	appMod, err := app.Instantiate(ctx, appCompiled, "game")
	if err != nil {
		t.Fatalf("Instantiate app: %v", err)
	}

	res, err := appMod.ExportedFunction("quadruple").Call(ctx, api.EncodeI32(5))
	if err != nil {
		t.Fatalf("quadruple failed: %v", err)
	}
	if api.DecodeI32(res[0]) != 20 {
		t.Fatalf("expected 20, got %d", api.DecodeI32(res[0]))
	}

	current = nil
	if _, err := appMod.ExportedFunction("quadruple").Call(ctx, api.EncodeI32(5)); err == nil {
		t.Fatal("call should trap once the target is gone")
	}
}

func TestEngine_Forward_NilTarget(t *testing.T) {
	ctx := context.Background()
	e, _ := New(ctx, nil)
	defer e.Close(ctx)

	if _, err := e.Forward(ctx, "x", nil, nil); !errors.Is(err, serrors.ErrNullReference) {
		t.Fatalf("expected NullReference, got %v", err)
	}
}

func TestEngine_Close(t *testing.T) {
	ctx := context.Background()
	e, _ := New(ctx, nil)

	if err := e.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := e.Close(ctx); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if !e.Closed() {
		t.Fatal("engine should report closed")
	}
	if _, err := e.Compile(ctx, image.Library("math")); !errors.Is(err, serrors.ErrUnknown) {
		t.Fatalf("Compile after Close should fail, got %v", err)
	}
	if _, err := e.HostModule(ctx, "h", nil); err == nil {
		t.Fatal("HostModule after Close should fail")
	}
}
