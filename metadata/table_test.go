package metadata

import (
	"context"
	"errors"
	"testing"

	"github.com/tetratelabs/wazero"
	"go.bytecodealliance.org/wit"

	serrors "github.com/wippyai/scripthost/errors"
	"github.com/wippyai/scripthost/image"
)

func TestParseWIT(t *testing.T) {
	sigs, err := ParseWIT(`
		add: func(a: s32, b: s32) -> s32;
		export hello: func(msg: string);
		pair: func() -> (x: u32, y: u32);
	`)
	if err != nil {
		t.Fatalf("ParseWIT: %v", err)
	}
	if len(sigs) != 3 {
		t.Fatalf("expected 3 signatures, got %d", len(sigs))
	}

	add := sigs["add"]
	if len(add.Params) != 2 || add.Params[0].Name != "a" || len(add.Results) != 1 {
		t.Fatalf("unexpected add signature %+v", add)
	}
	if _, ok := add.Params[0].Type.(wit.S32); !ok {
		t.Errorf("expected s32 param, got %T", add.Params[0].Type)
	}
	if add.Text != "func(a: s32, b: s32) -> s32" {
		t.Errorf("unexpected text %q", add.Text)
	}

	hello := sigs["hello"]
	if _, ok := hello.Params[0].Type.(wit.String); !ok || len(hello.Results) != 0 {
		t.Errorf("unexpected hello signature %+v", hello)
	}
	if len(sigs["pair"].Results) != 2 {
		t.Errorf("expected 2 results for pair, got %d", len(sigs["pair"].Results))
	}
}

func TestParseWIT_Invalid(t *testing.T) {
	if _, err := ParseWIT("add: func(a: notatype) -> s32;"); !errors.Is(err, serrors.ErrInvalidImage) {
		t.Errorf("expected InvalidImage for unknown type, got %v", err)
	}
	if _, err := ParseWIT("just some words"); !errors.Is(err, serrors.ErrInvalidImage) {
		t.Errorf("expected InvalidImage without declarations, got %v", err)
	}
	if sigs, err := ParseWIT("  "); err != nil || len(sigs) != 0 {
		t.Errorf("empty section should be accepted: %v", err)
	}
}

func compile(t *testing.T, bin []byte) wazero.CompiledModule {
	t.Helper()
	ctx := context.Background()
	r := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCustomSections(true))
	t.Cleanup(func() { r.Close(ctx) })
	compiled, err := r.CompileModule(ctx, bin)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return compiled
}

func TestTableFor(t *testing.T) {
	compiled := compile(t, image.Starter("game"))
	sigs, err := SignaturesOf(compiled)
	if err != nil {
		t.Fatalf("SignaturesOf: %v", err)
	}

	table := TableFor(5, "game", compiled, sigs)
	if table.Type.Kind != KindType || table.Type.Name != "game" || table.Type.Module != 5 {
		t.Fatalf("unexpected type descriptor %+v", table.Type)
	}

	add, ok := table.Method("add")
	if !ok || add.Signature != "func(a: s32, b: s32) -> s32" {
		t.Errorf("add should use its WIT signature: %+v", add)
	}
	greet, ok := table.Method("greet")
	if !ok || greet.Signature != "func() -> (i32, i32)" {
		t.Errorf("greet should use its core signature: %+v", greet)
	}
	scale, _ := table.Method("scale")
	if scale.Signature != "func(f64) -> f64" {
		t.Errorf("unexpected scale signature %q", scale.Signature)
	}
	if _, ok := table.Method("missing"); ok {
		t.Error("unexpected method")
	}

	if len(table.Fields) != 1 || table.Fields[0].Name != "memory" || table.Fields[0].Signature != "memory 1" {
		t.Errorf("unexpected fields %+v", table.Fields)
	}
	if len(table.Attributes) != 1 || table.Attributes[0].Name != WITSection {
		t.Errorf("unexpected attributes %+v", table.Attributes)
	}

	all := table.All()
	if len(all) != 1+len(table.Methods)+2 || all[0] != table.Type {
		t.Errorf("unexpected All() length %d", len(all))
	}
	for i := 1; i < len(table.Methods); i++ {
		if table.Methods[i-1].Name > table.Methods[i].Name {
			t.Fatal("methods should be sorted by name")
		}
	}
}

func TestSignaturesOf_NoSection(t *testing.T) {
	b := image.New("bare")
	b.Func("f", nil, nil, nil)
	sigs, err := SignaturesOf(compile(t, b.Build()))
	if err != nil || sigs != nil {
		t.Fatalf("expected no signatures, got %v, %v", sigs, err)
	}
}
