package image

import (
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/scripthost/boundary"
)

const (
	greetOffset = 16
	heapBase    = 1024
)

var (
	i32 = api.ValueTypeI32
	f64 = api.ValueTypeF64
)

// Starter returns a module called name exporting:
//
//	add(a, b s32) -> s32
//	scale(x f64) -> f64          doubles x, no WIT signature
//	greet() -> (ptr, len)        "hello from <name>" in guest memory
//	whoami() -> string           the same greeting, with a WIT signature
//	hello(msg string)            logs msg through the host
//	report(msg string)           reports msg as an exception
//	fail()                       traps
//
// plus memory and an alloc/dealloc pair.
func Starter(name string) []byte {
	greeting := []byte("hello from " + name)

	b := New(name)
	logFn := b.Import(boundary.HostModule, "log", []api.ValueType{i32, i32, i32}, nil)
	reportFn := b.Import(boundary.HostModule, "report_exception", []api.ValueType{i32, i32}, nil)

	b.Allocator(heapBase)
	b.Func("add", []api.ValueType{i32, i32}, []api.ValueType{i32}, nil,
		LocalGet(0), LocalGet(1), I32Add)
	b.Func("scale", []api.ValueType{f64}, []api.ValueType{f64}, nil,
		LocalGet(0), F64Const(2), F64Mul)
	b.Func("greet", nil, []api.ValueType{i32, i32}, nil,
		I32Const(greetOffset), I32Const(int32(len(greeting))))
	b.Func("whoami", nil, []api.ValueType{i32, i32}, nil,
		I32Const(greetOffset), I32Const(int32(len(greeting))))
	b.Func("hello", []api.ValueType{i32, i32}, nil, nil,
		I32Const(1), LocalGet(0), LocalGet(1), Call(logFn))
	b.Func("report", []api.ValueType{i32, i32}, nil, nil,
		LocalGet(0), LocalGet(1), Call(reportFn))
	b.Func("fail", nil, nil, nil, Unreachable)
	b.Data(greetOffset, greeting)
	b.WIT(
		"add: func(a: s32, b: s32) -> s32",
		"hello: func(msg: string)",
		"report: func(msg: string)",
		"whoami: func() -> string",
	)
	return b.Build()
}

// Library returns a module called name exporting double(x s32) -> s32.
func Library(name string) []byte {
	b := New(name)
	b.Func("double", []api.ValueType{i32}, []api.ValueType{i32}, nil,
		LocalGet(0), LocalGet(0), I32Add)
	b.WIT("double: func(x: s32) -> s32")
	return b.Build()
}

// Dependent returns a module called name that imports double from lib and
// exports quadruple(x s32) -> s32 built on it.
func Dependent(name, lib string) []byte {
	b := New(name)
	double := b.Import(lib, "double", []api.ValueType{i32}, []api.ValueType{i32})
	b.Func("quadruple", []api.ValueType{i32}, []api.ValueType{i32}, nil,
		LocalGet(0), Call(double), Call(double))
	b.WIT("quadruple: func(x: s32) -> s32")
	return b.Build()
}
