// Package image builds WebAssembly module images in memory.
//
// Images are plain core modules. The builder covers what script modules use:
// function imports, exported functions, one memory, globals, data segments,
// custom sections and the module name. It is how tests, examples and
// "scripthost new" produce loadable modules without an external toolchain.
package image

import (
	"fmt"
	"strings"

	"github.com/tetratelabs/wazero/api"
)

// WITSection is the custom section holding function signatures.
const WITSection = "wit"

type funcType struct {
	params  []api.ValueType
	results []api.ValueType
}

type importFunc struct {
	module string
	name   string
	typ    funcType
}

type funcDef struct {
	export string
	typ    funcType
	locals []api.ValueType
	code   []byte
}

type globalDef struct {
	typ     api.ValueType
	mutable bool
	init    int64
}

type dataSegment struct {
	offset uint32
	data   []byte
}

type customSection struct {
	name string
	data []byte
}

// Builder assembles a module image.
type Builder struct {
	name         string
	memoryExport string
	imports      []importFunc
	funcs        []funcDef
	globals      []globalDef
	data         []dataSegment
	custom       []customSection
	memoryPages  uint32
	hasMemory    bool
}

// New creates a builder for a module called name. An empty name leaves the
// name section out.
func New(name string) *Builder {
	return &Builder{name: name}
}

// Import declares a function import and returns its function index. All
// imports must be declared before the first Func.
func (b *Builder) Import(module, name string, params, results []api.ValueType) uint32 {
	if len(b.funcs) > 0 {
		panic(fmt.Sprintf("image: import %s.%s declared after functions", module, name))
	}
	b.imports = append(b.imports, importFunc{module: module, name: name, typ: funcType{params, results}})
	return uint32(len(b.imports) - 1)
}

// Func defines a function and returns its index. export may be empty for
// internal helpers. The code must not include the trailing end opcode.
func (b *Builder) Func(export string, params, results, locals []api.ValueType, code ...[]byte) uint32 {
	var body []byte
	for _, c := range code {
		body = append(body, c...)
	}
	b.funcs = append(b.funcs, funcDef{
		export: export,
		typ:    funcType{params, results},
		locals: locals,
		code:   body,
	})
	return uint32(len(b.imports) + len(b.funcs) - 1)
}

// Memory declares the module memory with minPages initial pages and exports
// it under export when non-empty.
func (b *Builder) Memory(minPages uint32, export string) *Builder {
	b.hasMemory = true
	b.memoryPages = minPages
	b.memoryExport = export
	return b
}

// Global declares a global and returns its index.
func (b *Builder) Global(t api.ValueType, mutable bool, init int64) uint32 {
	b.globals = append(b.globals, globalDef{typ: t, mutable: mutable, init: init})
	return uint32(len(b.globals) - 1)
}

// Data places bytes in memory at offset when the module is instantiated.
func (b *Builder) Data(offset uint32, data []byte) *Builder {
	b.data = append(b.data, dataSegment{offset: offset, data: data})
	return b
}

// Custom appends a custom section.
func (b *Builder) Custom(name string, data []byte) *Builder {
	b.custom = append(b.custom, customSection{name: name, data: data})
	return b
}

// WIT records function signatures, one declaration per entry, e.g.
// "add: func(a: u32, b: u32) -> u32".
func (b *Builder) WIT(decls ...string) *Builder {
	var sb strings.Builder
	for _, d := range decls {
		d = strings.TrimSpace(d)
		sb.WriteString(d)
		if !strings.HasSuffix(d, ";") {
			sb.WriteByte(';')
		}
		sb.WriteByte('\n')
	}
	return b.Custom(WITSection, []byte(sb.String()))
}

// Allocator adds a bump allocator exported as alloc(size) -> ptr and a no-op
// dealloc(ptr, size). Allocation starts at heapBase. A memory of one page
// exported as "memory" is declared if none exists.
func (b *Builder) Allocator(heapBase uint32) *Builder {
	if !b.hasMemory {
		b.Memory(1, "memory")
	}
	i32 := api.ValueTypeI32
	heap := b.Global(i32, true, int64(heapBase))
	b.Func("alloc", []api.ValueType{i32}, []api.ValueType{i32}, nil,
		GlobalGet(heap),
		GlobalGet(heap), LocalGet(0), I32Add, GlobalSet(heap),
	)
	b.Func("dealloc", []api.ValueType{i32, i32}, nil, nil)
	return b
}

// Build encodes the module.
func (b *Builder) Build() []byte {
	out := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	nfuncs := len(b.imports) + len(b.funcs)
	if nfuncs > 0 {
		out = append(out, section(0x01, b.typeSection())...)
	}
	if len(b.imports) > 0 {
		out = append(out, section(0x02, b.importSection())...)
	}
	if len(b.funcs) > 0 {
		fs := EncodeULEB128(uint32(len(b.funcs)))
		for i := range b.funcs {
			fs = append(fs, EncodeULEB128(uint32(len(b.imports)+i))...)
		}
		out = append(out, section(0x03, fs)...)
	}
	if b.hasMemory {
		ms := []byte{0x01, 0x00}
		ms = append(ms, EncodeULEB128(b.memoryPages)...)
		out = append(out, section(0x05, ms)...)
	}
	if len(b.globals) > 0 {
		out = append(out, section(0x06, b.globalSection())...)
	}
	if exports := b.exportSection(); exports != nil {
		out = append(out, section(0x07, exports)...)
	}
	if len(b.funcs) > 0 {
		out = append(out, section(0x0a, b.codeSection())...)
	}
	if len(b.data) > 0 {
		out = append(out, section(0x0b, b.dataSection())...)
	}
	for _, c := range b.custom {
		out = append(out, section(0x00, append(name(c.name), c.data...))...)
	}
	if b.name != "" {
		sub := name(b.name)
		body := name("name")
		body = append(body, 0x00)
		body = append(body, EncodeULEB128(uint32(len(sub)))...)
		body = append(body, sub...)
		out = append(out, section(0x00, body)...)
	}
	return out
}

// Types are not deduplicated: function i uses type i, imports first.
func (b *Builder) typeSection() []byte {
	types := make([]funcType, 0, len(b.imports)+len(b.funcs))
	for _, imp := range b.imports {
		types = append(types, imp.typ)
	}
	for _, f := range b.funcs {
		types = append(types, f.typ)
	}

	s := EncodeULEB128(uint32(len(types)))
	for _, t := range types {
		s = append(s, 0x60)
		s = append(s, EncodeULEB128(uint32(len(t.params)))...)
		for _, p := range t.params {
			s = append(s, valType(p))
		}
		s = append(s, EncodeULEB128(uint32(len(t.results)))...)
		for _, r := range t.results {
			s = append(s, valType(r))
		}
	}
	return s
}

func (b *Builder) importSection() []byte {
	s := EncodeULEB128(uint32(len(b.imports)))
	for i, imp := range b.imports {
		s = append(s, name(imp.module)...)
		s = append(s, name(imp.name)...)
		s = append(s, 0x00)
		s = append(s, EncodeULEB128(uint32(i))...)
	}
	return s
}

func (b *Builder) globalSection() []byte {
	s := EncodeULEB128(uint32(len(b.globals)))
	for _, g := range b.globals {
		s = append(s, valType(g.typ))
		if g.mutable {
			s = append(s, 0x01)
		} else {
			s = append(s, 0x00)
		}
		switch g.typ {
		case api.ValueTypeI64:
			s = append(s, I64Const(g.init)...)
		case api.ValueTypeF32:
			s = append(s, 0x43, 0, 0, 0, 0)
		case api.ValueTypeF64:
			s = append(s, F64Const(float64(g.init))...)
		default:
			s = append(s, I32Const(int32(g.init))...)
		}
		s = append(s, 0x0b)
	}
	return s
}

func (b *Builder) exportSection() []byte {
	var body []byte
	count := 0
	if b.hasMemory && b.memoryExport != "" {
		body = append(body, name(b.memoryExport)...)
		body = append(body, 0x02, 0x00)
		count++
	}
	for i, f := range b.funcs {
		if f.export == "" {
			continue
		}
		body = append(body, name(f.export)...)
		body = append(body, 0x00)
		body = append(body, EncodeULEB128(uint32(len(b.imports)+i))...)
		count++
	}
	if count == 0 {
		return nil
	}
	return append(EncodeULEB128(uint32(count)), body...)
}

func (b *Builder) codeSection() []byte {
	s := EncodeULEB128(uint32(len(b.funcs)))
	for _, f := range b.funcs {
		var body []byte
		body = append(body, EncodeULEB128(uint32(len(f.locals)))...)
		for _, l := range f.locals {
			body = append(body, 0x01, valType(l))
		}
		body = append(body, f.code...)
		body = append(body, 0x0b)
		s = append(s, EncodeULEB128(uint32(len(body)))...)
		s = append(s, body...)
	}
	return s
}

func (b *Builder) dataSection() []byte {
	s := EncodeULEB128(uint32(len(b.data)))
	for _, d := range b.data {
		s = append(s, 0x00)
		s = append(s, I32Const(int32(d.offset))...)
		s = append(s, 0x0b)
		s = append(s, EncodeULEB128(uint32(len(d.data)))...)
		s = append(s, d.data...)
	}
	return s
}
