package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/scripthost/boundary"
	"github.com/wippyai/scripthost/modules"
)

type funcInfo struct {
	module     string
	name       string
	resultType string
	params     []paramInfo
}

type paramInfo struct {
	witType wit.Type // nil when the export has no WIT signature
	name    string
	typeStr string
	core    api.ValueType
}

// exportsOf lists the callable exports of m, sorted by name. The allocator
// pair is left out.
func exportsOf(m *modules.Module) []funcInfo {
	var funcs []funcInfo
	for name := range m.Compiled.ExportedFunctions() {
		if name == boundary.AllocExport || name == boundary.DeallocExport {
			continue
		}
		fi, _ := lookupExport(m, name)
		funcs = append(funcs, fi)
	}
	sort.Slice(funcs, func(i, j int) bool { return funcs[i].name < funcs[j].name })
	return funcs
}

func lookupExport(m *modules.Module, name string) (funcInfo, bool) {
	def, ok := m.Compiled.ExportedFunctions()[name]
	if !ok {
		return funcInfo{}, false
	}
	fi := funcInfo{module: m.Name, name: name}

	if sig, ok := m.Signature(name); ok {
		for i, p := range sig.Params {
			pname := p.Name
			if pname == "" {
				pname = fmt.Sprintf("arg%d", i)
			}
			fi.params = append(fi.params, paramInfo{
				name:    pname,
				witType: p.Type,
				typeStr: witTypeStr(p.Type),
			})
		}
		var results []string
		for _, r := range sig.Results {
			results = append(results, witTypeStr(r))
		}
		fi.resultType = strings.Join(results, ", ")
		return fi, true
	}

	for i, vt := range def.ParamTypes() {
		fi.params = append(fi.params, paramInfo{
			name:    fmt.Sprintf("arg%d", i),
			core:    vt,
			typeStr: api.ValueTypeName(vt),
		})
	}
	var results []string
	for _, vt := range def.ResultTypes() {
		results = append(results, api.ValueTypeName(vt))
	}
	fi.resultType = strings.Join(results, ", ")
	return fi, true
}

func (f funcInfo) parseArgs(raw []string) ([]any, error) {
	if len(raw) != len(f.params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", f.name, len(f.params), len(raw))
	}
	args := make([]any, len(raw))
	for i, p := range f.params {
		v, err := p.parse(raw[i])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.name, err)
		}
		args[i] = v
	}
	return args, nil
}

// parse converts command line text into the Go value Call expects for p.
func (p paramInfo) parse(value string) (any, error) {
	if p.witType == nil {
		switch p.core {
		case api.ValueTypeI32:
			v, err := strconv.ParseInt(value, 0, 32)
			return int32(v), err
		case api.ValueTypeI64:
			return strconv.ParseInt(value, 0, 64)
		case api.ValueTypeF32:
			v, err := strconv.ParseFloat(value, 32)
			return float32(v), err
		case api.ValueTypeF64:
			return strconv.ParseFloat(value, 64)
		}
		return nil, fmt.Errorf("cannot pass %s from the command line", p.typeStr)
	}

	switch p.witType.(type) {
	case wit.String:
		return value, nil
	case wit.Bool:
		return strconv.ParseBool(value)
	case wit.Char:
		r, n := utf8.DecodeRuneInString(value)
		if r == utf8.RuneError || n != len(value) {
			return nil, fmt.Errorf("%q is not a single character", value)
		}
		return r, nil
	case wit.U8:
		v, err := strconv.ParseUint(value, 0, 8)
		return uint8(v), err
	case wit.U16:
		v, err := strconv.ParseUint(value, 0, 16)
		return uint16(v), err
	case wit.U32:
		v, err := strconv.ParseUint(value, 0, 32)
		return uint32(v), err
	case wit.U64:
		return strconv.ParseUint(value, 0, 64)
	case wit.S8:
		v, err := strconv.ParseInt(value, 0, 8)
		return int8(v), err
	case wit.S16:
		v, err := strconv.ParseInt(value, 0, 16)
		return int16(v), err
	case wit.S32:
		v, err := strconv.ParseInt(value, 0, 32)
		return int32(v), err
	case wit.S64:
		return strconv.ParseInt(value, 0, 64)
	case wit.F32:
		v, err := strconv.ParseFloat(value, 32)
		return float32(v), err
	case wit.F64:
		return strconv.ParseFloat(value, 64)
	}
	return nil, fmt.Errorf("cannot pass %s from the command line", p.typeStr)
}

func (f funcInfo) signature() string {
	var params []string
	for _, p := range f.params {
		params = append(params, p.name+": "+p.typeStr)
	}
	s := f.name + "(" + strings.Join(params, ", ") + ")"
	if f.resultType != "" {
		s += " -> " + f.resultType
	}
	return s
}

func formatResults(out []any) string {
	if len(out) == 0 {
		return "(no result)"
	}
	parts := make([]string, len(out))
	for i, v := range out {
		switch x := v.(type) {
		case string:
			parts[i] = strconv.Quote(x)
		default:
			parts[i] = fmt.Sprint(x)
		}
	}
	return strings.Join(parts, ", ")
}

func witTypeStr(t wit.Type) string {
	switch v := t.(type) {
	case wit.Bool:
		return "bool"
	case wit.U8:
		return "u8"
	case wit.S8:
		return "s8"
	case wit.U16:
		return "u16"
	case wit.S16:
		return "s16"
	case wit.U32:
		return "u32"
	case wit.S32:
		return "s32"
	case wit.U64:
		return "u64"
	case wit.S64:
		return "s64"
	case wit.F32:
		return "f32"
	case wit.F64:
		return "f64"
	case wit.Char:
		return "char"
	case wit.String:
		return "string"
	case *wit.TypeDef:
		if v.Name != nil {
			return *v.Name
		}
		return "typedef"
	default:
		return fmt.Sprintf("%T", t)
	}
}
