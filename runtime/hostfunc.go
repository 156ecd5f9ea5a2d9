package runtime

import (
	"context"
	"math"
	"reflect"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/scripthost/boundary"
	"github.com/wippyai/scripthost/engine"
	"github.com/wippyai/scripthost/errors"
)

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

// lower turns a typed Go function into a host function over core values.
// Strings arrive as a (ptr, len) pair in the caller's memory. A returned
// error traps the calling guest.
func lower(ns, name string, fn any) (engine.HostFunc, error) {
	rv := reflect.ValueOf(fn)
	if !rv.IsValid() || rv.Kind() != reflect.Func {
		return engine.HostFunc{}, errors.New(errors.PhaseHost, errors.KindTypeMismatch).
			Path(ns, name).
			GoType(typeString(fn)).
			Detail("handler must be a function").
			Build()
	}
	if rv.IsNil() {
		return engine.HostFunc{}, errors.New(errors.PhaseHost, errors.KindNullReference).Path(ns, name).Detail("handler is nil").Build()
	}
	ft := rv.Type()
	if ft.IsVariadic() {
		return engine.HostFunc{}, errors.Unsupported(errors.PhaseHost, "variadic host function "+ns+"."+name)
	}

	withCtx := ft.NumIn() > 0 && ft.In(0) == contextType
	var params []api.ValueType
	in := make([]reflect.Type, 0, ft.NumIn())
	for i := 0; i < ft.NumIn(); i++ {
		if i == 0 && withCtx {
			continue
		}
		t := ft.In(i)
		if t.Kind() == reflect.String {
			params = append(params, api.ValueTypeI32, api.ValueTypeI32)
		} else {
			vt, ok := coreType(t)
			if !ok {
				return engine.HostFunc{}, unsupportedParam(ns, name, t)
			}
			params = append(params, vt)
		}
		in = append(in, t)
	}

	var results []api.ValueType
	var out reflect.Type
	returnsErr := false
	switch ft.NumOut() {
	case 0:
	case 1:
		if ft.Out(0) == errorType {
			returnsErr = true
		} else {
			out = ft.Out(0)
		}
	case 2:
		if ft.Out(1) != errorType {
			return engine.HostFunc{}, unsupportedResult(ns, name, ft.Out(1))
		}
		out, returnsErr = ft.Out(0), true
	default:
		return engine.HostFunc{}, errors.Unsupported(errors.PhaseHost, "host function "+ns+"."+name+" returns more than one value")
	}
	if out != nil {
		vt, ok := coreType(out)
		if !ok {
			return engine.HostFunc{}, unsupportedResult(ns, name, out)
		}
		results = []api.ValueType{vt}
	}

	call := func(ctx context.Context, mod api.Module, stack []uint64) {
		args := make([]reflect.Value, 0, ft.NumIn())
		if withCtx {
			args = append(args, reflect.ValueOf(ctx))
		}
		pos := 0
		for _, t := range in {
			if t.Kind() == reflect.String {
				s, err := boundary.ReadString(mod.Memory(), api.DecodeU32(stack[pos]), api.DecodeU32(stack[pos+1]))
				if err != nil {
					panic(err)
				}
				args = append(args, reflect.ValueOf(s.String()).Convert(t))
				s.Free()
				pos += 2
				continue
			}
			args = append(args, liftCore(stack[pos], t))
			pos++
		}

		ret := rv.Call(args)
		if returnsErr {
			if err, _ := ret[len(ret)-1].Interface().(error); err != nil {
				panic(err)
			}
		}
		if out != nil {
			stack[0] = lowerCore(ret[0])
		}
	}

	return engine.HostFunc{
		Fn:          call,
		Name:        name,
		ParamTypes:  params,
		ResultTypes: results,
	}, nil
}

// coreType maps a Go kind to the core value type that carries it.
func coreType(t reflect.Type) (api.ValueType, bool) {
	switch t.Kind() {
	case reflect.Bool, reflect.Int8, reflect.Int16, reflect.Int32,
		reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return api.ValueTypeI32, true
	case reflect.Int, reflect.Int64, reflect.Uint, reflect.Uint64:
		return api.ValueTypeI64, true
	case reflect.Float32:
		return api.ValueTypeF32, true
	case reflect.Float64:
		return api.ValueTypeF64, true
	}
	return 0, false
}

func liftCore(v uint64, t reflect.Type) reflect.Value {
	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Bool:
		out.SetBool(uint32(v) != 0)
	case reflect.Int8, reflect.Int16, reflect.Int32:
		out.SetInt(int64(api.DecodeI32(v)))
	case reflect.Int, reflect.Int64:
		out.SetInt(int64(v))
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		out.SetUint(uint64(api.DecodeU32(v)))
	case reflect.Uint, reflect.Uint64:
		out.SetUint(v)
	case reflect.Float32:
		out.SetFloat(float64(api.DecodeF32(v)))
	case reflect.Float64:
		out.SetFloat(api.DecodeF64(v))
	}
	return out
}

func lowerCore(v reflect.Value) uint64 {
	switch v.Kind() {
	case reflect.Bool:
		if v.Bool() {
			return 1
		}
		return 0
	case reflect.Int8, reflect.Int16, reflect.Int32:
		return api.EncodeI32(int32(v.Int()))
	case reflect.Int, reflect.Int64:
		return uint64(v.Int())
	case reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return api.EncodeU32(uint32(v.Uint()))
	case reflect.Uint, reflect.Uint64:
		return v.Uint()
	case reflect.Float32:
		return api.EncodeF32(float32(v.Float()))
	case reflect.Float64:
		return math.Float64bits(v.Float())
	}
	return 0
}

func unsupportedParam(ns, name string, t reflect.Type) error {
	return errors.New(errors.PhaseHost, errors.KindUnsupported).
		Path(ns, name).
		GoType(t.String()).
		Detail("parameter type cannot cross the boundary").
		Build()
}

func unsupportedResult(ns, name string, t reflect.Type) error {
	return errors.New(errors.PhaseHost, errors.KindUnsupported).
		Path(ns, name).
		GoType(t.String()).
		Detail("result type cannot cross the boundary").
		Build()
}

func typeString(v any) string {
	if v == nil {
		return "<nil>"
	}
	return reflect.TypeOf(v).String()
}
