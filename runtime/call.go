package runtime

import (
	"context"
	"fmt"
	"math"

	"github.com/tetratelabs/wazero/api"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/scripthost/boundary"
	"github.com/wippyai/scripthost/errors"
	"github.com/wippyai/scripthost/resource"
)

// Call invokes an export of the object behind h.
//
// With a WIT signature arguments are coerced per WIT type and strings are
// copied into guest memory through the module's allocator; string results
// are read back from the (ptr, len) pair the guest returns. Without one,
// arguments follow the core parameter types. Guest traps are reported
// through the bridge and returned as UnknownError.
func (r *Runtime) Call(ctx context.Context, h boundary.Handle, function string, args ...any) ([]any, error) {
	if err := r.bridge.Check("Call"); err != nil {
		return nil, err
	}
	obj, err := resource.Deref[*Object](r.registry, h)
	if err != nil {
		return nil, err
	}

	obj.mu.Lock()
	defer obj.mu.Unlock()

	fn := obj.inst.ExportedFunction(function)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseRuntime, "function", obj.Module.Name+"."+function)
	}
	def := fn.Definition()

	var (
		stack    []uint64
		releases []func()
	)
	defer func() {
		for _, release := range releases {
			release()
		}
	}()

	sig, typed := obj.Module.Signature(function)
	if typed {
		if len(args) != len(sig.Params) {
			return nil, arity(obj.Module.Name, function, len(sig.Params), len(args))
		}
		for i, p := range sig.Params {
			vals, release, err := r.lowerWIT(ctx, obj, p.Type, args[i])
			if err != nil {
				return nil, argError(err, obj.Module.Name, function, i)
			}
			if release != nil {
				releases = append(releases, release)
			}
			stack = append(stack, vals...)
		}
	} else {
		params := def.ParamTypes()
		if len(args) != len(params) {
			return nil, arity(obj.Module.Name, function, len(params), len(args))
		}
		for i, vt := range params {
			v, err := lowerValue(vt, args[i])
			if err != nil {
				return nil, argError(err, obj.Module.Name, function, i)
			}
			stack = append(stack, v)
		}
	}
	if len(stack) != len(def.ParamTypes()) {
		return nil, errors.New(errors.PhaseRuntime, errors.KindTypeMismatch).
			Path(obj.Module.Name, function).
			Detail("signature lowers to %d values, function takes %d", len(stack), len(def.ParamTypes())).
			Build()
	}

	res, err := r.invoke(ctx, obj, function, fn, stack)
	if err != nil {
		return nil, err
	}

	if typed {
		return liftWIT(obj, function, sig.Results, res)
	}
	out := make([]any, len(res))
	for i, vt := range def.ResultTypes() {
		out[i] = liftValue(vt, res[i])
	}
	return out, nil
}

func (r *Runtime) invoke(ctx context.Context, obj *Object, function string, fn api.Function, stack []uint64) (res []uint64, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errors.Panic(errors.PhaseRuntime, obj.Module.Name+"."+function, p)
			r.bridge.ReportException(err.Error())
		}
	}()

	res, err = fn.Call(ctx, stack...)
	if err != nil {
		r.bridge.ReportException(fmt.Sprintf("%s.%s: %v", obj.Module.Name, function, err))
		return nil, errors.New(errors.PhaseRuntime, errors.KindUnknown).
			Path(obj.Module.Name, function).
			Detail("guest call failed").
			Cause(err).
			Build()
	}
	return res, nil
}

func (r *Runtime) lowerWIT(ctx context.Context, obj *Object, t wit.Type, arg any) ([]uint64, func(), error) {
	switch t.(type) {
	case wit.String:
		s, ok := asString(arg)
		if !ok {
			return nil, nil, mismatch(arg, "string")
		}
		a, err := obj.allocator()
		if err != nil {
			return nil, nil, err
		}
		ptr, n, release, err := boundary.PassString(ctx, a, s)
		if err != nil {
			return nil, nil, err
		}
		return []uint64{api.EncodeU32(ptr), api.EncodeU32(n)}, release, nil
	case wit.Bool:
		b, ok := asBool(arg)
		if !ok {
			return nil, nil, mismatch(arg, "bool")
		}
		if b {
			return []uint64{1}, nil, nil
		}
		return []uint64{0}, nil, nil
	case wit.S8:
		v, err := signed(arg, math.MinInt8, math.MaxInt8, "s8")
		return []uint64{api.EncodeI32(int32(v))}, nil, err
	case wit.S16:
		v, err := signed(arg, math.MinInt16, math.MaxInt16, "s16")
		return []uint64{api.EncodeI32(int32(v))}, nil, err
	case wit.S32:
		v, err := signed(arg, math.MinInt32, math.MaxInt32, "s32")
		return []uint64{api.EncodeI32(int32(v))}, nil, err
	case wit.S64:
		v, err := signed(arg, math.MinInt64, math.MaxInt64, "s64")
		return []uint64{uint64(v)}, nil, err
	case wit.U8:
		v, err := unsigned(arg, math.MaxUint8, "u8")
		return []uint64{v}, nil, err
	case wit.U16:
		v, err := unsigned(arg, math.MaxUint16, "u16")
		return []uint64{v}, nil, err
	case wit.U32:
		v, err := unsigned(arg, math.MaxUint32, "u32")
		return []uint64{v}, nil, err
	case wit.U64:
		v, err := unsigned(arg, math.MaxUint64, "u64")
		return []uint64{v}, nil, err
	case wit.Char:
		v, ok := asRune(arg)
		if !ok {
			return nil, nil, mismatch(arg, "char")
		}
		return []uint64{api.EncodeU32(uint32(v))}, nil, nil
	case wit.F32:
		f, ok := asFloat(arg)
		if !ok {
			return nil, nil, mismatch(arg, "f32")
		}
		return []uint64{api.EncodeF32(float32(f))}, nil, nil
	case wit.F64:
		f, ok := asFloat(arg)
		if !ok {
			return nil, nil, mismatch(arg, "f64")
		}
		return []uint64{api.EncodeF64(f)}, nil, nil
	}
	return nil, nil, errors.Unsupported(errors.PhaseRuntime, fmt.Sprintf("WIT type %s as argument", witName(t)))
}

func liftWIT(obj *Object, function string, types []wit.Type, res []uint64) ([]any, error) {
	out := make([]any, 0, len(types))
	pos := 0
	take := func(n int) ([]uint64, error) {
		if pos+n > len(res) {
			return nil, errors.New(errors.PhaseRuntime, errors.KindTypeMismatch).
				Path(obj.Module.Name, function).
				Detail("signature expects more results than the function returned").
				Build()
		}
		v := res[pos : pos+n]
		pos += n
		return v, nil
	}

	for _, t := range types {
		if _, ok := t.(wit.String); ok {
			v, err := take(2)
			if err != nil {
				return nil, err
			}
			s, err := boundary.ReadString(obj.inst.Memory(), api.DecodeU32(v[0]), api.DecodeU32(v[1]))
			if err != nil {
				return nil, err
			}
			out = append(out, s.String())
			s.Free()
			continue
		}

		v, err := take(1)
		if err != nil {
			return nil, err
		}
		switch t.(type) {
		case wit.Bool:
			out = append(out, uint32(v[0]) != 0)
		case wit.S8:
			out = append(out, int8(api.DecodeI32(v[0])))
		case wit.S16:
			out = append(out, int16(api.DecodeI32(v[0])))
		case wit.S32:
			out = append(out, api.DecodeI32(v[0]))
		case wit.S64:
			out = append(out, int64(v[0]))
		case wit.U8:
			out = append(out, uint8(v[0]))
		case wit.U16:
			out = append(out, uint16(v[0]))
		case wit.U32:
			out = append(out, api.DecodeU32(v[0]))
		case wit.U64:
			out = append(out, v[0])
		case wit.Char:
			out = append(out, rune(api.DecodeU32(v[0])))
		case wit.F32:
			out = append(out, api.DecodeF32(v[0]))
		case wit.F64:
			out = append(out, api.DecodeF64(v[0]))
		default:
			return nil, errors.Unsupported(errors.PhaseRuntime, fmt.Sprintf("WIT type %s as result", witName(t)))
		}
	}
	return out, nil
}

func lowerValue(vt api.ValueType, arg any) (uint64, error) {
	switch vt {
	case api.ValueTypeI32:
		if u, ok := arg.(uint32); ok {
			return api.EncodeU32(u), nil
		}
		v, err := signed(arg, math.MinInt32, math.MaxInt32, "i32")
		return api.EncodeI32(int32(v)), err
	case api.ValueTypeI64:
		if u, ok := arg.(uint64); ok {
			return u, nil
		}
		v, err := signed(arg, math.MinInt64, math.MaxInt64, "i64")
		return uint64(v), err
	case api.ValueTypeF32:
		f, ok := asFloat(arg)
		if !ok {
			return 0, mismatch(arg, "f32")
		}
		return api.EncodeF32(float32(f)), nil
	case api.ValueTypeF64:
		f, ok := asFloat(arg)
		if !ok {
			return 0, mismatch(arg, "f64")
		}
		return api.EncodeF64(f), nil
	}
	return 0, errors.Unsupported(errors.PhaseRuntime, api.ValueTypeName(vt)+" argument")
}

func liftValue(vt api.ValueType, v uint64) any {
	switch vt {
	case api.ValueTypeI32:
		return api.DecodeI32(v)
	case api.ValueTypeI64:
		return int64(v)
	case api.ValueTypeF32:
		return api.DecodeF32(v)
	case api.ValueTypeF64:
		return api.DecodeF64(v)
	}
	return v
}

func arity(module, function string, want, got int) error {
	return errors.New(errors.PhaseRuntime, errors.KindTypeMismatch).
		Path(module, function).
		Detail("takes %d arguments, got %d", want, got).
		Build()
}

func argError(err error, module, function string, i int) error {
	if e, ok := err.(*errors.Error); ok && len(e.Path) == 0 {
		e.Path = []string{module, function, fmt.Sprintf("arg%d", i)}
		return e
	}
	return err
}

func mismatch(arg any, want string) error {
	return errors.TypeMismatch(errors.PhaseRuntime, typeString(arg), want)
}

func witName(t wit.Type) string {
	if tn, ok := t.(interface{ TypeName() string }); ok {
		if n := tn.TypeName(); n != "" {
			return n
		}
	}
	return fmt.Sprintf("%T", t)
}
