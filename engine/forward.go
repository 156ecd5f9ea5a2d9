package engine

import (
	"context"
	"sort"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/scripthost/errors"
)

// Target resolves the module a forwarding module calls into.
type Target func(ctx context.Context) (api.Module, error)

// Forward creates a host module called name that re-exports every function
// in exports. Each call resolves the target anew and copies parameters and
// results through the value stack. Target errors and guest traps surface as
// traps in the caller. An existing module called name is returned as is.
func (e *Engine) Forward(ctx context.Context, name string, exports map[string]api.FunctionDefinition, target Target) (api.Module, error) {
	if target == nil {
		return nil, errors.New(errors.PhaseResolve, errors.KindNullReference).Path(name).Detail("nil forwarding target").Build()
	}

	names := make([]string, 0, len(exports))
	for n := range exports {
		names = append(names, n)
	}
	sort.Strings(names)

	funcs := make([]HostFunc, 0, len(names))
	for _, export := range names {
		def := exports[export]
		funcs = append(funcs, HostFunc{
			Name:        export,
			ParamTypes:  def.ParamTypes(),
			ResultTypes: def.ResultTypes(),
			Fn:          forwardFunc(name, export, len(def.ParamTypes()), target),
		})
	}
	return e.HostModule(ctx, name, funcs)
}

func forwardFunc(module, export string, nparams int, target Target) api.GoModuleFunc {
	return func(ctx context.Context, _ api.Module, stack []uint64) {
		mod, err := target(ctx)
		if err != nil {
			panic(err)
		}
		fn := mod.ExportedFunction(export)
		if fn == nil {
			panic(errors.NotFound(errors.PhaseResolve, "function", module+"."+export))
		}
		results, err := fn.Call(ctx, stack[:nparams]...)
		if err != nil {
			panic(err)
		}
		copy(stack, results)
	}
}
