package runtime

import (
	"context"
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/scripthost/boundary"
	"github.com/wippyai/scripthost/engine"
	"github.com/wippyai/scripthost/errors"
	"github.com/wippyai/scripthost/host"
	"github.com/wippyai/scripthost/loader"
)

// Host is the interface for struct-based host modules.
// All exported methods (except Namespace) are registered as host functions.
type Host interface {
	// Namespace returns the import module name guests use, e.g. "game".
	Namespace() string
}

// ExplicitRegistrar allows hosts to provide exact function names when the
// automatic PascalCase-to-snake_case conversion doesn't apply.
type ExplicitRegistrar interface {
	Register() map[string]any
}

// HostRegistry holds the Go functions exposed to guests. Every context gets
// the built-in scripthost module plus one host module per namespace.
type HostRegistry struct {
	bridge *host.Bridge
	funcs  map[string]map[string]any
	mu     sync.RWMutex
}

// NewHostRegistry creates a registry whose built-ins log through bridge.
func NewHostRegistry(bridge *host.Bridge) *HostRegistry {
	return &HostRegistry{
		bridge: bridge,
		funcs:  make(map[string]map[string]any),
	}
}

// RegisterHost registers all exported methods of h as host functions.
func (r *HostRegistry) RegisterHost(h Host) error {
	if h == nil {
		return errors.New(errors.PhaseHost, errors.KindNullReference).Detail("host is nil").Build()
	}
	ns := h.Namespace()
	if err := checkNamespace(ns); err != nil {
		return err
	}

	funcs := make(map[string]any)
	if er, ok := h.(ExplicitRegistrar); ok {
		for name, fn := range er.Register() {
			funcs[name] = fn
		}
	} else {
		rv := reflect.ValueOf(h)
		rt := rv.Type()
		for i := 0; i < rt.NumMethod(); i++ {
			method := rt.Method(i)
			if !method.IsExported() || method.Name == "Namespace" {
				continue
			}
			funcs[toSnakeCase(method.Name)] = rv.Method(i).Interface()
		}
	}

	for name, fn := range funcs {
		if err := r.RegisterFunc(ns, name, fn); err != nil {
			return err
		}
	}
	return nil
}

// RegisterFunc registers one function. fn may take a context.Context first,
// then any of bool, the sized integers, float32, float64 and string; it may
// return one such value (not string), an error, or both.
func (r *HostRegistry) RegisterFunc(namespace, name string, fn any) error {
	if err := checkNamespace(namespace); err != nil {
		return err
	}
	if name == "" {
		return errors.New(errors.PhaseHost, errors.KindInvalidName).Detail("function name cannot be empty").Build()
	}
	if _, err := lower(namespace, name, fn); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.funcs[namespace] == nil {
		r.funcs[namespace] = make(map[string]any)
	}
	r.funcs[namespace][name] = fn
	return nil
}

// Namespaces returns the registered namespaces, sorted.
func (r *HostRegistry) Namespaces() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.funcs))
	for ns := range r.funcs {
		out = append(out, ns)
	}
	sort.Strings(out)
	return out
}

// Provides reports whether namespace is served by the host.
func (r *HostRegistry) Provides(namespace string) bool {
	if namespace == boundary.HostModule {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[namespace]
	return ok
}

// Bind instantiates the built-in module and every registered namespace in
// the context's engine. Functions registered later reach only contexts
// created later.
func (r *HostRegistry) Bind(ctx context.Context, c *loader.Context) error {
	if _, err := c.Engine().HostModule(ctx, boundary.HostModule, r.builtins()); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for ns, funcs := range r.funcs {
		hfs := make([]engine.HostFunc, 0, len(funcs))
		for name, fn := range funcs {
			hf, err := lower(ns, name, fn)
			if err != nil {
				return err
			}
			hfs = append(hfs, hf)
		}
		if _, err := c.Engine().HostModule(ctx, ns, hfs); err != nil {
			return err
		}
	}
	return nil
}

// builtins are the functions every guest can import from scripthost:
//
//	log(level, ptr, len)
//	report_exception(ptr, len)
func (r *HostRegistry) builtins() []engine.HostFunc {
	i32 := api.ValueTypeI32
	return []engine.HostFunc{
		{
			Name:       "log",
			ParamTypes: []api.ValueType{i32, i32, i32},
			Fn: func(_ context.Context, mod api.Module, stack []uint64) {
				msg, err := boundary.ReadString(mod.Memory(), api.DecodeU32(stack[1]), api.DecodeU32(stack[2]))
				if err != nil {
					r.bridge.Reportf("%s: log: %v", mod.Name(), err)
					return
				}
				defer msg.Free()
				_ = r.bridge.Log(host.Level(api.DecodeU32(stack[0])), msg.String())
			},
		},
		{
			Name:       "report_exception",
			ParamTypes: []api.ValueType{i32, i32},
			Fn: func(_ context.Context, mod api.Module, stack []uint64) {
				desc, err := boundary.ReadString(mod.Memory(), api.DecodeU32(stack[0]), api.DecodeU32(stack[1]))
				if err != nil {
					r.bridge.Reportf("%s: report_exception: %v", mod.Name(), err)
					return
				}
				defer desc.Free()
				r.bridge.ReportException(desc.String())
			},
		},
	}
}

func checkNamespace(ns string) error {
	if ns == "" {
		return errors.New(errors.PhaseHost, errors.KindInvalidName).Detail("namespace cannot be empty").Build()
	}
	if ns == boundary.HostModule {
		return errors.New(errors.PhaseHost, errors.KindInvalidName).
			Detail("namespace %q is reserved", ns).
			Build()
	}
	return nil
}

// toSnakeCase converts PascalCase to snake_case.
// Handles acronyms: GetHTTPURL -> get_http_url
func toSnakeCase(s string) string {
	if len(s) == 0 {
		return ""
	}

	runes := []rune(s)
	var result strings.Builder

	for i := 0; i < len(runes); i++ {
		r := runes[i]

		if unicode.IsUpper(r) {
			acronymEnd := i + 1
			for acronymEnd < len(runes) && unicode.IsUpper(runes[acronymEnd]) {
				acronymEnd++
			}

			if acronymEnd > i+1 {
				// Last uppercase before lowercase starts next word, not part of acronym
				if acronymEnd < len(runes) && unicode.IsLower(runes[acronymEnd]) {
					acronymEnd--
				}
			}

			if i > 0 {
				result.WriteByte('_')
			}

			for j := i; j < acronymEnd; j++ {
				result.WriteRune(unicode.ToLower(runes[j]))
			}
			i = acronymEnd - 1
		} else {
			result.WriteRune(r)
		}
	}
	return result.String()
}
