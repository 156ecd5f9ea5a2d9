package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/experimental"
	"go.uber.org/zap"

	"github.com/wippyai/scripthost/errors"
)

// Config holds configuration for engine creation
type Config struct {
	// Logger receives debug output. nil disables it.
	Logger *zap.Logger

	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means default (65536 pages = 4GB).
	// 256 = 16MB, 1024 = 64MB, 4096 = 256MB
	MemoryLimitPages uint32

	// EnableThreads enables the WebAssembly threads proposal (experimental).
	// This allows atomic operations and shared memory within guest modules.
	EnableThreads bool
}

// HostFunc is a Go function exported to guests.
type HostFunc struct {
	Fn          api.GoModuleFunc
	Name        string
	ParamTypes  []api.ValueType
	ResultTypes []api.ValueType
}

// Engine is one wazero runtime.
type Engine struct {
	runtime wazero.Runtime
	log     *zap.Logger
	mu      sync.Mutex
	closed  bool
}

// New creates an engine. Custom sections are always kept so descriptor
// tables can see attributes and WIT signatures.
func New(ctx context.Context, cfg *Config) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig().WithCustomSections(true)
	log := zap.NewNop()

	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.EnableThreads {
			runtimeCfg = runtimeCfg.WithCoreFeatures(api.CoreFeaturesV2 | experimental.CoreFeaturesThreads)
		}
		if cfg.Logger != nil {
			log = cfg.Logger
		}
	}

	return &Engine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		log:     log,
	}, nil
}

// Runtime returns the underlying wazero runtime.
func (e *Engine) Runtime() wazero.Runtime {
	return e.runtime
}

// Compile validates and compiles a module image. Rejected images fail with
// InvalidImage.
func (e *Engine) Compile(ctx context.Context, bin []byte) (wazero.CompiledModule, error) {
	if err := e.check("Compile"); err != nil {
		return nil, err
	}
	compiled, err := e.runtime.CompileModule(ctx, bin)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidImage, err, "compile module")
	}
	e.log.Debug("compiled module", zap.String("name", compiled.Name()), zap.Int("size", len(bin)))
	return compiled, nil
}

// Instantiate creates an instance of compiled named name. Every import must
// already be satisfied by a module in this engine.
func (e *Engine) Instantiate(ctx context.Context, compiled wazero.CompiledModule, name string) (api.Module, error) {
	if err := e.check("Instantiate"); err != nil {
		return nil, err
	}
	mod, err := e.runtime.InstantiateModule(ctx, compiled, wazero.NewModuleConfig().WithName(name))
	if err != nil {
		return nil, errors.New(errors.PhaseRuntime, errors.KindUnknown).
			Path(name).
			Detail("instantiate").
			Cause(err).
			Build()
	}
	e.log.Debug("instantiated module", zap.String("name", name))
	return mod, nil
}

// Module returns the instance registered under name, or nil.
func (e *Engine) Module(name string) api.Module {
	return e.runtime.Module(name)
}

// HostModule instantiates a host module exporting funcs under name. If a
// module with that name already exists it is returned unchanged.
func (e *Engine) HostModule(ctx context.Context, name string, funcs []HostFunc) (api.Module, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, closedError("HostModule")
	}
	if existing := e.runtime.Module(name); existing != nil {
		return existing, nil
	}

	builder := e.runtime.NewHostModuleBuilder(name)
	for _, fn := range funcs {
		builder.NewFunctionBuilder().
			WithGoModuleFunction(fn.Fn, fn.ParamTypes, fn.ResultTypes).
			Export(fn.Name)
	}
	mod, err := builder.Instantiate(ctx)
	if err != nil {
		return nil, errors.New(errors.PhaseRuntime, errors.KindUnknown).
			Path(name).
			Detail("instantiate host module").
			Cause(err).
			Build()
	}
	e.log.Debug("host module ready", zap.String("name", name), zap.Int("funcs", len(funcs)))
	return mod, nil
}

// Close releases the runtime and everything compiled or instantiated in it.
// It is safe to call more than once.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()

	e.log.Debug("closing engine")
	return e.runtime.Close(ctx)
}

// Closed reports whether Close was called.
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

func (e *Engine) check(op string) error {
	if e.Closed() {
		return closedError(op)
	}
	return nil
}

func closedError(op string) error {
	return errors.New(errors.PhaseRuntime, errors.KindUnknown).Detail("%s on closed engine", op).Build()
}
