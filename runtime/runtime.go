package runtime

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wippyai/scripthost/boundary"
	"github.com/wippyai/scripthost/engine"
	"github.com/wippyai/scripthost/errors"
	"github.com/wippyai/scripthost/gc"
	"github.com/wippyai/scripthost/host"
	"github.com/wippyai/scripthost/loader"
	"github.com/wippyai/scripthost/metadata"
	"github.com/wippyai/scripthost/modules"
	"github.com/wippyai/scripthost/resource"
)

// Option configures a Runtime.
type Option func(*options)

type options struct {
	engine        engine.Config
	drainTimeout  time.Duration
	drainOnUnload bool
}

// WithMemoryLimitPages caps guest memory per instance, in 64KB pages.
func WithMemoryLimitPages(pages uint32) Option {
	return func(o *options) { o.engine.MemoryLimitPages = pages }
}

// WithThreads enables the threads proposal in every context engine.
func WithThreads(enabled bool) Option {
	return func(o *options) { o.engine.EnableThreads = enabled }
}

// WithDrainOnUnload makes Unload wait for a forced collection and a
// finalizer drain, bounded by timeout when it is positive.
func WithDrainOnUnload(timeout time.Duration) Option {
	return func(o *options) {
		o.drainOnUnload = true
		o.drainTimeout = timeout
	}
}

// Runtime is the boundary call surface. It owns the handle registry, the
// metadata and module caches, the collector and the context manager, and
// every exported method is safe for concurrent use.
type Runtime struct {
	bridge    *host.Bridge
	log       *zap.Logger
	registry  *resource.Registry
	meta      *metadata.Cache
	modules   *modules.Cache
	collector *gc.Collector
	manager   *loader.Manager
	hosts     *HostRegistry
	events    *eventLogger
	instMu    sync.Mutex
}

// New composes a runtime around bridge. A nil bridge means host.Default().
func New(bridge *host.Bridge, opts ...Option) *Runtime {
	if bridge == nil {
		bridge = host.Default()
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	r := &Runtime{
		bridge:    bridge,
		log:       bridge.Logger().Named("runtime"),
		registry:  resource.NewRegistry(),
		meta:      metadata.NewCache(),
		modules:   modules.NewCache(),
		collector: gc.New(bridge),
		hosts:     NewHostRegistry(bridge),
	}
	r.events = &eventLogger{log: bridge.Logger().Named("handles")}
	r.registry.Subscribe(r.events)
	r.manager = loader.NewManager(bridge, r.registry, r.meta, r.modules, r.collector, loader.Options{
		Engine:        o.engine,
		Binder:        r.hosts,
		DrainOnUnload: o.drainOnUnload,
		DrainTimeout:  o.drainTimeout,
	})
	return r
}

// Bridge returns the host bridge the runtime reports through.
func (r *Runtime) Bridge() *host.Bridge {
	return r.bridge
}

// Hosts returns the host function registry.
func (r *Runtime) Hosts() *HostRegistry {
	return r.hosts
}

// RegisterHost registers all exported methods of h as host functions.
// Must be called BEFORE creating the contexts whose modules import them.
// Method names are converted from PascalCase to snake_case (GetValue -> get_value).
func (r *Runtime) RegisterHost(h Host) error {
	return r.hosts.RegisterHost(h)
}

// RegisterFunc registers a single host function under namespace.
func (r *Runtime) RegisterFunc(namespace, name string, fn any) error {
	return r.hosts.RegisterFunc(namespace, name, fn)
}

// Close unloads every context and releases every handle.
func (r *Runtime) Close(ctx context.Context) error {
	var err error
	if r.bridge.Installed() {
		err = r.manager.Close(ctx)
	}
	r.collector.Wait()
	_ = r.registry.Close()
	r.registry.Unsubscribe(r.events)
	return err
}

// CreateContext creates a collectible load context.
func (r *Runtime) CreateContext(ctx context.Context, name string) (boundary.ContextID, error) {
	c, err := r.manager.CreateContext(ctx, name)
	if err != nil {
		return 0, err
	}
	return c.ID, nil
}

// Load loads a module into a context.
func (r *Runtime) Load(ctx context.Context, id boundary.ContextID, src loader.Source) (boundary.ModuleID, error) {
	mod, err := r.manager.Load(ctx, id, src)
	if err != nil {
		return 0, err
	}
	return mod.ID, nil
}

// LoadFile loads the module image at path.
func (r *Runtime) LoadFile(ctx context.Context, id boundary.ContextID, path string) (boundary.ModuleID, error) {
	return r.Load(ctx, id, loader.File(path))
}

// LoadBytes loads a module image from a buffer.
func (r *Runtime) LoadBytes(ctx context.Context, id boundary.ContextID, name string, bin []byte) (boundary.ModuleID, error) {
	return r.Load(ctx, id, loader.Memory(name, bin))
}

// LastLoadStatus returns the outcome of the most recent Load.
func (r *Runtime) LastLoadStatus() errors.Status {
	return r.manager.LastLoadStatus()
}

// Unload unloads a context, releasing its handles and modules.
func (r *Runtime) Unload(ctx context.Context, id boundary.ContextID) error {
	return r.manager.Unload(ctx, id)
}

// Contexts returns the active contexts in creation order.
func (r *Runtime) Contexts() []*loader.Context {
	return r.manager.Contexts()
}

// Context returns an active context.
func (r *Runtime) Context(id boundary.ContextID) (*loader.Context, bool) {
	return r.manager.Context(id)
}

// ContextByName returns the active context called name.
func (r *Runtime) ContextByName(name string) (*loader.Context, bool) {
	return r.manager.ContextByName(name)
}

// Modules returns the modules of a context in load order.
func (r *Runtime) Modules(id boundary.ContextID) ([]*modules.Module, error) {
	return r.manager.Modules(id)
}

// Module returns a loaded module.
func (r *Runtime) Module(id boundary.ModuleID) (*modules.Module, error) {
	if err := r.bridge.Check("Module"); err != nil {
		return nil, err
	}
	mod, ok := r.manager.Module(id)
	if !ok {
		return nil, errors.New(errors.PhaseRuntime, errors.KindInvalidID).
			Detail("module %v is not loaded", id).
			Build()
	}
	return mod, nil
}

// ModuleName returns the name of a loaded module.
func (r *Runtime) ModuleName(id boundary.ModuleID) (string, error) {
	if err := r.bridge.Check("ModuleName"); err != nil {
		return "", err
	}
	return r.manager.ModuleName(id)
}

// ResolveModule finds a module by name the way an import from the given
// context would.
func (r *Runtime) ResolveModule(id boundary.ContextID, name string) (boundary.ModuleID, error) {
	if err := r.bridge.Check("ResolveModule"); err != nil {
		return 0, err
	}
	mod, err := r.manager.Resolve(id, name)
	if err != nil {
		return 0, err
	}
	return mod.ID, nil
}

// Wrap registers a host object under owner and returns its handle.
func (r *Runtime) Wrap(object any, owner boundary.ContextID) (boundary.Handle, error) {
	if err := r.bridge.Check("Wrap"); err != nil {
		return 0, err
	}
	if _, ok := r.manager.Context(owner); !ok {
		return 0, errors.New(errors.PhaseHandle, errors.KindInvalidID).
			Detail("owner %v is not an active context", owner).
			Build()
	}
	return r.registry.Wrap(object, owner)
}

// Get returns the object behind h.
func (r *Runtime) Get(h boundary.Handle) (any, error) {
	if err := r.bridge.Check("Get"); err != nil {
		return nil, err
	}
	return r.registry.Get(h)
}

// Deref returns the object behind h as a T.
func Deref[T any](r *Runtime, h boundary.Handle) (T, error) {
	if err := r.bridge.Check("Deref"); err != nil {
		var zero T
		return zero, err
	}
	return resource.Deref[T](r.registry, h)
}

// Release drops h. Releasing an unknown or already released handle is a
// no-op that reports false.
func (r *Runtime) Release(h boundary.Handle) (bool, error) {
	if err := r.bridge.Check("Release"); err != nil {
		return false, err
	}
	return r.registry.Release(h), nil
}

// Collect runs a collection pass.
func (r *Runtime) Collect(ctx context.Context, opts gc.Options) error {
	return r.collector.Collect(ctx, opts)
}

// DrainFinalizers waits until every pending finalizer has run.
func (r *Runtime) DrainFinalizers(ctx context.Context) error {
	return r.collector.DrainFinalizers(ctx)
}

// CollectorStats returns the collector's history.
func (r *Runtime) CollectorStats() gc.Stats {
	return r.collector.Stats()
}
