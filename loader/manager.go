package loader

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/scripthost/boundary"
	"github.com/wippyai/scripthost/engine"
	"github.com/wippyai/scripthost/errors"
	"github.com/wippyai/scripthost/gc"
	"github.com/wippyai/scripthost/host"
	"github.com/wippyai/scripthost/internal/ident"
	"github.com/wippyai/scripthost/metadata"
	"github.com/wippyai/scripthost/modules"
	"github.com/wippyai/scripthost/resource"
)

// Options configures a Manager.
type Options struct {
	// Engine is applied to every context's engine. The logger field is
	// replaced with a child of the bridge logger.
	Engine engine.Config

	// Binder installs host modules into new contexts. Imports from
	// namespaces it provides are not treated as module references.
	Binder Binder

	// DrainOnUnload makes Unload block on a forced collection and a
	// finalizer drain instead of scheduling a background pass.
	DrainOnUnload bool

	// DrainTimeout bounds the drain. Zero means no bound beyond the caller's
	// context.
	DrainTimeout time.Duration
}

// Manager owns every load context.
type Manager struct {
	bridge     *host.Bridge
	log        *zap.Logger
	registry   *resource.Registry
	meta       *metadata.Cache
	cache      *modules.Cache
	collector  *gc.Collector
	contextIDs *ident.Table
	moduleIDs  *ident.Table
	nameHashes *ident.Table
	active     map[boundary.ContextID]*Context
	byModule   map[boundary.ModuleID]*modules.Module
	order      []*Context
	opts       Options
	lastStatus atomic.Uint32
	mu         sync.RWMutex
}

// NewManager creates a manager over the shared process-wide state.
func NewManager(bridge *host.Bridge, registry *resource.Registry, meta *metadata.Cache, cache *modules.Cache, collector *gc.Collector, opts Options) *Manager {
	return &Manager{
		bridge:     bridge,
		log:        bridge.Logger().Named("loader"),
		registry:   registry,
		meta:       meta,
		cache:      cache,
		collector:  collector,
		contextIDs: ident.NewTable(),
		moduleIDs:  ident.NewTable(),
		nameHashes: ident.NewTable(),
		active:     make(map[boundary.ContextID]*Context),
		byModule:   make(map[boundary.ModuleID]*modules.Module),
		opts:       opts,
	}
}

// CreateContext creates an empty, collectible context. Names are unique
// among active contexts; a name can be reused after its context is unloaded
// and maps to the same ContextID again.
func (m *Manager) CreateContext(ctx context.Context, name string) (*Context, error) {
	if err := m.bridge.Check("CreateContext"); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, errors.New(errors.PhaseContext, errors.KindInvalidName).
			Detail("context name is empty").
			Build()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := boundary.ContextID(m.contextIDs.Assign(name))
	if _, taken := m.active[id]; taken {
		return nil, errors.New(errors.PhaseContext, errors.KindInvalidName).
			Path(name).
			Detail("context %q is already active", name).
			Build()
	}

	cfg := m.opts.Engine
	cfg.Logger = m.bridge.Logger().Named("engine").With(zap.String("context", name))
	eng, err := engine.New(ctx, &cfg)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseContext, errors.KindUnknown, err, "create engine")
	}

	c := &Context{
		ID:      id,
		Name:    name,
		Created: time.Now(),
		engine:  eng,
		byName:  make(map[string]*modules.Module),
	}
	c.resolve = func(ref string) (*modules.Module, error) {
		return m.Resolve(c.ID, ref)
	}

	if m.opts.Binder != nil {
		if err := m.opts.Binder.Bind(ctx, c); err != nil {
			_ = eng.Close(ctx)
			return nil, err
		}
	}

	m.active[id] = c
	m.order = append(m.order, c)
	m.log.Debug("context created", zap.String("context", name), zap.Stringer("id", id))
	return c, nil
}

// Load loads one module into a context and records the outcome for
// LastLoadStatus.
func (m *Manager) Load(ctx context.Context, id boundary.ContextID, src Source) (*modules.Module, error) {
	mod, err := m.load(ctx, id, src)
	m.lastStatus.Store(uint32(errors.StatusOf(err)))
	if err != nil {
		m.log.Error("module load failed", zap.String("source", src.String()), zap.Error(err))
	}
	return mod, err
}

func (m *Manager) load(ctx context.Context, id boundary.ContextID, src Source) (*modules.Module, error) {
	if err := m.bridge.Check("Load"); err != nil {
		return nil, err
	}
	c, ok := m.Context(id)
	if !ok {
		return nil, errors.New(errors.PhaseContext, errors.KindUnknown).
			Detail("context %v is not active", id).
			Build()
	}
	if err := src.validate(); err != nil {
		return nil, err
	}

	m.log.Info("loading module", zap.String("context", c.Name), zap.String("source", src.String()))

	bin, err := src.read()
	if err != nil {
		return nil, err
	}
	compiled, err := c.engine.Compile(ctx, bin)
	if err != nil {
		return nil, err
	}

	mod, err := m.describe(c, src, bin, compiled)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, err
	}

	for _, ref := range mod.Imports {
		if _, err := c.Resolve(ref); err != nil {
			_ = compiled.Close(ctx)
			return nil, err
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.active[id] != c {
		_ = compiled.Close(ctx)
		return nil, errors.New(errors.PhaseContext, errors.KindUnknown).
			Path(c.Name).
			Detail("context was unloaded during load").
			Build()
	}
	if err := c.add(mod, src); err != nil {
		_ = compiled.Close(ctx)
		return nil, err
	}
	m.cache.Register(mod)
	m.byModule[mod.ID] = mod
	return mod, nil
}

// describe builds the module record: name, ids, signatures, referenced
// modules and descriptor table.
func (m *Manager) describe(c *Context, src Source, bin []byte, cm wazero.CompiledModule) (*modules.Module, error) {
	name, err := src.moduleName(cm.Name())
	if err != nil {
		return nil, err
	}

	sigs, err := metadata.SignaturesOf(cm)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidImage, err, "read signatures of "+name)
	}

	mod := &modules.Module{
		Compiled:   cm,
		Signatures: sigs,
		Name:       name,
		Source:     src.String(),
		Imports:    m.references(cm),
		ID:         boundary.ModuleID(m.moduleIDs.Assign(moduleKey(c.ID, name))),
		NameHash:   boundary.NameHash(m.nameHashes.Assign(name)),
		Context:    c.ID,
	}
	if src.Path == "" {
		mod.Bytes = bin
	}
	mod.Table = metadata.TableFor(mod.ID, name, cm, sigs)
	return mod, nil
}

// moduleKey names a module within its context. The context id is hex, so
// the first slash always ends it whatever the module name contains.
func moduleKey(id boundary.ContextID, name string) string {
	return fmt.Sprintf("%x/%s", uint64(id), name)
}

// references lists the distinct module names an image imports functions
// from, leaving out host namespaces.
func (m *Manager) references(compiled wazero.CompiledModule) []string {
	seen := make(map[string]bool)
	var refs []string
	for _, def := range compiled.ImportedFunctions() {
		mod, _, ok := def.Import()
		if !ok || seen[mod] || m.hostNamespace(mod) {
			continue
		}
		seen[mod] = true
		refs = append(refs, mod)
	}
	sort.Strings(refs)
	return refs
}

func (m *Manager) hostNamespace(name string) bool {
	if name == boundary.HostModule {
		return true
	}
	return m.opts.Binder != nil && m.opts.Binder.Provides(name)
}

// Resolve finds a module by name for a context: first among the context's
// own modules, then in the global cache, then in every other active context
// in creation order.
func (m *Manager) Resolve(id boundary.ContextID, name string) (*modules.Module, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	c, ok := m.active[id]
	if !ok {
		return nil, errors.New(errors.PhaseResolve, errors.KindUnknown).
			Detail("context %v is not active", id).
			Build()
	}
	if mod, ok := c.Module(name); ok {
		return mod, nil
	}
	if h, ok := m.nameHashes.Lookup(name); ok {
		if mod, ok := m.cache.Lookup(boundary.NameHash(h)); ok {
			return mod, nil
		}
	}
	for _, other := range m.order {
		if other == c {
			continue
		}
		if mod, ok := other.Module(name); ok {
			return mod, nil
		}
	}
	return nil, errors.Unresolved(c.Name, name)
}

// promote registers the module called name from the newest active context
// that has one, so the global cache keeps resolving it after the context
// that last registered the name goes away. mu must be held.
func (m *Manager) promote(name string) {
	for i := len(m.order) - 1; i >= 0; i-- {
		if mod, ok := m.order[i].Module(name); ok {
			m.cache.Register(mod)
			return
		}
	}
}

// Unload takes a context out of the active set and releases everything it
// owns. Unloading an unknown or already unloaded context logs a warning and
// is otherwise a no-op.
func (m *Manager) Unload(ctx context.Context, id boundary.ContextID) error {
	if err := m.bridge.Check("Unload"); err != nil {
		return err
	}

	m.mu.Lock()
	c, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		m.log.Warn("cannot unload context, it was never created or is already unloaded", zap.Stringer("id", id))
		return nil
	}
	delete(m.active, id)
	for i, o := range m.order {
		if o == c {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	mods := c.Modules()
	for _, mod := range mods {
		if m.cache.Remove(mod) {
			m.promote(mod.Name)
		}
		delete(m.byModule, mod.ID)
	}
	c.unloaded.Store(true)
	m.mu.Unlock()

	for _, leak := range m.registry.ReleaseOwned(id) {
		m.log.Warn("leaked object still referenced at unload, releasing it",
			zap.String("context", c.Name),
			zap.String("type", leak.TypeName),
			zap.Stringer("handle", leak.Handle))
	}

	m.meta.ClearAll()

	if err := c.engine.Close(ctx); err != nil {
		m.log.Warn("close engine", zap.String("context", c.Name), zap.Error(err))
	}
	m.log.Info("context unloaded", zap.String("context", c.Name), zap.Int("modules", len(mods)))

	if !m.opts.DrainOnUnload {
		return m.collector.Collect(ctx, gc.Options{Mode: gc.ModeDefault})
	}

	if m.opts.DrainTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.DrainTimeout)
		defer cancel()
	}
	if err := m.collector.Collect(ctx, gc.Options{Mode: gc.ModeForced, Blocking: true}); err != nil {
		return err
	}
	return m.collector.DrainFinalizers(ctx)
}

// Close unloads every active context, newest first.
func (m *Manager) Close(ctx context.Context) error {
	ctxs := m.Contexts()
	var first error
	for i := len(ctxs) - 1; i >= 0; i-- {
		if err := m.Unload(ctx, ctxs[i].ID); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Context returns an active context.
func (m *Manager) Context(id boundary.ContextID) (*Context, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.active[id]
	return c, ok
}

// ContextByName returns the active context called name.
func (m *Manager) ContextByName(name string) (*Context, bool) {
	id, ok := m.contextIDs.Lookup(name)
	if !ok {
		return nil, false
	}
	return m.Context(boundary.ContextID(id))
}

// Contexts returns the active contexts in creation order.
func (m *Manager) Contexts() []*Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Context, len(m.order))
	copy(out, m.order)
	return out
}

// Modules returns the modules of an active context in load order.
func (m *Manager) Modules(id boundary.ContextID) ([]*modules.Module, error) {
	c, ok := m.Context(id)
	if !ok {
		return nil, errors.New(errors.PhaseContext, errors.KindInvalidID).
			Detail("context %v is not active", id).
			Build()
	}
	return c.Modules(), nil
}

// Module returns a module of an active context.
func (m *Manager) Module(id boundary.ModuleID) (*modules.Module, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mod, ok := m.byModule[id]
	return mod, ok
}

// ModuleName returns the name of a live module.
func (m *Manager) ModuleName(id boundary.ModuleID) (string, error) {
	mod, ok := m.Module(id)
	if !ok {
		return "", errors.New(errors.PhaseContext, errors.KindInvalidID).
			Detail("module %v is not loaded", id).
			Build()
	}
	return mod.Name, nil
}

// LastLoadStatus returns the status of the most recent Load.
func (m *Manager) LastLoadStatus() errors.Status {
	return errors.Status(m.lastStatus.Load())
}
