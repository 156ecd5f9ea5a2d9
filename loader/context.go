package loader

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wippyai/scripthost/boundary"
	"github.com/wippyai/scripthost/engine"
	"github.com/wippyai/scripthost/errors"
	"github.com/wippyai/scripthost/modules"
)

// ResolveFunc finds a module by name on behalf of a context.
type ResolveFunc func(name string) (*modules.Module, error)

// Binder installs host modules into a new context's engine.
type Binder interface {
	// Bind instantiates the host modules in c's engine.
	Bind(ctx context.Context, c *Context) error
	// Provides reports whether imports from namespace are served by the host
	// rather than by another script module.
	Provides(namespace string) bool
}

// Context is a named, collectible group of modules.
type Context struct {
	Created  time.Time
	engine   *engine.Engine
	resolve  ResolveFunc
	byName   map[string]*modules.Module
	Name     string
	modules  []*modules.Module
	sources  []Source
	ID       boundary.ContextID
	mu       sync.RWMutex
	unloaded atomic.Bool
}

// Collectible is always true: every script context can be unloaded.
func (c *Context) Collectible() bool {
	return true
}

// Unloaded reports whether the context was unloaded.
func (c *Context) Unloaded() bool {
	return c.unloaded.Load()
}

// Engine returns the runtime the context's modules live in.
func (c *Context) Engine() *engine.Engine {
	return c.engine
}

// Resolve runs the context's resolution hook.
func (c *Context) Resolve(name string) (*modules.Module, error) {
	if c.resolve == nil {
		return nil, errors.Unresolved(c.Name, name)
	}
	return c.resolve(name)
}

// Modules returns the modules in load order.
func (c *Context) Modules() []*modules.Module {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*modules.Module, len(c.modules))
	copy(out, c.modules)
	return out
}

// Module returns the module called name.
func (c *Context) Module(name string) (*modules.Module, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.byName[name]
	return m, ok
}

// Sources returns the sources of every successful load, in order.
func (c *Context) Sources() []Source {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Source, len(c.sources))
	copy(out, c.sources)
	return out
}

func (c *Context) add(m *modules.Module, src Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.byName[m.Name]; dup {
		return errors.New(errors.PhaseLoad, errors.KindLoadFailure).
			Path(c.Name, m.Name).
			Detail("module %q is already loaded in this context", m.Name).
			Build()
	}
	c.byName[m.Name] = m
	c.modules = append(c.modules, m)
	c.sources = append(c.sources, src)
	return nil
}
