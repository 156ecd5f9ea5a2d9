package runtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/scripthost/boundary"
	"github.com/wippyai/scripthost/errors"
	"github.com/wippyai/scripthost/loader"
	"github.com/wippyai/scripthost/modules"
)

// Object is a live instance of a script module. Calls on one object are
// serialized; objects are independent of each other.
type Object struct {
	Module *modules.Module
	inst   api.Module
	alloc  *boundary.GuestAllocator
	mu     sync.Mutex
}

// Instance returns the underlying wazero module.
func (o *Object) Instance() api.Module {
	return o.inst
}

// Drop closes the instance. The registry calls it on release.
func (o *Object) Drop() {
	_ = o.inst.Close(context.Background())
}

func (o *Object) allocator() (*boundary.GuestAllocator, error) {
	if o.alloc != nil {
		return o.alloc, nil
	}
	a, err := boundary.NewGuestAllocator(o.inst)
	if err != nil {
		return nil, err
	}
	o.alloc = a
	return a, nil
}

// NewObject instantiates a module and wraps the instance in a handle owned by
// the module's context. Modules it imports from its own context are
// instantiated once under their own name and shared. Modules it imports from
// other contexts are reached through forwarding modules that look the target
// up on every call, so they follow reloads of that context.
func (r *Runtime) NewObject(ctx context.Context, id boundary.ModuleID) (boundary.Handle, error) {
	if err := r.bridge.Check("NewObject"); err != nil {
		return 0, err
	}
	mod, ok := r.manager.Module(id)
	if !ok {
		return 0, errors.New(errors.PhaseRuntime, errors.KindInvalidID).
			Detail("module %v is not loaded", id).
			Build()
	}
	c, ok := r.manager.Context(mod.Context)
	if !ok {
		return 0, errors.New(errors.PhaseRuntime, errors.KindInvalidID).
			Detail("context %v is not active", mod.Context).
			Build()
	}

	r.instMu.Lock()
	err := r.link(ctx, c, mod, map[string]bool{})
	r.instMu.Unlock()
	if err != nil {
		return 0, err
	}

	inst, err := c.Engine().Instantiate(ctx, mod.Compiled, mod.Name+"#"+uuid.NewString())
	if err != nil {
		r.bridge.Reportf("instantiate %s: %v", mod.Name, err)
		return 0, err
	}

	obj := &Object{Module: mod, inst: inst}
	h, err := r.registry.Wrap(obj, c.ID)
	if err != nil {
		obj.Drop()
		return 0, err
	}
	r.log.Debug("object created", zap.String("module", mod.Name), zap.Stringer("handle", h))
	return h, nil
}

// link makes every module mod imports available in c's engine under the
// imported name. instMu must be held.
func (r *Runtime) link(ctx context.Context, c *loader.Context, mod *modules.Module, visiting map[string]bool) error {
	if visiting[mod.Name] {
		return errors.New(errors.PhaseResolve, errors.KindUnsupported).
			Path(c.Name, mod.Name).
			Detail("cyclic module references").
			Build()
	}
	visiting[mod.Name] = true
	defer delete(visiting, mod.Name)

	for _, ref := range mod.Imports {
		if c.Engine().Module(ref) != nil {
			continue
		}
		target, err := c.Resolve(ref)
		if err != nil {
			return err
		}

		if target.Context == c.ID {
			if err := r.link(ctx, c, target, visiting); err != nil {
				return err
			}
			if _, err := c.Engine().Instantiate(ctx, target.Compiled, ref); err != nil {
				return err
			}
			continue
		}

		exports := target.Compiled.ExportedFunctions()
		if _, err := c.Engine().Forward(ctx, ref, exports, r.forwardTarget(c, ref)); err != nil {
			return err
		}
		r.log.Debug("forwarding module linked",
			zap.String("context", c.Name),
			zap.String("module", ref))
	}
	return nil
}

// forwardTarget resolves ref from c on each call and returns the shared
// instance of whatever module it currently names.
func (r *Runtime) forwardTarget(c *loader.Context, ref string) func(context.Context) (api.Module, error) {
	return func(ctx context.Context) (api.Module, error) {
		target, err := c.Resolve(ref)
		if err != nil {
			return nil, err
		}
		owner, ok := r.manager.Context(target.Context)
		if !ok {
			return nil, errors.Unresolved(c.Name, ref)
		}
		if inst := owner.Engine().Module(target.Name); inst != nil {
			return inst, nil
		}

		r.instMu.Lock()
		defer r.instMu.Unlock()
		if inst := owner.Engine().Module(target.Name); inst != nil {
			return inst, nil
		}
		if err := r.link(ctx, owner, target, map[string]bool{}); err != nil {
			return nil, err
		}
		return owner.Engine().Instantiate(ctx, target.Compiled, target.Name)
	}
}
