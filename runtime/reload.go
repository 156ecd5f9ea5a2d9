package runtime

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/scripthost/boundary"
	"github.com/wippyai/scripthost/errors"
	"github.com/wippyai/scripthost/gc"
)

// Reload unloads a context, waits for its objects to be collected, then
// creates a context with the same name and loads the same sources again.
// File sources are read from disk anew. The returned id equals the old one
// because context ids derive from the name.
//
// When a source fails to load the new context stays active with the modules
// loaded before it, and the error is returned.
func (r *Runtime) Reload(ctx context.Context, id boundary.ContextID) (boundary.ContextID, error) {
	if err := r.bridge.Check("Reload"); err != nil {
		return 0, err
	}
	c, ok := r.manager.Context(id)
	if !ok {
		return 0, errors.New(errors.PhaseContext, errors.KindInvalidID).
			Detail("context %v is not active", id).
			Build()
	}
	name, sources := c.Name, c.Sources()

	if err := r.manager.Unload(ctx, id); err != nil {
		return 0, err
	}
	if err := r.collector.Collect(ctx, gc.Options{Mode: gc.ModeForced, Blocking: true}); err != nil {
		return 0, err
	}
	if err := r.collector.DrainFinalizers(ctx); err != nil {
		return 0, err
	}

	nc, err := r.manager.CreateContext(ctx, name)
	if err != nil {
		return 0, err
	}
	for _, src := range sources {
		if _, err := r.manager.Load(ctx, nc.ID, src); err != nil {
			return nc.ID, err
		}
	}
	r.log.Info("context reloaded", zap.String("context", name), zap.Int("modules", len(sources)))
	return nc.ID, nil
}
