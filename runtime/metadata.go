package runtime

import (
	"github.com/wippyai/scripthost/boundary"
	"github.com/wippyai/scripthost/errors"
	"github.com/wippyai/scripthost/metadata"
)

// Intern returns the cached id of d, assigning one on first use.
func (r *Runtime) Intern(d metadata.Descriptor) (metadata.ID, error) {
	if err := r.bridge.Check("Intern"); err != nil {
		return 0, err
	}
	return r.meta.Intern(d)
}

// Resolve returns the descriptor behind an interned id.
func (r *Runtime) Resolve(id metadata.ID) (metadata.Descriptor, error) {
	if err := r.bridge.Check("Resolve"); err != nil {
		return metadata.Descriptor{}, err
	}
	return r.meta.Resolve(id)
}

// Descriptors interns the static descriptor table of a module and returns
// the ids: the module type first, then its methods, fields and attributes.
func (r *Runtime) Descriptors(id boundary.ModuleID) ([]metadata.ID, error) {
	mod, err := r.Module(id)
	if err != nil {
		return nil, err
	}
	all := mod.Table.All()
	ids := make([]metadata.ID, 0, len(all))
	for _, d := range all {
		mid, err := r.meta.Intern(d)
		if err != nil {
			return nil, err
		}
		ids = append(ids, mid)
	}
	return ids, nil
}

// LookupType returns the type id of the module called name, searching
// active contexts in creation order.
func (r *Runtime) LookupType(name string) (metadata.ID, error) {
	if err := r.bridge.Check("LookupType"); err != nil {
		return 0, err
	}
	if id, ok := r.meta.Lookup(metadata.KindType, name); ok {
		return id, nil
	}
	for _, c := range r.manager.Contexts() {
		if mod, ok := c.Module(name); ok {
			return r.meta.Intern(mod.Table.Type)
		}
	}
	return 0, errors.NotFound(errors.PhaseMetadata, "type", name)
}

// TypeRef returns the boundary form of the type id of name.
func (r *Runtime) TypeRef(name string) (boundary.TypeRef, error) {
	id, err := r.LookupType(name)
	if err != nil {
		return 0, err
	}
	return id.Ref(), nil
}
