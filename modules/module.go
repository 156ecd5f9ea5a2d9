// Package modules holds loaded script modules and the process-wide cache
// that finds them by name.
package modules

import (
	"github.com/tetratelabs/wazero"

	"github.com/wippyai/scripthost/boundary"
	"github.com/wippyai/scripthost/metadata"
)

// MemorySource is the Source recorded for modules loaded from a buffer.
const MemorySource = "<memory>"

// Module is one loaded unit of script code.
type Module struct {
	Compiled   wazero.CompiledModule
	Table      *metadata.Table
	Signatures metadata.Signatures
	Name       string
	Source     string
	Imports    []string
	ID         boundary.ModuleID
	NameHash   boundary.NameHash
	Context    boundary.ContextID
	Bytes      []byte
}

// FromMemory reports whether the module was loaded from a buffer.
func (m *Module) FromMemory() bool {
	return m.Source == MemorySource
}

// Signature returns the WIT signature of an export, if the module has one.
func (m *Module) Signature(export string) (*metadata.Signature, bool) {
	if m.Signatures == nil {
		return nil, false
	}
	s, ok := m.Signatures[export]
	return s, ok
}

// References reports whether the module imports from name.
func (m *Module) References(name string) bool {
	for _, imp := range m.Imports {
		if imp == name {
			return true
		}
	}
	return false
}
