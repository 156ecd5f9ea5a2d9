package boundary

import "fmt"

// ContextID identifies a load context. The same context name always maps to
// the same id for the life of the process.
type ContextID uint64

// ModuleID identifies a module inside its owning context.
type ModuleID uint64

// NameHash identifies a bare module name in the global module cache.
type NameHash uint64

func (id ContextID) String() string { return fmt.Sprintf("ctx(%#x)", uint64(id)) }
func (id ModuleID) String() string  { return fmt.Sprintf("mod(%#x)", uint64(id)) }
