// Package loader manages load contexts: named groups of script modules that
// are loaded together and unloaded as a unit.
//
// Each Context owns an engine (one wazero runtime). Load compiles a module
// image into it, checks that every module it imports can be resolved and
// registers it with the context and the process-wide module cache. Unload
// takes the context out of the active set, force-releases the handles it
// still owns (logging one leak warning per handle), drops its modules from
// the module cache, clears the metadata cache, closes the engine and starts a
// collection pass.
//
// # Resolution
//
// When a module imports another by name the context's hook searches, in
// order: the context's own modules, the global module cache, then every other
// active context in creation order. The first match wins.
//
// # Caller Contract
//
// Unload must not race Load or handle wrapping for the same context. The
// manager does not serialize those against each other.
package loader
