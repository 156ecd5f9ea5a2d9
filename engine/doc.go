// Package engine wraps the wazero runtime that backs one load context.
//
// Every load context owns an Engine. Modules loaded into the context are
// compiled by its runtime and their instances live there, so closing the
// Engine releases every compiled module and instance of the context at once.
//
// # Host Modules
//
// HostModule exposes Go functions to guests under an import module name.
// The runtime uses it for the "scripthost" module that routes guest logging
// and exception reports to the host bridge.
//
// # Forwarding
//
// A module may import from a module that lives in another context. Engines do
// not share instances, so Forward creates a host module under the imported
// name whose functions call into the other engine. The target is resolved on
// every call: after the other context reloads, calls reach the new instance,
// and after it unloads, calls trap.
//
// # Thread Safety
//
// Engine is safe for concurrent use. Instances returned by Instantiate are
// not; callers serialize calls into one instance.
package engine
