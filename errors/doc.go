// Package errors provides the structured errors returned by the script host.
//
// Every error carries a Phase (the subsystem that failed: host, context,
// load, resolve, handle, boundary, metadata, gc, runtime or config) and a
// Kind (invalid_name, not_found, unresolved_reference, invalid_handle,
// type_mismatch and so on). Path, GoType, Want, Value and Cause add context.
//
// Use the Builder for structured construction:
//
//	err := errors.New(errors.PhaseHandle, errors.KindTypeMismatch).
//		Path("player", "inventory").
//		GoType("*game.Player").
//		Want("*game.Item").
//		Detail("downcast failed").
//		Build()
//
// Or a constructor for the common cases:
//
//	err := errors.TypeMismatch(errors.PhaseHandle, "*game.Player", "*game.Item")
//	err := errors.NotFound(errors.PhaseLoad, "file", path)
//	err := errors.Unresolved("game", "physics")
//	err := errors.Wrap(errors.PhaseLoad, errors.KindInvalidImage, cause, "compile")
//
// The Err* sentinels match on Kind regardless of phase, so callers test with
// the standard library: errors.Is(err, errors.ErrInvalidHandle). KindOf
// extracts the kind from any wrapped chain.
//
// Native callers receive a Status instead of an error. StatusOf maps nil to
// StatusSuccess, each Kind to its own code and foreign errors to
// StatusUnknownError.
package errors
