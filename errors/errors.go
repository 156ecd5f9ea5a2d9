package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseHost     Phase = "host"     // bridge handshake and callbacks
	PhaseContext  Phase = "context"  // load context lifecycle
	PhaseLoad     Phase = "load"     // module loading
	PhaseResolve  Phase = "resolve"  // cross-module name resolution
	PhaseHandle   Phase = "handle"   // handle registry
	PhaseBoundary Phase = "boundary" // value marshaling
	PhaseMetadata Phase = "metadata" // descriptor interning
	PhaseGC       Phase = "gc"       // collection control
	PhaseRuntime  Phase = "runtime"  // guest calls and instantiation
	PhaseConfig   Phase = "config"   // host configuration
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidName         Kind = "invalid_name"
	KindNotFound            Kind = "not_found"
	KindLoadFailure         Kind = "load_failure"
	KindInvalidSource       Kind = "invalid_source"
	KindInvalidImage        Kind = "invalid_image"
	KindUnresolvedReference Kind = "unresolved_reference"
	KindInvalidHandle       Kind = "invalid_handle"
	KindTypeMismatch        Kind = "type_mismatch"
	KindNullReference       Kind = "null_reference"
	KindInvalidID           Kind = "invalid_id"
	KindHostNotInitialized  Kind = "host_not_initialized"
	KindUnsupported         Kind = "unsupported"
	KindUnknown             Kind = "unknown_error"
)

// Sentinels for errors.Is checks. They match any phase.
var (
	ErrInvalidName         = &Error{Kind: KindInvalidName}
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrLoadFailure         = &Error{Kind: KindLoadFailure}
	ErrInvalidSource       = &Error{Kind: KindInvalidSource}
	ErrInvalidImage        = &Error{Kind: KindInvalidImage}
	ErrUnresolvedReference = &Error{Kind: KindUnresolvedReference}
	ErrInvalidHandle       = &Error{Kind: KindInvalidHandle}
	ErrTypeMismatch        = &Error{Kind: KindTypeMismatch}
	ErrNullReference       = &Error{Kind: KindNullReference}
	ErrInvalidID           = &Error{Kind: KindInvalidID}
	ErrHostNotInitialized  = &Error{Kind: KindHostNotInitialized}
	ErrUnsupported         = &Error{Kind: KindUnsupported}
	ErrUnknown             = &Error{Kind: KindUnknown}
)

// Error is the structured error type returned across the boundary
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	GoType string
	Want   string
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.Want != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.Want != "" {
			b.WriteString("have ")
			b.WriteString(e.GoType)
			b.WriteString(", want ")
			b.WriteString(e.Want)
		} else if e.GoType != "" {
			b.WriteString("type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("want ")
			b.WriteString(e.Want)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.Want != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target with an empty Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase != "" && t.Phase != e.Phase {
		return false
	}
	return e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name of the offending value
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// Want sets the expected type name
func (b *Builder) Want(t string) *Builder {
	b.err.Want = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// KindOf returns the Kind carried by err, KindUnknown for foreign errors
// and "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, have, want string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		GoType: have,
		Want:   want,
	}
}

// NotInitialized creates the error returned before the host handshake
func NotInitialized(op string) *Error {
	return &Error{
		Phase:  PhaseHost,
		Kind:   KindHostNotInitialized,
		Detail: fmt.Sprintf("%s called before host bridge Install", op),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidHandle creates an invalid handle error
func InvalidHandle(handle uint64) *Error {
	return &Error{
		Phase:  PhaseHandle,
		Kind:   KindInvalidHandle,
		Detail: fmt.Sprintf("handle %#x is not live", handle),
		Value:  handle,
	}
}

// Unresolved creates an unresolved reference error
func Unresolved(from, name string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindUnresolvedReference,
		Path:   []string{from},
		Detail: fmt.Sprintf("module %q cannot be resolved", name),
		Value:  name,
	}
}

// Unsupported creates an unsupported operation error
func Unsupported(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnsupported,
		Detail: what,
	}
}

// Unknown converts an internal fault into an UnknownError
func Unknown(phase Phase, detail string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnknown,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// Panic converts a recovered panic value into an UnknownError
func Panic(phase Phase, what string, r any) *Error {
	cause, ok := r.(error)
	if !ok {
		cause = fmt.Errorf("%v", r)
	}
	return &Error{
		Phase:  phase,
		Kind:   KindUnknown,
		Detail: fmt.Sprintf("panic in %s", what),
		Cause:  cause,
		Value:  r,
	}
}
