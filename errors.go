package calldi

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// ErrNotBound is returned by the Remove* operations on a Client when the
// requested key has no binding to remove.
var ErrNotBound = errors.New("dependency not bound")

// MissingDependencyError is returned when none of a type dependency's
// candidate types have a value bound and the dependency has no default.
type MissingDependencyError struct {
	// Types holds the candidate types that were tried, in order.
	Types []reflect.Type
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("couldn't resolve injected type(s) %s to an actual value", formatTypes(e.Types))
}

// AsyncOnlyError is returned when a synchronous invocation encounters a
// callback that can only run asynchronously, either because its signature
// requires a context.Context, because it was wrapped with Async, or because
// it returned an Awaitable result. The caller should use CallWithAsyncDI
// instead.
type AsyncOnlyError struct {
	// Callback names the offending callback.
	Callback string
}

func (e *AsyncOnlyError) Error() string {
	return fmt.Sprintf("%s can only be called asynchronously", e.Callback)
}

// SyncOnlyError is returned by APIs which by contract never call
// asynchronous callbacks, such as Client.CallWithCtx, when handed an
// async-only callback. Unlike AsyncOnlyError this is detected before the
// target is invoked.
type SyncOnlyError struct {
	// Callback names the offending callback.
	Callback string
}

func (e *SyncOnlyError) Error() string {
	return fmt.Sprintf("%s is async-only but was passed to a sync-only call path", e.Callback)
}

// DefinitionError describes a malformed injection declaration. These are
// detected once, when a callback's resolution plan is first built, and are
// raised as panics since they always indicate a programming error rather
// than a runtime condition.
type DefinitionError struct {
	// Callback names the callback whose declaration is malformed. Empty for
	// errors raised by the Inject marker factory itself.
	Callback string

	// Param is the index of the offending parameter, or -1 when the error
	// isn't tied to a single parameter.
	Param int

	Message string
}

func (e *DefinitionError) Error() string {
	if e.Callback == "" {
		return e.Message
	}
	if e.Param < 0 {
		return fmt.Sprintf("%s: %s", e.Callback, e.Message)
	}
	return fmt.Sprintf("%s: parameter %d: %s", e.Callback, e.Param, e.Message)
}

// ResolutionError wraps a failure to apply a resolved dependency value to a
// parameter, such as a bound value that isn't assignable to the parameter's
// type.
type ResolutionError struct {
	Callback    string
	Param       int
	Message     string
	SourceError error
}

func (e *ResolutionError) Error() string {
	if e.SourceError == nil {
		return fmt.Sprintf("%s: parameter %d: %s", e.Callback, e.Param, e.Message)
	}
	return fmt.Sprintf("%s: parameter %d: %s (%v)", e.Callback, e.Param, e.Message, e.SourceError)
}

func (e *ResolutionError) Unwrap() error {
	return e.SourceError
}

func formatTypes(types []reflect.Type) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return strings.Join(names, " | ")
}
