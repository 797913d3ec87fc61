package calldi

import (
	"fmt"
	"reflect"
	"runtime"
	"sync"
)

// Callback wraps a function together with its injection descriptors and its
// lazily built resolution plan. The wrapper is the identity used by the
// plan cache, the override registry and per-context result caching.
//
// Raw funcs passed to the client APIs are interned to a canonical *Callback
// keyed by the function's code pointer, so the same function always maps to
// the same identity. Distinct closures over the same function body share a
// code pointer; wrap them with NewCallback or Describe when they must be
// cached or overridden independently.
type Callback struct {
	fn          any
	fnVal       reflect.Value
	fnType      reflect.Type
	descriptors []*Descriptor
	forceAsync  bool
	name        string

	planOnce sync.Once
	plan     *plan
	planErr  *DefinitionError
}

// interned holds the canonical *Callback for raw funcs, keyed by code
// pointer. Entries live for the process lifetime; staleness only ever costs
// a recomputation.
var interned sync.Map // uintptr -> *Callback

// NewCallback wraps a function with no explicit injection descriptors.
// Parameters are still injected when their types are markers such as
// Injected or Optional.
func NewCallback(fn any) *Callback {
	return newCallback(fn, nil, false)
}

// Describe wraps a function with explicit injection descriptors. The N
// descriptors apply to the trailing N parameters of fn, in order, the same
// way defaulted parameters trail in a signature:
//
//	func report(prefix string, n Interval) string { ... }
//
//	cb := calldi.Describe(report, calldi.Inject(calldi.WithType(calldi.TypeOf[Interval]())))
//	// prefix is explicit, n is injected.
func Describe(fn any, descriptors ...*Descriptor) *Callback {
	return newCallback(fn, descriptors, false)
}

// Async wraps a function and marks it async-only regardless of its
// signature. Async-only callbacks are rejected by the synchronous call
// paths and may only be invoked through CallWithAsyncDI.
func Async(fn any) *Callback {
	return newCallback(fn, nil, true)
}

func newCallback(fn any, descriptors []*Descriptor, forceAsync bool) *Callback {
	if cb, ok := fn.(*Callback); ok {
		if len(descriptors) == 0 && !forceAsync {
			return cb
		}
		merged := &Callback{
			fn:          cb.fn,
			fnVal:       cb.fnVal,
			fnType:      cb.fnType,
			descriptors: cb.descriptors,
			forceAsync:  cb.forceAsync || forceAsync,
			name:        cb.name,
		}
		if len(descriptors) > 0 {
			merged.descriptors = descriptors
		}
		return merged
	}

	fnVal := reflect.ValueOf(fn)
	if !fnVal.IsValid() || fnVal.Kind() != reflect.Func {
		panic(&DefinitionError{Param: -1, Message: fmt.Sprintf("callback must be a function, got %v", reflect.TypeOf(fn))})
	}
	return &Callback{
		fn:          fn,
		fnVal:       fnVal,
		fnType:      fnVal.Type(),
		descriptors: descriptors,
		forceAsync:  forceAsync,
		name:        funcName(fnVal),
	}
}

// asCallback returns the canonical Callback identity for a callback value.
// *Callback values are their own identity; raw funcs are interned by code
// pointer.
func asCallback(callback any) *Callback {
	if cb, ok := callback.(*Callback); ok {
		return cb
	}
	fnVal := reflect.ValueOf(callback)
	if !fnVal.IsValid() || fnVal.Kind() != reflect.Func {
		panic(&DefinitionError{Param: -1, Message: fmt.Sprintf("callback must be a function, got %v", reflect.TypeOf(callback))})
	}
	key := fnVal.Pointer()
	if existing, ok := interned.Load(key); ok {
		return existing.(*Callback)
	}
	cb := newCallback(callback, nil, false)
	// Race losers discard their wrapper; the plan is signature-derived so
	// either wrapper would build the same one.
	actual, _ := interned.LoadOrStore(key, cb)
	return actual.(*Callback)
}

// Name returns a human-readable name for the wrapped function.
func (c *Callback) Name() string {
	return c.name
}

// getPlan returns the callback's resolution plan, building it on first use.
// Definition errors are cached so every use fails identically, and surface
// as panics since a malformed declaration is a programming error.
func (c *Callback) getPlan() *plan {
	c.planOnce.Do(func() {
		c.plan, c.planErr = buildPlan(c)
	})
	if c.planErr != nil {
		panic(c.planErr)
	}
	return c.plan
}

func funcName(fnVal reflect.Value) string {
	if f := runtime.FuncForPC(fnVal.Pointer()); f != nil {
		return f.Name()
	}
	return fnVal.Type().String()
}
