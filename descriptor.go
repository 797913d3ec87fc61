package calldi

import (
	"context"
	"reflect"
)

type descriptorKind int

const (
	// kindInfer is an Inject() with no type or callback; the candidate
	// type comes from the parameter's declared type at plan-build time.
	kindInfer descriptorKind = iota
	kindType
	kindCallback
)

// Descriptor describes how a single parameter's value is resolved. It is
// the result of the Inject marker factory and is immutable once attached to
// a callback.
//
// A descriptor is exactly one of two kinds: a callback dependency, resolved
// by invoking another callback through the engine, or a type dependency,
// resolved by trying each candidate type against the active type registry
// in order.
type Descriptor struct {
	kind       descriptorKind
	target     *Callback
	candidates []reflect.Type
	defaultVal any
	hasDefault bool
}

// InjectOption configures a Descriptor produced by Inject.
type InjectOption func(*Descriptor)

// WithType resolves the parameter by looking up the given type. Use TypeOf
// to produce the type token:
//
//	calldi.Inject(calldi.WithType(calldi.TypeOf[*Database]()))
func WithType(t reflect.Type) InjectOption {
	return WithTypes(t)
}

// WithTypes resolves the parameter by trying each of the given types in
// order; the first bound value wins. This is the union form. A nil entry is
// the lenient member: it is never looked up in the registry and instead
// marks the union as defaulting to the parameter's zero value, the same as
// combining WithNilDefault.
func WithTypes(types ...reflect.Type) InjectOption {
	return func(d *Descriptor) {
		if d.kind == kindCallback {
			panic(&DefinitionError{Param: -1, Message: "only one of a callback or a type can be injected"})
		}
		d.kind = kindType
		for _, t := range types {
			if t == nil {
				d.defaultVal = nil
				d.hasDefault = true
				continue
			}
			d.candidates = append(d.candidates, t)
		}
	}
}

// WithCallback resolves the parameter by invoking the given callback
// through the same injection machinery. The callback may be a func or a
// *Callback created with Describe or NewCallback.
func WithCallback(callback any) InjectOption {
	return func(d *Descriptor) {
		if d.kind == kindType {
			panic(&DefinitionError{Param: -1, Message: "only one of a callback or a type can be injected"})
		}
		d.kind = kindCallback
		d.target = asCallback(callback)
	}
}

// WithDefault sets a fallback value used when none of the candidate types
// are bound. It cannot be combined with WithCallback.
func WithDefault(value any) InjectOption {
	return func(d *Descriptor) {
		if d.kind == kindCallback {
			panic(&DefinitionError{Param: -1, Message: "a callback dependency cannot carry a default"})
		}
		d.defaultVal = value
		d.hasDefault = true
	}
}

// WithNilDefault marks the dependency as lenient: when no candidate type is
// bound the parameter receives its zero value instead of the invocation
// failing. This is the Optional form of a type dependency.
func WithNilDefault() InjectOption {
	return WithDefault(nil)
}

// Inject declares a parameter as requiring an injected dependency. The
// returned descriptor is attached to a callback's trailing parameters via
// Describe.
//
// With no options the candidate type is inferred from the parameter's
// declared type. At most one of WithCallback and WithType/WithTypes may be
// given; combining them panics immediately.
func Inject(opts ...InjectOption) *Descriptor {
	d := &Descriptor{}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// withInferred returns a copy of a bare-infer descriptor bound to the
// candidate types discovered from the parameter's declared type.
func (d *Descriptor) withInferred(spec markerSpec) *Descriptor {
	resolved := &Descriptor{
		kind:       kindType,
		candidates: spec.candidates,
		defaultVal: d.defaultVal,
		hasDefault: d.hasDefault,
	}
	if spec.nilDefault && !resolved.hasDefault {
		resolved.defaultVal = nil
		resolved.hasDefault = true
	}
	return resolved
}

// resolve synchronously resolves the descriptor's value against ctx.
func (d *Descriptor) resolve(ctx Context) (any, error) {
	if d.kind == kindCallback {
		return d.resolveCallback(context.Background(), ctx, false)
	}
	return d.resolveType(ctx)
}

// resolveAsync resolves the descriptor's value, recursing through the async
// invocation path for callback dependencies.
func (d *Descriptor) resolveAsync(goCtx context.Context, ctx Context) (any, error) {
	if d.kind == kindCallback {
		return d.resolveCallback(goCtx, ctx, true)
	}
	return d.resolveType(ctx)
}

func (d *Descriptor) resolveType(ctx Context) (any, error) {
	for _, t := range d.candidates {
		if value, ok := ctx.GetTypeDependency(t); ok {
			return value, nil
		}
	}
	if d.hasDefault {
		return d.defaultVal, nil
	}
	return nil, &MissingDependencyError{Types: d.candidates}
}

func (d *Descriptor) resolveCallback(goCtx context.Context, ctx Context, async bool) (any, error) {
	client := ctx.InjectionClient()
	effective := d.target
	if override := client.GetCallbackOverride(effective); override != nil {
		effective = override
	}

	cache, caching := ctx.(CachingContext)
	if caching {
		if value, ok := cache.GetCachedResult(effective); ok {
			return value, nil
		}
	}

	value, err := client.callWithPlan(goCtx, ctx, effective, async, nil)
	if err != nil {
		return nil, err
	}
	if caching {
		cache.CacheResult(effective, value)
	}
	return value, nil
}
