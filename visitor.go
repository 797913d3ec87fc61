package calldi

import (
	"context"
	"fmt"
	"reflect"
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
	anyType     = reflect.TypeOf((*any)(nil)).Elem()
)

type paramKind int

const (
	// paramExplicit parameters carry no injection declaration and must be
	// covered by the caller's explicit arguments.
	paramExplicit paramKind = iota

	// paramContext parameters receive the runtime context.Context. Only
	// the async invocation path has one to supply.
	paramContext

	// paramInjected parameters are resolved through a Descriptor.
	paramInjected
)

// paramPlan is the resolution plan for a single parameter.
type paramPlan struct {
	index    int
	kind     paramKind
	t        reflect.Type
	desc     *Descriptor
	isMarker bool

	// resolver is the compiled form of the descriptor walk for injected
	// parameters. It behaves identically to interpreting the descriptor on
	// every call; it only exists so the hot path skips re-classification.
	resolver resolverFunc
}

type resolverFunc func(goCtx context.Context, ctx Context, async bool) (reflect.Value, error)

// plan is a callback's full resolution plan, built once per callback
// identity. Building a plan never invokes the callback.
type plan struct {
	cb         *Callback
	params     []paramPlan
	numIn      int
	variadic   bool
	errIndex   int
	valueIndex int
	forceAsync bool
	ctxParams  int
}

// asyncNeeded reports whether a call with nargs explicit arguments can only
// run on the async path: either the callback was marked Async, or it has a
// context.Context parameter the explicit arguments don't cover.
func (p *plan) asyncNeeded(nargs int) bool {
	if p.forceAsync {
		return true
	}
	for _, pp := range p.params {
		if pp.kind == paramContext && pp.index >= nargs {
			return true
		}
	}
	return false
}

// buildPlan inspects a callback's signature and descriptors and produces
// its resolution plan. This is the parameter visitor: explicit descriptors
// take precedence over marker parameter types, which take precedence over
// treating the parameter as an ordinary explicit argument.
func buildPlan(cb *Callback) (*plan, *DefinitionError) {
	ft := cb.fnType
	numIn := ft.NumIn()

	if len(cb.descriptors) > numIn {
		return nil, &DefinitionError{
			Callback: cb.name,
			Param:    -1,
			Message:  fmt.Sprintf("%d descriptors declared for %d parameters", len(cb.descriptors), numIn),
		}
	}

	p := &plan{
		cb:         cb,
		numIn:      numIn,
		variadic:   ft.IsVariadic(),
		errIndex:   -1,
		valueIndex: -1,
		forceAsync: cb.forceAsync,
	}

	for i := 0; i < ft.NumOut(); i++ {
		ot := ft.Out(i)
		if ot == errorType {
			if p.errIndex >= 0 {
				return nil, &DefinitionError{Callback: cb.name, Param: -1, Message: "multiple error results are not permitted"}
			}
			p.errIndex = i
		} else {
			if p.valueIndex >= 0 {
				return nil, &DefinitionError{Callback: cb.name, Param: -1, Message: "at most one non-error result is permitted"}
			}
			p.valueIndex = i
		}
	}

	firstDesc := numIn - len(cb.descriptors)
	for i := 0; i < numIn; i++ {
		pt := ft.In(i)
		isVariadicParam := p.variadic && i == numIn-1

		if i >= firstDesc {
			if isVariadicParam {
				return nil, &DefinitionError{
					Callback: cb.name,
					Param:    i,
					Message:  "the variadic parameter cannot be injected",
				}
			}
			pp, derr := planDescribed(cb, i, pt, cb.descriptors[i-firstDesc])
			if derr != nil {
				return nil, derr
			}
			p.params = append(p.params, pp)
			continue
		}

		if pt == contextType {
			p.params = append(p.params, paramPlan{index: i, kind: paramContext, t: pt})
			p.ctxParams++
			continue
		}

		if spec, ok := markerSpecFor(pt); ok {
			desc := (&Descriptor{}).withInferred(spec)
			p.params = append(p.params, paramPlan{index: i, kind: paramInjected, t: pt, desc: desc, isMarker: true})
			continue
		}

		p.params = append(p.params, paramPlan{index: i, kind: paramExplicit, t: pt})
	}

	p.compile()
	return p, nil
}

// planDescribed applies an explicit descriptor to a parameter. The
// descriptor always wins over whatever the parameter's type would have
// implied on its own.
func planDescribed(cb *Callback, index int, pt reflect.Type, desc *Descriptor) (paramPlan, *DefinitionError) {
	_, isMarker := markerSpecFor(pt)

	switch desc.kind {
	case kindCallback:
		return paramPlan{index: index, kind: paramInjected, t: pt, desc: desc, isMarker: isMarker}, nil

	case kindType:
		return paramPlan{index: index, kind: paramInjected, t: pt, desc: desc, isMarker: isMarker}, nil

	default: // bare infer
		if spec, ok := markerSpecFor(pt); ok {
			return paramPlan{index: index, kind: paramInjected, t: pt, desc: desc.withInferred(spec), isMarker: true}, nil
		}
		if pt == anyType {
			return paramPlan{}, &DefinitionError{
				Callback: cb.name,
				Param:    index,
				Message:  "cannot infer an injected type for an interface{} parameter",
			}
		}
		return paramPlan{index: index, kind: paramInjected, t: pt, desc: desc.withInferred(markerSpec{candidates: []reflect.Type{pt}})}, nil
	}
}

// compile turns each injected parameter's descriptor into a resolver
// closure. The closures are stored with the plan so repeated calls walk a
// flat slice instead of re-dispatching on descriptor shape.
func (p *plan) compile() {
	for i := range p.params {
		pp := &p.params[i]
		if pp.kind != paramInjected {
			continue
		}
		pp.resolver = compileResolver(p.cb.name, pp)
	}
}

func compileResolver(callback string, pp *paramPlan) resolverFunc {
	desc := pp.desc
	t := pp.t
	index := pp.index

	if pp.isMarker {
		return func(goCtx context.Context, ctx Context, async bool) (reflect.Value, error) {
			value, err := resolveDescriptor(desc, goCtx, ctx, async)
			if err != nil {
				return reflect.Value{}, err
			}
			mv, err := newMarkerValue(t, value)
			if err != nil {
				return reflect.Value{}, &ResolutionError{Callback: callback, Param: index, Message: err.Error()}
			}
			return mv, nil
		}
	}

	return func(goCtx context.Context, ctx Context, async bool) (reflect.Value, error) {
		value, err := resolveDescriptor(desc, goCtx, ctx, async)
		if err != nil {
			return reflect.Value{}, err
		}
		return valueFor(callback, index, t, value)
	}
}

func resolveDescriptor(desc *Descriptor, goCtx context.Context, ctx Context, async bool) (any, error) {
	if async {
		return desc.resolveAsync(goCtx, ctx)
	}
	return desc.resolve(ctx)
}

// valueFor converts a resolved dependency value into a reflect.Value for
// the parameter's type. A nil value yields the type's zero value, which is
// how lenient Optional-style defaults land on non-nilable types.
func valueFor(callback string, index int, t reflect.Type, value any) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(t), nil
	}
	rv := reflect.ValueOf(value)
	if !rv.Type().AssignableTo(t) {
		return reflect.Value{}, &ResolutionError{
			Callback: callback,
			Param:    index,
			Message:  fmt.Sprintf("resolved value of type %v is not assignable to %v", rv.Type(), t),
		}
	}
	return rv, nil
}
