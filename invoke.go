package calldi

import (
	"context"
	"fmt"
	"reflect"

	timing "github.com/gburgyan/go-timing"
)

// Awaitable is a deferred result. A callback may return an Awaitable
// instead of its final value; the async invocation path awaits it, while
// the sync path reports an AsyncOnlyError rather than silently dropping the
// pending work.
type Awaitable interface {
	Await(ctx context.Context) (any, error)
}

// TimingMode controls the optional go-timing instrumentation of the async
// invocation path.
type TimingMode int

const (
	// TimingDisable turns off timing for all invocations.
	TimingDisable TimingMode = iota

	// TimingCallbacks starts a timing context for every callback invoked
	// with dependency injection on the async path. This is useful to see
	// where the time of a deep dependency graph is spent.
	TimingCallbacks
)

// EnableTiming selects the timing instrumentation mode.
var EnableTiming = TimingDisable

// callWithPlan is the invocation engine: it merges explicit arguments with
// injected values per the callback's plan and performs the call. Both the
// sync and async paths run through here; dependency resolution recurses
// back into it through Descriptor.
func (c *Client) callWithPlan(goCtx context.Context, ctx Context, cb *Callback, async bool, args []any) (any, error) {
	p := cb.getPlan()

	if !async && p.forceAsync {
		return nil, &AsyncOnlyError{Callback: cb.name}
	}
	if async && EnableTiming == TimingCallbacks && goCtx != nil {
		tCtx, complete := timing.Start(goCtx, cb.name)
		defer complete()
		goCtx = tCtx
	}

	in, err := c.buildArgs(goCtx, ctx, p, async, args)
	if err != nil {
		return nil, err
	}

	out := cb.fnVal.Call(in)

	if p.errIndex >= 0 {
		if errVal := out[p.errIndex]; !errVal.IsNil() {
			return nil, errVal.Interface().(error)
		}
	}

	var result any
	if p.valueIndex >= 0 {
		result = out[p.valueIndex].Interface()
	}

	if awaitable, ok := result.(Awaitable); ok {
		if !async {
			return nil, &AsyncOnlyError{Callback: cb.name}
		}
		return awaitable.Await(goCtx)
	}
	return result, nil
}

// buildArgs computes the final argument list. Explicit arguments fill the
// leading positions and always win over injection for any position they
// cover; remaining positions resolve per the plan.
func (c *Client) buildArgs(goCtx context.Context, ctx Context, p *plan, async bool, args []any) ([]reflect.Value, error) {
	if len(args) > p.numIn && !p.variadic {
		return nil, &ResolutionError{
			Callback: p.cb.name,
			Param:    -1,
			Message:  fmt.Sprintf("too many arguments: got %d, the callback takes %d", len(args), p.numIn),
		}
	}

	in := make([]reflect.Value, 0, len(args))
	for _, pp := range p.params {
		variadicParam := p.variadic && pp.index == p.numIn-1
		if pp.index < len(args) {
			if variadicParam {
				// The remaining explicit args become the variadic elements.
				for _, arg := range args[pp.index:] {
					value, err := valueFor(p.cb.name, pp.index, pp.t.Elem(), arg)
					if err != nil {
						return nil, err
					}
					in = append(in, value)
				}
				return in, nil
			}
			value, err := valueFor(p.cb.name, pp.index, pp.t, args[pp.index])
			if err != nil {
				return nil, err
			}
			in = append(in, value)
			continue
		}

		switch pp.kind {
		case paramContext:
			if !async {
				return nil, &AsyncOnlyError{Callback: p.cb.name}
			}
			in = append(in, reflect.ValueOf(goCtx))

		case paramInjected:
			value, err := pp.resolver(goCtx, ctx, async)
			if err != nil {
				return nil, err
			}
			in = append(in, value)

		default:
			if variadicParam {
				// An uncovered variadic parameter is simply empty.
				continue
			}
			return nil, &ResolutionError{
				Callback: p.cb.name,
				Param:    pp.index,
				Message:  fmt.Sprintf("missing required argument of type %v", pp.t),
			}
		}
	}
	return in, nil
}
