package calldi

import (
	"context"
	"fmt"
	"reflect"
)

// AutoInject binds a callback to a client and returns a plain function of
// type T that runs the callback through dependency injection on every call.
// The returned function's parameters become the explicit arguments of the
// DI invocation, in order, so T's signature is the callback's signature
// with the injected trailing parameters removed:
//
//	type UserLookup func(userID string) (*User, error)
//
//	func lookupUser(userID string, db Injected[*Database]) (*User, error) { ... }
//
//	lookup := calldi.AutoInject[UserLookup](client, lookupUser)
//	user, err := lookup("user123")
//
// T may return (), (R), (error) or (R, error). Calling the bound function
// with an async-only callback yields a SyncOnlyError; if T has no error
// result the error is raised as a panic instead.
func AutoInject[T any](client *Client, fn any) T {
	return makeBound[T](client, fn, false)
}

// AutoInjectAsync behaves like AutoInject for async-only callbacks. T must
// take a context.Context parameter, which becomes the runtime context of
// the async invocation.
func AutoInjectAsync[T any](client *Client, fn any) T {
	return makeBound[T](client, fn, true)
}

func makeBound[T any](client *Client, fn any, async bool) T {
	targetType := typeOf[T]()
	if targetType.Kind() != reflect.Func {
		panic(&DefinitionError{Param: -1, Message: fmt.Sprintf("AutoInject target type must be a function, got %v", targetType)})
	}
	cb := asCallback(fn)

	ctxParam := -1
	for i := 0; i < targetType.NumIn(); i++ {
		if targetType.In(i) == contextType {
			ctxParam = i
			break
		}
	}
	if async && ctxParam < 0 {
		panic(&DefinitionError{Callback: cb.name, Param: -1, Message: "AutoInjectAsync target type must have a context.Context parameter"})
	}

	errIndex := -1
	valueIndex := -1
	for i := 0; i < targetType.NumOut(); i++ {
		switch {
		case targetType.Out(i) == errorType:
			if errIndex >= 0 {
				panic(&DefinitionError{Callback: cb.name, Param: -1, Message: "AutoInject target type may have at most one error result"})
			}
			errIndex = i
		default:
			if valueIndex >= 0 {
				panic(&DefinitionError{Callback: cb.name, Param: -1, Message: "AutoInject target type may have at most one non-error result"})
			}
			valueIndex = i
		}
	}

	bound := reflect.MakeFunc(targetType, func(callArgs []reflect.Value) []reflect.Value {
		// Explicit args fill the callback's leading positions, so every call
		// arg passes through in place, the context included.
		goCtx := context.Background()
		explicit := make([]any, 0, len(callArgs))
		for i, arg := range callArgs {
			if i == ctxParam {
				goCtx = arg.Interface().(context.Context)
			}
			explicit = append(explicit, arg.Interface())
		}

		var result any
		var err error
		switch {
		case async:
			result, err = client.CallWithAsyncDI(goCtx, cb, explicit...)
		case cb.getPlan().asyncNeeded(len(explicit)):
			// The sync binding by contract never calls async-only targets.
			err = &SyncOnlyError{Callback: cb.name}
		default:
			result, err = client.CallWithDI(cb, explicit...)
		}

		out := make([]reflect.Value, targetType.NumOut())
		for i := range out {
			out[i] = reflect.Zero(targetType.Out(i))
		}
		if err != nil {
			if errIndex < 0 {
				panic(fmt.Sprintf("auto-injected call to %s failed: %v", cb.name, err))
			}
			out[errIndex] = reflect.ValueOf(err)
			return out
		}
		if valueIndex >= 0 && result != nil {
			rv := reflect.ValueOf(result)
			if !rv.Type().AssignableTo(targetType.Out(valueIndex)) {
				panic(fmt.Sprintf("auto-injected call to %s returned %v, not assignable to %v",
					cb.name, rv.Type(), targetType.Out(valueIndex)))
			}
			out[valueIndex] = rv
		}
		return out
	})
	return bound.Interface().(T)
}
