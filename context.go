package calldi

import (
	"context"
	"reflect"
)

// Context resolves dependencies against a Client for the duration of a call
// tree. Contexts are short-lived: the default client configuration makes a
// fresh one per top-level invocation, but a caller may create one explicitly
// and reuse it across related invocations that should share state.
//
// Requesting the Context type itself as a type dependency resolves to the
// live context, so callbacks can take part in further resolution:
//
//	func callback(ctx calldi.Injected[calldi.Context]) { ... }
type Context interface {
	// InjectionClient returns the client this context is bound to.
	InjectionClient() *Client

	// GetTypeDependency returns the value bound for t, consulting any
	// context-local bindings before the client's registry.
	GetTypeDependency(t reflect.Type) (any, bool)

	// CallWithDI synchronously invokes callback with dependency injection
	// resolved against this context.
	CallWithDI(callback any, args ...any) (any, error)

	// CallWithAsyncDI invokes callback with dependency injection, allowing
	// async-only callbacks anywhere in the dependency graph.
	CallWithAsyncDI(goCtx context.Context, callback any, args ...any) (any, error)
}

// CachingContext is a Context that additionally memoizes callback
// dependency results for its own lifetime. Two parameters depending on the
// same callback within one call tree receive the same value and the
// callback runs once.
type CachingContext interface {
	Context

	// CacheResult stores the result of a resolved callback dependency.
	CacheResult(callback any, value any)

	// GetCachedResult returns a previously cached result for callback.
	GetCachedResult(callback any) (any, bool)
}

var contextInterfaceType = reflect.TypeOf((*Context)(nil)).Elem()

// basicContext is the non-caching context implementation.
type basicContext struct {
	client *Client
}

// NewContext creates a non-caching resolution context bound to client.
func NewContext(client *Client) Context {
	return &basicContext{client: client}
}

func (c *basicContext) InjectionClient() *Client {
	return c.client
}

func (c *basicContext) GetTypeDependency(t reflect.Type) (any, bool) {
	if t == contextInterfaceType {
		return Context(c), true
	}
	return c.client.GetTypeDependency(t)
}

func (c *basicContext) CallWithDI(callback any, args ...any) (any, error) {
	return c.client.callSync(c, callback, args)
}

func (c *basicContext) CallWithAsyncDI(goCtx context.Context, callback any, args ...any) (any, error) {
	return c.client.callAsync(goCtx, c, callback, args)
}

// cachingContext adds per-context memoization of callback results.
type cachingContext struct {
	client  *Client
	results map[*Callback]any
}

// NewCachingContext creates a resolution context that memoizes callback
// dependency results for its lifetime. The memo table is never shared
// across contexts.
func NewCachingContext(client *Client) CachingContext {
	return &cachingContext{client: client, results: map[*Callback]any{}}
}

func (c *cachingContext) InjectionClient() *Client {
	return c.client
}

func (c *cachingContext) GetTypeDependency(t reflect.Type) (any, bool) {
	if t == contextInterfaceType {
		return Context(c), true
	}
	return c.client.GetTypeDependency(t)
}

func (c *cachingContext) CacheResult(callback any, value any) {
	c.results[asCallback(callback)] = value
}

func (c *cachingContext) GetCachedResult(callback any) (any, bool) {
	value, ok := c.results[asCallback(callback)]
	return value, ok
}

func (c *cachingContext) CallWithDI(callback any, args ...any) (any, error) {
	return c.client.callSync(c, callback, args)
}

func (c *cachingContext) CallWithAsyncDI(goCtx context.Context, callback any, args ...any) (any, error) {
	return c.client.callAsync(goCtx, c, callback, args)
}

// OverridingContext wraps another context with local type bindings that are
// consulted first, scoping special-case bindings to a sub-tree of calls
// without mutating the shared client:
//
//	octx := calldi.NewOverridingContext(ctx).SetTypeDependency(calldi.TypeOf[*Clock](), fakeClock)
//	octx.CallWithDI(other)
//
// Everything other than type lookup delegates unchanged to the wrapped
// context, including result caching when the wrapped context supports it.
type OverridingContext struct {
	inner     Context
	overrides map[reflect.Type]any
}

// NewOverridingContext creates an overriding context wrapping inner.
func NewOverridingContext(inner Context) *OverridingContext {
	return &OverridingContext{inner: inner, overrides: map[reflect.Type]any{}}
}

// NewOverridingContextFromClient wraps the context produced by the client's
// context factory.
func NewOverridingContextFromClient(client *Client) *OverridingContext {
	return NewOverridingContext(client.MakeContext())
}

// SetTypeDependency adds a context-local type binding. It mutates only the
// local override map, never the wrapped context or its client.
func (c *OverridingContext) SetTypeDependency(t reflect.Type, value any) *OverridingContext {
	checkBinding(t, value)
	c.overrides[t] = value
	return c
}

func (c *OverridingContext) InjectionClient() *Client {
	return c.inner.InjectionClient()
}

func (c *OverridingContext) GetTypeDependency(t reflect.Type) (any, bool) {
	if value, ok := c.overrides[t]; ok {
		return value, true
	}
	return c.inner.GetTypeDependency(t)
}

func (c *OverridingContext) CacheResult(callback any, value any) {
	if cache, ok := c.inner.(CachingContext); ok {
		cache.CacheResult(callback, value)
	}
}

func (c *OverridingContext) GetCachedResult(callback any) (any, bool) {
	if cache, ok := c.inner.(CachingContext); ok {
		return cache.GetCachedResult(callback)
	}
	return nil, false
}

func (c *OverridingContext) CallWithDI(callback any, args ...any) (any, error) {
	return c.InjectionClient().callSync(c, callback, args)
}

func (c *OverridingContext) CallWithAsyncDI(goCtx context.Context, callback any, args ...any) (any, error) {
	return c.InjectionClient().callAsync(goCtx, c, callback, args)
}
