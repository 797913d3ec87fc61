package calldi

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// Client is the long-lived registry of type dependencies and callback
// overrides. It is created once by the application and mutated by explicit
// Set*/Remove* calls from setup code; the resolution hot path performs no
// locking unless WithLocking is used.
//
// The client registers itself as a type dependency for *Client, so
// callbacks may request the current client through ordinary type injection.
type Client struct {
	mu      sync.Mutex
	locking bool

	typeDependencies  map[reflect.Type]any
	callbackOverrides map[*Callback]*Callback
	makeContext       func(*Client) Context
}

// ClientOption is a functional option for configuring a Client.
type ClientOption func(*Client)

// WithCachingContexts makes the client's default context factory produce
// caching contexts, so every top-level invocation memoizes callback
// dependency results within its own call tree.
func WithCachingContexts() ClientOption {
	return func(c *Client) {
		c.makeContext = func(client *Client) Context {
			return NewCachingContext(client)
		}
	}
}

// WithLocking guards registry mutation and lookup with a mutex. The
// documented usage pattern mutates registries only from setup code, so this
// is off by default.
func WithLocking() ClientOption {
	return func(c *Client) {
		c.locking = true
	}
}

// NewClient creates an injection client. By default each top-level
// invocation gets a fresh non-caching context; see WithCachingContexts and
// SetMakeContext.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		typeDependencies:  map[reflect.Type]any{},
		callbackOverrides: map[*Callback]*Callback{},
		makeContext: func(client *Client) Context {
			return NewContext(client)
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.typeDependencies[reflect.TypeOf(c)] = c
	return c
}

// SetMakeContext installs the factory used to make resolution contexts for
// this client, e.g. to choose caching contexts or to share one context
// across invocations. Returns the client for chaining.
func (c *Client) SetMakeContext(makeContext func(*Client) Context) *Client {
	c.makeContext = makeContext
	return c
}

// MakeContext creates a resolution context using the installed factory.
func (c *Client) MakeContext() Context {
	return c.makeContext(c)
}

// SetTypeDependency binds value as the implementation of t, overwriting any
// existing binding. The value must be assignable to t. Returns the client
// for chaining.
func (c *Client) SetTypeDependency(t reflect.Type, value any) *Client {
	checkBinding(t, value)
	if c.locking {
		c.mu.Lock()
		defer c.mu.Unlock()
	}
	c.typeDependencies[t] = value
	return c
}

// GetTypeDependency returns the value bound for t with map-style comma-ok
// semantics.
func (c *Client) GetTypeDependency(t reflect.Type) (any, bool) {
	if c.locking {
		c.mu.Lock()
		defer c.mu.Unlock()
	}
	value, ok := c.typeDependencies[t]
	return value, ok
}

// RemoveTypeDependency removes the binding for t. Returns ErrNotBound if t
// has no binding.
func (c *Client) RemoveTypeDependency(t reflect.Type) error {
	if c.locking {
		c.mu.Lock()
		defer c.mu.Unlock()
	}
	if _, ok := c.typeDependencies[t]; !ok {
		return fmt.Errorf("%v: %w", t, ErrNotBound)
	}
	delete(c.typeDependencies, t)
	return nil
}

// SetCallbackOverride arranges for override to be invoked instead of
// callback whenever callback would be resolved as a dependency. The
// override goes through the same injection machinery as the original.
// Returns the client for chaining.
func (c *Client) SetCallbackOverride(callback any, override any) *Client {
	key := asCallback(callback)
	value := asCallback(override)
	if c.locking {
		c.mu.Lock()
		defer c.mu.Unlock()
	}
	c.callbackOverrides[key] = value
	return c
}

// GetCallbackOverride returns the override registered for callback, or nil.
func (c *Client) GetCallbackOverride(callback any) *Callback {
	key := asCallback(callback)
	if c.locking {
		c.mu.Lock()
		defer c.mu.Unlock()
	}
	return c.callbackOverrides[key]
}

// RemoveCallbackOverride removes the override registered for callback.
// Returns ErrNotBound if no override is registered.
func (c *Client) RemoveCallbackOverride(callback any) error {
	key := asCallback(callback)
	if c.locking {
		c.mu.Lock()
		defer c.mu.Unlock()
	}
	if _, ok := c.callbackOverrides[key]; !ok {
		return fmt.Errorf("%s: %w", key.Name(), ErrNotBound)
	}
	delete(c.callbackOverrides, key)
	return nil
}

// CallWithDI synchronously invokes callback with dependency injection,
// using a context from the client's context factory. Explicit args fill the
// leading parameters and take precedence over injection for any parameter
// they cover.
func (c *Client) CallWithDI(callback any, args ...any) (any, error) {
	return c.MakeContext().CallWithDI(callback, args...)
}

// CallWithAsyncDI invokes callback with dependency injection on the async
// path: context.Context parameters receive goCtx, Async-marked callbacks
// are permitted anywhere in the dependency graph and Awaitable results are
// awaited. Synchronous callbacks mix freely.
func (c *Client) CallWithAsyncDI(goCtx context.Context, callback any, args ...any) (any, error) {
	return c.MakeContext().CallWithAsyncDI(goCtx, callback, args...)
}

// CallWithCtx synchronously invokes callback against an existing context.
// This entry point by contract never calls async-only callbacks: handing it
// one returns a SyncOnlyError before the target runs.
func (c *Client) CallWithCtx(ctx Context, callback any, args ...any) (any, error) {
	cb := asCallback(callback)
	if cb.getPlan().asyncNeeded(len(args)) {
		return nil, &SyncOnlyError{Callback: cb.name}
	}
	return c.callSync(ctx, cb, args)
}

// CallWithCtxAsync invokes callback against an existing context on the
// async path.
func (c *Client) CallWithCtxAsync(goCtx context.Context, ctx Context, callback any, args ...any) (any, error) {
	return c.callAsync(goCtx, ctx, callback, args)
}

func (c *Client) callSync(ctx Context, callback any, args []any) (any, error) {
	return c.callWithPlan(context.Background(), ctx, asCallback(callback), false, args)
}

func (c *Client) callAsync(goCtx context.Context, ctx Context, callback any, args []any) (any, error) {
	return c.callWithPlan(goCtx, ctx, asCallback(callback), true, args)
}

// Status is a diagnostic tool that returns a string describing the state of
// the client: each bound type and value, and each registered callback
// override.
func (c *Client) Status() string {
	if c.locking {
		c.mu.Lock()
		defer c.mu.Unlock()
	}

	var lines []string
	for t, value := range c.typeDependencies {
		lines = append(lines, fmt.Sprintf("%v - value: %T", t, value))
	}
	for cb, override := range c.callbackOverrides {
		lines = append(lines, fmt.Sprintf("%s - overridden by: %s", cb.Name(), override.Name()))
	}
	sort.Strings(lines)
	return strings.Join(lines, "\n")
}

// Set binds value as the implementation of T on the client. It is the
// generic shorthand for SetTypeDependency and supports interface types.
func Set[T any](c *Client, value T) *Client {
	return c.SetTypeDependency(typeOf[T](), value)
}

// Get returns the value bound for T with comma-ok semantics.
func Get[T any](c *Client) (T, bool) {
	value, ok := c.GetTypeDependency(typeOf[T]())
	if !ok {
		var zero T
		return zero, false
	}
	return value.(T), true
}

// MustGet returns the value bound for T, panicking if T is unbound.
func MustGet[T any](c *Client) T {
	value, ok := Get[T](c)
	if !ok {
		panic(fmt.Sprintf("no dependency bound for %v", typeOf[T]()))
	}
	return value
}

// Remove removes the binding for T. Returns ErrNotBound if T is unbound.
func Remove[T any](c *Client) error {
	return c.RemoveTypeDependency(typeOf[T]())
}

// checkBinding panics if value cannot possibly satisfy a lookup for t. This
// keeps the .(T) assertions on the resolution path safe.
func checkBinding(t reflect.Type, value any) {
	if value == nil {
		return
	}
	vt := reflect.TypeOf(value)
	if !vt.AssignableTo(t) {
		panic(&DefinitionError{Param: -1, Message: fmt.Sprintf("value of type %v is not assignable to dependency type %v", vt, t)})
	}
}
