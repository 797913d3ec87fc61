package calldi

import (
	"context"
	"errors"
)

type scopeKey int

const clientKey scopeKey = 0

// ErrNoScopedClient is returned when no client has been scoped onto the
// context chain.
var ErrNoScopedClient = errors.New("no injection client scoped on the context")

// WithScopedClient returns a context carrying client, making it the
// "current" client for everything downstream of the returned context. This
// is the ambient-client convenience layer; the core engine itself never
// consults it and always takes the client or context explicitly.
func WithScopedClient(ctx context.Context, client *Client) context.Context {
	return context.WithValue(ctx, clientKey, client)
}

// ScopedClient returns the client scoped onto ctx, or ErrNoScopedClient.
func ScopedClient(ctx context.Context) (*Client, error) {
	client, ok := ctx.Value(clientKey).(*Client)
	if !ok {
		return nil, ErrNoScopedClient
	}
	return client, nil
}

// MustScopedClient returns the client scoped onto ctx and panics if there
// is none.
func MustScopedClient(ctx context.Context) *Client {
	client, err := ScopedClient(ctx)
	if err != nil {
		panic(err)
	}
	return client
}

// CallWithDI synchronously invokes callback with dependency injection using
// the client scoped onto ctx. The context is used only to locate the
// client; use CallWithAsyncDI for callbacks that need a runtime context.
func CallWithDI(ctx context.Context, callback any, args ...any) (any, error) {
	client, err := ScopedClient(ctx)
	if err != nil {
		return nil, err
	}
	return client.CallWithDI(callback, args...)
}

// CallWithAsyncDI invokes callback on the async path using the client
// scoped onto ctx, which is also the runtime context supplied to
// context-taking callbacks.
func CallWithAsyncDI(ctx context.Context, callback any, args ...any) (any, error) {
	client, err := ScopedClient(ctx)
	if err != nil {
		return nil, err
	}
	return client.CallWithAsyncDI(ctx, callback, args...)
}
