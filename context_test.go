package calldi

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type ctxGadget struct {
	serial int
}

type ctxClock struct {
	now string
}

func TestCachingContext_SharedResultWithinCall(t *testing.T) {
	calls := 0
	gen := func() *ctxGadget {
		calls++
		return &ctxGadget{serial: calls}
	}
	same := Describe(
		func(a, b *ctxGadget) bool { return a == b },
		Inject(WithCallback(gen)),
		Inject(WithCallback(gen)),
	)

	t.Run("non-caching resolves twice", func(t *testing.T) {
		calls = 0
		client := NewClient()

		result, err := client.CallWithDI(same)
		assert.NoError(t, err)
		assert.False(t, result.(bool))
		assert.Equal(t, 2, calls)
	})

	t.Run("caching resolves once", func(t *testing.T) {
		calls = 0
		client := NewClient(WithCachingContexts())

		result, err := client.CallWithDI(same)
		assert.NoError(t, err)
		assert.True(t, result.(bool))
		assert.Equal(t, 1, calls)
	})
}

func TestCachingContext_FreshPerInvocation(t *testing.T) {
	calls := 0
	gen := func() *ctxGadget {
		calls++
		return &ctxGadget{serial: calls}
	}
	take := Describe(
		func(g *ctxGadget) int { return g.serial },
		Inject(WithCallback(gen)),
	)

	client := NewClient(WithCachingContexts())

	first, err := client.CallWithDI(take)
	assert.NoError(t, err)
	second, err := client.CallWithDI(take)
	assert.NoError(t, err)

	// Each top-level call gets its own context, so nothing carries over.
	assert.Equal(t, 1, first)
	assert.Equal(t, 2, second)
}

func TestCachingContext_ReusedAcrossCalls(t *testing.T) {
	calls := 0
	gen := func() *ctxGadget {
		calls++
		return &ctxGadget{serial: calls}
	}
	take := Describe(
		func(g *ctxGadget) int { return g.serial },
		Inject(WithCallback(gen)),
	)

	client := NewClient()
	ctx := NewCachingContext(client)

	first, err := ctx.CallWithDI(take)
	assert.NoError(t, err)
	second, err := ctx.CallWithDI(take)
	assert.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, 1, second)
	assert.Equal(t, 1, calls)
}

func TestContext_ResolvesItself(t *testing.T) {
	client := NewClient()
	ctx := NewContext(client)

	result, err := ctx.CallWithDI(func(c Injected[Context]) Context {
		return c.Value
	})
	assert.NoError(t, err)
	assert.Same(t, ctx, result)
}

func TestOverridingContext_LocalBinding(t *testing.T) {
	client := NewClient()
	Set(client, &ctxClock{now: "real"})

	tell := func(c Injected[*ctxClock]) string { return c.Value.now }

	octx := NewOverridingContextFromClient(client).
		SetTypeDependency(TypeOf[*ctxClock](), &ctxClock{now: "fake"})

	result, err := octx.CallWithDI(tell)
	assert.NoError(t, err)
	assert.Equal(t, "fake", result)

	// The client's own binding is untouched.
	result, err = client.CallWithDI(tell)
	assert.NoError(t, err)
	assert.Equal(t, "real", result)
}

func TestOverridingContext_FallsThroughToInner(t *testing.T) {
	client := NewClient()
	Set(client, &ctxClock{now: "inner"})

	octx := NewOverridingContext(client.MakeContext())

	value, ok := octx.GetTypeDependency(TypeOf[*ctxClock]())
	assert.True(t, ok)
	assert.Equal(t, "inner", value.(*ctxClock).now)
}

func TestOverridingContext_CachingDelegation(t *testing.T) {
	calls := 0
	gen := func() *ctxGadget {
		calls++
		return &ctxGadget{serial: calls}
	}
	take := Describe(
		func(g *ctxGadget) int { return g.serial },
		Inject(WithCallback(gen)),
	)

	client := NewClient()

	t.Run("caching inner caches through the wrapper", func(t *testing.T) {
		calls = 0
		inner := NewCachingContext(client)
		octx := NewOverridingContext(inner)

		_, err := octx.CallWithDI(take)
		assert.NoError(t, err)
		_, err = octx.CallWithDI(take)
		assert.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("non-caching inner stays non-caching", func(t *testing.T) {
		calls = 0
		octx := NewOverridingContext(NewContext(client))

		_, err := octx.CallWithDI(take)
		assert.NoError(t, err)
		_, err = octx.CallWithDI(take)
		assert.NoError(t, err)
		assert.Equal(t, 2, calls)
	})
}
