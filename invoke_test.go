package calldi

import (
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type pollInterval int

type invokeConfig struct {
	greeting string
}

type invokeSession struct {
	user string
}

func TestCallWithDI_MarkerInjection(t *testing.T) {
	client := NewClient()
	Set(client, pollInterval(5))

	report := func(prefix string, iv Injected[pollInterval]) string {
		return fmt.Sprintf("%s %d", prefix, iv.Value)
	}

	result, err := client.CallWithDI(report, "every")
	assert.NoError(t, err)
	assert.Equal(t, "every 5", result)

	Set(client, pollInterval(6))

	result, err = client.CallWithDI(report, "every")
	assert.NoError(t, err)
	assert.Equal(t, "every 6", result)
}

func TestCallWithDI_DescribedTrailingParameter(t *testing.T) {
	client := NewClient()
	Set(client, pollInterval(5))

	report := Describe(
		func(prefix string, iv pollInterval) string {
			return fmt.Sprintf("%s %d", prefix, iv)
		},
		Inject(WithType(TypeOf[pollInterval]())),
	)

	result, err := client.CallWithDI(report, "every")
	assert.NoError(t, err)
	assert.Equal(t, "every 5", result)
}

func TestCallWithDI_ExplicitArgsWin(t *testing.T) {
	client := NewClient()
	Set(client, pollInterval(5))

	report := func(prefix string, iv Injected[pollInterval]) string {
		return fmt.Sprintf("%s %d", prefix, iv.Value)
	}

	// An explicit arg covering an injected position takes precedence.
	result, err := client.CallWithDI(report, "every", Injected[pollInterval]{Value: 9})
	assert.NoError(t, err)
	assert.Equal(t, "every 9", result)
}

func TestCallWithDI_OptionalMarker(t *testing.T) {
	client := NewClient()

	inspect := func(s Optional[*invokeSession]) string {
		if !s.Ok {
			return "anonymous"
		}
		return s.Value.user
	}

	result, err := client.CallWithDI(inspect)
	assert.NoError(t, err)
	assert.Equal(t, "anonymous", result)

	Set(client, &invokeSession{user: "amara"})

	result, err = client.CallWithDI(inspect)
	assert.NoError(t, err)
	assert.Equal(t, "amara", result)
}

func TestCallWithDI_UnionMarker(t *testing.T) {
	client := NewClient()
	Set(client, &invokeSession{user: "amara"})

	describe := func(v Union2[*invokeConfig, *invokeSession]) string {
		switch d := v.Value.(type) {
		case *invokeConfig:
			return "config " + d.greeting
		case *invokeSession:
			return "session " + d.user
		default:
			return "none"
		}
	}

	result, err := client.CallWithDI(describe)
	assert.NoError(t, err)
	assert.Equal(t, "session amara", result)

	// The first candidate wins once it's bound.
	Set(client, &invokeConfig{greeting: "hi"})

	result, err = client.CallWithDI(describe)
	assert.NoError(t, err)
	assert.Equal(t, "config hi", result)
}

func TestCallWithDI_MissingDependency(t *testing.T) {
	client := NewClient()

	_, err := client.CallWithDI(func(s Injected[*invokeSession]) string {
		return s.Value.user
	})

	var missing *MissingDependencyError
	assert.True(t, errors.As(err, &missing))
	assert.Equal(t, []reflect.Type{TypeOf[*invokeSession]()}, missing.Types)
	assert.Contains(t, err.Error(), "*calldi.invokeSession")
}

func TestCallWithDI_CallbackDependency(t *testing.T) {
	client := NewClient()
	Set(client, &invokeConfig{greeting: "hello"})

	makeSession := func(cfg Injected[*invokeConfig]) *invokeSession {
		return &invokeSession{user: cfg.Value.greeting + " user"}
	}
	greet := Describe(
		func(s *invokeSession) string { return s.user },
		Inject(WithCallback(makeSession)),
	)

	result, err := client.CallWithDI(greet)
	assert.NoError(t, err)
	assert.Equal(t, "hello user", result)
}

func TestCallWithDI_OverridePrecedence(t *testing.T) {
	client := NewClient()

	real := func() *invokeSession { return &invokeSession{user: "real"} }
	fake := func() *invokeSession { return &invokeSession{user: "fake"} }
	greet := Describe(
		func(s *invokeSession) string { return s.user },
		Inject(WithCallback(real)),
	)

	result, err := client.CallWithDI(greet)
	assert.NoError(t, err)
	assert.Equal(t, "real", result)

	client.SetCallbackOverride(real, fake)

	result, err = client.CallWithDI(greet)
	assert.NoError(t, err)
	assert.Equal(t, "fake", result)

	assert.NoError(t, client.RemoveCallbackOverride(real))

	result, err = client.CallWithDI(greet)
	assert.NoError(t, err)
	assert.Equal(t, "real", result)
}

func TestCallWithDI_NestedOverride(t *testing.T) {
	client := NewClient()

	leaf := func() pollInterval { return 1 }
	fakeLeaf := func() pollInterval { return 100 }
	mid := Describe(
		func(iv pollInterval) pollInterval { return iv * 2 },
		Inject(WithCallback(leaf)),
	)
	top := Describe(
		func(iv pollInterval) int { return int(iv) },
		Inject(WithCallback(mid)),
	)

	client.SetCallbackOverride(leaf, fakeLeaf)

	result, err := client.CallWithDI(top)
	assert.NoError(t, err)
	assert.Equal(t, 200, result)
}

func TestCallWithDI_ErrorReturnPropagates(t *testing.T) {
	client := NewClient()
	boom := errors.New("boom")

	_, err := client.CallWithDI(func() (*invokeSession, error) {
		return nil, boom
	})
	assert.Same(t, boom, err)
}

func TestCallWithDI_DependencyErrorPropagates(t *testing.T) {
	client := NewClient()
	boom := errors.New("boom")

	failing := func() (*invokeSession, error) { return nil, boom }
	greet := Describe(
		func(s *invokeSession) string { return s.user },
		Inject(WithCallback(failing)),
	)

	_, err := client.CallWithDI(greet)
	assert.Same(t, boom, err)
}

func TestCallWithDI_ArgumentErrors(t *testing.T) {
	client := NewClient()
	takeTwo := func(a string, b int) string { return fmt.Sprintf("%s %d", a, b) }

	t.Run("too many args", func(t *testing.T) {
		_, err := client.CallWithDI(takeTwo, "a", 1, "extra")
		var resErr *ResolutionError
		assert.True(t, errors.As(err, &resErr))
		assert.Contains(t, resErr.Message, "too many arguments")
	})

	t.Run("missing required arg", func(t *testing.T) {
		_, err := client.CallWithDI(takeTwo, "a")
		var resErr *ResolutionError
		assert.True(t, errors.As(err, &resErr))
		assert.Equal(t, 1, resErr.Param)
	})

	t.Run("unassignable arg", func(t *testing.T) {
		_, err := client.CallWithDI(takeTwo, "a", "not an int")
		var resErr *ResolutionError
		assert.True(t, errors.As(err, &resErr))
	})
}

func TestCallWithDI_VariadicExplicitSpread(t *testing.T) {
	client := NewClient()
	join := func(prefix string, xs ...int) string {
		return fmt.Sprintf("%s %v", prefix, xs)
	}

	result, err := client.CallWithDI(join, "nums", 1, 2, 3)
	assert.NoError(t, err)
	assert.Equal(t, "nums [1 2 3]", result)

	// An uncovered variadic parameter is simply empty.
	result, err = client.CallWithDI(join, "nums")
	assert.NoError(t, err)
	assert.Equal(t, "nums []", result)
}
