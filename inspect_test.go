package calldi

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type inspectConfig struct {
	dsn string
}

type inspectPool struct {
	size int
}

func TestInspectPlan(t *testing.T) {
	makePool := func(cfg Injected[*inspectConfig]) *inspectPool {
		return &inspectPool{size: 4}
	}
	target := Describe(
		func(pool *inspectPool, cfg *inspectConfig, n int) {},
		Inject(WithCallback(makePool)),
		Inject(),
		Inject(WithType(TypeOf[int]()), WithNilDefault()),
	)

	info := InspectPlan(target)

	// The defaulted int is not required; the pool comes from a callback.
	assert.Equal(t, []reflect.Type{TypeOf[*inspectConfig]()}, info.RequiredTypes)
	assert.Len(t, info.CallbackDependencies, 1)
	assert.Same(t, asCallback(makePool), info.CallbackDependencies[0])
}

func TestInspectPlan_MarkersCount(t *testing.T) {
	info := InspectPlan(func(a Injected[*inspectConfig], b Optional[*inspectPool]) {})

	assert.Equal(t, []reflect.Type{TypeOf[*inspectConfig]()}, info.RequiredTypes)
	assert.Empty(t, info.CallbackDependencies)
}

func TestInspectPlan_UnionNotRequired(t *testing.T) {
	// Multi-candidate dependencies aren't pinned to a single required type.
	info := InspectPlan(func(v Union2[*inspectConfig, *inspectPool]) {})

	assert.Empty(t, info.RequiredTypes)
}

func TestInspectPlan_MalformedDeclarationPanics(t *testing.T) {
	assert.Panics(t, func() {
		InspectPlan(Describe(func(xs ...int) {}, Inject()))
	})
}
