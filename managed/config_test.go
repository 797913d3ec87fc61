package managed

import (
	"fmt"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeStore struct {
	dsn    string
	closed bool
}

type storeConfig struct {
	DSN string
}

func (storeConfig) ConfigID() string { return "Store" }

func (storeConfig) FromMap(data map[string]any) (PluginConfig, error) {
	dsn, ok := data["dsn"].(string)
	if !ok {
		return nil, fmt.Errorf("store config needs a 'dsn' string")
	}
	return &storeConfig{DSN: dsn}, nil
}

func (storeConfig) LoadTypes() []string { return []string{"store"} }

func (storeConfig) ConfigTypes() []reflect.Type {
	return []reflect.Type{reflect.TypeOf(&storeConfig{})}
}

func TestNewTypeConfig_NeedsCreate(t *testing.T) {
	assert.Panics(t, func() {
		NewTypeConfig(reflect.TypeOf(&fakeStore{}), "store")
	})

	tc := NewTypeConfig(reflect.TypeOf(&fakeStore{}), "store",
		WithCreate(func() *fakeStore { return &fakeStore{} }))
	assert.Equal(t, "store", tc.Name())
	assert.Equal(t, reflect.TypeOf(&fakeStore{}), tc.Type())
}

func TestIndex_DuplicateRegistrations(t *testing.T) {
	idx := NewIndex()
	tc := NewTypeConfig(reflect.TypeOf(&fakeStore{}), "store",
		WithCreate(func() *fakeStore { return &fakeStore{} }))

	idx.RegisterType(tc)
	assert.Panics(t, func() { idx.RegisterType(tc) })

	idx.RegisterConfig(storeConfig{})
	assert.Panics(t, func() { idx.RegisterConfig(storeConfig{}) })
}

func TestIndex_Lookups(t *testing.T) {
	idx := NewIndex()
	tc := NewTypeConfig(reflect.TypeOf(&fakeStore{}), "Store",
		WithCreate(func() *fakeStore { return &fakeStore{} }))
	idx.RegisterType(tc)
	idx.RegisterConfig(storeConfig{})

	byType, err := idx.Type(reflect.TypeOf(&fakeStore{}))
	assert.NoError(t, err)
	assert.Same(t, tc, byType)

	// Names and config IDs match case-insensitively.
	byName, err := idx.TypeByName("store")
	assert.NoError(t, err)
	assert.Same(t, tc, byName)

	_, err = idx.TypeByName("missing")
	assert.Error(t, err)

	prototype, err := idx.Config("STORE")
	assert.NoError(t, err)
	assert.NotNil(t, prototype)

	_, err = idx.Config("missing")
	assert.Error(t, err)
}

func TestParseConfigFile(t *testing.T) {
	idx := NewIndex()
	idx.RegisterConfig(storeConfig{})

	cf, err := ParseConfigFile(map[string]any{
		"plugins": map[string]any{
			"store": map[string]any{"dsn": "postgres://db"},
		},
		"load_types": []any{"metrics"},
	}, idx)
	assert.NoError(t, err)
	assert.Len(t, cf.Plugins, 1)
	assert.Equal(t, "postgres://db", cf.Plugins[0].(*storeConfig).DSN)
	assert.Equal(t, []string{"metrics"}, cf.LoadTypes)
}

func TestParseConfigFile_Errors(t *testing.T) {
	idx := NewIndex()
	idx.RegisterConfig(storeConfig{})

	t.Run("unknown plugin", func(t *testing.T) {
		_, err := ParseConfigFile(map[string]any{
			"plugins": map[string]any{"mystery": map[string]any{}},
		}, idx)
		assert.ErrorContains(t, err, "mystery")
	})

	t.Run("plugins not a table", func(t *testing.T) {
		_, err := ParseConfigFile(map[string]any{"plugins": "nope"}, idx)
		assert.ErrorContains(t, err, "expected a table at 'plugins'")
	})

	t.Run("plugin entry not a table", func(t *testing.T) {
		_, err := ParseConfigFile(map[string]any{
			"plugins": map[string]any{"store": 42},
		}, idx)
		assert.ErrorContains(t, err, "plugins.store")
	})

	t.Run("bad plugin body", func(t *testing.T) {
		_, err := ParseConfigFile(map[string]any{
			"plugins": map[string]any{"store": map[string]any{}},
		}, idx)
		assert.ErrorContains(t, err, "dsn")
	})

	t.Run("load_types not a list", func(t *testing.T) {
		_, err := ParseConfigFile(map[string]any{"load_types": "store"}, idx)
		assert.ErrorContains(t, err, "load_types")
	})

	t.Run("load_types entry not a string", func(t *testing.T) {
		_, err := ParseConfigFile(map[string]any{"load_types": []any{7}}, idx)
		assert.ErrorContains(t, err, "load_types[0]")
	})
}
