package managed

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Index tracks the registered plugin configuration prototypes and managed
// type procedures. Libraries register theirs from init functions against
// the global index; a Manager may be given a private index instead.
type Index struct {
	mu        sync.Mutex
	configs   map[string]PluginConfig
	typesByID map[string]*TypeConfig
	types     map[reflect.Type]*TypeConfig
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		configs:   map[string]PluginConfig{},
		typesByID: map[string]*TypeConfig{},
		types:     map[reflect.Type]*TypeConfig{},
	}
}

// globalIndex is the default registry used by Manager and the package
// level Register functions.
var globalIndex = NewIndex()

// GlobalIndex returns the process-wide index.
func GlobalIndex() *Index {
	return globalIndex
}

// RegisterType registers a managed type's procedures on the global index.
func RegisterType(tc *TypeConfig) {
	globalIndex.RegisterType(tc)
}

// RegisterConfig registers a plugin configuration prototype on the global
// index.
func RegisterConfig(prototype PluginConfig) {
	globalIndex.RegisterConfig(prototype)
}

// RegisterType registers a managed type's procedures. Registering the same
// type or name twice panics, since that always indicates two packages
// fighting over a registration.
func (i *Index) RegisterType(tc *TypeConfig) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if _, ok := i.types[tc.depType]; ok {
		panic(fmt.Sprintf("managed type %v already registered", tc.depType))
	}
	key := strings.ToLower(tc.name)
	if _, ok := i.typesByID[key]; ok {
		panic(fmt.Sprintf("managed type name %q already registered", tc.name))
	}
	i.types[tc.depType] = tc
	i.typesByID[key] = tc
}

// RegisterConfig registers a plugin configuration prototype. Registering
// the same config ID twice panics.
func (i *Index) RegisterConfig(prototype PluginConfig) {
	i.mu.Lock()
	defer i.mu.Unlock()

	key := strings.ToLower(prototype.ConfigID())
	if _, ok := i.configs[key]; ok {
		panic(fmt.Sprintf("config ID %q already registered", prototype.ConfigID()))
	}
	i.configs[key] = prototype
}

// Type returns the procedures registered for a dependency type.
func (i *Index) Type(depType reflect.Type) (*TypeConfig, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	tc, ok := i.types[depType]
	if !ok {
		return nil, fmt.Errorf("unknown managed dependency type %v", depType)
	}
	return tc, nil
}

// TypeByName returns the procedures registered under a configured name.
func (i *Index) TypeByName(name string) (*TypeConfig, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	tc, ok := i.typesByID[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("unknown managed dependency name %q", name)
	}
	return tc, nil
}

// Config returns the plugin configuration prototype for a config ID.
func (i *Index) Config(configID string) (PluginConfig, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	prototype, ok := i.configs[strings.ToLower(configID)]
	if !ok {
		return nil, fmt.Errorf("unknown plugin config ID %q", configID)
	}
	return prototype, nil
}
