package managed

import (
	"fmt"
	"reflect"
	"sort"
)

// TypeConfig declares how a named type dependency is created and destroyed
// by the Manager. The create callbacks run through dependency injection, so
// they may themselves request other managed or pre-bound dependencies.
type TypeConfig struct {
	depType reflect.Type
	name    string

	// create is a sync callback returning a value assignable to depType.
	create any
	// asyncCreate is the async-only equivalent, invoked through the async
	// DI path with the load's context.
	asyncCreate any
	// cleanup takes the created value and tears it down.
	cleanup any
	// asyncCleanup is the async-only cleanup, taking (ctx, value).
	asyncCleanup any

	// dependencies names other managed types that must be loaded first.
	dependencies []string
}

// TypeConfigOption configures a TypeConfig.
type TypeConfigOption func(*TypeConfig)

// WithCreate sets the synchronous create callback.
func WithCreate(create any) TypeConfigOption {
	return func(tc *TypeConfig) { tc.create = create }
}

// WithAsyncCreate sets the asynchronous create callback. A type with only
// an async create is skipped by the synchronous LoadDeps.
func WithAsyncCreate(create any) TypeConfigOption {
	return func(tc *TypeConfig) { tc.asyncCreate = create }
}

// WithCleanup sets the synchronous cleanup callback, func(T) or
// func(T) error.
func WithCleanup(cleanup any) TypeConfigOption {
	return func(tc *TypeConfig) { tc.cleanup = cleanup }
}

// WithAsyncCleanup sets the asynchronous cleanup callback,
// func(context.Context, T) or func(context.Context, T) error.
func WithAsyncCleanup(cleanup any) TypeConfigOption {
	return func(tc *TypeConfig) { tc.asyncCleanup = cleanup }
}

// WithDependencies names managed types that must be loaded before this one.
func WithDependencies(names ...string) TypeConfigOption {
	return func(tc *TypeConfig) { tc.dependencies = append(tc.dependencies, names...) }
}

// NewTypeConfig declares a managed type dependency. name identifies the
// type in configuration files; at least one of WithCreate and
// WithAsyncCreate is required.
func NewTypeConfig(depType reflect.Type, name string, opts ...TypeConfigOption) *TypeConfig {
	tc := &TypeConfig{depType: depType, name: name}
	for _, opt := range opts {
		opt(tc)
	}
	if tc.create == nil && tc.asyncCreate == nil {
		panic(fmt.Sprintf("managed type %q needs a create or async create callback", name))
	}
	return tc
}

// Type returns the dependency type created values are registered for.
func (tc *TypeConfig) Type() reflect.Type {
	return tc.depType
}

// Name returns the identifier used in configuration files.
func (tc *TypeConfig) Name() string {
	return tc.name
}

// PluginConfig is implemented by plugin configuration prototypes registered
// with an Index. The Manager parses each entry under the config file's
// "plugins" table by calling FromMap on the prototype registered for the
// entry's key.
type PluginConfig interface {
	// ConfigID identifies this plugin configuration in config files. IDs
	// are matched case-insensitively since config formats differ in key
	// case handling.
	ConfigID() string

	// FromMap builds a populated configuration from the plugin's config
	// table.
	FromMap(data map[string]any) (PluginConfig, error)

	// LoadTypes names the managed types to load when this config is
	// present.
	LoadTypes() []string

	// ConfigTypes returns the types this configuration is bound for on the
	// client, so managed creates can request it by injection. A nil result
	// binds the configuration's own concrete type.
	ConfigTypes() []reflect.Type
}

// ConfigFile is the parsed form of a manager configuration file.
type ConfigFile struct {
	// Plugins holds the loaded plugin configurations.
	Plugins []PluginConfig

	// LoadTypes names type dependencies to load alongside the plugins'
	// own load types.
	LoadTypes []string
}

// ParseConfigFile builds a ConfigFile from a JSON/TOML style map using the
// index's registered plugin configuration prototypes. The expected shape:
//
//	{
//	  "plugins": {"<config id>": {...}},
//	  "load_types": ["name", ...]
//	}
func ParseConfigFile(data map[string]any, index *Index) (*ConfigFile, error) {
	cf := &ConfigFile{}

	if rawPlugins, ok := data["plugins"]; ok {
		plugins, ok := rawPlugins.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected a table at 'plugins', found %T", rawPlugins)
		}
		// Deterministic parse order keeps errors and load order stable.
		keys := make([]string, 0, len(plugins))
		for key := range plugins {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			table, ok := plugins[key].(map[string]any)
			if !ok {
				return nil, fmt.Errorf("expected a table at 'plugins.%s', found %T", key, plugins[key])
			}
			prototype, err := index.Config(key)
			if err != nil {
				return nil, err
			}
			config, err := prototype.FromMap(table)
			if err != nil {
				return nil, fmt.Errorf("parsing 'plugins.%s': %w", key, err)
			}
			cf.Plugins = append(cf.Plugins, config)
		}
	}

	if rawTypes, ok := data["load_types"]; ok {
		list, ok := rawTypes.([]any)
		if !ok {
			return nil, fmt.Errorf("expected a list of strings at 'load_types', found %T", rawTypes)
		}
		for i, entry := range list {
			name, ok := entry.(string)
			if !ok {
				return nil, fmt.Errorf("expected a string at 'load_types[%d]', found %T", i, entry)
			}
			cf.LoadTypes = append(cf.LoadTypes, name)
		}
	}

	return cf, nil
}
