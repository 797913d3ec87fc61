package managed

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"

	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/gburgyan/go-calldi"
)

// Manager drives the lifecycle of configured type dependencies on a client:
// it parses a configuration file, binds the plugin configurations as type
// dependencies, then creates the declared managed types through dependency
// injection and unbinds and cleans them up on unload.
type Manager struct {
	client *calldi.Client
	index  *Index
	log    zerolog.Logger

	config  *ConfigFile
	pending []*TypeConfig
	loaded  bool
	active  []*TypeConfig
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used for load and unload reporting. Managers
// log nothing by default.
func WithLogger(log zerolog.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// WithIndex uses a private index instead of the global one.
func WithIndex(index *Index) ManagerOption {
	return func(m *Manager) { m.index = index }
}

// NewManager creates a manager bound to client. The manager registers
// itself as a type dependency so managed creates can reach it.
func NewManager(client *calldi.Client, opts ...ManagerOption) *Manager {
	m := &Manager{
		client: client,
		index:  globalIndex,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	client.SetTypeDependency(reflect.TypeOf(m), m)
	return m
}

// Client returns the client this manager drives.
func (m *Manager) Client() *calldi.Client {
	return m.client
}

// Config returns the currently applied configuration, or nil before any
// config has loaded.
func (m *Manager) Config() *ConfigFile {
	return m.config
}

// LoadConfigFile reads a JSON or TOML configuration file and applies it as
// LoadConfig does. The format is picked by file extension.
func (m *Manager) LoadConfigFile(path string) error {
	ext := filepath.Ext(path)
	switch ext {
	case ".json", ".toml":
	default:
		return fmt.Errorf("unsupported config file extension %q, expected .json or .toml", ext)
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	// viper lowercases all keys, which is why config IDs and type names
	// match case-insensitively.
	cf, err := ParseConfigFile(v.AllSettings(), m.index)
	if err != nil {
		return fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return m.LoadConfig(cf)
}

// LoadConfig binds each plugin configuration as a type dependency on the
// client and resolves the set of managed types to create, dependencies
// first. The types themselves are created by LoadDeps or LoadDepsAsync.
func (m *Manager) LoadConfig(cf *ConfigFile) error {
	for _, plugin := range cf.Plugins {
		types := plugin.ConfigTypes()
		if types == nil {
			types = []reflect.Type{reflect.TypeOf(plugin)}
		}
		for _, t := range types {
			m.client.SetTypeDependency(t, plugin)
		}
		m.log.Debug().Str("config", plugin.ConfigID()).Msg("bound plugin config")
	}

	names := append([]string{}, cf.LoadTypes...)
	for _, plugin := range cf.Plugins {
		names = append(names, plugin.LoadTypes()...)
	}

	visited := map[*TypeConfig]bool{}
	var ordered []*TypeConfig
	var resolve func(name string) error
	resolve = func(name string) error {
		tc, err := m.index.TypeByName(name)
		if err != nil {
			return err
		}
		if visited[tc] {
			return nil
		}
		visited[tc] = true
		for _, dep := range tc.dependencies {
			if err := resolve(dep); err != nil {
				return fmt.Errorf("dependency of %q: %w", name, err)
			}
		}
		ordered = append(ordered, tc)
		return nil
	}
	for _, name := range names {
		if err := resolve(name); err != nil {
			return err
		}
	}

	m.config = cf
	m.pending = ordered
	return nil
}

// LoadDeps synchronously creates the configured managed types and binds
// them on the client. Types with only an async create are logged and
// skipped; use LoadDepsAsync to include them.
func (m *Manager) LoadDeps() error {
	if m.loaded {
		return fmt.Errorf("dependencies already loaded")
	}

	var active []*TypeConfig
	for _, tc := range m.pending {
		if tc.create == nil {
			m.log.Warn().Str("type", tc.name).Msg("skipping async-only managed type in sync load")
			continue
		}
		value, err := m.client.CallWithDI(tc.create)
		if err != nil {
			m.unload(context.Background(), active, false)
			return fmt.Errorf("creating managed type %q: %w", tc.name, err)
		}
		m.client.SetTypeDependency(tc.depType, value)
		active = append(active, tc)
		m.log.Info().Str("type", tc.name).Msg("loaded managed type")
	}
	m.loaded = true
	m.active = active
	return nil
}

// LoadDepsAsync creates the configured managed types on the async path,
// preferring each type's async create when it has one.
func (m *Manager) LoadDepsAsync(ctx context.Context) error {
	if m.loaded {
		return fmt.Errorf("dependencies already loaded")
	}

	var active []*TypeConfig
	for _, tc := range m.pending {
		create := tc.asyncCreate
		if create == nil {
			create = tc.create
		}
		value, err := m.client.CallWithAsyncDI(ctx, create)
		if err != nil {
			m.unload(ctx, active, true)
			return fmt.Errorf("creating managed type %q: %w", tc.name, err)
		}
		m.client.SetTypeDependency(tc.depType, value)
		active = append(active, tc)
		m.log.Info().Str("type", tc.name).Msg("loaded managed type")
	}
	m.loaded = true
	m.active = active
	return nil
}

// UnloadDeps unbinds the loaded managed types and runs their cleanup
// callbacks, most recently loaded first. Types with only an async cleanup
// are unbound but their cleanup is logged and skipped.
func (m *Manager) UnloadDeps() error {
	if !m.loaded {
		return fmt.Errorf("dependencies not loaded")
	}
	m.unload(context.Background(), m.active, false)
	m.loaded = false
	m.active = nil
	return nil
}

// UnloadDepsAsync unbinds the loaded managed types and runs their cleanup
// callbacks on the async path.
func (m *Manager) UnloadDepsAsync(ctx context.Context) error {
	if !m.loaded {
		return fmt.Errorf("dependencies not loaded")
	}
	m.unload(ctx, m.active, true)
	m.loaded = false
	m.active = nil
	return nil
}

// unload tears down the given types in reverse order. Cleanup failures are
// logged rather than propagated so one failure cannot strand the rest.
func (m *Manager) unload(ctx context.Context, types []*TypeConfig, async bool) {
	for i := len(types) - 1; i >= 0; i-- {
		tc := types[i]
		value, ok := m.client.GetTypeDependency(tc.depType)
		if !ok {
			m.log.Warn().Str("type", tc.name).Msg("managed type already unbound")
			continue
		}
		if err := m.client.RemoveTypeDependency(tc.depType); err != nil {
			m.log.Warn().Err(err).Str("type", tc.name).Msg("unbinding managed type")
		}

		cleanup := tc.cleanup
		usingAsyncCleanup := false
		if async && tc.asyncCleanup != nil {
			cleanup = tc.asyncCleanup
			usingAsyncCleanup = true
		}
		if cleanup == nil {
			if tc.asyncCleanup != nil {
				m.log.Warn().Str("type", tc.name).Msg("skipping async-only cleanup in sync unload")
			}
			continue
		}

		var err error
		switch {
		case usingAsyncCleanup:
			// Async cleanups take (ctx, value); both land as explicit args.
			_, err = m.client.CallWithAsyncDI(ctx, cleanup, ctx, value)
		case async:
			_, err = m.client.CallWithAsyncDI(ctx, cleanup, value)
		default:
			_, err = m.client.CallWithDI(cleanup, value)
		}
		if err != nil {
			m.log.Error().Err(err).Str("type", tc.name).Msg("cleaning up managed type")
			continue
		}
		m.log.Info().Str("type", tc.name).Msg("unloaded managed type")
	}
}

// PreProcessCallback checks that every type dependency a callback's plan
// requires is either already bound on the client or registered as a managed
// type, recursing through callback dependencies. This catches missing
// bindings at startup instead of at call time.
func (m *Manager) PreProcessCallback(callback any) error {
	visited := map[*calldi.Callback]bool{}
	var check func(callback any) error
	check = func(callback any) error {
		info := calldi.InspectPlan(callback)
		for _, t := range info.RequiredTypes {
			if _, ok := m.client.GetTypeDependency(t); ok {
				continue
			}
			if _, err := m.index.Type(t); err == nil {
				continue
			}
			return fmt.Errorf("type dependency %v is neither bound nor managed", t)
		}
		for _, dep := range info.CallbackDependencies {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			if err := check(dep); err != nil {
				return err
			}
		}
		return nil
	}
	return check(callback)
}
