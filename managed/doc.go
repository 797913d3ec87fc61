// Package managed layers config-file driven dependency lifecycle on top of
// a calldi.Client. Libraries register TypeConfigs describing how their types
// are created and cleaned up, applications register PluginConfig prototypes
// for their config file sections, and a Manager ties the two together:
// LoadConfigFile parses a JSON or TOML file, LoadDeps creates the declared
// types through dependency injection, and UnloadDeps tears them down again.
package managed
