// Package calldi resolves the dependencies of callbacks at call time. A
// callback declares which of its parameters are injected, either through
// generic marker parameter types such as Injected and Optional or through
// explicit descriptors attached with Describe, and the engine supplies
// those values from a Client's type registry or by invoking nested
// dependency callbacks, merged with whatever arguments the caller passed
// explicitly.
//
// The Client object has comprehensive documentation about how the
// registries work; Context describes per-call-tree resolution and result
// caching. The managed subpackage adds a config-file driven lifecycle
// manager on top.
package calldi
