// Package runtime holds the module loader contract shared by emitted bundles
// and an embedded JavaScript executor for running them.
//
// Loader is the Go model of the loader the emitter writes into every bundle.
// Both cache a module before its body runs and report missing modules with
// the same messages. Emitter tests run the two side by side.
package runtime

import (
	"fmt"
)

// RequireFunc returns the exports of the module a specifier maps to
type RequireFunc func(specifier string) any

// ModuleBody is the Go form of one emitted module function
type ModuleBody func(require RequireFunc, module *Module)

// Definition pairs a module body with its specifier to id mapping
type Definition struct {
	Body    ModuleBody
	Mapping map[string]int
}

// Registry is indexed by module id; id 0 is the entry
type Registry []Definition

// Module is the per-module record handed to a body
type Module struct {
	ID      int
	Exports any
}

// Set assigns a named export, turning Exports into a map when needed
func (m *Module) Set(name string, value any) {
	exports, ok := m.Exports.(map[string]any)
	if !ok {
		exports = make(map[string]any)
		m.Exports = exports
	}
	exports[name] = value
}

// Get reads a named export from a map-shaped Exports
func (m *Module) Get(name string) (any, bool) {
	exports, ok := m.Exports.(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := exports[name]
	return v, ok
}

// LoadError reports a specifier missing from the requiring module's mapping,
// or an id that is not in the registry.
type LoadError struct {
	From      int
	Specifier string
	ID        int
}

func (e *LoadError) Error() string {
	if e.Specifier != "" {
		return fmt.Sprintf("Cannot find module '%s' from module %d", e.Specifier, e.From)
	}
	return fmt.Sprintf("Cannot find module with id %d", e.ID)
}

// Loader executes a registry with a per-id cache. A module is cached before
// its body runs, so a cycle sees the partially populated exports and every
// module body runs at most once.
type Loader struct {
	registry Registry
	cache    map[int]*Module
}

// NewLoader creates a loader for registry
func NewLoader(registry Registry) *Loader {
	return &Loader{
		registry: registry,
		cache:    make(map[int]*Module),
	}
}

// Run loads the entry module and returns its exports
func (l *Loader) Run() (any, error) {
	return l.Load(0)
}

// Load returns the exports of module id, running it on first use
func (l *Loader) Load(id int) (exports any, err error) {
	defer func() {
		if r := recover(); r != nil {
			loadErr, ok := r.(*LoadError)
			if !ok {
				panic(r)
			}
			err = loadErr
		}
	}()
	return l.load(id), nil
}

// Loaded reports whether module id has been started
func (l *Loader) Loaded(id int) bool {
	_, ok := l.cache[id]
	return ok
}

// load panics with *LoadError so that a failing require unwinds through
// every body on the stack, like a thrown exception.
func (l *Loader) load(id int) any {
	if m, ok := l.cache[id]; ok {
		return m.Exports
	}
	if id < 0 || id >= len(l.registry) {
		panic(&LoadError{ID: id})
	}

	def := l.registry[id]
	m := &Module{ID: id, Exports: make(map[string]any)}
	l.cache[id] = m

	require := func(specifier string) any {
		target, ok := def.Mapping[specifier]
		if !ok {
			panic(&LoadError{From: id, Specifier: specifier})
		}
		return l.load(target)
	}

	if def.Body != nil {
		def.Body(require, m)
	}
	return m.Exports
}
