// Package registry holds the symbols exported by loaded scripts.
package registry

import (
	"sort"

	"go.starlark.net/starlark"
)

// Registry maps exported names to script values for the life of a worker.
// Bindings are never removed; exporting a name again replaces its value.
// A Registry is owned by a single goroutine and does no locking.
type Registry struct {
	symbols map[string]starlark.Value
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{symbols: make(map[string]starlark.Value)}
}

// Bind sets name to v, overwriting any earlier binding.
func (r *Registry) Bind(name string, v starlark.Value) {
	r.symbols[name] = v
}

// Lookup returns the value bound to name.
func (r *Registry) Lookup(name string) (starlark.Value, bool) {
	v, ok := r.symbols[name]
	return v, ok
}

// Names returns the bound names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.symbols))
	for name := range r.symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of bound names.
func (r *Registry) Len() int {
	return len(r.symbols)
}
