package server

import (
	"reflect"
	"sort"
	"sync"

	"github.com/guseggert/lambchops/closure"
	"github.com/guseggert/lambchops/unit"
	"github.com/guseggert/lambchops/wire"
)

// Registry holds the closure types linked on one connection.
// Names it does not hold resolve against the catalog's builtins only, so a unit registered on one connection is
// never visible on another.
type Registry struct {
	catalog *closure.Catalog

	mu    sync.RWMutex
	units map[string][]*closure.Entry
	types map[string]*closure.Entry
}

func NewRegistry(catalog *closure.Catalog) *Registry {
	return &Registry{
		catalog: catalog,
		units:   map[string][]*closure.Entry{},
		types:   map[string]*closure.Entry{},
	}
}

// Register links u against the local build and makes its types resolvable.
// Registering a unit name again replaces what was linked before.
func (r *Registry) Register(u unit.CodeUnit) error {
	entries, err := r.catalog.Link(u)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.units[u.Name()] {
		delete(r.types, e.Name)
	}
	r.units[u.Name()] = entries
	for _, e := range entries {
		r.types[e.Name] = e
	}
	return nil
}

func (r *Registry) Resolve(name string) (reflect.Type, error) {
	r.mu.RLock()
	e, ok := r.types[name]
	r.mu.RUnlock()
	if ok {
		return e.Type, nil
	}
	if e, ok := r.catalog.Builtin(name); ok {
		return e.Type, nil
	}
	return nil, &wire.ResolutionError{Type: name}
}

// Units returns the names of the linked units, sorted.
func (r *Registry) Units() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.units))
	for name := range r.units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
