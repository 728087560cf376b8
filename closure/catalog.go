package closure

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"
)

// Entry is a registered closure or value type.
type Entry struct {
	Name       string
	Unit       string
	Type       reflect.Type
	Capability Capability
	// Builtin entries are always resolvable and are never shipped.
	Builtin bool

	layout string
	digest [32]byte
}

func (e *Entry) Digest() [32]byte { return e.digest }

// Catalog is a goroutine-safe registry of closure types grouped by capturing unit.
type Catalog struct {
	mu     sync.RWMutex
	byType map[reflect.Type]*Entry
	byName map[string]*Entry
	units  map[string][]*Entry
}

func NewCatalog() *Catalog {
	return &Catalog{
		byType: map[reflect.Type]*Entry{},
		byName: map[string]*Entry{},
		units:  map[string][]*Entry{},
	}
}

// Register registers the types of the given values, using each type's package as its unit.
func (c *Catalog) Register(values ...any) error {
	return c.register("", false, values)
}

// RegisterUnit registers the types of the given values under an explicitly named unit.
func (c *Catalog) RegisterUnit(unit string, values ...any) error {
	if unit == "" {
		return errors.New("closure: empty unit name")
	}
	return c.register(unit, false, values)
}

// RegisterBuiltin registers types that every process provides, so they are never shipped.
func (c *Catalog) RegisterBuiltin(values ...any) error {
	return c.register("", true, values)
}

func (c *Catalog) register(unit string, builtin bool, values []any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, v := range values {
		if v == nil {
			return errors.New("closure: cannot register nil")
		}
		t := reflect.TypeOf(v)
		if t.Kind() == reflect.Func {
			return fmt.Errorf("closure: cannot register func value of type %s, closures must be named types", t)
		}
		name := TypeName(t)
		if name == "" {
			return fmt.Errorf("closure: cannot register unnamed type %s", t)
		}
		if _, ok := c.byName[name]; ok {
			return fmt.Errorf("closure: type %s already registered", name)
		}
		u := unit
		if u == "" {
			u = PackageOf(t)
		}
		e := &Entry{
			Name:       name,
			Unit:       u,
			Type:       t,
			Capability: CapabilityOf(t),
			Builtin:    builtin,
			layout:     layoutOf(t),
		}
		e.digest = digestOf(e.Name, e.Capability, e.layout)

		c.byType[t] = e
		c.byName[name] = e
		c.units[u] = append(c.units[u], e)
	}
	return nil
}

// Lookup returns the entry registered for exactly t. A pointer type and its element type are distinct.
func (c *Catalog) Lookup(t reflect.Type) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byType[t]
	return e, ok
}

// LookupName returns the entry registered under its wire name, builtin or not.
func (c *Catalog) LookupName(name string) (*Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.byName[name]
	return e, ok
}

// Builtin returns the named entry only if it is a builtin. This is the host's fallback resolution path.
func (c *Catalog) Builtin(name string) (*Entry, bool) {
	e, ok := c.LookupName(name)
	if !ok || !e.Builtin {
		return nil, false
	}
	return e, true
}

// Unit returns the entries registered under the unit, sorted by name.
func (c *Catalog) Unit(name string) []*Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entries := append([]*Entry(nil), c.units[name]...)
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries
}

// Units returns the names of all registered units, sorted.
func (c *Catalog) Units() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var names []string
	for name := range c.units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Default is the catalog used by clients and servers that are not given one.
var Default = NewCatalog()

// Register registers values in the Default catalog, panicking on error.
// It is meant to be called from init functions.
func Register(values ...any) {
	if err := Default.Register(values...); err != nil {
		panic(err)
	}
}

func RegisterUnit(unit string, values ...any) {
	if err := Default.RegisterUnit(unit, values...); err != nil {
		panic(err)
	}
}

func RegisterBuiltin(values ...any) {
	if err := Default.RegisterBuiltin(values...); err != nil {
		panic(err)
	}
}
