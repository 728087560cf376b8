package client

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/guseggert/lambchops/closure"
	"github.com/guseggert/lambchops/unit"
	"github.com/guseggert/lambchops/wire"
)

// sentSet holds the names of the units already shipped on a connection.
type sentSet map[string]struct{}

func (s sentSet) Has(name string) bool {
	_, ok := s[name]
	return ok
}

func (s sentSet) Add(name string) { s[name] = struct{}{} }

// submit ships any units v depends on that this connection has not seen yet, then v itself, then flushes.
// A failure to write closes the client, since the server may have seen part of the exchange.
func (c *Client) submit(ctx context.Context, kind wire.Kind, v any) error {
	if v == nil {
		return errors.New("client: cannot send nil")
	}
	w := &walker{
		visit: func(t reflect.Type) error { return c.visit(ctx, t) },
		seen:  map[visitKey]bool{},
	}
	if err := w.walk(reflect.ValueOf(v)); err != nil {
		return err
	}

	typeName := ""
	rv := reflect.ValueOf(v)
	if e, ok := c.catalog.Lookup(rv.Type()); ok {
		typeName = e.Name
	} else if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		// a pointer to a closure registered by value is sent as the value
		if e, ok := c.catalog.Lookup(rv.Type().Elem()); ok {
			typeName = e.Name
			v = rv.Elem().Interface()
		}
	}

	f, err := wire.ObjectFrame(kind, typeName, v)
	if err != nil {
		return err
	}
	if err := c.conn.Send(f); err != nil {
		return c.broken(ctx, fmt.Sprintf("sending %s", kind), err)
	}
	c.Logger.Debugw("sent payload", "Kind", kind, "Type", typeName)
	return nil
}

// visit is called for the type of every value reachable from a payload.
func (c *Client) visit(ctx context.Context, t reflect.Type) error {
	if t.Kind() == reflect.Array || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	if e, ok := c.catalog.Lookup(t); ok {
		if e.Builtin || c.sent.Has(e.Unit) {
			return nil
		}
		return c.ship(ctx, e.Unit)
	}
	if t.Name() != "" && !closure.IsStandard(t.PkgPath()) {
		return &closure.NotImplementedError{Type: t}
	}
	return nil
}

func (c *Client) ship(ctx context.Context, name string) error {
	b, err := c.catalog.Image(name)
	if err != nil {
		return fmt.Errorf("loading unit %q: %w", name, err)
	}
	f, err := wire.CodeUnitFrame(unit.New(name, b))
	if err != nil {
		return err
	}
	if err := c.conn.Send(f); err != nil {
		return c.broken(ctx, fmt.Sprintf("shipping unit %q", name), err)
	}
	c.sent.Add(name)
	c.Logger.Debugw("shipped code unit", "Unit", name, "Bytes", len(b))
	return nil
}

type visitKey struct {
	t reflect.Type
	p uintptr
}

// walker traverses a value graph the way the encoder will, without encoding anything.
type walker struct {
	visit func(reflect.Type) error
	seen  map[visitKey]bool
}

func (w *walker) walk(v reflect.Value) error {
	if !v.IsValid() {
		return nil
	}

	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return nil
		}
		return w.walk(v.Elem())
	case reflect.Pointer:
		if v.IsNil() || w.mark(v) {
			return nil
		}
		if err := w.visit(v.Type()); err != nil {
			return err
		}
		return w.walk(v.Elem())
	}

	if err := w.visit(v.Type()); err != nil {
		return err
	}

	switch v.Kind() {
	case reflect.Struct:
		t := v.Type()
		for i := 0; i < v.NumField(); i++ {
			if !t.Field(i).IsExported() {
				continue
			}
			if err := w.walk(v.Field(i)); err != nil {
				return err
			}
		}
	case reflect.Slice, reflect.Array:
		if isScalar(v.Type().Elem()) {
			return nil
		}
		if v.Kind() == reflect.Slice && (v.IsNil() || w.mark(v)) {
			return nil
		}
		for i := 0; i < v.Len(); i++ {
			if err := w.walk(v.Index(i)); err != nil {
				return err
			}
		}
	case reflect.Map:
		if v.IsNil() || w.mark(v) {
			return nil
		}
		iter := v.MapRange()
		for iter.Next() {
			if err := w.walk(iter.Key()); err != nil {
				return err
			}
			if err := w.walk(iter.Value()); err != nil {
				return err
			}
		}
	}
	return nil
}

// mark records v as visited and reports whether it already was.
func (w *walker) mark(v reflect.Value) bool {
	k := visitKey{t: v.Type(), p: v.Pointer()}
	if w.seen[k] {
		return true
	}
	w.seen[k] = true
	return false
}

// isScalar reports whether values of t cannot reference values of any other type.
// The element type itself has already been visited through the container's type.
func isScalar(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	}
	return false
}
