/*
Package closure defines remote closures and the catalog that maps them to the code units they are shipped in.

A remote closure is a named Go type whose exported fields hold its captured state and whose methods implement
one of the two capabilities:

  - Callable computes a value that is sent back to the caller.
  - Runnable executes without a reply.

Go cannot load code it has never seen, so both ends of a connection link the same closure packages and register
their closure types in a Catalog. The package that defines a closure type is its capturing unit. The client ships
the unit's image (see Catalog.Image) the first time a closure from that unit is sent on a connection, and the
server links that image against its own build (see Catalog.Link) before any closure of the unit can be resolved
on that connection.

Closure types must be named struct (or pointer-to-struct) types. Only exported fields are transmitted.
*/
package closure

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Callable is the "compute" capability: the result is written back to the caller.
type Callable interface {
	Call(ctx context.Context) (any, error)
}

// Runnable is the "execute" capability: nothing is written back.
type Runnable interface {
	Run(ctx context.Context) error
}

// Capability is a bit set of the capabilities a registered type exposes.
type Capability uint8

const (
	// CapabilityNone marks plain value types, e.g. reply values.
	CapabilityNone    Capability = 0
	CapabilityCompute Capability = 1 << 0
	CapabilityExecute Capability = 1 << 1
)

func (c Capability) Has(o Capability) bool { return o != 0 && c&o == o }

func (c Capability) String() string {
	var parts []string
	if c.Has(CapabilityCompute) {
		parts = append(parts, "compute")
	}
	if c.Has(CapabilityExecute) {
		parts = append(parts, "execute")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

var (
	callableType = reflect.TypeOf((*Callable)(nil)).Elem()
	runnableType = reflect.TypeOf((*Runnable)(nil)).Elem()
)

// CapabilityOf reports which capabilities values of type t expose.
func CapabilityOf(t reflect.Type) Capability {
	c := CapabilityNone
	if t.Implements(callableType) {
		c |= CapabilityCompute
	}
	if t.Implements(runnableType) {
		c |= CapabilityExecute
	}
	return c
}

// TypeName returns the package-qualified name used on the wire for t, or "" if t is unnamed.
func TypeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	if t.Kind() == reflect.Pointer {
		elem := TypeName(t.Elem())
		if elem == "" {
			return ""
		}
		return "*" + elem
	}
	if t.Name() == "" {
		return ""
	}
	if t.PkgPath() == "" {
		return t.Name()
	}
	return t.PkgPath() + "." + t.Name()
}

// PackageOf returns the import path of the package defining t, looking through pointers.
func PackageOf(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.PkgPath()
}

// IsStandard reports whether the import path belongs to the standard library.
// Builtin types have an empty path and count as standard.
func IsStandard(pkgPath string) bool {
	if pkgPath == "" {
		return true
	}
	first, _, _ := strings.Cut(pkgPath, "/")
	return !strings.Contains(first, ".")
}

// ErrNotImplemented is matched by errors for dependencies the shipper does not know how to send.
var ErrNotImplemented = errors.New("not implemented")

// NotImplementedError reports a value whose type comes from an application package but is not a registered closure.
type NotImplementedError struct {
	Type reflect.Type
}

func (e *NotImplementedError) Error() string {
	return fmt.Sprintf("NYI: sending over type %s", e.Type)
}

func (e *NotImplementedError) Is(target error) bool { return target == ErrNotImplemented }

// ErrIncompatible is matched by errors linking a code unit whose image does not match the local build.
var ErrIncompatible = errors.New("incompatible code unit")
