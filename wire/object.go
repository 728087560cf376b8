package wire

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// ErrUnresolved is matched by errors for frames whose body type cannot be determined locally.
var ErrUnresolved = errors.New("unresolved type")

// ResolutionError reports a frame body whose type could not be resolved or decoded.
type ResolutionError struct {
	Type string
	Err  error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("wire: cannot resolve type %s: %s", e.Type, e.Err)
	}
	return fmt.Sprintf("wire: cannot resolve type %s", e.Type)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

func (e *ResolutionError) Is(target error) bool { return target == ErrUnresolved }

// Resolver maps the type names carried by frames to local types.
type Resolver interface {
	Resolve(name string) (reflect.Type, error)
}

// ObjectFrame encodes v as the body of a frame of the given kind. typeName may be empty for plain values.
func ObjectFrame(kind Kind, typeName string, v any) (Frame, error) {
	b, err := encMode.Marshal(v)
	if err != nil {
		return Frame{}, fmt.Errorf("wire: encoding %s body: %w", kind, err)
	}
	return Frame{Kind: kind, Type: typeName, Body: b}, nil
}

// DecodeObject decodes the body of f, resolving f.Type through r.
// Frames without a type decode generically, e.g. into string, uint64, []any or map[any]any.
// The stream is unaffected by a failure here, since f has already been read in full.
func DecodeObject(f Frame, r Resolver) (any, error) {
	if f.Type == "" {
		var v any
		if len(f.Body) == 0 {
			return nil, nil
		}
		if err := cbor.Unmarshal(f.Body, &v); err != nil {
			return nil, fmt.Errorf("wire: decoding %s body: %w", f.Kind, err)
		}
		return v, nil
	}

	t, err := r.Resolve(f.Type)
	if err != nil {
		return nil, err
	}

	var ptr, obj reflect.Value
	if t.Kind() == reflect.Pointer {
		ptr = reflect.New(t.Elem())
		obj = ptr
	} else {
		ptr = reflect.New(t)
		obj = ptr.Elem()
	}
	if len(f.Body) > 0 {
		if err := cbor.Unmarshal(f.Body, ptr.Interface()); err != nil {
			return nil, &ResolutionError{Type: f.Type, Err: err}
		}
	}
	return obj.Interface(), nil
}

// DecodeInto decodes the body of f into target, which must be a non-nil pointer.
// A body that does not fit target is reported as a ResolutionError.
func DecodeInto(f Frame, target any) error {
	if len(f.Body) == 0 {
		return nil
	}
	if err := cbor.Unmarshal(f.Body, target); err != nil {
		name := f.Type
		if name == "" {
			name = reflect.TypeOf(target).Elem().String()
		}
		return &ResolutionError{Type: name, Err: err}
	}
	return nil
}
