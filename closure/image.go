package closure

import (
	"crypto/sha256"
	"fmt"
	"reflect"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/guseggert/lambchops/unit"
)

var imageEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("closure: failed to create CBOR enc mode: %v", err))
	}
	imageEncMode = em
}

// image is the binary representation of a code unit.
type image struct {
	Unit  string     `cbor:"1,keyasint"`
	Types []typeSpec `cbor:"2,keyasint"`
}

type typeSpec struct {
	Name       string     `cbor:"1,keyasint"`
	Capability Capability `cbor:"2,keyasint"`
	Layout     string     `cbor:"3,keyasint"`
	Digest     [32]byte   `cbor:"4,keyasint"`
}

// Image loads the binary representation of the named unit.
func (c *Catalog) Image(name string) ([]byte, error) {
	entries := c.Unit(name)
	img := image{Unit: name}
	for _, e := range entries {
		if e.Builtin {
			continue
		}
		img.Types = append(img.Types, typeSpec{
			Name:       e.Name,
			Capability: e.Capability,
			Layout:     e.layout,
			Digest:     e.digest,
		})
	}
	if len(img.Types) == 0 {
		return nil, fmt.Errorf("closure: unit %q has no shippable types", name)
	}
	b, err := imageEncMode.Marshal(img)
	if err != nil {
		return nil, fmt.Errorf("closure: encoding image of unit %q: %w", name, err)
	}
	return b, nil
}

// Link verifies a received code unit against the local build and returns the entries it makes resolvable.
// Every type the image lists must be compiled into this process, in the same unit, with the same layout.
func (c *Catalog) Link(u unit.CodeUnit) ([]*Entry, error) {
	var img image
	if err := cbor.Unmarshal(u.Binary(), &img); err != nil {
		return nil, fmt.Errorf("closure: decoding image of unit %q: %w", u.Name(), err)
	}
	if img.Unit != u.Name() {
		return nil, fmt.Errorf("closure: image names unit %q but was shipped as %q: %w", img.Unit, u.Name(), ErrIncompatible)
	}

	entries := make([]*Entry, 0, len(img.Types))
	for _, spec := range img.Types {
		e, ok := c.LookupName(spec.Name)
		if !ok {
			return nil, fmt.Errorf("closure: unit %q: type %s is not part of this build: %w", img.Unit, spec.Name, ErrIncompatible)
		}
		if e.Unit != img.Unit {
			return nil, fmt.Errorf("closure: unit %q: type %s belongs to unit %q here: %w", img.Unit, spec.Name, e.Unit, ErrIncompatible)
		}
		if e.digest != spec.Digest || e.digest != digestOf(spec.Name, spec.Capability, spec.Layout) {
			return nil, fmt.Errorf("closure: unit %q: type %s does not match the local build: %w", img.Unit, spec.Name, ErrIncompatible)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func digestOf(name string, c Capability, layout string) [32]byte {
	return sha256.Sum256([]byte(fmt.Sprintf("%s\x00%d\x00%s", name, c, layout)))
}

// layoutOf describes the transmitted shape of t: its exported fields for structs, its kind otherwise.
func layoutOf(t reflect.Type) string {
	prefix := ""
	for t.Kind() == reflect.Pointer {
		prefix += "*"
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return prefix + t.Kind().String()
	}
	var b strings.Builder
	b.WriteString(prefix)
	b.WriteString("struct{")
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		fmt.Fprintf(&b, "%s %s", f.Name, f.Type)
		if tag, ok := f.Tag.Lookup("cbor"); ok {
			fmt.Fprintf(&b, " %q", tag)
		}
		b.WriteString(";")
	}
	b.WriteString("}")
	return b.String()
}
