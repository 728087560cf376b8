package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/guseggert/lambchops/unit"
)

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// Kind tags a frame with the role of its body.
type Kind uint8

const (
	KindUnknown Kind = iota
	// KindCodeUnit carries a code unit that later frames on the connection may depend on.
	KindCodeUnit
	// KindValueRequest carries a closure with the compute capability. It is answered by a KindReply frame.
	KindValueRequest
	// KindFireRequest carries a closure with the execute capability. It is never answered.
	KindFireRequest
	KindReply
	// KindObject carries a value with no capability. Servers log and discard it.
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindCodeUnit:
		return "CodeUnit"
	case KindValueRequest:
		return "ValueRequest"
	case KindFireRequest:
		return "FireRequest"
	case KindReply:
		return "Reply"
	case KindObject:
		return "Object"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Frame is the only on-the-wire unit.
type Frame struct {
	Kind Kind `cbor:"1,keyasint"`
	// Type is the registered name of the body's type. Empty means a plain value, decoded generically.
	Type string          `cbor:"2,keyasint,omitempty"`
	Body cbor.RawMessage `cbor:"3,keyasint,omitempty"`
}

type codeUnitBody struct {
	Name   string `cbor:"1,keyasint"`
	Binary []byte `cbor:"2,keyasint"`
}

// CodeUnitFrame builds the frame that ships u.
func CodeUnitFrame(u unit.CodeUnit) (Frame, error) {
	b, err := encMode.Marshal(codeUnitBody{Name: u.Name(), Binary: u.Binary()})
	if err != nil {
		return Frame{}, fmt.Errorf("wire: encoding code unit %q: %w", u.Name(), err)
	}
	return Frame{Kind: KindCodeUnit, Body: b}, nil
}

// DecodeCodeUnit extracts the code unit carried by a KindCodeUnit frame.
func DecodeCodeUnit(f Frame) (unit.CodeUnit, error) {
	if f.Kind != KindCodeUnit {
		return unit.CodeUnit{}, fmt.Errorf("wire: expected %s frame, got %s", KindCodeUnit, f.Kind)
	}
	var body codeUnitBody
	if err := cbor.Unmarshal(f.Body, &body); err != nil {
		return unit.CodeUnit{}, fmt.Errorf("wire: decoding code unit: %w", err)
	}
	if body.Name == "" {
		return unit.CodeUnit{}, fmt.Errorf("wire: code unit has no name")
	}
	return unit.New(body.Name, body.Binary), nil
}
