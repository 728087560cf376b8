// Package unit defines the code unit value that is shipped ahead of the closures depending on it.
package unit

import "bytes"

// CodeUnit pairs a logical unit name with the unit's binary representation.
// It is immutable once constructed.
type CodeUnit struct {
	name   string
	binary []byte
}

// New returns a code unit holding a copy of binary.
func New(name string, binary []byte) CodeUnit {
	return CodeUnit{name: name, binary: bytes.Clone(binary)}
}

// Name returns the unit's logical name.
func (u CodeUnit) Name() string { return u.name }

// Binary returns a copy of the unit's binary representation.
func (u CodeUnit) Binary() []byte { return bytes.Clone(u.binary) }

// Len returns the size of the binary representation in bytes.
func (u CodeUnit) Len() int { return len(u.binary) }

func (u CodeUnit) String() string { return u.name }
