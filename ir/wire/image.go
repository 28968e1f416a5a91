// Package wire serializes programs to and from a CBOR image, the form in
// which translated code is handed between the front end, the linker and
// code generation.
//
// Indices into Classes and Members that may be absent are stored 1-based,
// with 0 meaning none. Block and body positions are 0-based.
package wire

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Version is the image format version written by the encoders.
const Version = 1

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("wire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Image is the serialized form of a program.
type Image struct {
	Version   uint8    `cbor:"1,keyasint"`
	RunID     string   `cbor:"2,keyasint,omitempty"`
	Classes   []Class  `cbor:"3,keyasint"`
	Members   []Member `cbor:"4,keyasint"`
	Blocks    []Block  `cbor:"5,keyasint"`
	Bodies    []Body   `cbor:"6,keyasint"`
	Entry     int      `cbor:"7,keyasint"` // index into Members
	Linked    bool     `cbor:"8,keyasint,omitempty"`
	Reachable []int    `cbor:"9,keyasint,omitempty"` // indices into Members
}

// Class describes a class. Super is a 1-based index into Image.Classes.
type Class struct {
	Name  string `cbor:"1,keyasint"`
	Super int    `cbor:"2,keyasint,omitempty"`
}

// MemberKind distinguishes the kinds of Member.
type MemberKind uint8

const (
	MemberField       MemberKind = 1
	MemberMethod      MemberKind = 2
	MemberConstructor MemberKind = 3
)

// Member describes a field, method or constructor. Type is the field type or
// the method result. A type is written as a primitive name, "@n" for the
// class at index n, or "[" followed by the element type.
type Member struct {
	Kind   MemberKind `cbor:"1,keyasint"`
	Class  int        `cbor:"2,keyasint"` // index into Image.Classes
	Name   string     `cbor:"3,keyasint,omitempty"`
	Type   string     `cbor:"4,keyasint,omitempty"`
	Params []string   `cbor:"5,keyasint,omitempty"`
}

// Block is one basic block. Succs are positions in Image.Blocks.
type Block struct {
	Code  []Instr `cbor:"1,keyasint"`
	Succs []int   `cbor:"2,keyasint"`
	Fixed bool    `cbor:"3,keyasint,omitempty"` // not mergeable
}

// Body binds a method or constructor to the position of its root block.
type Body struct {
	Member int `cbor:"1,keyasint"`
	Root   int `cbor:"2,keyasint"`
}

// Op tags an encoded instruction.
type Op uint8

const (
	OpNop Op = iota + 1
	OpConst
	OpLoad
	OpStore
	OpArith
	OpNeg
	OpNot
	OpCompare
	OpDup
	OpPop
	OpNew
	OpNewArray
	OpArrayLoad
	OpArrayStore
	OpGetField
	OpPutField
	OpReturn
	OpIf
	OpCall
)

// Instr is an encoded instruction. Which fields are meaningful depends on Op.
type Instr struct {
	Op       Op      `cbor:"1,keyasint"`
	Type     string  `cbor:"2,keyasint,omitempty"`
	Slot     int     `cbor:"3,keyasint,omitempty"`
	Sub      uint8   `cbor:"4,keyasint,omitempty"` // arithmetic op or condition
	Member   int     `cbor:"5,keyasint,omitempty"` // 1-based index into Image.Members
	Targets  []int   `cbor:"6,keyasint,omitempty"` // 1-based indices into Image.Members
	Resolved bool    `cbor:"7,keyasint,omitempty"`
	Int      int64   `cbor:"8,keyasint,omitempty"`
	Float    float64 `cbor:"9,keyasint,omitempty"`
	Bool     bool    `cbor:"10,keyasint,omitempty"`
	Str      string  `cbor:"11,keyasint,omitempty"`
}

// MarshalImage serializes an Image to CBOR bytes.
func MarshalImage(img *Image) ([]byte, error) {
	return cborEncMode.Marshal(img)
}

// UnmarshalImage deserializes an Image from CBOR bytes.
func UnmarshalImage(data []byte) (*Image, error) {
	var img Image
	if err := cbor.Unmarshal(data, &img); err != nil {
		return nil, fmt.Errorf("wire: unmarshal image: %w", err)
	}
	return &img, nil
}
