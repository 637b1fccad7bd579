// Package bytecode models decoded method bodies as produced by an external
// front end: an ordered instruction stream per method, grouped into types and
// modules. The model is deliberately coarse: instructions carry a category
// tag from a closed set plus the operand and stack metadata the analyses
// need, nothing more. Decoders for concrete binary formats live outside this
// module and hand over already-decoded data; nothing here reads bytes.
package bytecode

import "fmt"

// Opcode is the category tag of a decoded instruction. The set is closed:
// everything an analysis cannot act on is decoded as OpOther, with its stack
// behavior preserved in the instruction's Pops/Pushes metadata.
type Opcode uint8

const (
	// OpOther covers every instruction outside the categories below. It is
	// the zero value so an undecoded instruction defaults to "unknown".
	OpOther Opcode = iota

	// OpInvokeDirect calls a method non-virtually.
	OpInvokeDirect

	// OpInvokeVirtual calls a method through virtual dispatch.
	OpInvokeVirtual

	// OpLoadField pushes the value of an instance field.
	OpLoadField

	// OpStoreField pops a value into an instance field.
	OpStoreField

	// OpLoadFieldAddr pushes the address of an instance field.
	OpLoadFieldAddr

	// OpConstruct allocates an object and runs the referenced constructor.
	OpConstruct

	// OpLoadSelf pushes the method's own implicit first argument.
	OpLoadSelf

	numOpcodes
)

var opcodeNames = [numOpcodes]string{
	OpOther:         "other",
	OpInvokeDirect:  "invoke-direct",
	OpInvokeVirtual: "invoke-virtual",
	OpLoadField:     "load-field",
	OpStoreField:    "store-field",
	OpLoadFieldAddr: "load-field-address",
	OpConstruct:     "construct-object",
	OpLoadSelf:      "load-self",
}

func (op Opcode) String() string {
	if op < numOpcodes {
		return opcodeNames[op]
	}
	return fmt.Sprintf("opcode(%d)", uint8(op))
}

// MarshalText implements encoding.TextMarshaler.
func (op Opcode) MarshalText() ([]byte, error) {
	if op >= numOpcodes {
		return nil, fmt.Errorf("cannot marshal invalid Opcode(%d)", uint8(op))
	}
	return []byte(opcodeNames[op]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (op *Opcode) UnmarshalText(b []byte) error {
	for i, name := range opcodeNames {
		if string(b) == name {
			*op = Opcode(i)
			return nil
		}
	}
	return fmt.Errorf("unknown opcode %q", b)
}
