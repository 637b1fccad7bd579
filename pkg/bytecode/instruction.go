package bytecode

import (
	"fmt"
	"strings"
)

// PopsAll marks an instruction whose stack consumption cannot be described by
// a fixed count (protected-region exits and similar stack-clearing
// transfers). Analyses must treat crossing such an instruction as losing
// track of the operand stack.
const PopsAll int8 = -1

// Instruction is one decoded instruction of a method body. Instances are
// immutable once decoded; analyses only ever read them.
//
// At most one operand is set: Field for the field categories, Method for the
// invoke and construct categories, Target (guarded by HasTarget) for branch
// instructions, which are always category OpOther. Pops, Pushes and
// Terminator describe the stack and control-flow behavior of OpOther
// instructions; for every other category that behavior is implied by the
// opcode and operand, and the fields are ignored.
type Instruction struct {
	// Offset is the instruction's position marker, unique within a body.
	// Offsets increase strictly in body order and are the only "before /
	// after" notion the analyses use.
	Offset int

	// Opcode is the category tag.
	Opcode Opcode

	// Field is the operand of load-field, store-field and
	// load-field-address instructions.
	Field *FieldRef

	// Method is the operand of invoke-direct, invoke-virtual and
	// construct-object instructions.
	Method *MethodRef

	// Target is the branch target offset; meaningful only when HasTarget is
	// set. Branch instructions fall in category OpOther.
	Target    int
	HasTarget bool

	// Pops and Pushes give the operand-stack effect of an OpOther
	// instruction. Pops may be PopsAll when the effect is unknowable.
	Pops   int8
	Pushes int8

	// Terminator marks an instruction with no fall-through: execution never
	// continues at the next instruction in body order (unconditional
	// branches, returns, and throws).
	Terminator bool
}

// StackPops returns the number of operand-stack slots the instruction
// consumes, derived from the opcode and operand for the closed categories
// and from the decoded metadata for OpOther. A negative result means the
// effect is unknown and the stack cannot be tracked across it.
func (in *Instruction) StackPops() int {
	switch in.Opcode {
	case OpInvokeDirect, OpInvokeVirtual:
		if in.Method == nil {
			return int(PopsAll)
		}
		n := len(in.Method.Params)
		if in.Method.HasThis {
			n++
		}
		return n
	case OpConstruct:
		if in.Method == nil {
			return int(PopsAll)
		}
		return len(in.Method.Params)
	case OpLoadField, OpLoadFieldAddr:
		return 1
	case OpStoreField:
		return 2
	case OpLoadSelf:
		return 0
	default:
		return int(in.Pops)
	}
}

// StackPushes returns the number of operand-stack slots the instruction
// produces. Void-returning invokes push nothing.
func (in *Instruction) StackPushes() int {
	switch in.Opcode {
	case OpInvokeDirect, OpInvokeVirtual:
		if in.Method == nil || in.Method.Returns == "" {
			return 0
		}
		return 1
	case OpConstruct, OpLoadField, OpLoadFieldAddr, OpLoadSelf:
		return 1
	case OpStoreField:
		return 0
	default:
		return int(in.Pushes)
	}
}

// String renders the instruction for diagnostics, e.g.
// "0003 invoke-virtual Sample.Stream::Flush()".
func (in *Instruction) String() string {
	var b strings.Builder
	b.Grow(48)
	fmt.Fprintf(&b, "%04d %s", in.Offset, in.Opcode)
	switch {
	case in.Method != nil:
		b.WriteByte(' ')
		b.WriteString(in.Method.FullName())
	case in.Field != nil:
		b.WriteByte(' ')
		b.WriteString(in.Field.FullName())
	case in.HasTarget:
		fmt.Fprintf(&b, " -> %04d", in.Target)
	}
	return b.String()
}
