package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestInstruction_StackEffects tests that stack metadata derives from the
// opcode and operand for the closed categories and from the decoded fields
// for everything else.
func TestInstruction_StackEffects(t *testing.T) {
	tests := []struct {
		name   string
		in     Instruction
		pops   int
		pushes int
	}{
		{
			name:   "load-self",
			in:     Instruction{Opcode: OpLoadSelf},
			pops:   0,
			pushes: 1,
		},
		{
			name:   "load-field",
			in:     Instruction{Opcode: OpLoadField, Field: &FieldRef{DeclaringType: "T", Name: "f"}},
			pops:   1,
			pushes: 1,
		},
		{
			name:   "load-field-address",
			in:     Instruction{Opcode: OpLoadFieldAddr, Field: &FieldRef{DeclaringType: "T", Name: "f"}},
			pops:   1,
			pushes: 1,
		},
		{
			name:   "store-field",
			in:     Instruction{Opcode: OpStoreField, Field: &FieldRef{DeclaringType: "T", Name: "f"}},
			pops:   2,
			pushes: 0,
		},
		{
			name: "instance invoke with params and result",
			in: Instruction{Opcode: OpInvokeVirtual, Method: &MethodRef{
				DeclaringType: "T", Name: "M",
				Params: []string{"A", "B"}, Returns: "C", HasThis: true,
			}},
			pops:   3,
			pushes: 1,
		},
		{
			name: "static void invoke",
			in: Instruction{Opcode: OpInvokeDirect, Method: &MethodRef{
				DeclaringType: "T", Name: "M", Params: []string{"A"},
			}},
			pops:   1,
			pushes: 0,
		},
		{
			name: "construct",
			in: Instruction{Opcode: OpConstruct, Method: &MethodRef{
				DeclaringType: "T", Name: ".ctor",
				Params: []string{"A"}, HasThis: true,
			}},
			pops:   1,
			pushes: 1,
		},
		{
			name:   "invoke with missing operand",
			in:     Instruction{Opcode: OpInvokeDirect},
			pops:   -1,
			pushes: 0,
		},
		{
			name:   "other with decoded metadata",
			in:     Instruction{Opcode: OpOther, Pops: 2, Pushes: 1},
			pops:   2,
			pushes: 1,
		},
		{
			name:   "other clearing the stack",
			in:     Instruction{Opcode: OpOther, Pops: PopsAll},
			pops:   -1,
			pushes: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.pops, tt.in.StackPops())
			require.Equal(t, tt.pushes, tt.in.StackPushes())
		})
	}
}

// TestInstruction_String tests the diagnostic rendering.
func TestInstruction_String(t *testing.T) {
	tests := []struct {
		name     string
		in       Instruction
		expected string
	}{
		{
			name: "invoke",
			in: Instruction{Offset: 3, Opcode: OpInvokeVirtual, Method: &MethodRef{
				DeclaringType: "Sample.Stream", Name: "Flush", HasThis: true,
			}},
			expected: "0003 invoke-virtual Sample.Stream::Flush()",
		},
		{
			name:     "field",
			in:       Instruction{Offset: 12, Opcode: OpLoadField, Field: &FieldRef{DeclaringType: "Sample.Stream", Name: "disposed"}},
			expected: "0012 load-field Sample.Stream::disposed",
		},
		{
			name:     "branch",
			in:       Instruction{Offset: 4, Opcode: OpOther, HasTarget: true, Target: 9},
			expected: "0004 other -> 0009",
		},
		{
			name:     "plain",
			in:       Instruction{Offset: 0, Opcode: OpLoadSelf},
			expected: "0000 load-self",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.expected, tt.in.String())
		})
	}
}
