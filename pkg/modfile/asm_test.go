package modfile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/715d/disposeguard/pkg/bytecode"
)

func assembleBody(t *testing.T, returns string, lines ...string) []bytecode.Instruction {
	t.Helper()
	body, err := assemble(&bytecode.Method{Returns: returns}, lines)
	require.NoError(t, err)
	return body
}

// TestAssemble_Lowering tests each mnemonic's lowered instruction.
func TestAssemble_Lowering(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		returns string
		want    bytecode.Instruction
	}{
		{
			name: "load-self",
			line: "load-self",
			want: bytecode.Instruction{Opcode: bytecode.OpLoadSelf},
		},
		{
			name: "instance invoke with signature",
			line: "invoke-direct Sample.T::Run(System.Int32,System.String) -> System.Boolean",
			want: bytecode.Instruction{Opcode: bytecode.OpInvokeDirect, Method: &bytecode.MethodRef{
				DeclaringType: "Sample.T",
				Name:          "Run",
				Params:        []string{"System.Int32", "System.String"},
				Returns:       "System.Boolean",
				HasThis:       true,
			}},
		},
		{
			name: "static void invoke",
			line: "invoke-virtual static Sample.T::Main() -> void",
			want: bytecode.Instruction{Opcode: bytecode.OpInvokeVirtual, Method: &bytecode.MethodRef{
				DeclaringType: "Sample.T",
				Name:          "Main",
			}},
		},
		{
			name: "invoke without result",
			line: "invoke-direct Sample.T::Close()",
			want: bytecode.Instruction{Opcode: bytecode.OpInvokeDirect, Method: &bytecode.MethodRef{
				DeclaringType: "Sample.T",
				Name:          "Close",
				HasThis:       true,
			}},
		},
		{
			name: "construct",
			line: "construct Sample.T(System.Int32)",
			want: bytecode.Instruction{Opcode: bytecode.OpConstruct, Method: &bytecode.MethodRef{
				DeclaringType: "Sample.T",
				Name:          ".ctor",
				Params:        []string{"System.Int32"},
				HasThis:       true,
			}},
		},
		{
			name: "load-field",
			line: "load-field Sample.T::count",
			want: bytecode.Instruction{Opcode: bytecode.OpLoadField, Field: &bytecode.FieldRef{
				DeclaringType: "Sample.T",
				Name:          "count",
			}},
		},
		{
			name: "load-field-addr",
			line: "load-field-addr Sample.T::count",
			want: bytecode.Instruction{Opcode: bytecode.OpLoadFieldAddr, Field: &bytecode.FieldRef{
				DeclaringType: "Sample.T",
				Name:          "count",
			}},
		},
		{
			name: "store-field",
			line: "store-field Sample.T::count",
			want: bytecode.Instruction{Opcode: bytecode.OpStoreField, Field: &bytecode.FieldRef{
				DeclaringType: "Sample.T",
				Name:          "count",
			}},
		},
		{
			name: "branch",
			line: "branch @7",
			want: bytecode.Instruction{Terminator: true, HasTarget: true, Target: 7},
		},
		{
			name: "branch-if-true",
			line: "branch-if-true @2",
			want: bytecode.Instruction{Pops: 1, HasTarget: true, Target: 2},
		},
		{
			name: "branch-if-false",
			line: "branch-if-false @0",
			want: bytecode.Instruction{Pops: 1, HasTarget: true},
		},
		{
			name: "void return",
			line: "return",
			want: bytecode.Instruction{Terminator: true},
		},
		{
			name:    "value return",
			line:    "return",
			returns: "System.Int32",
			want:    bytecode.Instruction{Terminator: true, Pops: 1},
		},
		{
			name: "throw",
			line: "throw",
			want: bytecode.Instruction{Terminator: true, Pops: 1},
		},
		{
			name: "leave",
			line: "leave @4",
			want: bytecode.Instruction{Terminator: true, Pops: bytecode.PopsAll, HasTarget: true, Target: 4},
		},
		{
			name: "dup",
			line: "dup",
			want: bytecode.Instruction{Pops: 1, Pushes: 2},
		},
		{
			name: "pop",
			line: "pop",
			want: bytecode.Instruction{Pops: 1},
		},
		{
			name: "nop",
			line: "nop",
			want: bytecode.Instruction{},
		},
		{
			name: "load-const without literal",
			line: "load-const",
			want: bytecode.Instruction{Pushes: 1},
		},
		{
			name: "load-const with literal",
			line: "load-const 42",
			want: bytecode.Instruction{Pushes: 1},
		},
		{
			name: "load-arg",
			line: "load-arg 0",
			want: bytecode.Instruction{Pushes: 1},
		},
		{
			name: "load-local",
			line: "load-local 2",
			want: bytecode.Instruction{Pushes: 1},
		},
		{
			name: "store-local",
			line: "store-local 1",
			want: bytecode.Instruction{Pops: 1},
		},
		{
			name: "other with effects",
			line: "other pops=2 pushes=1",
			want: bytecode.Instruction{Pops: 2, Pushes: 1},
		},
		{
			name: "other clearing the stack",
			line: "other pops=all terminator",
			want: bytecode.Instruction{Pops: bytecode.PopsAll, Terminator: true},
		},
		{
			name: "other with raw target",
			line: "other target=@9 terminator",
			want: bytecode.Instruction{HasTarget: true, Target: 9, Terminator: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := assembleBody(t, tt.returns, tt.line)
			require.Len(t, body, 1)
			require.Equal(t, tt.want, body[0])
		})
	}
}

// TestAssemble_Offsets tests auto-incremented offsets, explicit pinning
// and the deliberate absence of ordering checks.
func TestAssemble_Offsets(t *testing.T) {
	body := assembleBody(t, "", "nop", "nop", "nop")
	require.Equal(t, []int{0, 1, 2}, offsets(body))

	body = assembleBody(t, "", "nop", "@5 nop", "nop")
	require.Equal(t, []int{0, 5, 6}, offsets(body), "pinning re-seeds the counter")

	body = assembleBody(t, "", "@5 nop", "@3 nop")
	require.Equal(t, []int{5, 3}, offsets(body), "broken orderings assemble for malformed fixtures")
}

func offsets(body []bytecode.Instruction) []int {
	out := make([]int, len(body))
	for i, in := range body {
		out[i] = in.Offset
	}
	return out
}

// TestAssemble_Labels tests label definition and resolution in both
// directions.
func TestAssemble_Labels(t *testing.T) {
	t.Run("backward reference", func(t *testing.T) {
		body := assembleBody(t, "",
			"top: nop",
			"branch top",
		)
		require.True(t, body[1].HasTarget)
		require.Equal(t, 0, body[1].Target)
	})

	t.Run("forward reference", func(t *testing.T) {
		body := assembleBody(t, "",
			"branch-if-true done",
			"nop",
			"done: return",
		)
		require.Equal(t, 2, body[0].Target)
	})

	t.Run("label on a pinned line", func(t *testing.T) {
		body := assembleBody(t, "",
			"nop",
			"done: @7 return",
			"branch done",
		)
		require.Equal(t, 7, body[1].Offset)
		require.Equal(t, 7, body[2].Target)
	})

	t.Run("label used by an other target", func(t *testing.T) {
		body := assembleBody(t, "",
			"other target=end",
			"end: nop",
		)
		require.True(t, body[0].HasTarget)
		require.Equal(t, 1, body[0].Target)
	})

	t.Run("duplicate label", func(t *testing.T) {
		_, err := assemble(&bytecode.Method{}, []string{"a: nop", "a: nop"})
		require.ErrorContains(t, err, `line 2: duplicate label "a"`)
	})

	t.Run("undefined label", func(t *testing.T) {
		_, err := assemble(&bytecode.Method{}, []string{"nop", "branch nowhere"})
		require.ErrorContains(t, err, `line 2: undefined label "nowhere"`)
	})
}

// TestAssemble_Errors tests the malformed lines the assembler rejects.
func TestAssemble_Errors(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{name: "blank line", line: "   ", want: "line 1: empty instruction"},
		{name: "unknown mnemonic", line: "jump @3", want: `unknown mnemonic "jump"`},
		{name: "bare label", line: "done:", want: `unknown mnemonic "done:"`},
		{name: "bad offset", line: "@x nop", want: `offset "@x"`},
		{name: "offset without mnemonic", line: "@3", want: "missing mnemonic"},
		{name: "unexpected argument", line: "load-self extra", want: "want 0 arguments, got 1"},
		{name: "invoke without reference", line: "invoke-direct", want: "missing method reference"},
		{name: "static invoke without reference", line: "invoke-virtual static", want: "missing method reference"},
		{name: "invoke without declaring type", line: "invoke-direct Run()", want: `not of form Type::Name`},
		{name: "invoke without parameter list", line: "invoke-direct Sample.T::Run", want: "missing parameter list"},
		{name: "invoke with bad arrow", line: "invoke-direct Sample.T::Run() => System.Int32", want: `unexpected argument "=>"`},
		{name: "invoke with dangling arrow", line: "invoke-direct Sample.T::Run() ->", want: "unexpected arguments"},
		{name: "construct without parameter list", line: "construct System.Object", want: `not of form Type(...)`},
		{name: "construct without type", line: "construct (System.Int32)", want: `not of form Type(...)`},
		{name: "field with parameter list", line: "load-field Sample.T::Run()", want: "not of form Type::Name"},
		{name: "field without declaring type", line: "load-field lonely", want: "not of form Type::Name"},
		{name: "field reference missing", line: "store-field", want: "want one field reference"},
		{name: "branch without target", line: "branch", want: "want one branch target"},
		{name: "branch with bad raw target", line: "branch @x", want: `branch target "@x"`},
		{name: "slot index missing", line: "load-arg", want: "want one slot index"},
		{name: "negative slot index", line: "load-arg -1", want: `bad slot index "-1"`},
		{name: "excess literal", line: "load-const 1 2", want: "want at most one literal"},
		{name: "negative pops", line: "other pops=-2", want: `bad pops count "-2"`},
		{name: "bad pushes", line: "other pushes=x", want: `bad pushes count "x"`},
		{name: "unknown other argument", line: "other frobnicate", want: `unknown argument "frobnicate"`},
		{name: "other pops without value", line: "other pops", want: `unknown argument "pops"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := assemble(&bytecode.Method{}, []string{tt.line})
			require.ErrorContains(t, err, tt.want)
		})
	}
}
