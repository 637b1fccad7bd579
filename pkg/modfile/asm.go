package modfile

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/715d/disposeguard/pkg/bytecode"
)

// Body lines follow a small assembler grammar:
//
//	[label:] [@offset] mnemonic args...
//
// Offsets auto-increment from the previous instruction unless pinned with
// "@"; pinning deliberately permits fixtures with broken offset order or
// dangling targets. Branch targets are label names or raw "@offset" forms;
// labels may be referenced before they are defined. References must not
// contain spaces: methods are "Type::Name(P1,P2)", optionally preceded by
// "static" and followed by "-> ReturnType", fields are "Type::Name",
// constructors are "Type(P1,P2)".
//
// Mnemonics and their lowering:
//
//	load-self                     push the receiver
//	invoke-direct / invoke-virtual  call through a method reference
//	construct Type(...)           construct-object
//	load-field / load-field-addr / store-field  field access
//	branch T                      unconditional transfer (no fall-through)
//	branch-if-true T / branch-if-false T  conditional transfer, pops 1
//	return                        pops 1 when the method returns a value
//	throw                         pops 1, no fall-through
//	leave T                       protected-region exit, clears the stack
//	dup / pop / nop               stack shuffling
//	load-const [lit]              push a constant
//	load-arg N / load-local N / store-local N  slot access
//	other [pops=N|all] [pushes=N] [target=T] [terminator]  raw escape
type assembler struct {
	method *bytecode.Method
	body   []bytecode.Instruction
	labels map[string]int
	fixups []fixup
	next   int
}

// fixup records a branch whose label is resolved once every line has been
// read, so forward references work.
type fixup struct {
	index int
	label string
	line  int
}

func assemble(m *bytecode.Method, lines []string) ([]bytecode.Instruction, error) {
	if len(lines) == 0 {
		return nil, nil
	}
	a := &assembler{
		method: m,
		body:   make([]bytecode.Instruction, 0, len(lines)),
		labels: make(map[string]int),
	}
	for li, raw := range lines {
		if err := a.line(li+1, raw); err != nil {
			return nil, fmt.Errorf("line %d: %w", li+1, err)
		}
	}
	for _, fx := range a.fixups {
		off, ok := a.labels[fx.label]
		if !ok {
			return nil, fmt.Errorf("line %d: undefined label %q", fx.line, fx.label)
		}
		a.body[fx.index].Target = off
	}
	return a.body, nil
}

func (a *assembler) line(li int, raw string) error {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return fmt.Errorf("empty instruction")
	}

	var label string
	if l, ok := strings.CutSuffix(fields[0], ":"); ok && len(fields) > 1 {
		if l == "" {
			return fmt.Errorf("empty label")
		}
		label = l
		fields = fields[1:]
	}

	offset := a.next
	if n, ok := strings.CutPrefix(fields[0], "@"); ok {
		v, err := strconv.Atoi(n)
		if err != nil {
			return fmt.Errorf("offset %q: %w", fields[0], err)
		}
		offset = v
		fields = fields[1:]
		if len(fields) == 0 {
			return fmt.Errorf("missing mnemonic")
		}
	}
	a.next = offset + 1

	if label != "" {
		if _, dup := a.labels[label]; dup {
			return fmt.Errorf("duplicate label %q", label)
		}
		a.labels[label] = offset
	}

	in := bytecode.Instruction{Offset: offset}
	if err := a.lower(li, &in, fields[0], fields[1:]); err != nil {
		return err
	}
	a.body = append(a.body, in)
	return nil
}

func (a *assembler) lower(li int, in *bytecode.Instruction, mnem string, args []string) error {
	switch mnem {
	case "load-self":
		in.Opcode = bytecode.OpLoadSelf
		return expectArgs(args, 0)

	case "invoke-direct", "invoke-virtual":
		if mnem == "invoke-direct" {
			in.Opcode = bytecode.OpInvokeDirect
		} else {
			in.Opcode = bytecode.OpInvokeVirtual
		}
		ref, err := parseInvoke(args)
		if err != nil {
			return err
		}
		in.Method = ref
		return nil

	case "construct":
		in.Opcode = bytecode.OpConstruct
		ref, err := parseConstruct(args)
		if err != nil {
			return err
		}
		in.Method = ref
		return nil

	case "load-field", "load-field-addr", "store-field":
		switch mnem {
		case "load-field":
			in.Opcode = bytecode.OpLoadField
		case "load-field-addr":
			in.Opcode = bytecode.OpLoadFieldAddr
		case "store-field":
			in.Opcode = bytecode.OpStoreField
		}
		f, err := parseField(args)
		if err != nil {
			return err
		}
		in.Field = f
		return nil

	case "branch":
		in.Terminator = true
		return a.target(li, in, args)

	case "branch-if-true", "branch-if-false":
		in.Pops = 1
		return a.target(li, in, args)

	case "return":
		in.Terminator = true
		if a.method.Returns != "" {
			in.Pops = 1
		}
		return expectArgs(args, 0)

	case "throw":
		in.Terminator = true
		in.Pops = 1
		return expectArgs(args, 0)

	case "leave":
		in.Terminator = true
		in.Pops = bytecode.PopsAll
		return a.target(li, in, args)

	case "dup":
		in.Pops, in.Pushes = 1, 2
		return expectArgs(args, 0)

	case "pop":
		in.Pops = 1
		return expectArgs(args, 0)

	case "nop":
		return expectArgs(args, 0)

	case "load-const":
		in.Pushes = 1
		if len(args) > 1 {
			return fmt.Errorf("want at most one literal, got %d arguments", len(args))
		}
		return nil

	case "load-arg", "load-local":
		in.Pushes = 1
		return expectIndex(args)

	case "store-local":
		in.Pops = 1
		return expectIndex(args)

	case "other":
		return a.lowerOther(li, in, args)

	default:
		return fmt.Errorf("unknown mnemonic %q", mnem)
	}
}

func (a *assembler) lowerOther(li int, in *bytecode.Instruction, args []string) error {
	for _, arg := range args {
		key, val, hasVal := strings.Cut(arg, "=")
		switch {
		case key == "terminator" && !hasVal:
			in.Terminator = true
		case key == "pops" && hasVal:
			if val == "all" {
				in.Pops = bytecode.PopsAll
				continue
			}
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return fmt.Errorf("bad pops count %q", val)
			}
			in.Pops = int8(n)
		case key == "pushes" && hasVal:
			n, err := strconv.Atoi(val)
			if err != nil || n < 0 {
				return fmt.Errorf("bad pushes count %q", val)
			}
			in.Pushes = int8(n)
		case key == "target" && hasVal:
			if err := a.target(li, in, []string{val}); err != nil {
				return err
			}
		default:
			return fmt.Errorf("unknown argument %q", arg)
		}
	}
	return nil
}

// target interprets a branch target argument: "@N" is a raw offset taken
// verbatim, anything else a label resolved after the last line.
func (a *assembler) target(li int, in *bytecode.Instruction, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("want one branch target, got %d arguments", len(args))
	}
	in.HasTarget = true
	if n, ok := strings.CutPrefix(args[0], "@"); ok {
		off, err := strconv.Atoi(n)
		if err != nil {
			return fmt.Errorf("branch target %q: %w", args[0], err)
		}
		in.Target = off
		return nil
	}
	a.fixups = append(a.fixups, fixup{index: len(a.body), label: args[0], line: li})
	return nil
}

func parseInvoke(args []string) (*bytecode.MethodRef, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("missing method reference")
	}
	hasThis := true
	if args[0] == "static" {
		hasThis = false
		args = args[1:]
		if len(args) == 0 {
			return nil, fmt.Errorf("missing method reference")
		}
	}
	ref, err := parseMethodRef(args[0])
	if err != nil {
		return nil, err
	}
	ref.HasThis = hasThis
	switch len(args) {
	case 1:
	case 3:
		if args[1] != "->" {
			return nil, fmt.Errorf("unexpected argument %q", args[1])
		}
		ref.Returns = normalizeTypeName(args[2])
	default:
		return nil, fmt.Errorf("unexpected arguments %v", args[1:])
	}
	return ref, nil
}

func parseMethodRef(s string) (*bytecode.MethodRef, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("method reference %q missing parameter list", s)
	}
	head, params := s[:open], s[open+1:len(s)-1]
	typ, name, ok := strings.Cut(head, "::")
	if !ok || typ == "" || name == "" {
		return nil, fmt.Errorf("method reference %q not of form Type::Name(...)", s)
	}
	ref := &bytecode.MethodRef{DeclaringType: typ, Name: name, HasThis: true}
	if params != "" {
		ref.Params = strings.Split(params, ",")
	}
	return ref, nil
}

func parseConstruct(args []string) (*bytecode.MethodRef, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("want one constructor reference, got %d arguments", len(args))
	}
	s := args[0]
	open := strings.IndexByte(s, '(')
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return nil, fmt.Errorf("constructor reference %q not of form Type(...)", s)
	}
	typ, params := s[:open], s[open+1:len(s)-1]
	ref := &bytecode.MethodRef{DeclaringType: typ, Name: ".ctor", HasThis: true}
	if params != "" {
		ref.Params = strings.Split(params, ",")
	}
	return ref, nil
}

func parseField(args []string) (*bytecode.FieldRef, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("want one field reference, got %d arguments", len(args))
	}
	typ, name, ok := strings.Cut(args[0], "::")
	if !ok || typ == "" || name == "" || strings.ContainsAny(name, "()") {
		return nil, fmt.Errorf("field reference %q not of form Type::Name", args[0])
	}
	return &bytecode.FieldRef{DeclaringType: typ, Name: name}, nil
}

func expectArgs(args []string, n int) error {
	if len(args) != n {
		return fmt.Errorf("want %d arguments, got %d", n, len(args))
	}
	return nil
}

func expectIndex(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("want one slot index, got %d arguments", len(args))
	}
	if n, err := strconv.Atoi(args[0]); err != nil || n < 0 {
		return fmt.Errorf("bad slot index %q", args[0])
	}
	return nil
}
