package bytecode

import "strings"

// MethodFlags is a bitset of properties the decoder records about a method
// declaration.
type MethodFlags uint16

const (
	// FlagPublic marks a method visible outside its declaring assembly.
	FlagPublic MethodFlags = 1 << iota

	// FlagStatic marks a method with no receiver.
	FlagStatic

	// FlagConstructor marks an instance or type constructor.
	FlagConstructor

	// FlagFinalizer marks the finalizer special method.
	FlagFinalizer

	// FlagGetter marks a property-get accessor.
	FlagGetter

	// FlagSetter marks a property-set accessor.
	FlagSetter

	// FlagEventAccessor marks an event add or remove accessor.
	FlagEventAccessor

	// FlagGenerated marks compiler-generated methods (state machines,
	// closures, synthesized accessors).
	FlagGenerated

	// FlagAbstract marks a method declared without a body.
	FlagAbstract
)

// Method is a decoded method: its declaration metadata plus the flat
// instruction stream of its body. The Body slice is in decode order and
// offsets increase strictly; Validate checks that.
type Method struct {
	// DeclaringType is the fully-qualified name of the type the method
	// belongs to. It matches the Name of a TypeDef when the type resolved.
	DeclaringType string

	// Name is the method's simple name.
	Name string

	// Params holds the fully-qualified parameter type names in declaration
	// order. The receiver is not counted here.
	Params []string

	// Returns is the fully-qualified return type name, empty for void.
	Returns string

	// Flags carries the declaration properties recorded by the decoder.
	Flags MethodFlags

	// Body is the decoded instruction stream. Abstract and external methods
	// have an empty body.
	Body []Instruction
}

// IsPublic reports whether the method is externally visible.
func (m *Method) IsPublic() bool { return m.Flags&FlagPublic != 0 }

// IsStatic reports whether the method has no receiver.
func (m *Method) IsStatic() bool { return m.Flags&FlagStatic != 0 }

// IsConstructor reports whether the method is a constructor.
func (m *Method) IsConstructor() bool { return m.Flags&FlagConstructor != 0 }

// IsFinalizer reports whether the method is the finalizer.
func (m *Method) IsFinalizer() bool { return m.Flags&FlagFinalizer != 0 }

// IsAccessor reports whether the method is a property getter or setter or
// an event add/remove accessor.
func (m *Method) IsAccessor() bool {
	return m.Flags&(FlagGetter|FlagSetter|FlagEventAccessor) != 0
}

// IsGenerated reports whether the decoder marked the method as
// compiler-generated.
func (m *Method) IsGenerated() bool { return m.Flags&FlagGenerated != 0 }

// FullName returns "DeclaringType::Name(P1,P2)", the stable identity used
// in findings and logs.
func (m *Method) FullName() string {
	var builder strings.Builder
	builder.Grow(64) // Pre-allocate for typical method names
	builder.WriteString(m.DeclaringType)
	builder.WriteString("::")
	builder.WriteString(m.Name)
	builder.WriteByte('(')
	for i, p := range m.Params {
		if i > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(p)
	}
	builder.WriteByte(')')
	return builder.String()
}

// Ref returns a MethodRef that resolves back to this method.
func (m *Method) Ref() *MethodRef {
	return &MethodRef{
		DeclaringType: m.DeclaringType,
		Name:          m.Name,
		Params:        m.Params,
		Returns:       m.Returns,
		HasThis:       !m.IsStatic(),
	}
}

// branchTargets collects the set of offsets that some instruction in the
// body branches to. Instructions at these offsets have more than one
// predecessor in general, which matters to any backward walk over the body.
func (m *Method) branchTargets() map[int]bool {
	var targets map[int]bool
	for i := range m.Body {
		if !m.Body[i].HasTarget {
			continue
		}
		if targets == nil {
			targets = make(map[int]bool)
		}
		targets[m.Body[i].Target] = true
	}
	return targets
}
