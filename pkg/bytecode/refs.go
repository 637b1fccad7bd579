package bytecode

import "strings"

// FieldRef identifies a field operand by its declaring type and name. Refs
// are symbolic: they carry what the decoder read from the instruction, not a
// resolved declaration.
type FieldRef struct {
	// DeclaringType is the fully-qualified name of the type that declares
	// the field.
	DeclaringType string

	// Name is the field's simple name.
	Name string
}

// FullName returns "DeclaringType::Name".
func (f *FieldRef) FullName() string {
	var builder strings.Builder
	builder.Grow(len(f.DeclaringType) + len(f.Name) + 2)
	builder.WriteString(f.DeclaringType)
	builder.WriteString("::")
	builder.WriteString(f.Name)
	return builder.String()
}

// MethodRef identifies a method operand by declaring type, name and
// parameter types. The parameter list disambiguates overloads; HasThis
// distinguishes instance methods (which consume a receiver slot) from
// statics.
type MethodRef struct {
	// DeclaringType is the fully-qualified name of the type that declares
	// the method.
	DeclaringType string

	// Name is the method's simple name.
	Name string

	// Params holds the fully-qualified parameter type names in declaration
	// order. Overloads of the same name differ only here.
	Params []string

	// Returns is the fully-qualified return type name, empty for void.
	Returns string

	// HasThis reports whether the method is an instance method and so
	// consumes a receiver operand below its parameters.
	HasThis bool
}

// FullName returns "DeclaringType::Name(P1,P2)".
func (m *MethodRef) FullName() string {
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
