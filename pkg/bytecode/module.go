package bytecode

import (
	"slices"
	"sync"

	"github.com/puzpuzpuz/xsync/v4"
)

// TypeKind classifies a type declaration.
type TypeKind uint8

const (
	// KindClass is a reference type with an optional base class.
	KindClass TypeKind = iota

	// KindInterface is an interface declaration.
	KindInterface

	// KindValueType is a value type; value types have no user base class.
	KindValueType
)

var typeKindNames = [...]string{
	KindClass:     "class",
	KindInterface: "interface",
	KindValueType: "value-type",
}

func (k TypeKind) String() string {
	if int(k) < len(typeKindNames) {
		return typeKindNames[k]
	}
	return "class"
}

// TypeDef is a type declaration decoded from a module: its place in the
// hierarchy and the methods it declares. Base and interface references are
// symbolic names; they may point at types outside the module, in which case
// the hierarchy simply ends there.
type TypeDef struct {
	// Name is the fully-qualified type name, unique within the module.
	Name string

	// Kind classifies the declaration.
	Kind TypeKind

	// Base is the fully-qualified name of the base class, empty when the
	// type has none worth recording.
	Base string

	// Interfaces lists the fully-qualified names of directly implemented
	// interfaces.
	Interfaces []string

	// Methods holds the methods declared on this type.
	Methods []*Method
}

// Method returns the declared method with the given name and exact
// parameter type list, or nil. The parameter list disambiguates overloads.
func (t *TypeDef) Method(name string, params []string) *Method {
	for _, m := range t.Methods {
		if m.Name == name && slices.Equal(m.Params, params) {
			return m
		}
	}
	return nil
}

// Module is a decoded module: a named bag of type declarations plus lookup
// structure over them. The exported fields are filled by a decoder; lookup
// indexes build lazily on first use, after which the module must be treated
// as immutable.
type Module struct {
	// Name identifies the module, typically its file name.
	Name string

	// Types holds the module's type declarations.
	Types []*TypeDef

	once   sync.Once
	byName map[string]*TypeDef
	impl   *xsync.Map[implKey, bool]
}

type implKey struct {
	typ, iface string
}

func (m *Module) index() {
	m.once.Do(func() {
		m.byName = make(map[string]*TypeDef, len(m.Types))
		for _, t := range m.Types {
			m.byName[t.Name] = t
		}
		m.impl = xsync.NewMap[implKey, bool]()
	})
}

// Type returns the declaration of the named type, or nil when the module
// does not declare it.
func (m *Module) Type(name string) *TypeDef {
	m.index()
	return m.byName[name]
}

// NumMethods returns the total method count across all declared types.
func (m *Module) NumMethods() int {
	n := 0
	for _, t := range m.Types {
		n += len(t.Methods)
	}
	return n
}

// Implements reports whether the named type is, extends, or implements the
// named interface, walking base classes and interface lists transitively.
// Edges leading outside the module end the walk on that path, so a
// relationship routed entirely through external types is reported false:
// absence of proof counts as no.
//
// Results are memoized per (type, interface) pair; Implements is safe for
// concurrent use.
func (m *Module) Implements(typeName, ifaceName string) bool {
	if typeName == "" || ifaceName == "" {
		return false
	}
	m.index()
	key := implKey{typeName, ifaceName}
	res, ok := m.impl.Load(key)
	if ok {
		return res
	}
	res = m.implements(typeName, ifaceName)
	m.impl.Store(key, res)
	return res
}

func (m *Module) implements(typeName, ifaceName string) bool {
	seen := make(map[string]bool)
	queue := []string{typeName}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		if name == ifaceName {
			return true
		}
		t := m.byName[name]
		if t == nil {
			continue
		}
		if t.Base != "" {
			queue = append(queue, t.Base)
		}
		queue = append(queue, t.Interfaces...)
	}
	return false
}

// ResolveMethod resolves a method reference to a declared method, searching
// the referenced type and then its base-class chain within the module.
// References into types the module does not declare report not found.
func (m *Module) ResolveMethod(ref *MethodRef) (*Method, bool) {
	if ref == nil {
		return nil, false
	}
	m.index()
	seen := make(map[string]bool)
	for name := ref.DeclaringType; name != "" && !seen[name]; {
		seen[name] = true
		t := m.byName[name]
		if t == nil {
			return nil, false
		}
		if meth := t.Method(ref.Name, ref.Params); meth != nil {
			return meth, true
		}
		name = t.Base
	}
	return nil, false
}
