// Package modfile loads module descriptions from YAML files into decoded
// bytecode modules. The format exists for fixtures and for feeding the CLI
// without a binary front end: types with their hierarchy edges, methods
// with their flags and signatures, and bodies written as assembler-style
// mnemonic lines that lower to the closed opcode set.
package modfile

import (
	"bytes"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/715d/disposeguard/pkg/bytecode"
)

type document struct {
	Module string    `yaml:"module"`
	Types  []typeDoc `yaml:"types"`
}

type typeDoc struct {
	Name       string      `yaml:"name"`
	Kind       string      `yaml:"kind,omitempty"`
	Base       string      `yaml:"base,omitempty"`
	Implements []string    `yaml:"implements,omitempty"`
	Methods    []methodDoc `yaml:"methods,omitempty"`
}

type methodDoc struct {
	Name          string   `yaml:"name"`
	Public        bool     `yaml:"public,omitempty"`
	Static        bool     `yaml:"static,omitempty"`
	Constructor   bool     `yaml:"constructor,omitempty"`
	Finalizer     bool     `yaml:"finalizer,omitempty"`
	Getter        bool     `yaml:"getter,omitempty"`
	Setter        bool     `yaml:"setter,omitempty"`
	EventAccessor bool     `yaml:"event_accessor,omitempty"`
	Generated     bool     `yaml:"generated,omitempty"`
	Abstract      bool     `yaml:"abstract,omitempty"`
	Params        []string `yaml:"params,omitempty"`
	Returns       string   `yaml:"returns,omitempty"`
	Body          []string `yaml:"body,omitempty"`
}

// Load reads and decodes a module description file.
func Load(path string) (*bytecode.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading module file: %w", err)
	}
	mod, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if mod.Name == "" {
		mod.Name = path
	}
	return mod, nil
}

// Parse decodes a module description from YAML text. Unknown YAML fields
// are errors.
func Parse(data []byte) (*bytecode.Module, error) {
	var doc document
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decoding module description: %w", err)
	}

	mod := &bytecode.Module{Name: doc.Module}
	seen := make(map[string]bool, len(doc.Types))
	for i := range doc.Types {
		td := &doc.Types[i]
		if td.Name == "" {
			return nil, fmt.Errorf("types[%d]: missing name", i)
		}
		if seen[td.Name] {
			return nil, fmt.Errorf("type %s declared twice", td.Name)
		}
		seen[td.Name] = true
		typ, err := lowerType(td)
		if err != nil {
			return nil, fmt.Errorf("type %s: %w", td.Name, err)
		}
		mod.Types = append(mod.Types, typ)
	}
	return mod, nil
}

func lowerType(td *typeDoc) (*bytecode.TypeDef, error) {
	kind, err := parseKind(td.Kind)
	if err != nil {
		return nil, err
	}
	typ := &bytecode.TypeDef{
		Name:       td.Name,
		Kind:       kind,
		Base:       td.Base,
		Interfaces: td.Implements,
	}
	for i := range td.Methods {
		md := &td.Methods[i]
		if md.Name == "" {
			return nil, fmt.Errorf("methods[%d]: missing name", i)
		}
		m, err := lowerMethod(td.Name, md)
		if err != nil {
			return nil, fmt.Errorf("method %s: %w", md.Name, err)
		}
		typ.Methods = append(typ.Methods, m)
	}
	return typ, nil
}

func lowerMethod(declaringType string, md *methodDoc) (*bytecode.Method, error) {
	m := &bytecode.Method{
		DeclaringType: declaringType,
		Name:          md.Name,
		Params:        md.Params,
		Returns:       normalizeTypeName(md.Returns),
		Flags:         lowerFlags(md),
	}
	if md.Abstract && len(md.Body) > 0 {
		return nil, fmt.Errorf("abstract method has a body")
	}
	body, err := assemble(m, md.Body)
	if err != nil {
		return nil, fmt.Errorf("assembling body: %w", err)
	}
	m.Body = body
	return m, nil
}

func lowerFlags(md *methodDoc) bytecode.MethodFlags {
	var flags bytecode.MethodFlags
	if md.Public {
		flags |= bytecode.FlagPublic
	}
	if md.Static {
		flags |= bytecode.FlagStatic
	}
	if md.Constructor {
		flags |= bytecode.FlagConstructor
	}
	if md.Finalizer {
		flags |= bytecode.FlagFinalizer
	}
	if md.Getter {
		flags |= bytecode.FlagGetter
	}
	if md.Setter {
		flags |= bytecode.FlagSetter
	}
	if md.EventAccessor {
		flags |= bytecode.FlagEventAccessor
	}
	if md.Generated {
		flags |= bytecode.FlagGenerated
	}
	if md.Abstract {
		flags |= bytecode.FlagAbstract
	}
	return flags
}

func parseKind(s string) (bytecode.TypeKind, error) {
	switch s {
	case "", "class":
		return bytecode.KindClass, nil
	case "interface":
		return bytecode.KindInterface, nil
	case "value-type":
		return bytecode.KindValueType, nil
	default:
		return 0, fmt.Errorf("unknown type kind %q", s)
	}
}

// normalizeTypeName maps the spellings of "no value" to the empty string
// used throughout the instruction model.
func normalizeTypeName(s string) string {
	switch s {
	case "void", "System.Void":
		return ""
	default:
		return s
	}
}
