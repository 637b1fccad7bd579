// Package rules defines the contract between method inspection rules and
// the engine that runs them over decoded modules.
package rules

import (
	"github.com/715d/disposeguard/pkg/bytecode"
)

// TypeHierarchy answers subtype questions about the types a module refers
// to. Implementations must be safe for concurrent use.
type TypeHierarchy interface {
	// Implements reports whether the named type is, extends, or implements
	// the named interface. Unknown names report false.
	Implements(typeName, ifaceName string) bool
}

// MethodResolver resolves symbolic method references to decoded methods.
// Implementations must be safe for concurrent use.
type MethodResolver interface {
	// ResolveMethod returns the declared method a reference points at.
	// References to methods outside the analyzed module report not found;
	// rules must not assume anything about methods they cannot resolve.
	ResolveMethod(ref *bytecode.MethodRef) (*bytecode.Method, bool)
}

// Pass bundles what a rule may consult while checking methods of one
// module. A Pass is shared across concurrent CheckMethod calls; everything
// it carries is either read-only or internally synchronized.
type Pass struct {
	// Hierarchy answers interface-implementation questions.
	Hierarchy TypeHierarchy

	// Resolver resolves method references within the module.
	Resolver MethodResolver

	// Masks memoizes per-method opcode masks across rules.
	Masks *bytecode.MaskCache
}

// NewPass builds a Pass whose hierarchy and resolution questions are
// answered by the module itself.
func NewPass(mod *bytecode.Module) *Pass {
	return &Pass{
		Hierarchy: mod,
		Resolver:  mod,
		Masks:     bytecode.NewMaskCache(),
	}
}

// MethodRule inspects one method at a time and produces at most one finding
// for it. Implementations must be safe for concurrent CheckMethod calls;
// per-method state lives in locals, never on the rule.
type MethodRule interface {
	// Name returns the stable rule identifier used in findings.
	Name() string

	// CheckMethod inspects a single decoded method. It returns a finding,
	// or nil when the method is fine, not eligible, or the evidence is
	// inconclusive. Errors mean the method could not be checked at all;
	// errors wrapping the bytecode validation sentinels mark bodies the
	// engine should skip quietly.
	CheckMethod(pass *Pass, m *bytecode.Method) (*Finding, error)
}
