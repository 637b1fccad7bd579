// Package disposeguard implements the disposal-guard rule: public methods
// of a type with an explicit teardown operation should reject use after
// teardown by raising the designated "already disposed" exception.
//
// The rule works purely on decoded instruction streams. It flags a public
// method of a disposable type that provably touches its own instance state
// (a field of self, or a private instance call on self) without either
// constructing the guard exception anywhere in its body or delegating to a
// helper whose name signals it performs the check. The proof is syntactic:
// a method is accused only when a backward operand trace concretely
// demonstrates the self access, so inconclusive bodies stay silent.
package disposeguard

import (
	"strings"

	"github.com/715d/disposeguard/pkg/bytecode"
	"github.com/715d/disposeguard/pkg/rules"
)

// Config holds the names the rule matches against. The zero value selects
// CLR conventions.
type Config struct {
	// LifecycleInterface is the fully-qualified name of the interface that
	// marks a type as having an explicit teardown operation.
	LifecycleInterface string `yaml:"lifecycle_interface"`

	// GuardExceptionType is the fully-qualified name of the exception type
	// raised to signal use after teardown. Constructing it anywhere in a
	// method body counts as guarding.
	GuardExceptionType string `yaml:"guard_exception_type"`

	// DisposeMethod is the simple name of the teardown method, which is
	// itself never required to guard.
	DisposeMethod string `yaml:"dispose_method"`
}

// DefaultConfig returns the CLR-convention names.
func DefaultConfig() Config {
	return Config{
		LifecycleInterface: "System.IDisposable",
		GuardExceptionType: "System.ObjectDisposedException",
		DisposeMethod:      "Dispose",
	}
}

// Rule is the disposal-guard inspection. One instance may check methods
// from multiple goroutines.
type Rule struct {
	cfg Config

	// actionable is the set of opcode categories the scan acts on; a body
	// whose mask misses all of them cannot produce evidence.
	actionable bytecode.OpcodeMask
}

// New creates the rule. Empty Config fields fall back to DefaultConfig.
func New(cfg Config) *Rule {
	def := DefaultConfig()
	if cfg.LifecycleInterface == "" {
		cfg.LifecycleInterface = def.LifecycleInterface
	}
	if cfg.GuardExceptionType == "" {
		cfg.GuardExceptionType = def.GuardExceptionType
	}
	if cfg.DisposeMethod == "" {
		cfg.DisposeMethod = def.DisposeMethod
	}
	return &Rule{
		cfg: cfg,
		actionable: bytecode.Mask(
			bytecode.OpInvokeDirect,
			bytecode.OpInvokeVirtual,
			bytecode.OpLoadField,
			bytecode.OpStoreField,
			bytecode.OpLoadFieldAddr,
		),
	}
}

// Name implements rules.MethodRule.
func (r *Rule) Name() string { return "disposeguard" }

// scanState collects the evidence of one method scan. It lives for exactly
// one CheckMethod call.
type scanState struct {
	selfCall         bool // private instance call on self
	selfField        bool // own-type field access on self
	guardConstructed bool // guard exception constructed somewhere in the body
	helperCalled     bool // callee name signals a guard helper
}

// CheckMethod implements rules.MethodRule. It gates on eligibility, scans
// the body once in offset order, and decides after the full scan. Bodies
// that fail validation are reported as errors wrapping the bytecode
// sentinels so the caller can skip just this method.
func (r *Rule) CheckMethod(pass *rules.Pass, m *bytecode.Method) (*rules.Finding, error) {
	if !r.eligible(pass, m) {
		return nil, nil
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}

	st := r.scan(pass, m)
	if (st.selfCall || st.selfField) && !st.guardConstructed && !st.helperCalled {
		return &rules.Finding{
			Rule:       r.Name(),
			Method:     m.FullName(),
			Severity:   rules.SeverityMedium,
			Confidence: rules.ConfidenceHigh,
		}, nil
	}
	return nil, nil
}

// eligible applies the preflight gate, cheapest test first. Only public,
// non-generated, non-exempt methods of a type implementing the lifecycle
// interface, whose body contains at least one actionable opcode, are worth
// scanning.
func (r *Rule) eligible(pass *rules.Pass, m *bytecode.Method) bool {
	if !m.IsPublic() || m.IsGenerated() {
		return false
	}
	if r.exempt(m) {
		return false
	}
	if !pass.Masks.Mask(m).Intersects(r.actionable) {
		return false
	}
	return pass.Hierarchy.Implements(m.DeclaringType, r.cfg.LifecycleInterface)
}

// exempt lists the methods the convention does not apply to: teardown
// plumbing, identity and rendering methods, and accessors. Property setters
// are not exempt.
func (r *Rule) exempt(m *bytecode.Method) bool {
	if m.IsConstructor() || m.IsFinalizer() {
		return true
	}
	if m.Flags&(bytecode.FlagGetter|bytecode.FlagEventAccessor) != 0 {
		return true
	}
	// The teardown method is exempt under any signature, so it wins over
	// the signature-sensitive exemptions below.
	if m.Name == r.cfg.DisposeMethod {
		return true
	}
	switch m.Name {
	case "Equals":
		return len(m.Params) == 1
	case "GetHashCode", "ToString", "Close":
		return len(m.Params) == 0
	}
	return false
}

// scan walks the body once in offset order and records the four evidence
// signals. The helper-name check runs on every call independently of the
// self-call check; the tracer is consulted only after the cheap name and
// resolution tests pass.
func (r *Rule) scan(pass *rules.Pass, m *bytecode.Method) scanState {
	var st scanState
	tracer := bytecode.NewReceiverTracer(m)

	for i := range m.Body {
		in := &m.Body[i]
		switch in.Opcode {
		case bytecode.OpInvokeDirect, bytecode.OpInvokeVirtual:
			ref := in.Method
			if ref == nil {
				continue
			}
			if isGuardHelperName(ref.Name) {
				st.helperCalled = true
			}
			if ref.DeclaringType != m.DeclaringType {
				continue
			}
			callee, ok := pass.Resolver.ResolveMethod(ref)
			if !ok || callee.IsPublic() || callee.IsStatic() {
				continue
			}
			if tracer.IsSelfReceiver(i) {
				st.selfCall = true
			}

		case bytecode.OpLoadField, bytecode.OpLoadFieldAddr, bytecode.OpStoreField:
			f := in.Field
			if f == nil || f.DeclaringType != m.DeclaringType {
				continue
			}
			if tracer.IsSelfReceiver(i) {
				st.selfField = true
			}

		case bytecode.OpConstruct:
			if in.Method != nil && in.Method.DeclaringType == r.cfg.GuardExceptionType {
				st.guardConstructed = true
			}
		}
	}
	return st
}

// isGuardHelperName matches callee names that signal a helper performing
// the disposal check itself, such as CheckDisposed or CheckIfDisposed. The
// substring match is deliberately fuzzy and case-sensitive: it can miss a
// differently named helper and it can match an unrelated method that
// happens to contain both words.
func isGuardHelperName(name string) bool {
	return strings.Contains(name, "Check") && strings.Contains(name, "Dispose")
}
