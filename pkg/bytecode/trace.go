package bytecode

// ReceiverTracer answers, for an instruction that consumes operands, which
// earlier instruction produced its receiver operand. The receiver is the
// bottom-most slot the instruction pops: for an instance invoke that is the
// `this` argument, for field access the object operand.
//
// The tracer walks the body backward under a linear stack discipline and
// refuses to guess. Any construct that breaks the discipline makes the
// trace inconclusive:
//
//   - a crossed instruction that is the target of a branch (multiple
//     predecessors, stack state not unique),
//   - a preceding instruction with no fall-through,
//   - an instruction with unknown stack effect (PopsAll),
//   - running off the start of the body.
//
// Inconclusive traces return nil. Callers treat nil as "not what I was
// looking for", which keeps every analysis built on the tracer biased
// toward silence rather than toward wrong findings.
type ReceiverTracer struct {
	body    []Instruction
	targets map[int]bool
}

// NewReceiverTracer builds a tracer over the method's body. The body must
// not change while the tracer is in use.
func NewReceiverTracer(m *Method) *ReceiverTracer {
	return &ReceiverTracer{
		body:    m.Body,
		targets: m.branchTargets(),
	}
}

// Producer returns the instruction that produced the receiver operand of
// the instruction at body index i, or nil when the trace is inconclusive
// or the instruction pops nothing.
func (t *ReceiverTracer) Producer(i int) *Instruction {
	if i < 0 || i >= len(t.body) {
		return nil
	}
	pops := t.body[i].StackPops()
	if pops <= 0 {
		return nil
	}

	// depth counts the slots sitting above the receiver at the program
	// point just before t.body[j] executes. The receiver is the deepest of
	// the consumer's pops, so pops-1 slots sit above it.
	depth := pops - 1

	for j := i; j >= 1; j-- {
		// Moving to the previous instruction is only sound when control
		// must have flowed linearly across this boundary.
		if t.targets[t.body[j].Offset] {
			return nil
		}
		p := &t.body[j-1]
		if p.Terminator {
			return nil
		}

		pushes := p.StackPushes()
		if depth < pushes {
			return p
		}
		ppops := p.StackPops()
		if ppops < 0 {
			return nil
		}
		depth += ppops - pushes
	}

	// The operand would predate the first instruction; nothing is on the
	// stack at entry, so the body is inconsistent. Give up.
	return nil
}

// IsSelfReceiver reports whether the receiver operand of the instruction at
// body index i provably comes from a load-self instruction. Inconclusive
// traces report false.
func (t *ReceiverTracer) IsSelfReceiver(i int) bool {
	p := t.Producer(i)
	return p != nil && p.Opcode == OpLoadSelf
}
