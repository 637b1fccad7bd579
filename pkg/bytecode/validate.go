package bytecode

import (
	"errors"
	"fmt"
)

// Validation sentinels. Callers that skip malformed bodies match on these
// with errors.Is.
var (
	// ErrNonMonotonicOffsets reports a body whose instruction offsets do
	// not strictly increase in decode order.
	ErrNonMonotonicOffsets = errors.New("instruction offsets not strictly increasing")

	// ErrDanglingBranchTarget reports a branch whose target offset matches
	// no instruction in the body.
	ErrDanglingBranchTarget = errors.New("branch target matches no instruction")
)

// Validate checks the structural invariants analyses rely on: offsets
// strictly increase in body order, and every branch target names the offset
// of some instruction in the body. A method that fails validation must be
// skipped, not analyzed; the error says which instruction is at fault.
func (m *Method) Validate() error {
	offsets := make(map[int]bool, len(m.Body))
	for i := range m.Body {
		in := &m.Body[i]
		if i > 0 && in.Offset <= m.Body[i-1].Offset {
			return fmt.Errorf("validating %s: offset %04d after %04d: %w",
				m.FullName(), in.Offset, m.Body[i-1].Offset, ErrNonMonotonicOffsets)
		}
		offsets[in.Offset] = true
	}
	for i := range m.Body {
		in := &m.Body[i]
		if in.HasTarget && !offsets[in.Target] {
			return fmt.Errorf("validating %s: branch at %04d to %04d: %w",
				m.FullName(), in.Offset, in.Target, ErrDanglingBranchTarget)
		}
	}
	return nil
}
