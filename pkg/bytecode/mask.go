package bytecode

import (
	"strings"

	"github.com/puzpuzpuz/xsync/v4"
)

// OpcodeMask is a bitmask with one bit per opcode category. Rules use masks
// as a cheap prefilter: a body whose mask does not intersect the opcodes a
// rule acts on cannot produce a finding, so the body is never walked.
type OpcodeMask uint16

// Mask builds a mask containing the given opcode categories.
func Mask(ops ...Opcode) OpcodeMask {
	var m OpcodeMask
	for _, op := range ops {
		m |= 1 << op
	}
	return m
}

// MaskOf computes the mask of opcode categories present in the body in a
// single pass.
func MaskOf(body []Instruction) OpcodeMask {
	var m OpcodeMask
	for i := range body {
		m |= 1 << body[i].Opcode
	}
	return m
}

// Contains reports whether the mask includes the opcode's category.
func (m OpcodeMask) Contains(op Opcode) bool {
	return m&(1<<op) != 0
}

// Intersects reports whether the two masks share any category.
func (m OpcodeMask) Intersects(other OpcodeMask) bool {
	return m&other != 0
}

// String renders the mask as a comma-separated list of category names for
// diagnostics, e.g. "invoke-virtual,load-field,load-self".
func (m OpcodeMask) String() string {
	if m == 0 {
		return "none"
	}
	var builder strings.Builder
	builder.Grow(64)
	for op := Opcode(0); op < numOpcodes; op++ {
		if !m.Contains(op) {
			continue
		}
		if builder.Len() > 0 {
			builder.WriteByte(',')
		}
		builder.WriteString(op.String())
	}
	return builder.String()
}

// MaskCache memoizes per-method opcode masks so that multiple rules
// consulting the same body pay for the scan once.
type MaskCache struct {
	masks *xsync.Map[*Method, OpcodeMask]
}

func NewMaskCache() *MaskCache {
	return &MaskCache{
		masks: xsync.NewMap[*Method, OpcodeMask](),
	}
}

// Mask returns the opcode mask of the method's body, computing and caching
// it on first use.
func (c *MaskCache) Mask(m *Method) OpcodeMask {
	mask, ok := c.masks.Load(m)
	if ok {
		return mask
	}
	mask = MaskOf(m.Body)
	c.masks.Store(m, mask)
	return mask
}
