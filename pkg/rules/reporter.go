package rules

import (
	"cmp"
	"slices"
	"strings"
	"sync"
)

// Reporter receives findings as rules produce them. Report may be called
// from multiple goroutines; each call must be atomic.
type Reporter interface {
	Report(f *Finding)
}

// Collector is a Reporter that accumulates findings in memory.
type Collector struct {
	mu       sync.Mutex
	findings []*Finding
}

func NewCollector() *Collector {
	return &Collector{}
}

// Report appends the finding.
func (c *Collector) Report(f *Finding) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.findings = append(c.findings, f)
}

// Findings returns the collected findings ordered by module, method and
// rule, so output does not depend on scheduling order.
func (c *Collector) Findings() []*Finding {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := slices.Clone(c.findings)
	slices.SortFunc(out, func(a, b *Finding) int {
		return cmp.Or(
			strings.Compare(a.Module, b.Module),
			strings.Compare(a.Method, b.Method),
			strings.Compare(a.Rule, b.Rule),
		)
	})
	return out
}

// Len returns the number of findings collected so far.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.findings)
}
