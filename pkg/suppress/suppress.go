// Package suppress implements pattern-based suppression of findings.
//
// Decoded modules carry no source text, so suppressions cannot ride on
// comments the way source-level linters take them. They arrive as
// configuration instead: a list of patterns, each muting the findings
// whose method identity matches. A pattern is a path.Match glob over the
// method's full name, optionally scoped to a single rule with a "rule/"
// prefix; method names never contain '/', so the prefix is unambiguous.
//
//	Sample.Stream::Flush()           any rule, one method
//	Sample.Legacy*::*                any rule, a type subtree
//	disposeguard/Sample.*::Close()   one rule only
package suppress

import (
	"fmt"
	"path"
	"strings"
	"sync/atomic"

	"github.com/715d/disposeguard/pkg/rules"
)

type entry struct {
	rule    string // empty matches every rule
	pattern string // glob over the method full name
}

// List is a compiled set of suppression patterns.
type List struct {
	entries []entry
}

// Parse compiles a pattern list. Malformed globs are rejected up front so
// a bad configuration fails loudly instead of silently muting nothing.
func Parse(patterns []string) (*List, error) {
	l := &List{entries: make([]entry, 0, len(patterns))}
	for _, p := range patterns {
		rule, glob, scoped := strings.Cut(p, "/")
		if !scoped {
			rule, glob = "", p
		}
		if glob == "" {
			return nil, fmt.Errorf("suppression %q: empty method pattern", p)
		}
		if _, err := path.Match(glob, ""); err != nil {
			return nil, fmt.Errorf("suppression %q: %w", p, err)
		}
		l.entries = append(l.entries, entry{rule: rule, pattern: glob})
	}
	return l, nil
}

// Len returns the number of compiled patterns.
func (l *List) Len() int {
	return len(l.entries)
}

// Match reports whether any pattern mutes the finding.
func (l *List) Match(f *rules.Finding) bool {
	for _, e := range l.entries {
		if e.rule != "" && e.rule != f.Rule {
			continue
		}
		// The pattern was vetted in Parse, so the error cannot fire here.
		if ok, _ := path.Match(e.pattern, f.Method); ok {
			return true
		}
	}
	return false
}

// Filter is a rules.Reporter that forwards findings not muted by its list
// and counts the ones it drops. Safe for concurrent use when the wrapped
// reporter is.
type Filter struct {
	list       *List
	next       rules.Reporter
	suppressed int64
}

// NewFilter wraps next so muted findings never reach it.
func NewFilter(list *List, next rules.Reporter) *Filter {
	return &Filter{list: list, next: next}
}

// Report implements rules.Reporter.
func (f *Filter) Report(finding *rules.Finding) {
	if f.list.Match(finding) {
		atomic.AddInt64(&f.suppressed, 1)
		return
	}
	f.next.Report(finding)
}

// Suppressed returns the number of findings dropped so far.
func (f *Filter) Suppressed() int64 {
	return atomic.LoadInt64(&f.suppressed)
}
