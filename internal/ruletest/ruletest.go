// Package ruletest runs method rules over module fixtures and compares
// their findings against golden expectations.
//
// A corpus is a directory of txtar archives. Each archive bundles a
// module.yaml module description and an optional expect section listing
// the rendered findings one per line; no expect section, or an empty one,
// means the rule must stay silent on that module.
package ruletest

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"

	"github.com/715d/disposeguard/pkg/bytecode"
	"github.com/715d/disposeguard/pkg/modfile"
	"github.com/715d/disposeguard/pkg/rules"
)

// Run executes every corpus archive in dir against the rule, one subtest
// per archive.
func Run(t *testing.T, dir string, rule rules.MethodRule) {
	t.Helper()
	archives, err := filepath.Glob(filepath.Join(dir, "*.txtar"))
	require.NoError(t, err)
	require.NotEmpty(t, archives, "no corpus archives under %s", dir)

	for _, path := range archives {
		name := strings.TrimSuffix(filepath.Base(path), ".txtar")
		t.Run(name, func(t *testing.T) {
			runArchive(t, path, rule)
		})
	}
}

func runArchive(t *testing.T, path string, rule rules.MethodRule) {
	t.Helper()
	ar, err := txtar.ParseFile(path)
	require.NoError(t, err)

	var mod *bytecode.Module
	var expect []string
	for _, f := range ar.Files {
		switch f.Name {
		case "module.yaml":
			mod, err = modfile.Parse(f.Data)
			require.NoError(t, err, "parsing module.yaml in %s", path)
		case "expect":
			expect = expectLines(f.Data)
		default:
			t.Fatalf("unexpected file %q in %s", f.Name, path)
		}
	}
	require.NotNil(t, mod, "missing module.yaml in %s", path)

	require.Equal(t, expect, Findings(t, mod, rule))
}

// Findings runs the rule over the module through the engine and returns
// the rendered findings in deterministic order.
func Findings(t *testing.T, mod *bytecode.Module, rule rules.MethodRule) []string {
	t.Helper()
	collector := rules.NewCollector()
	runner := rules.NewRunner([]rules.MethodRule{rule}, rules.RunnerOptions{})
	_, err := runner.Run(t.Context(), mod, collector)
	require.NoError(t, err)

	var out []string
	for _, f := range collector.Findings() {
		out = append(out, f.String())
	}
	return out
}

// expectLines parses the golden section: one rendered finding per line,
// blank lines and #-comments ignored.
func expectLines(data []byte) []string {
	var out []string
	for line := range strings.Lines(string(data)) {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out
}
